package handler

import (
	"context"
	"mime/multipart"
	"time"

	"github.com/myfreehouseplans/catalog/internal/cache"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// Catalog serves the public plan pages.
type Catalog interface {
	Home(ctx context.Context) (*service.HomePage, error)
	Browse(ctx context.Context, filter repository.PlanFilter) (*service.BrowsePage, error)
	Category(ctx context.Context, categorySlug string, filter repository.PlanFilter) (*service.BrowsePage, error)
	PlanDetail(ctx context.Context, slug string) (*service.PlanDetail, error)
	PlanByCode(ctx context.Context, code string) (*model.HousePlan, error)
	FilterJSON(ctx context.Context, filter repository.PlanFilter) (*service.FilterResult, error)
	GumroadURL(ctx context.Context, slug string, pack model.Pack) (string, error)
	FreeDownload(ctx context.Context, planID int64) (string, error)
}

// Contacts stores contact messages and runs the admin inbox.
type Contacts interface {
	PlanOptions(ctx context.Context) ([]*model.HousePlan, error)
	Submit(ctx context.Context, in service.ContactInput) (*model.ContactMessage, error)
	Inbox(ctx context.Context, filter repository.ContactFilter) (*service.InboxPage, error)
	Get(ctx context.Context, id int64) (*model.ContactMessage, error)
	UpdateStatus(ctx context.Context, id int64, status model.MessageStatus, notes *string) (*model.ContactMessage, error)
	ToggleImportant(ctx context.Context, id int64) (bool, error)
}

// Blog serves articles.
type Blog interface {
	List(ctx context.Context, filter repository.BlogFilter) (*repository.BlogPage, error)
	AdminList(ctx context.Context, filter repository.BlogFilter) (*repository.BlogPage, error)
	Get(ctx context.Context, postSlug string, admin bool) (*model.BlogPost, error)
	GetByID(ctx context.Context, id int64) (*model.BlogPost, error)
	Create(ctx context.Context, in service.BlogInput) (*model.BlogPost, error)
	Update(ctx context.Context, id int64, in service.BlogInput) (*model.BlogPost, error)
	Delete(ctx context.Context, id int64) error
}

// Orders lists sales and records Gumroad pings.
type Orders interface {
	List(ctx context.Context, status model.OrderStatus, page int) (*repository.OrderPage, error)
	RecordGumroadSale(ctx context.Context, token string, ping service.GumroadPing) (*model.Order, error)
}

// Plans manages plans in the admin.
type Plans interface {
	Create(ctx context.Context, in service.PlanInput, creatorID *int64) (*model.HousePlan, error)
	Update(ctx context.Context, id int64, in service.PlanInput) (*model.HousePlan, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.HousePlan, error)
	List(ctx context.Context, filter repository.PlanFilter) (*repository.PlanPage, error)
	TogglePublish(ctx context.Context, id int64) (bool, error)
	ToggleFeatured(ctx context.Context, id int64) (bool, error)
}

// Categories manages plan categories.
type Categories interface {
	List(ctx context.Context) ([]*model.Category, error)
	Get(ctx context.Context, id int64) (*model.Category, error)
	Create(ctx context.Context, in service.CategoryInput) (*model.Category, error)
	Update(ctx context.Context, id int64, in service.CategoryInput) (*model.Category, error)
	Delete(ctx context.Context, id int64) error
}

// FAQs manages the questions of a plan.
type FAQs interface {
	List(ctx context.Context, planID int64) ([]*model.PlanFAQ, error)
	Get(ctx context.Context, planID, id int64) (*model.PlanFAQ, error)
	Create(ctx context.Context, planID int64, in service.FAQInput) (*model.PlanFAQ, error)
	Update(ctx context.Context, planID, id int64, in service.FAQInput) (*model.PlanFAQ, error)
	Delete(ctx context.Context, planID, id int64) error
}

// Authenticator signs admins in and out.
type Authenticator interface {
	Login(ctx context.Context, in service.LoginInput) (*cache.Session, *model.User, error)
	Logout(ctx context.Context, token string) error
	SessionTTL() time.Duration
}

// Settings reads and saves pack visibility.
type Settings interface {
	PackVisibility(ctx context.Context) model.PackVisibility
	SavePackVisibility(ctx context.Context, v model.PackVisibility) error
}

// DashboardLoader builds the admin landing page.
type DashboardLoader interface {
	Load(ctx context.Context) (*service.Dashboard, error)
}

// Uploader stores files sent with forms.
type Uploader interface {
	SaveImage(file multipart.File, header *multipart.FileHeader, sub string) (string, error)
	SaveProtected(file multipart.File, header *multipart.FileHeader, sub string, only ...string) (string, error)
	RemoveImage(urlPath string)
	RemoveProtected(rel string)
	ProtectedDir() string
}
