package service

import (
	"context"
	"time"

	"github.com/myfreehouseplans/catalog/internal/cache"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

// The interfaces below are satisfied by the repository and cache packages.
// Services depend on them so tests can swap in fakes.

// PlanStore is the plan persistence used by the plan and catalog services.
type PlanStore interface {
	Create(ctx context.Context, plan *model.HousePlan, categoryIDs []int64) error
	Update(ctx context.Context, plan *model.HousePlan, categoryIDs []int64) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*model.HousePlan, error)
	GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*model.HousePlan, error)
	GetByPublicCode(ctx context.Context, code string) (*model.HousePlan, error)
	FindByGumroadPermalink(ctx context.Context, permalink string) (*model.HousePlan, model.Pack, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	PublicCodeExists(ctx context.Context, code string, excludeID int64) (bool, error)
	NextReferenceSequence(ctx context.Context, year int) (int, error)
	SetPublicCode(ctx context.Context, id int64, code string) error
	ListMissingPublicCodes(ctx context.Context) ([]*model.HousePlan, error)
	SetPublished(ctx context.Context, id int64, published bool) error
	SetFeatured(ctx context.Context, id int64, featured bool) error
	IncrementViews(ctx context.Context, id int64, n int64) error
	List(ctx context.Context, filter repository.PlanFilter) (*repository.PlanPage, error)
	Featured(ctx context.Context, n int) ([]*model.HousePlan, error)
	Recent(ctx context.Context, n int) ([]*model.HousePlan, error)
	Popular(ctx context.Context, n int) ([]*model.HousePlan, error)
	Related(ctx context.Context, plan *model.HousePlan, n int) ([]*model.HousePlan, error)
	AllPublishedSlugs(ctx context.Context) ([]repository.PlanSlug, error)
	Stats(ctx context.Context) (repository.PlanStats, error)
}

// PlanCache is the Redis side of the plan detail page.
type PlanCache interface {
	GetPlan(ctx context.Context, slug string) (*model.HousePlan, error)
	SetPlan(ctx context.Context, plan *model.HousePlan, ttl time.Duration) error
	InvalidatePlan(ctx context.Context, slug string) error
	IsNegativelyCached(ctx context.Context, slug string) (bool, error)
	SetNegativeCache(ctx context.Context, slug string) error
	IncrementViews(ctx context.Context, planID int64) error
}

// ViewCounter buffers plan views between flushes.
type ViewCounter interface {
	DrainViews(ctx context.Context) (map[int64]int64, error)
	RestoreViews(ctx context.Context, counts map[int64]int64) error
}

// CategoryStore persists categories.
type CategoryStore interface {
	List(ctx context.Context) ([]*model.Category, error)
	GetByID(ctx context.Context, id int64) (*model.Category, error)
	GetBySlug(ctx context.Context, slug string) (*model.Category, error)
	Create(ctx context.Context, c *model.Category) error
	Update(ctx context.Context, c *model.Category) error
	Delete(ctx context.Context, id int64) error
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	UpsertByName(ctx context.Context, c *model.Category) error
}

// FAQStore persists plan FAQs.
type FAQStore interface {
	ListByPlan(ctx context.Context, planID int64) ([]*model.PlanFAQ, error)
	Get(ctx context.Context, planID, id int64) (*model.PlanFAQ, error)
	Create(ctx context.Context, f *model.PlanFAQ) error
	Update(ctx context.Context, f *model.PlanFAQ) error
	Delete(ctx context.Context, planID, id int64) error
	Reorder(ctx context.Context, planID int64, ids []int64) error
}

// ContactStore persists contact messages.
type ContactStore interface {
	Create(ctx context.Context, m *model.ContactMessage) error
	Get(ctx context.Context, id int64) (*model.ContactMessage, error)
	List(ctx context.Context, filter repository.ContactFilter) (*repository.ContactPage, error)
	StatusCounts(ctx context.Context) (map[model.MessageStatus]int64, error)
	Update(ctx context.Context, m *model.ContactMessage) error
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByTransaction(ctx context.Context, method, transactionID string) (*model.Order, error)
	List(ctx context.Context, status model.OrderStatus, page repository.Page) (*repository.OrderPage, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error
	Stats(ctx context.Context) (repository.OrderStats, error)
}

// BlogStore persists blog posts.
type BlogStore interface {
	List(ctx context.Context, filter repository.BlogFilter) (*repository.BlogPage, error)
	GetByID(ctx context.Context, id int64) (*model.BlogPost, error)
	GetBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
	Create(ctx context.Context, b *model.BlogPost) error
	Update(ctx context.Context, b *model.BlogPost) error
	Delete(ctx context.Context, id int64) error
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	PublishedSlugs(ctx context.Context) ([]repository.PostSlug, error)
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// SessionStore keeps admin sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, userID int64, csrfToken string, ttl time.Duration) (*cache.Session, error)
	GetSession(ctx context.Context, token string) (*cache.Session, error)
	TouchSession(ctx context.Context, token string, ttl time.Duration) error
	DeleteSession(ctx context.Context, token string) error
}

// SettingsStore persists site settings.
type SettingsStore interface {
	PackVisibility(ctx context.Context) (model.PackVisibility, error)
	SavePackVisibility(ctx context.Context, v model.PackVisibility) error
}

// VisitStore reads request log aggregates.
type VisitStore interface {
	DailyVisits(ctx context.Context, days int, now time.Time) ([]model.DailyVisits, error)
}

var (
	_ PlanStore     = (*repository.PlanRepository)(nil)
	_ CategoryStore = (*repository.CategoryRepository)(nil)
	_ FAQStore      = (*repository.FAQRepository)(nil)
	_ ContactStore  = (*repository.ContactRepository)(nil)
	_ OrderStore    = (*repository.OrderRepository)(nil)
	_ BlogStore     = (*repository.BlogRepository)(nil)
	_ UserStore     = (*repository.UserRepository)(nil)
	_ SettingsStore = (*repository.SettingsRepository)(nil)
	_ VisitStore    = (*repository.RequestLogRepository)(nil)
	_ PlanCache     = (*cache.Cache)(nil)
	_ ViewCounter   = (*cache.Cache)(nil)
	_ SessionStore  = (*cache.Cache)(nil)
)
