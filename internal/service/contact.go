package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myfreehouseplans/catalog/internal/mail"
	"github.com/myfreehouseplans/catalog/internal/metrics"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

// maxEmailErrorLength bounds the stored delivery error.
const maxEmailErrorLength = 500

// ContactInput is the public contact form.
type ContactInput struct {
	Name          string `form:"name" validate:"required,max=100"`
	Email         string `form:"email" validate:"required,email,max=120"`
	Phone         string `form:"phone" validate:"max=20"`
	Subject       string `form:"subject" validate:"required,max=200"`
	Message       string `form:"message" validate:"required,min=10,max=2000"`
	InquiryType   string `form:"inquiry_type" validate:"required,oneof=plans orders custom support"`
	PlanID        *int64 `form:"plan_reference"`
	ReferenceCode string `form:"reference_code" validate:"max=50"`
	Subscribe     bool   `form:"subscribe"`

	// AttachmentPath is relative to the protected upload folder, set once the upload is stored.
	AttachmentPath string `form:"-"`
}

// ContactConfig holds the contact mail settings.
type ContactConfig struct {
	AdminEmail   string
	SiteName     string
	ProtectedDir string
}

// ContactService stores contact messages and runs the admin inbox.
type ContactService struct {
	store   ContactStore
	plans   PlanStore
	sender  mail.Sender
	cfg     ContactConfig
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewContactService creates a new ContactService.
func NewContactService(store ContactStore, plans PlanStore, sender mail.Sender, cfg ContactConfig, logger *slog.Logger, recorder metrics.Recorder) *ContactService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ContactService{
		store:   store,
		plans:   plans,
		sender:  sender,
		cfg:     cfg,
		logger:  logger.With("component", "service.contact"),
		metrics: recorder,
		now:     time.Now,
	}
}

// PlanOptions lists published plans for the "plan of interest" select.
func (s *ContactService) PlanOptions(ctx context.Context) ([]*model.HousePlan, error) {
	page, err := s.plans.List(ctx, repository.PlanFilter{
		PublishedOnly: true,
		Sort:          repository.SortTitle,
		Page:          repository.Page{Number: 1, PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list plan options: %w", err)
	}
	return page.Plans, nil
}

// Submit stores a message and notifies the studio. A mail failure is recorded
// on the message and never fails the submission.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*model.ContactMessage, error) {
	in = normalizeContact(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var plan *model.HousePlan
	if in.PlanID != nil {
		p, err := s.plans.GetByID(ctx, *in.PlanID)
		switch {
		case err == nil && p.IsPublished:
			plan = p
		case err == nil, errors.Is(err, repository.ErrNotFound):
			// Stale or tampered select value; keep the message without a plan.
		default:
			return nil, fmt.Errorf("failed to resolve plan: %w", err)
		}
	}

	msg := &model.ContactMessage{
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Subject:        in.Subject,
		Message:        in.Message,
		InquiryType:    in.InquiryType,
		ReferenceCode:  in.ReferenceCode,
		AttachmentPath: in.AttachmentPath,
		Subscribe:      in.Subscribe,
		Status:         model.MessageStatusNew,
		EmailStatus:    model.EmailStatusPending,
	}
	if plan != nil {
		msg.PlanID = &plan.ID
		msg.PlanTitle = plan.Title
	}

	if err := s.store.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store contact message: %w", err)
	}

	s.deliver(ctx, msg, plan)
	s.metrics.IncContactMessage(string(msg.EmailStatus))
	return msg, nil
}

// deliver sends the studio notification and the visitor receipt.
func (s *ContactService) deliver(ctx context.Context, msg *model.ContactMessage, plan *model.HousePlan) {
	notification := mail.ContactNotification(s.cfg.AdminEmail, msg, plan)
	if msg.AttachmentPath != "" {
		if path, err := ProtectedPath(s.cfg.ProtectedDir, msg.AttachmentPath); err == nil {
			notification.Attachments = []string{path}
		}
	}

	if err := s.sender.Send(ctx, notification); err != nil {
		s.logger.Error("failed to send contact email", "message_id", msg.ID, "error", err)
		msg.EmailStatus = model.EmailStatusFailed
		msg.EmailError = truncateRunes(err.Error(), maxEmailErrorLength)
	} else {
		msg.EmailStatus = model.EmailStatusSent
		msg.EmailError = ""
	}

	if err := s.store.Update(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Error("failed to record delivery status", "message_id", msg.ID, "error", err)
	}

	if err := s.sender.Send(ctx, mail.ContactAcknowledgment(s.cfg.SiteName, msg)); err != nil {
		s.logger.Warn("failed to send acknowledgment", "message_id", msg.ID, "error", err)
	}
}

// InboxPage is one page of the admin inbox with per status counts.
type InboxPage struct {
	*repository.ContactPage
	Counts map[model.MessageStatus]int64
	Filter repository.ContactFilter
}

// Inbox lists messages for the admin.
func (s *ContactService) Inbox(ctx context.Context, filter repository.ContactFilter) (*InboxPage, error) {
	if filter.Status != "" && filter.Status != repository.StatusOpen && !model.MessageStatus(filter.Status).IsValid() {
		filter.Status = ""
	}
	page, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	counts, err := s.store.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	return &InboxPage{ContactPage: page, Counts: counts, Filter: filter}, nil
}

// Get loads one message.
func (s *ContactService) Get(ctx context.Context, id int64) (*model.ContactMessage, error) {
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return msg, nil
}

// UpdateStatus moves a message to status. A nil notes leaves the notes alone.
func (s *ContactService) UpdateStatus(ctx context.Context, id int64, status model.MessageStatus, notes *string) (*model.ContactMessage, error) {
	if !status.IsValid() {
		return nil, fieldError("status", "Choose one of the listed options.")
	}
	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	msg.MarkStatus(status, s.now().UTC())
	if notes != nil {
		msg.AdminNotes = strings.TrimSpace(*notes)
	}
	if err := s.save(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ToggleImportant flips the important tag on the admin notes and returns the new state.
func (s *ContactService) ToggleImportant(ctx context.Context, id int64) (bool, error) {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	important := !model.HasImportantTag(msg.AdminNotes)
	msg.AdminNotes = model.ToggleImportant(msg.AdminNotes, important)
	if err := s.save(ctx, msg); err != nil {
		return false, err
	}
	return important, nil
}

// OpenCount is the number of messages still needing attention.
func (s *ContactService) OpenCount(ctx context.Context) (int64, error) {
	counts, err := s.store.StatusCounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return counts[model.MessageStatusNew] + counts[model.MessageStatusInProgress], nil
}

func (s *ContactService) save(ctx context.Context, msg *model.ContactMessage) error {
	if err := s.store.Update(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

func normalizeContact(in ContactInput) ContactInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	in.InquiryType = strings.TrimSpace(in.InquiryType)
	in.ReferenceCode = strings.TrimSpace(in.ReferenceCode)
	return in
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
