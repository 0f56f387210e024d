package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// StatusOpen selects new and in-progress messages.
const StatusOpen = "open"

// ContactFilter narrows the inbox.
type ContactFilter struct {
	// Status is "", "open", or a model.MessageStatus value.
	Status      string
	InquiryType string
	Query       string
	Page        Page
}

// ContactPage is one page of the inbox.
type ContactPage struct {
	Messages []*model.ContactMessage
	Total    int64
	Page     int
	PerPage  int
}

// Pages is the number of pages.
func (p ContactPage) Pages() int {
	return Pages(p.Total, p.PerPage)
}

// ContactRepository provides database access for contact messages.
type ContactRepository struct {
	repo *Repository
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(repo *Repository) *ContactRepository {
	return &ContactRepository{repo: repo}
}

const contactColumns = `
	m.id, m.name, m.email, m.phone, m.subject, m.message, m.inquiry_type, m.plan_id,
	m.reference_code, m.attachment_path, m.subscribe, m.status, m.email_status,
	m.email_error, m.admin_notes, m.created_at, m.status_updated_at, m.responded_at,
	COALESCE(p.title, '')`

func scanContact(row pgx.Row) (*model.ContactMessage, error) {
	var m model.ContactMessage
	err := row.Scan(
		&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Message, &m.InquiryType, &m.PlanID,
		&m.ReferenceCode, &m.AttachmentPath, &m.Subscribe, &m.Status, &m.EmailStatus,
		&m.EmailError, &m.AdminNotes, &m.CreatedAt, &m.StatusUpdatedAt, &m.RespondedAt,
		&m.PlanTitle,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create stores a new message.
func (r *ContactRepository) Create(ctx context.Context, m *model.ContactMessage) error {
	err := r.repo.pool.QueryRow(ctx, `
		INSERT INTO contact_messages (name, email, phone, subject, message, inquiry_type, plan_id,
			reference_code, attachment_path, subscribe, status, email_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		m.Name, m.Email, m.Phone, m.Subject, m.Message, m.InquiryType, m.PlanID,
		m.ReferenceCode, m.AttachmentPath, m.Subscribe, string(m.Status), string(m.EmailStatus),
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	return nil
}

// Get retrieves a message by id.
func (r *ContactRepository) Get(ctx context.Context, id int64) (*model.ContactMessage, error) {
	m, err := scanContact(r.repo.pool.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contact_messages m LEFT JOIN house_plans p ON p.id = m.plan_id
		WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contact message: %w", err)
	}
	return m, nil
}

// List returns a filtered inbox page, newest first.
func (r *ContactRepository) List(ctx context.Context, filter ContactFilter) (*ContactPage, error) {
	page := filter.Page.Normalize(20, 100)
	if page.PerPage < 10 {
		page.PerPage = 10
	}

	clauses := []string{"TRUE"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case filter.Status == StatusOpen:
		clauses = append(clauses, "m.status IN ('new', 'in_progress')")
	case model.MessageStatus(filter.Status).IsValid():
		clauses = append(clauses, "m.status = "+arg(filter.Status))
	}
	if filter.InquiryType != "" {
		clauses = append(clauses, "m.inquiry_type = "+arg(filter.InquiryType))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		ph := arg("%" + escapeLike(q) + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(m.subject ILIKE %[1]s OR m.email ILIKE %[1]s OR m.name ILIKE %[1]s OR m.reference_code ILIKE %[1]s)", ph))
	}
	where := strings.Join(clauses, " AND ")

	var total int64
	if err := r.repo.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contact_messages m WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count contact messages: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM contact_messages m LEFT JOIN house_plans p ON p.id = m.plan_id
		WHERE %s
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $%d OFFSET $%d`, contactColumns, where, len(args)+1, len(args)+2)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	defer rows.Close()

	messages := []*model.ContactMessage{}
	for rows.Next() {
		m, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact messages: %w", err)
	}

	return &ContactPage{Messages: messages, Total: total, Page: page.Number, PerPage: page.PerPage}, nil
}

// StatusCounts returns message counts per status.
func (r *ContactRepository) StatusCounts(ctx context.Context) (map[model.MessageStatus]int64, error) {
	rows, err := r.repo.pool.Query(ctx, `SELECT status, COUNT(*) FROM contact_messages GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count message statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.MessageStatus]int64, len(model.MessageStatuses))
	for _, s := range model.MessageStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status model.MessageStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Update persists status, notes and delivery fields of a message.
func (r *ContactRepository) Update(ctx context.Context, m *model.ContactMessage) error {
	result, err := r.repo.pool.Exec(ctx, `
		UPDATE contact_messages
		SET status = $2, admin_notes = $3, email_status = $4, email_error = $5,
		    status_updated_at = $6, responded_at = $7
		WHERE id = $1`,
		m.ID, string(m.Status), m.AdminNotes, string(m.EmailStatus), m.EmailError,
		m.StatusUpdatedAt, m.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
