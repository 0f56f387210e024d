package model

import (
	"regexp"
	"strings"
	"time"
)

// MessageStatus tracks follow-up of a contact message.
type MessageStatus string

const (
	MessageStatusNew        MessageStatus = "new"
	MessageStatusInProgress MessageStatus = "in_progress"
	MessageStatusResponded  MessageStatus = "responded"
	MessageStatusArchived   MessageStatus = "archived"
)

// MessageStatuses lists statuses in inbox order.
var MessageStatuses = []MessageStatus{
	MessageStatusNew,
	MessageStatusInProgress,
	MessageStatusResponded,
	MessageStatusArchived,
}

// IsValid reports whether s is a known status.
func (s MessageStatus) IsValid() bool {
	for _, v := range MessageStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Label is the inbox display name.
func (s MessageStatus) Label() string {
	switch s {
	case MessageStatusNew:
		return "New"
	case MessageStatusInProgress:
		return "In progress"
	case MessageStatusResponded:
		return "Responded"
	case MessageStatusArchived:
		return "Archived"
	}
	return string(s)
}

// EmailStatus records delivery of the notification mails.
type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

// InquiryLabels maps inquiry types to their form labels.
var InquiryLabels = map[string]string{
	"plans":   "Plan selection & availability",
	"orders":  "Gumroad orders & downloads",
	"custom":  "Custom project or collaboration",
	"support": "Technical support",
}

// InquiryTypes lists inquiry types in form order.
var InquiryTypes = []string{"plans", "orders", "custom", "support"}

// ImportantTag marks a message as important in the admin notes.
const ImportantTag = "[IMPORTANT]"

var importantTagPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(ImportantTag))

var importantKeywords = []string{
	"urgent", "asap", "refund", "payment", "error", "bug", "problem", "download", "not working", "failed",
}

// ContactMessage is a stored submission of the contact form.
type ContactMessage struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone,omitempty"`
	Subject         string        `json:"subject"`
	Message         string        `json:"message"`
	InquiryType     string        `json:"inquiry_type"`
	PlanID          *int64        `json:"plan_id,omitempty"`
	ReferenceCode   string        `json:"reference_code,omitempty"`
	AttachmentPath  string        `json:"-"`
	Subscribe       bool          `json:"subscribe"`
	Status          MessageStatus `json:"status"`
	EmailStatus     EmailStatus   `json:"email_status"`
	EmailError      string        `json:"email_error,omitempty"`
	AdminNotes      string        `json:"admin_notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	StatusUpdatedAt *time.Time    `json:"status_updated_at,omitempty"`
	RespondedAt     *time.Time    `json:"responded_at,omitempty"`

	// PlanTitle is joined in by inbox queries.
	PlanTitle string `json:"plan_title,omitempty"`
}

// MarkStatus moves the message to a new status. Unknown statuses are ignored.
func (m *ContactMessage) MarkStatus(status MessageStatus, now time.Time) {
	if !status.IsValid() || m.Status == status {
		return
	}
	m.Status = status
	m.StatusUpdatedAt = &now
	if status == MessageStatusResponded && m.RespondedAt == nil {
		m.RespondedAt = &now
	}
}

// IsOpen reports whether the message still needs attention.
func (m *ContactMessage) IsOpen() bool {
	return m.Status == MessageStatusNew || m.Status == MessageStatusInProgress
}

// HasAttachment reports whether a file was uploaded with the message.
func (m *ContactMessage) HasAttachment() bool {
	return m.AttachmentPath != ""
}

// InquiryLabel returns the label of the inquiry type.
func (m *ContactMessage) InquiryLabel() string {
	if l, ok := InquiryLabels[m.InquiryType]; ok {
		return l
	}
	return m.InquiryType
}

// IsImportant flags messages tagged by an admin or carrying high-signal content.
func (m *ContactMessage) IsImportant() bool {
	if HasImportantTag(m.AdminNotes) {
		return true
	}
	text := strings.ToLower(m.Subject + " " + m.InquiryType + " " + m.ReferenceCode)
	for _, k := range importantKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return m.HasAttachment() || m.ReferenceCode != ""
}

// Preview shortens the message body for list views.
func (m *ContactMessage) Preview(limit int) string {
	raw := strings.Join(strings.Fields(m.Message), " ")
	runes := []rune(raw)
	if len(runes) <= limit {
		return raw
	}
	return strings.TrimRight(string(runes[:limit]), " ") + "…"
}

// HasImportantTag reports whether notes carry the important tag, in any case.
func HasImportantTag(notes string) bool {
	return importantTagPattern.MatchString(notes)
}

// ToggleImportant adds the important tag as the first notes line, or strips
// every occurrence of it in any case.
func ToggleImportant(notes string, important bool) string {
	raw := strings.TrimSpace(notes)

	if important {
		switch {
		case HasImportantTag(raw):
			return raw
		case raw == "":
			return ImportantTag
		default:
			return ImportantTag + "\n" + raw
		}
	}

	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !HasImportantTag(line) {
			kept = append(kept, line)
			continue
		}
		if rest := strings.TrimSpace(importantTagPattern.ReplaceAllString(line, "")); rest != "" {
			kept = append(kept, rest)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
