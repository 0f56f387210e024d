package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// Messages handles GET /admin/messages.
func (h *AdminHandler) Messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	inbox, err := h.contacts.Inbox(r.Context(), repository.ContactFilter{
		Status:      q.Get("status"),
		InquiryType: q.Get("inquiry_type"),
		Query:       strings.TrimSpace(q.Get("q")),
		Page:        repository.Page{Number: pageParam(r), PerPage: adminPerPage},
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.adminPage(w, r, http.StatusOK, "admin/messages", "Messages", map[string]any{
		"Inbox":        inbox,
		"Statuses":     model.MessageStatuses,
		"InquiryTypes": inquiryOptions(),
	}, nil, nil)
}

// Message handles GET /admin/messages/{id}.
func (h *AdminHandler) Message(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.loadMessage(w, r)
	if !ok {
		return
	}
	h.renderMessage(w, r, http.StatusOK, msg, nil)
}

// UpdateMessageStatus handles POST /admin/messages/{id}/status.
func (h *AdminHandler) UpdateMessageStatus(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.loadMessage(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest, "Bad request", "The form could not be read.")
		return
	}

	status := model.MessageStatus(r.PostForm.Get("status"))
	var notes *string
	if _, present := r.PostForm["admin_notes"]; present {
		n := r.PostForm.Get("admin_notes")
		notes = &n
	}

	updated, err := h.contacts.UpdateStatus(r.Context(), msg.ID, status, notes)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			h.renderMessage(w, r, http.StatusUnprocessableEntity, msg, service.FieldErrors(err))
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("contact_message_updated", "message_id", updated.ID, "status", updated.Status)
	h.setFlash(w, "success", "Message marked "+strings.ToLower(updated.Status.Label())+".")
	redirect(w, r, messagePath(msg.ID))
}

// ToggleImportant handles POST /admin/messages/{id}/important.
func (h *AdminHandler) ToggleImportant(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	important, err := h.contacts.ToggleImportant(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if important {
		h.setFlash(w, "success", "Message marked important.")
	} else {
		h.setFlash(w, "success", "Message no longer marked important.")
	}
	redirect(w, r, messagePath(id))
}

// Attachment handles GET /admin/messages/{id}/attachment.
func (h *AdminHandler) Attachment(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.loadMessage(w, r)
	if !ok {
		return
	}
	if !msg.HasAttachment() {
		h.NotFound(w, r)
		return
	}
	path, err := service.ProtectedPath(h.uploads.ProtectedDir(), msg.AttachmentPath)
	if err != nil {
		h.logger.Warn("refused attachment path", "message_id", msg.ID, "error", err)
		h.NotFound(w, r)
		return
	}
	serveAttachment(w, r, path)
}

func (h *AdminHandler) loadMessage(w http.ResponseWriter, r *http.Request) (*model.ContactMessage, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return nil, false
	}
	msg, err := h.contacts.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	return msg, true
}

func (h *AdminHandler) renderMessage(w http.ResponseWriter, r *http.Request, status int, msg *model.ContactMessage, errs map[string]string) {
	h.adminPage(w, r, status, "admin/message_detail", msg.Subject, map[string]any{
		"Message":  msg,
		"Statuses": model.MessageStatuses,
	}, nil, errs)
}

func messagePath(id int64) string {
	return "/admin/messages/" + strconv.FormatInt(id, 10)
}
