package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/service"
	"github.com/myfreehouseplans/catalog/internal/upload"
)

// multipartMemory is how much of a multipart body is kept in memory.
const multipartMemory = 8 << 20

type option struct {
	Value string
	Label string
}

func inquiryOptions() []option {
	opts := make([]option, 0, len(model.InquiryTypes))
	for _, t := range model.InquiryTypes {
		opts = append(opts, option{Value: t, Label: model.InquiryLabels[t]})
	}
	return opts
}

// ContactHandler serves the contact form.
type ContactHandler struct {
	*Handler
	contacts Contacts
	uploads  Uploader
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(base *Handler, contacts Contacts, uploads Uploader) *ContactHandler {
	return &ContactHandler{Handler: base, contacts: contacts, uploads: uploads}
}

// Form handles GET /contact. ?plan={id} preselects a plan.
func (h *ContactHandler) Form(w http.ResponseWriter, r *http.Request) {
	form := url.Values{"inquiry_type": {model.InquiryTypes[0]}}
	if id, err := strconv.ParseInt(r.URL.Query().Get("plan"), 10, 64); err == nil && id > 0 {
		form.Set("plan_reference", strconv.FormatInt(id, 10))
	}
	h.renderForm(w, r, http.StatusOK, form, nil)
}

// Submit handles POST /contact.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.renderForm(w, r, http.StatusBadRequest, r.Form, map[string]string{"attachment": "The upload could not be read."})
		return
	}

	var in service.ContactInput
	decodeForm(r.PostForm, &in, "form")

	file, header, err := formFile(r, "attachment")
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if file != nil {
		defer file.Close()
		rel, err := h.uploads.SaveProtected(file, header, "contact")
		if err != nil {
			if msg, ok := uploadErrorMessage(err); ok {
				h.renderForm(w, r, http.StatusUnprocessableEntity, r.PostForm, map[string]string{"attachment": msg})
				return
			}
			h.serverError(w, r, err)
			return
		}
		in.AttachmentPath = rel
	}

	msg, err := h.contacts.Submit(r.Context(), in)
	if err != nil {
		h.uploads.RemoveProtected(in.AttachmentPath)
		if errors.Is(err, service.ErrValidation) {
			h.renderForm(w, r, http.StatusUnprocessableEntity, r.PostForm, service.FieldErrors(err))
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.logger.Info("contact_message_received",
		"message_id", msg.ID,
		"inquiry_type", msg.InquiryType,
		"has_attachment", msg.HasAttachment(),
	)
	h.setFlash(w, "success", "Thank you, your message has been sent. We will reply by email.")
	redirect(w, r, "/contact")
}

func (h *ContactHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, form url.Values, errs map[string]string) {
	plans, err := h.contacts.PlanOptions(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	meta := h.meta("Contact", "Questions about a house plan, a Gumroad order or a custom project.", "/contact")
	p := h.page(w, r, meta, map[string]any{
		"InquiryTypes": inquiryOptions(),
		"Plans":        plans,
	})
	p.Form = form
	p.Errors = errs
	h.render(w, status, "contact", p)
}

// uploadErrorMessage turns upload rejections into form messages.
func uploadErrorMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return "The file is too large.", true
	case errors.Is(err, upload.ErrExtensionNotAllowed):
		return "This file type is not allowed.", true
	case errors.Is(err, upload.ErrEmptyFile):
		return "The file is empty.", true
	}
	return "", false
}

// formFile returns the uploaded file of a field, or nil when none was sent.
func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if header.Size == 0 && header.Filename == "" {
		_ = file.Close()
		return nil, nil, nil
	}
	return file, header, nil
}
