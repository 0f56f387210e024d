// Package service provides business logic for the application.
package service

import (
	"errors"
	"sort"
	"strings"
)

// Service errors.
var (
	ErrPlanNotFound        = errors.New("plan not found")
	ErrPlanInUse           = errors.New("plan has orders and cannot be deleted")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrCategoryExists      = errors.New("category already exists")
	ErrCategoryInUse       = errors.New("category is assigned to plans")
	ErrFAQNotFound         = errors.New("faq not found")
	ErrPostNotFound        = errors.New("blog post not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUserInactive        = errors.New("user account is disabled")
	ErrUserExists          = errors.New("user already exists")
	ErrSessionExpired      = errors.New("session expired")
	ErrInvalidPack         = errors.New("invalid pack")
	ErrPackUnavailable     = errors.New("pack is not available for this plan")
	ErrDisallowedURL       = errors.New("checkout URL is not an allowed Gumroad link")
	ErrNoFreeFile          = errors.New("plan has no free download")
	ErrUnsafePath          = errors.New("file path escapes the download folder")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidWebhookToken = errors.New("invalid webhook token")
)

// ValidationError carries per-field messages. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// Error lists the field messages in a stable order.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// FieldErrors returns the field messages of a validation error, or nil.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

func fieldError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
