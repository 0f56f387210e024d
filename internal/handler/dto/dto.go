// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/myfreehouseplans/catalog/internal/analyzer"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ValidationErrorResponse carries per-field messages.
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

// FilterResponse answers the live plan filter.
type FilterResponse struct {
	Plans []service.PlanCard `json:"plans"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Pages int                `json:"pages"`
	HTML  string             `json:"html"`
}


// AnalyzeResponse wraps an analyzer report.
type AnalyzeResponse struct {
	Report *analyzer.Report `json:"report"`
}

// WebhookResponse acknowledges a Gumroad ping.
type WebhookResponse struct {
	Status      string `json:"status"`
	OrderNumber string `json:"order_number,omitempty"`
}
