package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/myfreehouseplans/catalog/internal/handler/dto"
	"github.com/myfreehouseplans/catalog/internal/service"
)

// WebhookHandler receives Gumroad sale pings.
type WebhookHandler struct {
	orders Orders
	logger *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(orders Orders, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		orders: orders,
		logger: logger.With("component", "handler.webhook"),
	}
}

// Gumroad handles POST /webhooks/gumroad?token=...
// Unknown products are acknowledged so Gumroad stops retrying them.
func (h *WebhookHandler) Gumroad(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_FORM", "Invalid form body")
		return
	}

	ping := gumroadPing(r.PostForm)
	order, err := h.orders.RecordGumroadSale(r.Context(), r.URL.Query().Get("token"), ping)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidWebhookToken):
			h.logger.Warn("gumroad ping with invalid token", "sale_id", truncateForLog(ping.SaleID, 64))
			writeErrorJSON(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid webhook token")
		case errors.Is(err, service.ErrValidation):
			writeErrorJSON(w, http.StatusBadRequest, "INVALID_PING", err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			writeJSON(w, http.StatusOK, dto.WebhookResponse{Status: "ignored"})
		default:
			h.logger.Error("failed to record gumroad sale", "error", err, "sale_id", ping.SaleID)
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		}
		return
	}

	h.logger.Info("gumroad_sale_recorded",
		"order_number", order.OrderNumber,
		"plan_id", order.PlanID,
		"status", order.Status,
		"test", ping.Test,
	)
	writeJSON(w, http.StatusOK, dto.WebhookResponse{Status: "ok", OrderNumber: order.OrderNumber})
}

// gumroadPing reads the form-encoded sale ping.
func gumroadPing(form map[string][]string) service.GumroadPing {
	get := func(k string) string { return strings.TrimSpace(first(form[k])) }
	cents, _ := strconv.ParseInt(get("price"), 10, 64)
	return service.GumroadPing{
		SaleID:           get("sale_id"),
		ProductPermalink: get("product_permalink"),
		Permalink:        get("permalink"),
		PriceCents:       cents,
		Email:            get("email"),
		FullName:         get("full_name"),
		Refunded:         get("refunded") == "true",
		Test:             get("test") == "true",
	}
}
