package analytics

import (
	"fmt"
	"unicode/utf8"

	"github.com/myfreehouseplans/catalog/internal/model"
)

const (
	maxRouteLength  = 2048
	maxMethodLength = 12
)

// ValidateRequestLogPayload validates request log payload fields.
func ValidateRequestLogPayload(payload RequestLogPayload) error {
	if payload.Route == "" {
		return fmt.Errorf("route is required")
	}
	if len(payload.Route) > maxRouteLength {
		return fmt.Errorf("route too long")
	}
	if payload.Method == "" || len(payload.Method) > maxMethodLength {
		return fmt.Errorf("method is required")
	}
	if payload.Status < 100 || payload.Status > 599 {
		return fmt.Errorf("status out of range")
	}
	if payload.DurationMs < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	switch model.LogKind(payload.Kind) {
	case model.LogKindVisitor, model.LogKindCrawler, model.LogKindBot, model.LogKindAPI:
	default:
		return fmt.Errorf("unknown kind %q", payload.Kind)
	}
	if payload.LoggedAt <= 0 {
		return fmt.Errorf("logged_at must be set")
	}
	if utf8.RuneCountInString(payload.Referrer) > maxReferrerLength {
		return fmt.Errorf("referrer too long")
	}
	if utf8.RuneCountInString(payload.UserAgent) > maxUserAgentLength {
		return fmt.Errorf("user_agent too long")
	}
	return nil
}
