package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/myfreehouseplans/catalog/internal/auth"
)

func csrfRequest(method, target string, form url.Values) *http.Request {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(auth.WithCSRFToken(req.Context(), "csrf-abc"))
}

func TestCSRF(t *testing.T) {
	tests := []struct {
		name       string
		req        *http.Request
		header     string
		wantStatus int
	}{
		{"get_passes", csrfRequest(http.MethodGet, "/admin/plans", nil), "", http.StatusOK},
		{"form_token", csrfRequest(http.MethodPost, "/admin/plans/1/delete", url.Values{"csrf_token": {"csrf-abc"}}), "", http.StatusOK},
		{"header_token", csrfRequest(http.MethodPost, "/admin/plans/1/publish", nil), "csrf-abc", http.StatusOK},
		{"missing_token", csrfRequest(http.MethodPost, "/admin/plans/1/delete", url.Values{}), "", http.StatusForbidden},
		{"wrong_token", csrfRequest(http.MethodPost, "/admin/plans/1/delete", url.Values{"csrf_token": {"forged"}}), "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CSRF(discardLogger())(okHandler())

			if tt.header != "" {
				tt.req.Header.Set(CSRFHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, tt.req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCSRF_NoSessionToken(t *testing.T) {
	handler := CSRF(discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/plans/1/delete", strings.NewReader("csrf_token="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
