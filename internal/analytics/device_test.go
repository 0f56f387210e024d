package analytics

import (
	"testing"

	"github.com/myfreehouseplans/catalog/internal/model"
)

func TestDetectDevice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ua   string
		want string
	}{
		{"", DeviceUnknown},
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", DeviceBot},
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)", DeviceTablet},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", DeviceMobile},
		{"Mozilla/5.0 (Linux; Android 14) Chrome/120.0 Mobile Safari/537.36", DeviceMobile},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0", DeviceDesktop},
	}

	for _, tt := range tests {
		if got := DetectDevice(tt.ua); got != tt.want {
			t.Errorf("DetectDevice(%q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		ua   string
		want model.LogKind
	}{
		{"api path", "/api/plans/filter", "Mozilla/5.0", model.LogKindAPI},
		{"api wins over bot", "/api/floor-plan-analyzer", "curl/8.0", model.LogKindAPI},
		{"search engine", "/plans", "Mozilla/5.0 (compatible; bingbot/2.0)", model.LogKindCrawler},
		{"social preview", "/plan/villa", "facebookexternalhit/1.1", model.LogKindCrawler},
		{"script", "/", "python-requests/2.31", model.LogKindBot},
		{"browser", "/", "Mozilla/5.0 (Macintosh) Safari/605.1.15", model.LogKindVisitor},
		{"apiary is not api", "/apiary", "Mozilla/5.0", model.LogKindVisitor},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.path, tt.ua); got != tt.want {
				t.Errorf("Classify(%q, %q) = %q, want %q", tt.path, tt.ua, got, tt.want)
			}
		})
	}
}
