package analytics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTracker_RecordBucketsByHour(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	at := time.Date(2026, 5, 1, 14, 59, 0, 0, time.UTC)
	tr.Record("/plans", "Mozilla/5.0", "US", at)
	tr.Record("/plans", "Mozilla/5.0", "", at)
	tr.Record("/about", "", "FR", at.Add(2*time.Minute))

	data := tr.Drain()
	if len(data) != 2 {
		t.Fatalf("expected 2 hour buckets, got %d", len(data))
	}

	b := data["2026-05-01 14"]
	if b == nil || b.Count != 2 {
		t.Fatalf("unexpected 14h bucket: %+v", b)
	}
	if b.Paths["/plans"] != 2 {
		t.Errorf("paths = %v", b.Paths)
	}
	if b.Countries["US"] != 1 || b.Countries["Unknown"] != 1 {
		t.Errorf("countries = %v", b.Countries)
	}

	next := data["2026-05-01 15"]
	if next == nil || next.UserAgents["Unknown"] != 1 {
		t.Fatalf("unexpected 15h bucket: %+v", next)
	}
}

func TestTracker_SkipsStaticAndHealth(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	now := time.Now()
	for _, path := range []string{"/static/css/site.css", "/health", "/healthz", "/readyz"} {
		tr.Record(path, "ua", "US", now)
	}
	if tr.Len() != 0 {
		t.Fatalf("expected nothing recorded, got %d buckets", tr.Len())
	}
}

func TestTracker_TruncatesUserAgent(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tr.Record("/", strings.Repeat("é", 150), "US", at)

	for ua := range tr.Drain()["2026-05-01 09"].UserAgents {
		if n := len([]rune(ua)); n != 100 {
			t.Fatalf("user agent kept %d runes, want 100", n)
		}
	}
}

func TestTracker_DrainEmpties(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Record("/", "ua", "US", time.Now())
	if got := tr.Drain(); len(got) != 1 {
		t.Fatalf("expected one bucket, got %d", len(got))
	}
	if got := tr.Drain(); got != nil {
		t.Fatalf("expected nil after drain, got %v", got)
	}
}

func TestTracker_MergeAddsCounts(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tr.Record("/", "ua", "US", at)
	unsent := tr.Drain()

	tr.Record("/", "ua", "US", at)
	tr.Merge(unsent)

	b := tr.Drain()["2026-05-01 09"]
	if b.Count != 2 || b.Paths["/"] != 2 || b.Countries["US"] != 2 {
		t.Fatalf("merge lost counts: %+v", b)
	}
}

func TestTracker_MergeKeepsNewestBuckets(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxBufferedBuckets+10; i++ {
		tr.Record("/", "ua", "US", start.Add(time.Duration(i)*time.Hour))
	}
	tr.Merge(tr.Drain())

	data := tr.Drain()
	if len(data) != MaxBufferedBuckets {
		t.Fatalf("expected %d buckets, got %d", MaxBufferedBuckets, len(data))
	}
	if _, ok := data[start.Format(HourKeyLayout)]; ok {
		t.Fatal("oldest bucket should have been dropped")
	}
	newest := start.Add(time.Duration(MaxBufferedBuckets+9) * time.Hour).Format(HourKeyLayout)
	if _, ok := data[newest]; !ok {
		t.Fatalf("newest bucket %s missing", newest)
	}
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.Record(fmt.Sprintf("/p/%d", g), "ua", "US", at)
			}
		}(g)
	}
	wg.Wait()

	if got := tr.Drain()["2026-05-01 09"].Count; got != 800 {
		t.Fatalf("count = %d, want 800", got)
	}
}

func TestTracker_Middleware(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/plans?page=2", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("CF-IPCountry", "de")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	b := tr.Drain()["2026-05-01 09"]
	if b == nil || b.Paths["/plans"] != 1 || b.Countries["DE"] != 1 {
		t.Fatalf("unexpected bucket: %+v", b)
	}
}
