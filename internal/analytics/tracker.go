package analytics

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// HourKeyLayout buckets visits by UTC hour.
	HourKeyLayout = "2006-01-02 15"

	// MaxBufferedBuckets bounds how many hours are kept when reports keep failing.
	MaxBufferedBuckets = 48

	maxTrackedUserAgent = 100
	unknownValue        = "Unknown"
)

// Bucket aggregates the visits of one hour.
type Bucket struct {
	Count      int            `json:"count"`
	Paths      map[string]int `json:"paths"`
	UserAgents map[string]int `json:"user_agents"`
	Countries  map[string]int `json:"countries"`
}

func newBucket() *Bucket {
	return &Bucket{
		Paths:      make(map[string]int),
		UserAgents: make(map[string]int),
		Countries:  make(map[string]int),
	}
}

func (b *Bucket) add(other *Bucket) {
	b.Count += other.Count
	for k, v := range other.Paths {
		b.Paths[k] += v
	}
	for k, v := range other.UserAgents {
		b.UserAgents[k] += v
	}
	for k, v := range other.Countries {
		b.Countries[k] += v
	}
}

// Buckets maps an hour key to its aggregated visits.
type Buckets map[string]*Bucket

// Tracker buffers visits in memory until the reporter drains them.
type Tracker struct {
	mu      sync.Mutex
	buckets Buckets
	now     func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{buckets: make(Buckets), now: time.Now}
}

// ShouldTrack reports whether a path counts as a visit.
func ShouldTrack(path string) bool {
	return !strings.HasPrefix(path, "/static/") && path != "/health" && path != "/healthz" && path != "/readyz"
}

// Record counts one visit. Static assets and health probes are ignored.
func (t *Tracker) Record(path, userAgent, country string, at time.Time) {
	if !ShouldTrack(path) {
		return
	}
	ua := truncate(userAgent, maxTrackedUserAgent)
	if ua == "" {
		ua = unknownValue
	}
	if country == "" {
		country = unknownValue
	}
	key := at.UTC().Format(HourKeyLayout)

	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[key]
	if !ok {
		b = newBucket()
		t.buckets[key] = b
	}
	b.Count++
	b.Paths[path]++
	b.UserAgents[ua]++
	b.Countries[country]++
}

// Drain returns the buffered buckets and leaves the tracker empty.
func (t *Tracker) Drain() Buckets {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.buckets) == 0 {
		return nil
	}
	out := t.buckets
	t.buckets = make(Buckets)
	return out
}

// Merge puts an unsent batch back. Only the newest MaxBufferedBuckets hours survive.
func (t *Tracker) Merge(unsent Buckets) {
	if len(unsent) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for key, b := range unsent {
		if cur, ok := t.buckets[key]; ok {
			cur.add(b)
			continue
		}
		t.buckets[key] = b
	}
	if len(t.buckets) <= MaxBufferedBuckets {
		return
	}

	keys := make([]string, 0, len(t.buckets))
	for key := range t.buckets {
		keys = append(keys, key)
	}
	// Hour keys sort chronologically.
	sort.Strings(keys)
	for _, key := range keys[:len(keys)-MaxBufferedBuckets] {
		delete(t.buckets, key)
	}
}

// Len returns the number of buffered hour buckets.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// Middleware records every request into the tracker.
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Record(r.URL.Path, r.UserAgent(), ExtractCountry(r.Header.Get("CF-IPCountry")), t.now())
		next.ServeHTTP(w, r)
	})
}
