package analytics

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/myfreehouseplans/catalog/internal/metrics"
)

const (
	// ReportTimeout bounds one POST to the reporting endpoint.
	ReportTimeout = 10 * time.Second

	// FinalFlushTimeout bounds the flush performed on shutdown.
	FinalFlushTimeout = 5 * time.Second

	// HeaderSignature carries the HMAC of the request body when a secret is configured.
	HeaderSignature = "X-Visit-Signature"

	maxLoggedResponseBody = 512
)

// ErrReportRejected is returned when the endpoint answers with a non-200 status.
var ErrReportRejected = errors.New("visit report rejected")

// ReporterConfig configures the visit reporter.
type ReporterConfig struct {
	Endpoint string
	Interval time.Duration
	Secret   string
}

// Report is the JSON body posted to the endpoint.
type Report struct {
	Timestamp                string  `json:"timestamp"`
	ReportingIntervalSeconds int     `json:"reporting_interval_seconds"`
	Data                     Buckets `json:"data"`
}

// Reporter periodically drains the tracker and posts the batch.
// A failed batch is merged back into the tracker and retried on the next tick.
type Reporter struct {
	tracker  *Tracker
	endpoint string
	secret   []byte
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReporter creates a reporter for the tracker.
func NewReporter(tracker *Tracker, cfg ReporterConfig, logger *slog.Logger, recorder metrics.Recorder) *Reporter {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	var secret []byte
	if cfg.Secret != "" {
		secret = []byte(cfg.Secret)
	}
	return &Reporter{
		tracker:  tracker,
		endpoint: cfg.Endpoint,
		secret:   secret,
		interval: interval,
		client: &http.Client{
			Timeout: ReportTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "analytics.reporter"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Run ticks until ctx is cancelled, then performs one bounded final flush.
func (r *Reporter) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("reporter already started")
	}
	r.started = true
	r.done = make(chan struct{})
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	defer close(r.done)

	r.logger.Info("visit reporter started",
		"endpoint", r.endpoint,
		"interval_seconds", int(r.interval.Seconds()),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), FinalFlushTimeout)
			if err := r.Flush(flushCtx); err != nil {
				r.logger.Warn("final visit report failed", "error", err)
			}
			cancel()
			r.logger.Info("visit reporter stopped")
			return nil
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.Error("failed to send visit report", "error", err)
			}
		}
	}
}

// Shutdown stops Run and waits for the final flush.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (r *Reporter) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("visit reporter shutdown timed out")
		return ctx.Err()
	}
}

// Flush drains the tracker and posts the batch once.
// With no endpoint or no data it does nothing.
func (r *Reporter) Flush(ctx context.Context) error {
	if r.endpoint == "" {
		r.logger.Warn("visit tracking endpoint not configured, skipping report")
		return nil
	}
	data := r.tracker.Drain()
	if len(data) == 0 {
		r.logger.Debug("no visit data to report")
		return nil
	}

	if err := r.send(ctx, data); err != nil {
		r.tracker.Merge(data)
		r.metrics.IncVisitReport("failed")
		return err
	}

	r.metrics.IncVisitReport("sent")
	r.logger.Info("visit report sent", "buckets", len(data))
	return nil
}

func (r *Reporter) send(ctx context.Context, data Buckets) error {
	body, err := json.Marshal(Report{
		Timestamp:                r.now().UTC().Format(time.RFC3339),
		ReportingIntervalSeconds: int(r.interval.Seconds()),
		Data:                     data,
	})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ReportTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(r.secret) > 0 {
		req.Header.Set(HeaderSignature, "sha256="+Sign(r.secret, body))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedResponseBody))
		r.logger.Error("visit report endpoint returned an error",
			"status_code", resp.StatusCode,
			"body", string(snippet),
		)
		return fmt.Errorf("%w: status %d", ErrReportRejected, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "sha256=<hex>" header value against body.
func VerifySignature(secret, body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header[len(prefix):]))
}
