package analytics

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/myfreehouseplans/catalog/internal/metrics"
	"github.com/myfreehouseplans/catalog/internal/model"
)

// ConsumerGroup is the Redis consumer group shared by every web process.
const ConsumerGroup = "request_log_writers"

// Worker defaults.
const (
	DefaultBatchSize    = 100
	DefaultBlockTimeout = 5 * time.Second
	DefaultMaxAttempts  = 3
	DefaultClaimIdle    = 30 * time.Second
	DefaultClaimEvery   = 10 * time.Second
	DefaultDepthEvery   = 5 * time.Second

	rejectedStreamMaxLen = 10000
)

// NewConsumerID names this process within the consumer group.
// The suffix is a fresh ULID, so two calls never collide.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "catalog"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), ulid.MustNew(ulid.Now(), rand.Reader))
}

// storeBackoff is the wait after each failed insert attempt.
var storeBackoff = []time.Duration{500 * time.Millisecond, 2 * time.Second, 5 * time.Second}

// Repository persists request log batches.
type Repository interface {
	InsertBatch(ctx context.Context, logs []*model.RequestLog) error
}

// WorkerConfig tunes the worker. Zero values take the defaults.
type WorkerConfig struct {
	ConsumerID   string
	BatchSize    int
	BlockTimeout time.Duration
	MaxAttempts  int
	ClaimIdle    time.Duration
	ClaimEvery   time.Duration
	DepthEvery   time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.ConsumerID == "" {
		c.ConsumerID = NewConsumerID()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = DefaultBlockTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = DefaultClaimIdle
	}
	if c.ClaimEvery <= 0 {
		c.ClaimEvery = DefaultClaimEvery
	}
	if c.DepthEvery <= 0 {
		c.DepthEvery = DefaultDepthEvery
	}
	return c
}

// batch is one read from the stream after decoding.
type batch struct {
	logs []*model.RequestLog
	ids  []string
}

// Worker drains the request log stream into PostgreSQL.
// Entries are acknowledged only after their batch is stored.
// Undecodable entries are copied to the rejected stream and acknowledged.
type Worker struct {
	redis   *redis.Client
	repo    Repository
	cfg     WorkerConfig
	logger  *slog.Logger
	metrics metrics.Recorder

	claimCursor string
	nextClaim   time.Time
	nextDepth   time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a request log worker.
func NewWorker(client *redis.Client, repo Repository, cfg WorkerConfig, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	cfg = cfg.withDefaults()
	return &Worker{
		redis:       client,
		repo:        repo,
		cfg:         cfg,
		logger:      logger.With("component", "analytics.log_worker", "consumer_id", cfg.ConsumerID),
		metrics:     recorder,
		claimCursor: "0-0",
	}
}

// Run consumes the stream until ctx is cancelled or Shutdown is called.
// It returns the context error on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("request log worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("request log worker started", "batch_size", w.cfg.BatchSize)

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("request log worker stopped")
			return err
		}

		err := w.step(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		w.logger.Error("request log step failed", "error", err)
		sleepCtx(ctx, time.Second)
	}
}

// Shutdown cancels the loop and waits for the in-flight batch.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("request log worker shutdown timed out")
		return ctx.Err()
	}
}

// step handles one batch: reclaimed entries first, then new ones.
func (w *Worker) step(ctx context.Context) error {
	w.refreshDepth(ctx)

	msgs, err := w.reclaim(ctx)
	if err != nil {
		w.logger.Warn("failed to reclaim pending entries", "error", err)
	}
	if len(msgs) == 0 {
		if msgs, err = w.read(ctx); err != nil {
			return err
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	b := w.decode(ctx, msgs)
	if len(b.logs) > 0 {
		if err := w.store(ctx, b.logs); err != nil {
			// Left pending; reclaimed once idle.
			return err
		}
	}

	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, b.ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack entries: %w", err)
	}
	return nil
}

func (w *Worker) read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.cfg.BatchSize),
		Block:    w.cfg.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

// reclaim takes over entries another consumer read but never acknowledged.
func (w *Worker) reclaim(ctx context.Context) ([]redis.XMessage, error) {
	now := time.Now()
	if now.Before(w.nextClaim) {
		return nil, nil
	}
	w.nextClaim = now.Add(w.cfg.ClaimEvery)

	msgs, cursor, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		MinIdle:  w.cfg.ClaimIdle,
		Start:    w.claimCursor,
		Count:    int64(w.cfg.BatchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if cursor != "" {
		w.claimCursor = cursor
	}
	if len(msgs) > 0 {
		w.logger.Info("reclaimed pending entries", "count", len(msgs))
	}
	return msgs, nil
}

func (w *Worker) refreshDepth(ctx context.Context) {
	now := time.Now()
	if now.Before(w.nextDepth) {
		return
	}
	w.nextDepth = now.Add(w.cfg.DepthEvery)

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			w.logger.Debug("failed to read consumer group info", "error", err)
		}
		return
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			w.metrics.SetRequestLogQueueDepth(g.Pending + g.Lag)
			return
		}
	}
}

// decode turns stream entries into request logs.
// Every id is returned so rejected entries are acknowledged too.
func (w *Worker) decode(ctx context.Context, msgs []redis.XMessage) batch {
	b := batch{
		logs: make([]*model.RequestLog, 0, len(msgs)),
		ids:  make([]string, 0, len(msgs)),
	}
	for _, msg := range msgs {
		b.ids = append(b.ids, msg.ID)

		raw, ok := msg.Values["payload"].(string)
		if !ok {
			w.reject(ctx, msg, "missing_payload", "payload field missing or not a string")
			continue
		}
		var p RequestLogPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			w.reject(ctx, msg, "bad_json", err.Error())
			continue
		}
		if err := ValidateRequestLogPayload(p); err != nil {
			w.reject(ctx, msg, "invalid", err.Error())
			continue
		}
		b.logs = append(b.logs, p.ToModel())
	}
	return b
}

// reject copies an undecodable entry to the rejected stream.
func (w *Worker) reject(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("rejecting request log entry", "message_id", msg.ID, "reason", reason, "detail", detail)

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: rejectedStreamMaxLen,
		Approx: true,
		Values: map[string]any{
			"original_id": msg.ID,
			"reason":      reason,
			"detail":      detail,
			"payload":     msg.Values["payload"],
			"rejected_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to record rejected entry", "message_id", msg.ID, "error", err)
	}
	w.metrics.IncRequestLogProcessed("dead_lettered")
}

// store inserts logs, retrying with backoff up to MaxAttempts.
func (w *Worker) store(ctx context.Context, logs []*model.RequestLog) error {
	var err error
	for attempt := 0; attempt < w.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		if err = w.repo.InsertBatch(ctx, logs); err == nil {
			w.observe(logs, time.Since(start))
			return nil
		}
		if attempt == w.cfg.MaxAttempts-1 {
			break
		}

		delay := storeBackoff[min(attempt, len(storeBackoff)-1)]
		w.logger.Warn("request log insert failed, retrying",
			"attempt", attempt+1,
			"batch_size", len(logs),
			"retry_in_ms", delay.Milliseconds(),
			"error", err,
		)
		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
	}

	for range logs {
		w.metrics.IncRequestLogProcessed("failed")
	}
	return fmt.Errorf("failed to insert %d request logs: %w", len(logs), err)
}

func (w *Worker) observe(logs []*model.RequestLog, took time.Duration) {
	w.metrics.ObserveRequestLogBatchSize(len(logs))
	w.metrics.ObserveRequestLogBatchDuration(took)
	for _, l := range logs {
		w.metrics.IncRequestLogProcessed("success")
		w.metrics.ObserveRequestLogIngestLag(time.Since(l.Timestamp))
	}
	w.logger.Debug("request logs stored", "count", len(logs), "duration_ms", took.Milliseconds())
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
