package analytics

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPruneInterval is how often the retention job runs.
const DefaultPruneInterval = 6 * time.Hour

// LogPruner deletes request logs older than a cutoff.
type LogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention periodically enforces the request log retention period.
type Retention struct {
	repo      LogPruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewRetention creates a retention job. A non-positive retention disables pruning.
func NewRetention(repo LogPruner, retention time.Duration, logger *slog.Logger) *Retention {
	return &Retention{
		repo:      repo,
		retention: retention,
		interval:  DefaultPruneInterval,
		logger:    logger.With("component", "analytics.retention"),
		now:       time.Now,
	}
}

// PruneOnce removes logs older than the retention period and returns the count.
func (r *Retention) PruneOnce(ctx context.Context) (int64, error) {
	if r.retention <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-r.retention)
	n, err := r.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("pruned request logs", "deleted", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}

// Run prunes immediately and then on every interval until ctx is done.
func (r *Retention) Run(ctx context.Context) {
	if r.retention <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.PruneOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("request log pruning failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
