package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// RequestLogRepository provides database access for request logs.
type RequestLogRepository struct {
	repo *Repository
}

// NewRequestLogRepository creates a new RequestLogRepository.
func NewRequestLogRepository(repo *Repository) *RequestLogRepository {
	return &RequestLogRepository{repo: repo}
}

// InsertBatch writes logs in a single round trip.
func (r *RequestLogRepository) InsertBatch(ctx context.Context, logs []*model.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}

	query := `
		INSERT INTO request_logs (
			timestamp, ip_address, route, method, status_code, response_time_ms,
			user_agent, device, country, referrer, session_id, kind
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	batch := &pgx.Batch{}
	for _, l := range logs {
		l.Truncate()
		batch.Queue(query,
			l.Timestamp, l.IPAddress, l.Route, l.Method, l.StatusCode, l.ResponseTimeMs,
			l.UserAgent, l.Device, l.Country, l.Referrer, l.SessionID, string(l.Kind),
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(logs); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert request log %d: %w", i, err)
		}
	}
	return nil
}

// DailyVisits returns visitor request counts for the last days, oldest first.
// Days without traffic are reported with zero visits.
func (r *RequestLogRepository) DailyVisits(ctx context.Context, days int, now time.Time) ([]model.DailyVisits, error) {
	if days <= 0 {
		days = 14
	}
	end := now.UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -(days - 1))

	rows, err := r.repo.pool.Query(ctx, `
		SELECT d::date, COALESCE(COUNT(l.id), 0)
		FROM generate_series($1::date, $2::date, INTERVAL '1 day') AS d
		LEFT JOIN request_logs l
		       ON l.timestamp >= d AND l.timestamp < d + INTERVAL '1 day' AND l.kind = 'visitor'
		GROUP BY d
		ORDER BY d`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily visits: %w", err)
	}
	defer rows.Close()

	visits := make([]model.DailyVisits, 0, days)
	for rows.Next() {
		var v model.DailyVisits
		if err := rows.Scan(&v.Day, &v.Visits); err != nil {
			return nil, fmt.Errorf("failed to scan daily visits: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// DeleteOlderThan removes logs before cutoff and returns the number removed.
func (r *RequestLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.repo.pool.Exec(ctx, `DELETE FROM request_logs WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old request logs: %w", err)
	}
	return result.RowsAffected(), nil
}
