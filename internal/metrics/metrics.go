// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Catalog metrics
	IncPlanView()
	IncPlanCacheHit()
	IncPlanCacheMiss()
	IncGumroadRedirect()
	IncGumroadSale(status string) // status: "completed", "refunded", "duplicate", "unmatched"

	// Contact metrics
	IncContactMessage(emailStatus string) // emailStatus: "sent", "failed", "pending"

	// Visit reporter metrics
	IncVisitReport(status string) // status: "sent", "failed"

	// Request log pipeline metrics
	IncRequestLogPublished(status string) // status: "success" or "dropped"
	IncRequestLogProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveRequestLogBatchSize(size int)
	ObserveRequestLogBatchDuration(duration time.Duration)
	SetRequestLogQueueDepth(depth int64)
	ObserveRequestLogIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

// PoolStats is a point-in-time view of a connection pool.
type PoolStats struct {
	TotalConns int64  `json:"total_conns"`
	IdleConns  int64  `json:"idle_conns"`
	InUseConns int64  `json:"in_use_conns"`
	Acquires   uint64 `json:"acquires"`
	Waits      uint64 `json:"waits"`
	Timeouts   uint64 `json:"timeouts"`
}

// PoolReporter reports connection pool usage.
type PoolReporter interface {
	PoolStats() PoolStats
}
