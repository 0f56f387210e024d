package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	PlanViews             uint64 `json:"plan_views"`
	PlanCacheHits         uint64 `json:"plan_cache_hits"`
	PlanCacheMisses       uint64 `json:"plan_cache_misses"`
	GumroadRedirects      uint64 `json:"gumroad_redirects"`
	GumroadSales          uint64 `json:"gumroad_sales"`
	GumroadRefunds        uint64 `json:"gumroad_refunds"`
	ContactMessages       uint64 `json:"contact_messages"`
	ContactMailFailures   uint64 `json:"contact_mail_failures"`
	VisitReportsSent      uint64 `json:"visit_reports_sent"`
	VisitReportsFailed    uint64 `json:"visit_reports_failed"`
	RequestLogsPublished  uint64 `json:"request_logs_published"`
	RequestLogsDropped    uint64 `json:"request_logs_dropped"`
	RequestLogsStored     uint64 `json:"request_logs_stored"`
	RequestLogsFailed     uint64 `json:"request_logs_failed"`
	RequestLogBatches     uint64 `json:"request_log_batches"`
	RequestLogQueueDepth  int64  `json:"request_log_queue_depth"`
	RequestLogBatchTimeNs int64  `json:"request_log_batch_time_ns"`
}

// InMemoryRecorder stores metrics in memory. It backs the admin metrics endpoint and tests.
type InMemoryRecorder struct {
	planViews             uint64
	planCacheHits         uint64
	planCacheMisses       uint64
	gumroadRedirects      uint64
	gumroadSales          uint64
	gumroadRefunds        uint64
	contactMessages       uint64
	contactMailFailures   uint64
	visitReportsSent      uint64
	visitReportsFailed    uint64
	requestLogsPublished  uint64
	requestLogsDropped    uint64
	requestLogsStored     uint64
	requestLogsFailed     uint64
	requestLogBatches     uint64
	requestLogQueueDepth  int64
	requestLogBatchTimeNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		PlanViews:             atomic.LoadUint64(&m.planViews),
		PlanCacheHits:         atomic.LoadUint64(&m.planCacheHits),
		PlanCacheMisses:       atomic.LoadUint64(&m.planCacheMisses),
		GumroadRedirects:      atomic.LoadUint64(&m.gumroadRedirects),
		GumroadSales:          atomic.LoadUint64(&m.gumroadSales),
		GumroadRefunds:        atomic.LoadUint64(&m.gumroadRefunds),
		ContactMessages:       atomic.LoadUint64(&m.contactMessages),
		ContactMailFailures:   atomic.LoadUint64(&m.contactMailFailures),
		VisitReportsSent:      atomic.LoadUint64(&m.visitReportsSent),
		VisitReportsFailed:    atomic.LoadUint64(&m.visitReportsFailed),
		RequestLogsPublished:  atomic.LoadUint64(&m.requestLogsPublished),
		RequestLogsDropped:    atomic.LoadUint64(&m.requestLogsDropped),
		RequestLogsStored:     atomic.LoadUint64(&m.requestLogsStored),
		RequestLogsFailed:     atomic.LoadUint64(&m.requestLogsFailed),
		RequestLogBatches:     atomic.LoadUint64(&m.requestLogBatches),
		RequestLogQueueDepth:  atomic.LoadInt64(&m.requestLogQueueDepth),
		RequestLogBatchTimeNs: atomic.LoadInt64(&m.requestLogBatchTimeNs),
	}
}

// IncPlanView increments the plan detail view counter.
func (m *InMemoryRecorder) IncPlanView() {
	atomic.AddUint64(&m.planViews, 1)
}

// IncPlanCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncPlanCacheHit() {
	atomic.AddUint64(&m.planCacheHits, 1)
}

// IncPlanCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncPlanCacheMiss() {
	atomic.AddUint64(&m.planCacheMisses, 1)
}

// IncGumroadRedirect counts outbound checkout redirects.
func (m *InMemoryRecorder) IncGumroadRedirect() {
	atomic.AddUint64(&m.gumroadRedirects, 1)
}

// IncGumroadSale counts sale pings by outcome.
func (m *InMemoryRecorder) IncGumroadSale(status string) {
	switch status {
	case "completed":
		atomic.AddUint64(&m.gumroadSales, 1)
	case "refunded":
		atomic.AddUint64(&m.gumroadRefunds, 1)
	}
}

// IncContactMessage counts stored contact messages.
func (m *InMemoryRecorder) IncContactMessage(emailStatus string) {
	atomic.AddUint64(&m.contactMessages, 1)
	if emailStatus == "failed" {
		atomic.AddUint64(&m.contactMailFailures, 1)
	}
}

// IncVisitReport counts visit report deliveries.
func (m *InMemoryRecorder) IncVisitReport(status string) {
	if status == "sent" {
		atomic.AddUint64(&m.visitReportsSent, 1)
		return
	}
	atomic.AddUint64(&m.visitReportsFailed, 1)
}

// IncRequestLogPublished counts stream publishes.
func (m *InMemoryRecorder) IncRequestLogPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.requestLogsPublished, 1)
		return
	}
	atomic.AddUint64(&m.requestLogsDropped, 1)
}

// IncRequestLogProcessed counts consumed stream entries.
func (m *InMemoryRecorder) IncRequestLogProcessed(status string) {
	if status == "success" {
		atomic.AddUint64(&m.requestLogsStored, 1)
		return
	}
	atomic.AddUint64(&m.requestLogsFailed, 1)
}

// ObserveRequestLogBatchSize counts stored batches.
func (m *InMemoryRecorder) ObserveRequestLogBatchSize(size int) {
	atomic.AddUint64(&m.requestLogBatches, 1)
}

// ObserveRequestLogBatchDuration accumulates batch insert time.
func (m *InMemoryRecorder) ObserveRequestLogBatchDuration(duration time.Duration) {
	atomic.AddInt64(&m.requestLogBatchTimeNs, duration.Nanoseconds())
}

// SetRequestLogQueueDepth records the pending stream depth.
func (m *InMemoryRecorder) SetRequestLogQueueDepth(depth int64) {
	atomic.StoreInt64(&m.requestLogQueueDepth, depth)
}

// ObserveRequestLogIngestLag is not tracked in memory.
func (m *InMemoryRecorder) ObserveRequestLogIngestLag(lag time.Duration) {}
