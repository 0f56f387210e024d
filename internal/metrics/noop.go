package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncPlanView is a no-op.
func (n *NoopRecorder) IncPlanView() {}

// IncPlanCacheHit is a no-op.
func (n *NoopRecorder) IncPlanCacheHit() {}

// IncPlanCacheMiss is a no-op.
func (n *NoopRecorder) IncPlanCacheMiss() {}

// IncGumroadRedirect is a no-op.
func (n *NoopRecorder) IncGumroadRedirect() {}

// IncGumroadSale is a no-op.
func (n *NoopRecorder) IncGumroadSale(status string) {}

// IncContactMessage is a no-op.
func (n *NoopRecorder) IncContactMessage(emailStatus string) {}

// IncVisitReport is a no-op.
func (n *NoopRecorder) IncVisitReport(status string) {}

// IncRequestLogPublished is a no-op.
func (n *NoopRecorder) IncRequestLogPublished(status string) {}

// IncRequestLogProcessed is a no-op.
func (n *NoopRecorder) IncRequestLogProcessed(status string) {}

// ObserveRequestLogBatchSize is a no-op.
func (n *NoopRecorder) ObserveRequestLogBatchSize(size int) {}

// ObserveRequestLogBatchDuration is a no-op.
func (n *NoopRecorder) ObserveRequestLogBatchDuration(duration time.Duration) {}

// SetRequestLogQueueDepth is a no-op.
func (n *NoopRecorder) SetRequestLogQueueDepth(depth int64) {}

// ObserveRequestLogIngestLag is a no-op.
func (n *NoopRecorder) ObserveRequestLogIngestLag(lag time.Duration) {}
