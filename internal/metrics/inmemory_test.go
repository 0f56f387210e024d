package metrics

import "testing"

func TestInMemoryRecorder_Counts(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncPlanView()
	m.IncPlanView()
	m.IncPlanCacheHit()
	m.IncGumroadSale("completed")
	m.IncGumroadSale("refunded")
	m.IncGumroadSale("duplicate")
	m.IncContactMessage("sent")
	m.IncContactMessage("failed")
	m.IncVisitReport("sent")
	m.IncVisitReport("failed")
	m.IncRequestLogPublished("dropped")
	m.SetRequestLogQueueDepth(7)

	s := m.Snapshot()
	if s.PlanViews != 2 || s.PlanCacheHits != 1 {
		t.Fatalf("unexpected plan counters: %+v", s)
	}
	if s.GumroadSales != 1 || s.GumroadRefunds != 1 {
		t.Fatalf("unexpected gumroad counters: %+v", s)
	}
	if s.ContactMessages != 2 || s.ContactMailFailures != 1 {
		t.Fatalf("unexpected contact counters: %+v", s)
	}
	if s.VisitReportsSent != 1 || s.VisitReportsFailed != 1 {
		t.Fatalf("unexpected visit report counters: %+v", s)
	}
	if s.RequestLogsDropped != 1 || s.RequestLogQueueDepth != 7 {
		t.Fatalf("unexpected request log counters: %+v", s)
	}
}

func TestNoopRecorder_SatisfiesRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewNoop()
	r.IncPlanView()
	r.IncVisitReport("failed")
}
