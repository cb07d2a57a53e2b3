package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordRequest("GET", 200, 10*time.Millisecond)
	m.RecordRequest("GET", 307, time.Millisecond)
	m.RecordDecision("edge", "redirect", "unauthenticated")
	m.RecordSessionEvent("session.authenticated")
	m.RecordOverdue(3)
	m.RecordOverdue(0)
	m.RecordError("UNAUTHORIZED")

	if got := counterValue(t, reg, "taskboard_http_requests_total"); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := counterValue(t, reg, "taskboard_authz_decisions_total"); got != 1 {
		t.Errorf("decisions = %v, want 1", got)
	}
	if got := counterValue(t, reg, "taskboard_session_events_total"); got != 1 {
		t.Errorf("session events = %v, want 1", got)
	}
	if got := counterValue(t, reg, "taskboard_tasks_marked_overdue_total"); got != 3 {
		t.Errorf("overdue = %v, want 3", got)
	}
	if got := counterValue(t, reg, "taskboard_http_errors_total"); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("GET", 200, time.Millisecond)
	m.RecordDecision("view", "allow", "authorized")
	m.RecordSessionEvent("session.ended")
	m.RecordOverdue(1)
	m.RecordError("X")
}
