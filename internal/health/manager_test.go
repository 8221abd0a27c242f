package health

import (
	"context"
	"testing"
	"time"
)

// mockChecker is a test double for health checks
type mockChecker struct {
	name   string
	result *Result
	delay  time.Duration
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) *Result {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Unhealthy("check cancelled").
				WithDetail("error", ctx.Err().Error())
		}
	}
	return m.result
}

func TestNewManager(t *testing.T) {
	manager := NewManager()

	if manager.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", manager.timeout, DefaultTimeout)
	}
	if len(manager.CheckNames()) != 0 {
		t.Errorf("checkers should be empty, got %v", manager.CheckNames())
	}
}

func TestCheckRunsEveryChecker(t *testing.T) {
	manager := NewManager()
	manager.AddChecker(&mockChecker{name: "storage", result: Healthy("ok")})
	manager.AddChecker(&mockChecker{name: "backend", result: Degraded("slow")})

	results := manager.Check(context.Background())

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["storage"].Status != StatusHealthy {
		t.Errorf("storage = %s, want healthy", results["storage"].Status)
	}
	if results["backend"].Latency == 0 {
		t.Error("latency should be filled in")
	}
	if got := manager.CheckNames(); got[0] != "backend" || got[1] != "storage" {
		t.Errorf("CheckNames() = %v, want sorted", got)
	}
}

func TestCheckTimeout(t *testing.T) {
	manager := NewManager().WithTimeout(20 * time.Millisecond)
	manager.AddChecker(&mockChecker{name: "slow", result: Healthy("late"), delay: time.Second})

	start := time.Now()
	results := manager.Check(context.Background())

	if time.Since(start) > 500*time.Millisecond {
		t.Error("check should have been cut off by the timeout")
	}
	if results["slow"].Status != StatusUnhealthy {
		t.Errorf("slow = %s, want unhealthy", results["slow"].Status)
	}
}

func TestNilResultIsUnhealthy(t *testing.T) {
	manager := NewManager()
	manager.AddChecker(&mockChecker{name: "broken"})

	results := manager.Check(context.Background())
	if results["broken"].Status != StatusUnhealthy {
		t.Errorf("broken = %s, want unhealthy", results["broken"].Status)
	}
}

func TestOverallStatus(t *testing.T) {
	manager := NewManager()

	tests := []struct {
		name    string
		results map[string]*Result
		want    Status
	}{
		{"empty", map[string]*Result{}, StatusHealthy},
		{"all healthy", map[string]*Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]*Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]*Result{"a": Degraded(""), "b": Unhealthy("")}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := manager.OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}
