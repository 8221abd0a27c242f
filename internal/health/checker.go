// Package health runs the client's self checks: backend reachability,
// storage round trips, the live session and login configuration.
//
//	manager := health.NewManager()
//	manager.AddChecker(health.NewBackendChecker(api))
//	manager.AddChecker(health.NewStorageChecker(kv))
//
//	results := manager.Check(ctx)
//	status := manager.OverallStatus(results)
package health

import (
	"context"
	"time"
)

// Checker is one self check. Check must return before ctx is done.
type Checker interface {
	Name() string
	Check(ctx context.Context) *Result
}

// Status grades a Result.
type Status string

// Statuses, from best to worst
const (
	StatusHealthy Status = "healthy"
	// StatusDegraded still lets the client route, e.g. with only one login
	// provider configured or no session yet.
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string { return string(s) }

// worse reports whether s ranks below other.
func (s Status) worse(other Status) bool {
	return s.rank() > other.rank()
}

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	}
	return 2
}

// Result is the outcome of one check.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency"`
}

func newResult(status Status, message string) *Result {
	return &Result{Status: status, Message: message, Details: map[string]any{}}
}

// Healthy, Degraded and Unhealthy build results with an empty detail map.
func Healthy(message string) *Result   { return newResult(StatusHealthy, message) }
func Degraded(message string) *Result  { return newResult(StatusDegraded, message) }
func Unhealthy(message string) *Result { return newResult(StatusUnhealthy, message) }

// WithDetail records key and returns r.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// WithLatency records how long the check took and returns r.
func (r *Result) WithLatency(d time.Duration) *Result {
	r.Latency = d
	return r
}
