package route

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/identity"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/metrics"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

// Navigator performs the side effects the guard decides on. Implementations
// must not call back into the Guard.
type Navigator interface {
	Navigate(dest Destination, state State)
	ShowLoading()
	ShowError(err error)
}

// Snapshot is everything the guard decides from.
type Snapshot struct {
	Hydrated      bool
	LoggedIn      bool
	CurrentTeamID string
	TeamsStatus   teams.Status
	Teams         []teams.Membership
	TeamsErr      error
}

// Outcome is what an evaluation did.
type Outcome int

// Evaluation outcomes
const (
	OutcomePending Outcome = iota
	OutcomeFailed
	OutcomeNavigated
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeFailed:
		return "failed"
	case OutcomeNavigated:
		return "navigated"
	case OutcomeUnchanged:
		return "unchanged"
	}
	return "unknown"
}

type affordance int

const (
	affordanceNone affordance = iota
	affordanceLoading
	affordanceError
)

// Guard turns snapshots into at most one navigation per distinct state tag.
type Guard struct {
	nav     Navigator
	metrics *metrics.Metrics
	logger  *log.Logger

	mu      sync.Mutex
	last    State
	hasLast bool
	showing affordance
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithMetrics counts navigations.
func WithMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) GuardOption {
	return func(g *Guard) { g.logger = l.Named("route") }
}

// NewGuard creates a guard that has not navigated yet.
func NewGuard(nav Navigator, opts ...GuardOption) *Guard {
	g := &Guard{nav: nav, logger: log.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Current returns the last state navigated to.
func (g *Guard) Current() (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.hasLast
}

// Evaluate decides on s:
//   - before hydration, or while a logged-in user's teams are idle or
//     loading, nothing is derived;
//   - a failed fetch with no earlier list shows the error affordance;
//   - otherwise the derived state is navigated to unless its tag matches
//     the last navigation.
func (g *Guard) Evaluate(s Snapshot) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !s.Hydrated {
		g.pendingLocked()
		return OutcomePending
	}

	if s.LoggedIn {
		switch {
		case s.TeamsStatus == teams.StatusIdle, s.TeamsStatus == teams.StatusLoading:
			g.pendingLocked()
			return OutcomePending
		case s.TeamsStatus == teams.StatusFailed && s.Teams == nil:
			if g.showing != affordanceError {
				g.logger.Warn("team list unavailable", "error", s.TeamsErr)
				g.nav.ShowError(s.TeamsErr)
				g.showing = affordanceError
				g.hasLast = false
			}
			return OutcomeFailed
		}
	}

	state := Derive(s.LoggedIn, s.CurrentTeamID, s.Teams)
	if g.hasLast && g.last.Tag == state.Tag {
		return OutcomeUnchanged
	}

	dest := state.Destination()
	g.logger.Debug("navigating", "state", state.String(), "destination", string(dest))
	g.nav.Navigate(dest, state)
	g.metrics.RecordNavigation(string(dest))

	g.last = state
	g.hasLast = true
	g.showing = affordanceNone
	return OutcomeNavigated
}

// pendingLocked shows the loading affordance only before the first
// navigation; afterwards the user stays on the last good screen.
func (g *Guard) pendingLocked() {
	if g.hasLast || g.showing == affordanceLoading {
		return
	}
	g.nav.ShowLoading()
	g.showing = affordanceLoading
}

// IdentitySource is the identity store as seen by the guard.
type IdentitySource interface {
	Snapshot() identity.Identity
	Subscribe(fn func(identity.Identity)) (unsubscribe func())
}

// DirectorySource is the team directory as seen by the guard.
type DirectorySource interface {
	Snapshot() teams.View
	Subscribe(fn func(teams.View)) (unsubscribe func())
	Fetch(ctx context.Context) ([]teams.Membership, error)
}

// Watch re-evaluates on every identity or directory change and starts a
// team fetch whenever a hydrated, logged-in user has an idle directory.
// The returned stop func unsubscribes; in-flight fetches use ctx.
func (g *Guard) Watch(ctx context.Context, ids IdentitySource, dir DirectorySource) (stop func()) {
	var fetching atomic.Bool
	var wg sync.WaitGroup
	// Serializes snapshot reads with Evaluate so an older snapshot is never
	// evaluated after a newer one.
	var mu sync.Mutex

	var reevaluate func()
	reevaluate = func() {
		mu.Lock()
		defer mu.Unlock()

		id := ids.Snapshot()
		view := dir.Snapshot()

		if id.Hydrated && id.LoggedIn && view.Status == teams.StatusIdle && ctx.Err() == nil {
			if fetching.CompareAndSwap(false, true) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = dir.Fetch(ctx)
					fetching.Store(false)
					// A Reset during the fetch leaves the directory idle
					// without a further notification.
					reevaluate()
				}()
			}
		}

		g.Evaluate(Snapshot{
			Hydrated:      id.Hydrated,
			LoggedIn:      id.LoggedIn,
			CurrentTeamID: id.CurrentTeamID,
			TeamsStatus:   view.Status,
			Teams:         view.Teams,
			TeamsErr:      view.Err,
		})
	}

	unsubIDs := ids.Subscribe(func(identity.Identity) { reevaluate() })
	unsubDir := dir.Subscribe(func(teams.View) { reevaluate() })
	reevaluate()

	return func() {
		unsubIDs()
		unsubDir()
		wg.Wait()
	}
}
