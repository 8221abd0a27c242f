package session

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/metrics"
)

const unauthorizedKey = "unauthorized-handling"

// Identity is the slice of the identity store the reconciler drives.
type Identity interface {
	HasHydrated() bool
	IsLoggedIn() bool
	Logout()
}

// SignerOut ends the provider session.
type SignerOut interface {
	SignOut(ctx context.Context) error
}

// Reconciler runs the logout, provider sign-out and cache-clear sequence at
// most once per burst of unauthorized signals. Signals that arrive while a
// run is in flight join it instead of starting another.
type Reconciler struct {
	identity Identity
	signer   SignerOut
	clear    []func()
	metrics  *metrics.Metrics
	logger   *log.Logger

	group singleflight.Group
	runs  atomic.Int64
}

// NewReconciler wires the sequence. clear funcs drop client-side caches.
func NewReconciler(identity Identity, signer SignerOut, m *metrics.Metrics, logger *log.Logger, clear ...func()) *Reconciler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Reconciler{
		identity: identity,
		signer:   signer,
		clear:    clear,
		metrics:  m,
		logger:   logger.Named("reconciler"),
	}
}

// HandleUnauthorized reports whether this call's burst executed the sequence.
// Nothing happens unless the identity is hydrated and logged in.
func (r *Reconciler) HandleUnauthorized(ctx context.Context) bool {
	v, _, _ := r.group.Do(unauthorizedKey, func() (any, error) {
		if !r.identity.HasHydrated() || !r.identity.IsLoggedIn() {
			return false, nil
		}

		r.logger.Info("backend rejected the session, logging out")
		r.identity.Logout()

		// Sign-out must finish even when the triggering request was cancelled.
		if err := r.signer.SignOut(context.WithoutCancel(ctx)); err != nil {
			r.logger.WithError(err).Warn("provider sign out failed")
		}
		for _, fn := range r.clear {
			fn()
		}

		r.runs.Add(1)
		return true, nil
	})

	ran := v.(bool)
	r.metrics.RecordUnauthorized(ran)
	return ran
}

// Observe handles err if it is an authorization failure and returns it unchanged.
func (r *Reconciler) Observe(ctx context.Context, err error) error {
	if errors.CodeOf(err) == errors.ErrCodeSessionUnauthorized {
		r.HandleUnauthorized(ctx)
	}
	return err
}

// Watch routes the validator's expiry notifications into HandleUnauthorized.
func (r *Reconciler) Watch(v *Validator) (unsubscribe func()) {
	return v.OnExpired(func() {
		r.HandleUnauthorized(context.Background())
	})
}

// Runs returns how many times the sequence has executed.
func (r *Reconciler) Runs() int64 {
	return r.runs.Load()
}
