package identity

import (
	"context"
	"sync"
	"time"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/metrics"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/session"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/storage"
)

// Hydration results
const (
	HydrationEmpty    = "empty"
	HydrationRestored = "restored"
	HydrationCleared  = "cleared"
)

const persistTimeout = 5 * time.Second

// SessionChecker reports the live backend session, or nil.
type SessionChecker interface {
	CurrentSession(ctx context.Context) *session.Session
}

// Store is the process-wide identity state.
//
// Mutations update memory, persist, then notify subscribers outside the lock.
// They never fail: persistence errors are logged and the in-memory state wins.
type Store struct {
	kv      storage.KV
	checker SessionChecker
	logger  *log.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	state  Identity
	subs   map[int]func(Identity)
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.Named("identity") }
}

// WithMetrics records hydration outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates an unhydrated store. Call Load before routing.
func NewStore(kv storage.KV, checker SessionChecker, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		checker: checker,
		logger:  log.Nop(),
		subs:    make(map[int]func(Identity)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores the persisted identity, clears it when it claims a login
// the backend no longer has a session for, and only then latches Hydrated.
// Calling Load on a hydrated store returns the current state.
func (s *Store) Load(ctx context.Context) Identity {
	if snap := s.Snapshot(); snap.Hydrated {
		return snap
	}

	restored := Identity{}
	raw, ok, err := s.kv.GetItem(ctx, storage.KeyIdentity)
	switch {
	case err != nil:
		s.logger.WithError(err).Warn("failed to read persisted identity, starting empty")
	case ok:
		var valid bool
		restored, valid = decode(raw)
		if !valid {
			s.logger.Warn("persisted identity is corrupt, starting empty")
			if err := s.kv.RemoveItem(ctx, storage.KeyIdentity); err != nil {
				s.logger.WithError(err).Debug("failed to remove corrupt identity")
			}
		}
	}

	s.mu.Lock()
	s.state = restored
	s.mu.Unlock()

	result := HydrationEmpty
	if restored.LoggedIn {
		result = HydrationRestored
		if s.checker.CurrentSession(ctx) == nil {
			s.logger.Info("persisted login has no live session, clearing identity", "user_id", restored.UserID)
			s.Logout()
			result = HydrationCleared
		}
	}
	s.metrics.RecordHydration(result)

	s.SetHasHydrated(true)
	return s.Snapshot()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasHydrated reports whether Load has completed.
func (s *Store) HasHydrated() bool {
	return s.Snapshot().Hydrated
}

// IsLoggedIn reports the login flag.
func (s *Store) IsLoggedIn() bool {
	return s.Snapshot().LoggedIn
}

// Login marks the user logged in with a display profile only.
func (s *Store) Login(displayName, pictureURL string) {
	s.update(func(id *Identity) {
		id.LoggedIn = true
		id.DisplayName = displayName
		id.PictureURL = pictureURL
	})
}

// LoginWithProvider records a provider login. The token is not validated here.
func (s *Store) LoginWithProvider(lineUserID, userID, displayName, pictureURL, accessToken string) {
	s.update(func(id *Identity) {
		id.LoggedIn = true
		id.LineUserID = lineUserID
		id.UserID = userID
		id.DisplayName = displayName
		id.PictureURL = pictureURL
		id.AccessToken = accessToken
	})
}

// Logout resets every persisted field, including the team selection.
// Logging out twice is a no-op.
func (s *Store) Logout() {
	s.update(func(id *Identity) {
		*id = Identity{Hydrated: id.Hydrated}
	})
}

// SetCurrentTeamID selects a team; "" clears the selection. The id is not
// checked against the membership list.
func (s *Store) SetCurrentTeamID(teamID string) {
	s.update(func(id *Identity) {
		id.CurrentTeamID = teamID
	})
}

// SetAccessToken mirrors a refreshed access token.
func (s *Store) SetAccessToken(token string) {
	s.update(func(id *Identity) {
		if id.LoggedIn {
			id.AccessToken = token
		}
	})
}

// SetHasHydrated sets the hydration latch. Once true it stays true.
func (s *Store) SetHasHydrated(v bool) {
	s.mu.Lock()
	if s.state.Hydrated || !v {
		s.mu.Unlock()
		return
	}
	s.state.Hydrated = true
	snap := s.state
	s.mu.Unlock()

	s.notify(snap)
}

// Subscribe calls fn with the new state after every change.
func (s *Store) Subscribe(fn func(Identity)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) update(mutate func(*Identity)) {
	s.mu.Lock()
	before := s.state
	mutate(&s.state)
	snap := s.state
	if snap == before {
		s.mu.Unlock()
		return
	}
	// Persist under the lock so writes land in mutation order.
	s.persist(snap)
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) persist(id Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if id == (Identity{Hydrated: id.Hydrated}) {
		err = s.kv.RemoveItem(ctx, storage.KeyIdentity)
	} else {
		var raw string
		raw, err = encode(id)
		if err == nil {
			err = s.kv.SetItem(ctx, storage.KeyIdentity, raw)
		}
	}
	if err != nil {
		s.logger.WithError(err).Warn("failed to persist identity")
	}
}

func (s *Store) notify(id Identity) {
	s.mu.Lock()
	subs := make([]func(Identity), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(id)
	}
}
