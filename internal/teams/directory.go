package teams

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/metrics"
)

// Status is the directory's freshness.
type Status int

// Directory states
const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Lister fetches memberships.
type Lister interface {
	List(ctx context.Context) ([]Membership, error)
}

// View is an immutable snapshot of the directory.
type View struct {
	Status Status
	// Teams is the last good list; nil until one has loaded.
	Teams []Membership
	Err   error
}

// Directory caches the membership list and tracks whether it is loading,
// loaded or failed. Subscribers hear about status and content changes only.
type Directory struct {
	lister  Lister
	metrics *metrics.Metrics
	logger  *log.Logger
	group   singleflight.Group

	mu          sync.Mutex
	status      Status
	teams       []Membership
	err         error
	fingerprint [32]byte
	generation  uint64
	subs        map[int]func(View)
	nextID      int
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithDirectoryMetrics records fetch outcomes.
func WithDirectoryMetrics(m *metrics.Metrics) DirectoryOption {
	return func(d *Directory) { d.metrics = m }
}

// WithDirectoryLogger sets the logger.
func WithDirectoryLogger(l *log.Logger) DirectoryOption {
	return func(d *Directory) { d.logger = l.Named("directory") }
}

// NewDirectory creates an idle directory.
func NewDirectory(lister Lister, opts ...DirectoryOption) *Directory {
	d := &Directory{
		lister:      lister,
		logger:      log.Nop(),
		subs:        make(map[int]func(View)),
		fingerprint: Fingerprint(nil),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Snapshot returns the current view.
func (d *Directory) Snapshot() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewLocked()
}

func (d *Directory) viewLocked() View {
	return View{Status: d.status, Teams: slices.Clone(d.teams), Err: d.err}
}

// Fetch loads the list. Callers gate on a hydrated, logged-in identity.
// Concurrent calls within one generation share one request; a Fetch after
// Reset never joins a request started before it. A failure keeps the last
// good list.
func (d *Directory) Fetch(ctx context.Context) ([]Membership, error) {
	d.mu.Lock()
	gen := d.generation
	d.mu.Unlock()

	v, err, _ := d.group.Do("list-"+strconv.FormatUint(gen, 10), func() (any, error) {
		d.set(gen, func() {
			d.status = StatusLoading
			d.err = nil
		})

		start := time.Now()
		teams, err := d.lister.List(ctx)
		if err != nil {
			d.metrics.RecordTeamFetch("failed", time.Since(start))
			d.logger.WithError(err).Warn("team fetch failed")
			d.set(gen, func() {
				d.status = StatusFailed
				d.err = err
			})
			return nil, err
		}

		d.metrics.RecordTeamFetch("success", time.Since(start))
		teams = normalize(teams)
		d.set(gen, func() {
			d.status = StatusLoaded
			d.teams = teams
			d.err = nil
		})
		return teams, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Membership)), nil
}

// Seed installs a list delivered alongside the login callback.
func (d *Directory) Seed(teams []Membership) {
	d.mu.Lock()
	gen := d.generation
	d.mu.Unlock()

	d.set(gen, func() {
		d.status = StatusLoaded
		d.teams = normalize(slices.Clone(teams))
		d.err = nil
	})
}

// Reset forgets the cached list and returns to idle. Fetches in flight
// when Reset is called do not write their results back.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	d.set(gen, func() {
		d.status = StatusIdle
		d.teams = nil
		d.err = nil
	})
}

// Subscribe calls fn after every status or content change.
func (d *Directory) Subscribe(fn func(View)) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
		})
	}
}

// set applies mutate if gen is still current and notifies on change.
func (d *Directory) set(gen uint64, mutate func()) {
	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		return
	}

	prevStatus, prevPrint := d.status, d.fingerprint
	mutate()
	d.fingerprint = Fingerprint(d.teams)
	if d.status == prevStatus && d.fingerprint == prevPrint {
		d.mu.Unlock()
		return
	}

	view := d.viewLocked()
	subs := make([]func(View), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn(view)
	}
}

// Fingerprint is a BLAKE3 digest of the list sorted by team id. nil and an
// empty list hash differently.
func Fingerprint(teams []Membership) [32]byte {
	if teams == nil {
		return blake3.Sum256(nil)
	}

	sorted := slices.Clone(teams)
	slices.SortFunc(sorted, func(a, b Membership) int {
		return strings.Compare(a.TeamID, b.TeamID)
	})

	data, err := json.Marshal(sorted)
	if err != nil {
		// Membership always marshals; fall back to the empty-list digest.
		data = []byte("[]")
	}
	return blake3.Sum256(append([]byte{1}, data...))
}
