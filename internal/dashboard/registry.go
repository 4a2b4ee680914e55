// Package dashboard keeps one query controller per browser session and
// derives the dashboard charts from the records it shows.
package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/query"
)

// DefaultIdleTTL is how long an untouched controller survives.
const DefaultIdleTTL = 30 * time.Minute

type entry struct {
	controller *query.Controller
	creds      *auth.MemoryStore
	lastSeen   time.Time
}

// Registry owns the per-session controllers.
type Registry struct {
	fetcher  query.Fetcher
	idleTTL  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	gauge    func(int)
	ctrlOpts []query.Option

	mu      sync.Mutex
	entries map[string]*entry
}

// Option customises a Registry.
type Option func(*Registry)

// WithControllerOptions passes opts to every controller the registry builds.
func WithControllerOptions(opts ...query.Option) Option {
	return func(r *Registry) {
		r.ctrlOpts = append(r.ctrlOpts, opts...)
	}
}

// WithGauge reports the number of live controllers after every change.
func WithGauge(fn func(int)) Option {
	return func(r *Registry) {
		r.gauge = fn
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the idle clock for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry constructs an empty registry. A non-positive idleTTL uses
// DefaultIdleTTL.
func NewRegistry(fetcher query.Fetcher, idleTTL time.Duration, opts ...Option) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	r := &Registry{
		fetcher: fetcher,
		idleTTL: idleTTL,
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Controller returns the session's controller, creating it on first use.
// token is the session's current access token; a changed token replaces the
// cached credential. created reports whether the controller is new, in which
// case its first fetch has already been issued.
func (r *Registry) Controller(sessionID, token string) (ctrl *query.Controller, created bool) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok {
		e.lastSeen = r.now()
		if e.creds.Token() != token {
			e.creds.Set(token)
		}
		r.mu.Unlock()
		return e.controller, false
	}

	creds := auth.NewMemoryStore(token)
	opts := append([]query.Option{query.WithLogger(r.logger.With(slog.String("session", shortID(sessionID))))}, r.ctrlOpts...)
	e = &entry{
		controller: query.NewController(r.fetcher, creds, opts...),
		creds:      creds,
		lastSeen:   r.now(),
	}
	r.entries[sessionID] = e
	n := len(r.entries)
	r.mu.Unlock()

	r.report(n)
	_ = e.controller.Refresh()
	return e.controller, true
}

// Lookup returns the session's controller without creating one.
func (r *Registry) Lookup(sessionID string) (*query.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.controller, true
}

// Forget closes and drops the session's controller.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok {
		delete(r.entries, sessionID)
	}
	n := len(r.entries)
	r.mu.Unlock()
	if !ok {
		return
	}
	e.controller.Close()
	r.report(n)
}

// Sweep closes controllers idle for longer than the TTL and returns how
// many it removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)
	var expired []*entry
	r.mu.Lock()
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e)
			delete(r.entries, id)
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	for _, e := range expired {
		e.controller.Close()
	}
	if len(expired) > 0 {
		r.logger.Debug("evicted idle controllers", slog.Int("count", len(expired)), slog.Int("live", n))
		r.report(n)
	}
	return len(expired)
}

// Run sweeps on every interval until ctx ends, then closes every controller.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.idleTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len reports the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		e.controller.Close()
	}
	r.report(0)
}

func (r *Registry) report(n int) {
	if r.gauge != nil {
		r.gauge(n)
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
