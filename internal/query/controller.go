package query

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
)

// State is the fetch lifecycle of a controller.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Fetcher loads one filtered page of requests.
type Fetcher interface {
	FetchList(ctx context.Context, cred auth.Credential, query url.Values) (compliance.ResultPage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, cred auth.Credential, query url.Values) (compliance.ResultPage, error)

// FetchList calls f.
func (f FetcherFunc) FetchList(ctx context.Context, cred auth.Credential, query url.Values) (compliance.ResultPage, error) {
	return f(ctx, cred, query)
}

// CredentialStore is where the controller reads the caller's credential and
// drops it once the data source reports it expired.
type CredentialStore interface {
	Credential() (auth.Credential, bool)
	Clear()
}

// Outcome classifies a finished fetch cycle.
type Outcome string

const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeFailed      Outcome = "failed"
	OutcomeAuthExpired Outcome = "auth_expired"
	OutcomeStale       Outcome = "stale"
)

// Observer is notified about fetch cycles. Calls happen outside the
// controller lock.
type Observer interface {
	FetchStarted()
	FetchFinished(outcome Outcome, elapsed time.Duration)
}

// Option customises a Controller.
type Option func(*Controller)

// WithObserver registers an observer for fetch cycles.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for local expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFilter sets the initial filter.
func WithFilter(f FilterState) Option {
	return func(c *Controller) {
		if f.Page < 1 {
			f.Page = 1
		}
		if f.PageSize < 1 {
			f.PageSize = DefaultPageSize
		}
		c.filter = f
	}
}

// Controller runs fetch cycles for one viewer. Only the result of the most
// recently issued snapshot is ever applied; earlier completions are dropped.
// A fetch that never returns keeps the controller in StateFetching.
type Controller struct {
	fetcher   Fetcher
	creds     CredentialStore
	logger    *slog.Logger
	now       func() time.Time
	observers []Observer

	base     context.Context
	shutdown context.CancelFunc

	mu         sync.Mutex
	filter     FilterState
	seq        uint64
	state      State
	items      []compliance.RequestRecord
	total      int
	message    string
	err        error
	needsLogin bool
	stale      int
	cancel     context.CancelFunc
	settled    chan struct{}
	closed     bool
}

// NewController constructs an idle controller. No fetch happens until the
// first filter change or Refresh.
func NewController(fetcher Fetcher, creds CredentialStore, opts ...Option) *Controller {
	base, shutdown := context.WithCancel(context.Background())
	settled := make(chan struct{})
	close(settled)
	c := &Controller{
		fetcher:  fetcher,
		creds:    creds,
		logger:   slog.Default(),
		now:      time.Now,
		base:     base,
		shutdown: shutdown,
		filter:   DefaultFilter(),
		settled:  settled,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetFilterField validates and applies one filter change, then starts a
// fetch cycle. Invalid input returns a *ValidationError and changes nothing.
func (c *Controller) SetFilterField(field Field, value string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	next, err := c.filter.With(field, value)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.filter = next
	c.startLocked()
	return nil
}

// SetFilterFields validates and applies several filter changes as one edit
// and starts a single fetch cycle. If any value is invalid nothing changes
// and no fetch starts. An empty change set is a no-op.
func (c *Controller) SetFilterFields(changes map[Field]string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if len(changes) == 0 {
		c.mu.Unlock()
		return nil
	}
	next, err := c.filter.WithAll(changes)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.filter = next
	c.startLocked()
	return nil
}

// Refresh re-fetches the current filter.
func (c *Controller) Refresh() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.startLocked()
	return nil
}

// PreviousPage moves one page back. It is a no-op on the first page.
func (c *Controller) PreviousPage() bool {
	c.mu.Lock()
	if c.closed || c.filter.Page <= 1 {
		c.mu.Unlock()
		return false
	}
	c.filter.Page--
	c.startLocked()
	return true
}

// NextPage moves one page forward. It is a no-op on or past the last page.
func (c *Controller) NextPage() bool {
	c.mu.Lock()
	if c.closed || c.filter.Page >= TotalPages(c.total, c.filter.PageSize) {
		c.mu.Unlock()
		return false
	}
	c.filter.Page++
	c.startLocked()
	return true
}

// LastPage jumps to the final page of the latest result. It is a no-op when
// there are no results or the page is already the last one.
func (c *Controller) LastPage() bool {
	c.mu.Lock()
	last := TotalPages(c.total, c.filter.PageSize)
	if c.closed || last == 0 || c.filter.Page == last {
		c.mu.Unlock()
		return false
	}
	c.filter.Page = last
	c.startLocked()
	return true
}

// View returns a consistent snapshot of the controller.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Wait blocks until no fetch is in flight or ctx ends, and returns the view
// at that point.
func (c *Controller) Wait(ctx context.Context) (View, error) {
	c.mu.Lock()
	settled := c.settled
	c.mu.Unlock()
	select {
	case <-settled:
		return c.View(), nil
	case <-ctx.Done():
		return c.View(), ctx.Err()
	}
}

// Close cancels any in-flight fetch. Later completions are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.seq++
	if c.state == StateFetching {
		c.state = StateIdle
		close(c.settled)
	}
	c.cancel = nil
	c.mu.Unlock()
	c.shutdown()
}

// startLocked issues a new snapshot and releases the lock.
func (c *Controller) startLocked() {
	c.seq++
	snap := Snapshot{Seq: c.seq, Filter: c.filter}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.state != StateFetching {
		c.settled = make(chan struct{})
	}
	c.state = StateFetching

	cred, ok := c.creds.Credential()
	if !ok || cred.Expired(c.now()) {
		c.applyLocked(snap, compliance.ResultPage{}, compliance.ErrAuthExpired)
		c.mu.Unlock()
		c.notifyStarted()
		c.notifyFinished(OutcomeAuthExpired, 0)
		return
	}

	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.mu.Unlock()

	c.notifyStarted()
	go c.run(ctx, cancel, snap, cred)
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, snap Snapshot, cred auth.Credential) {
	defer cancel()
	started := time.Now()
	page, err := c.fetcher.FetchList(ctx, cred, snap.Query())
	elapsed := time.Since(started)

	c.mu.Lock()
	if snap.Seq != c.seq {
		c.stale++
		c.mu.Unlock()
		c.logger.Debug("drop stale fetch result", slog.Uint64("seq", snap.Seq), slog.Duration("elapsed", elapsed))
		c.notifyFinished(OutcomeStale, elapsed)
		return
	}
	c.cancel = nil
	outcome := c.applyLocked(snap, page, err)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("fetch requests", slog.String("outcome", string(outcome)), slog.Any("error", err))
	}
	c.notifyFinished(outcome, elapsed)
}

// applyLocked records the result of the current snapshot and settles.
func (c *Controller) applyLocked(snap Snapshot, page compliance.ResultPage, err error) Outcome {
	outcome := OutcomeSucceeded
	if err == nil {
		c.state = StateSucceeded
		c.items = page.Items
		c.total = page.Total
		c.message = ""
		c.err = nil
		c.needsLogin = false
	} else {
		c.state = StateFailed
		c.err = err
		c.message = userMessage(err)
		outcome = OutcomeFailed
		if errors.Is(err, compliance.ErrAuthExpired) {
			c.creds.Clear()
			c.needsLogin = true
			outcome = OutcomeAuthExpired
		}
	}
	close(c.settled)
	return outcome
}

func (c *Controller) notifyStarted() {
	for _, o := range c.observers {
		o.FetchStarted()
	}
}

func (c *Controller) notifyFinished(outcome Outcome, elapsed time.Duration) {
	for _, o := range c.observers {
		o.FetchFinished(outcome, elapsed)
	}
}

func userMessage(err error) string {
	var reqErr *compliance.RequestError
	switch {
	case errors.Is(err, compliance.ErrAuthExpired):
		return "Your session has expired. Please sign in again."
	case errors.As(err, &reqErr) && reqErr.Detail != "":
		return "Could not load requests: " + reqErr.Detail
	default:
		return "Could not load requests. Please try again."
	}
}
