// Package dashboard drives task listing from user-edited filters: search
// edits are debounced, other filter changes fetch at once, and results of
// superseded fetches are dropped.
package dashboard

import (
	"context"
	"sync"
	"time"

	"taskman/internal/logging"
	"taskman/internal/service"
)

// DefaultDebounce is the quiet period after a search edit before fetching.
const DefaultDebounce = 500 * time.Millisecond

// Result is the outcome of one fetch.
type Result struct {
	Generation uint64          `json:"generation" yaml:"generation"`
	Filters    service.Filters `json:"filters" yaml:"filters"`
	Tasks      []service.Task  `json:"tasks" yaml:"tasks"`
	Stats      service.Stats   `json:"stats" yaml:"stats"`
	Err        error           `json:"-" yaml:"-"`
}

// Controller owns the filter state and the fetch pipeline.
// It is safe for concurrent use.
type Controller struct {
	lister service.TaskLister
	token  func() string
	logger *logging.Logger

	debounce          time.Duration
	onResult          func(Result)
	onUnauthenticated func()

	debouncer *Debouncer

	// deliverMu orders result delivery so a stale result can never be
	// delivered after a newer one.
	deliverMu sync.Mutex

	mu      sync.Mutex
	filters service.Filters
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{} // closed when the latest fetch settles
	tasks   []service.Task
	last    Result
	closed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the search debounce period.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// OnResult sets the callback receiving every non-stale result. The
// callback must not call Flush.
func OnResult(fn func(Result)) Option {
	return func(c *Controller) { c.onResult = fn }
}

// OnUnauthenticated sets the hook run when a fetch is rejected with 401.
func OnUnauthenticated(fn func()) Option {
	return func(c *Controller) { c.onUnauthenticated = fn }
}

// New creates a Controller listing tasks through lister with the token
// returned by token at fetch time.
func New(lister service.TaskLister, token func() string, opts ...Option) *Controller {
	c := &Controller{
		lister:   lister,
		token:    token,
		logger:   logging.NopLogger(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "dashboard")
	c.debouncer = NewDebouncer(c.debounce)
	return c
}

// Filters returns the current filter state.
func (c *Controller) Filters() service.Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Last returns the most recent delivered result.
func (c *Controller) Last() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// SetSearch updates the search text and schedules a debounced fetch.
func (c *Controller) SetSearch(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.filters.Search = text
	c.mu.Unlock()
	c.debouncer.Trigger(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.startLocked()
	})
}

// SetStatus updates the status filter and fetches immediately.
func (c *Controller) SetStatus(s service.Status) {
	c.update(func(f *service.Filters) { f.Status = s })
}

// SetPriority updates the priority filter and fetches immediately.
func (c *Controller) SetPriority(p service.Priority) {
	c.update(func(f *service.Filters) { f.Priority = p })
}

// SetFilters replaces all filters and fetches immediately.
func (c *Controller) SetFilters(f service.Filters) {
	c.update(func(cur *service.Filters) { *cur = f })
}

// Refresh fetches with the current filters immediately.
func (c *Controller) Refresh() {
	c.update(func(*service.Filters) {})
}

// update applies fn and fetches now. A pending debounced fetch is
// superseded: its search text is already part of the filter state.
func (c *Controller) update(fn func(*service.Filters)) {
	c.debouncer.Cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	fn(&c.filters)
	c.startLocked()
}

// startLocked cancels the in-flight fetch and starts a new one.
func (c *Controller) startLocked() {
	if c.closed {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	filters := c.filters

	c.logger.Debug("fetching tasks", "generation", gen, "search", filters.Search, "status", string(filters.Status), "priority", string(filters.Priority))
	go c.fetch(ctx, cancel, gen, filters, done)
}

// fetch runs one listing. done is closed only after delivery.
func (c *Controller) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, filters service.Filters, done chan struct{}) {
	defer close(done)
	defer cancel()

	tasks, err := c.lister.ListTasks(ctx, c.token(), filters)

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("dropping stale result", "generation", gen)
		return
	}
	if err == nil {
		c.tasks = tasks
	}
	res := Result{
		Generation: gen,
		Filters:    filters,
		Tasks:      c.tasks,
		Stats:      service.ComputeStats(c.tasks),
		Err:        err,
	}
	c.last = res
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("fetch failed", "generation", gen, "error", err.Error())
		if service.IsUnauthenticated(err) && c.onUnauthenticated != nil {
			c.onUnauthenticated()
		}
	}
	if c.onResult != nil {
		c.onResult(res)
	}
}

// Flush runs a pending debounced fetch now and waits until the latest
// fetch settles, returning its result.
func (c *Controller) Flush(ctx context.Context) (Result, error) {
	c.debouncer.Flush()
	for {
		c.mu.Lock()
		done, gen := c.done, c.gen
		c.mu.Unlock()
		if done == nil {
			return c.Last(), nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
		c.mu.Lock()
		settled := gen == c.gen
		c.mu.Unlock()
		if settled && !c.debouncer.Pending() {
			return c.Last(), nil
		}
		c.debouncer.Flush()
	}
}

// Close stops the debouncer and cancels the in-flight fetch. Later
// results are ignored. It is idempotent.
func (c *Controller) Close() {
	c.debouncer.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
}
