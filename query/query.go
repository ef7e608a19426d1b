// Package query caches remote collections in memory with stale-while-revalidate
// semantics. Concurrent requests for the same key share a single fetch, and
// failed fetches are retried according to a RetryPolicy.
package query

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/librosync/client"
	"github.com/aluiziolira/librosync/config"
	"github.com/aluiziolira/librosync/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime = 5 * time.Minute
	DefaultGCTime    = 15 * time.Minute
	DefaultCacheSize = 16
)

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	StaleTime time.Duration
	GCTime    time.Duration
	CacheSize int
	Retry     RetryPolicy
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// OptionsFromConfig derives cache options from the application config.
func OptionsFromConfig(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) Options {
	return Options{
		StaleTime: cfg.StaleTime,
		GCTime:    cfg.GCTime,
		CacheSize: cfg.CacheSize,
		Retry:     ExponentialBackoff(cfg.MaxRetries, cfg.RetryBackoff, cfg.RetryBackoffMax),
		Metrics:   m,
		Logger:    logger,
	}
}

type entry struct {
	data        any
	hasData     bool
	err         error
	updatedAt   time.Time
	invalidated bool
}

// Client is the shared cache behind every Query handle.
type Client struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group
	wg     sync.WaitGroup

	mu        sync.Mutex
	entries   *expirable.LRU[string, *entry]
	inflight  map[string]bool
	listeners map[string]map[uint64]func()
	nextID    uint64
	closed    bool
}

// NewClient builds an empty cache.
func NewClient(opts Options) *Client {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.GCTime <= 0 {
		opts.GCTime = DefaultGCTime
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Retry == nil {
		opts.Retry = ExponentialBackoff(3, time.Second, 10*time.Second)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		inflight:  make(map[string]bool),
		listeners: make(map[string]map[uint64]func()),
	}
	logger := opts.Logger
	c.entries = expirable.NewLRU(opts.CacheSize, func(key string, _ *entry) {
		logger.Debug("query cache entry evicted", slog.String("key", key))
	}, opts.GCTime)
	return c
}

// Close cancels in-flight fetches and pending retries and waits for them to
// finish. Queries observed after Close serve cached data only.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// Keys lists the cached keys, oldest first.
func (c *Client) Keys() []string {
	return c.entries.Keys()
}

// lookupLocked returns the entry for key, creating an empty one if it was never
// cached or has been collected. Every lookup refreshes the entry's GC deadline.
func (c *Client) lookupLocked(key string) *entry {
	e, ok := c.entries.Get(key)
	if !ok {
		e = &entry{}
	}
	c.entries.Add(key, e)
	return e
}

func (c *Client) staleLocked(e *entry) bool {
	return e.invalidated || c.opts.Now().Sub(e.updatedAt) >= c.opts.StaleTime
}

// start launches a fetch for key unless one is already running and returns a
// channel that yields once the shared fetch completes. It returns nil after
// Close.
func (c *Client) start(key string, fetch func(context.Context) (any, error)) <-chan singleflight.Result {
	c.mu.Lock()
	ch := c.startLocked(key, fetch)
	c.mu.Unlock()
	if ch != nil {
		c.notify(key)
	}
	return ch
}

// startLocked must hold mu: the in-flight flag and the singleflight call
// change together so a caller either joins the running fetch or starts one.
func (c *Client) startLocked(key string, fetch func(context.Context) (any, error)) <-chan singleflight.Result {
	if c.closed {
		return nil
	}
	if !c.inflight[key] {
		c.inflight[key] = true
		c.wg.Add(1)
	}
	return c.group.DoChan(key, func() (any, error) {
		defer c.wg.Done()
		c.run(key, fetch)
		return nil, nil
	})
}

// run performs the fetch with retries and stores the outcome. It never returns
// the fetch error; failures are recorded on the entry.
func (c *Client) run(key string, fetch func(context.Context) (any, error)) {
	logger := c.opts.Logger.With(slog.String("key", key))

	var (
		data any
		err  error
	)
	for failures := 0; ; failures++ {
		data, err = fetch(c.ctx)
		if err == nil {
			break
		}
		delay, retry := c.opts.Retry(failures, err)
		if !retry || c.ctx.Err() != nil {
			break
		}
		c.opts.Metrics.IncRetries()
		logger.Debug("retrying fetch",
			slog.Int("attempt", failures+1),
			slog.Duration("delay", delay),
			slog.String("category", client.Label(err)),
		)
		if sleepErr := sleep(c.ctx, delay); sleepErr != nil {
			break
		}
	}

	c.mu.Lock()
	e := c.lookupLocked(key)
	if err != nil {
		e.err = err
	} else {
		e.data = data
		e.hasData = true
		e.err = nil
		e.updatedAt = c.opts.Now()
		e.invalidated = false
	}
	c.group.Forget(key)
	delete(c.inflight, key)
	c.mu.Unlock()

	if err != nil {
		logger.Warn("fetch failed",
			slog.String("category", client.Label(err)),
			slog.Any("error", err),
		)
	}
	c.notify(key)
}

// Subscribe registers fn to be called after every change to key's entry. The
// returned function removes the subscription.
func (c *Client) Subscribe(key string, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	if c.listeners[key] == nil {
		c.listeners[key] = make(map[uint64]func())
	}
	c.listeners[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners[key], id)
			if len(c.listeners[key]) == 0 {
				delete(c.listeners, key)
			}
		})
	}
}

func (c *Client) notify(key string) {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners[key]))
	for _, fn := range c.listeners[key] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Invalidate marks key stale so the next observation refetches it.
func (c *Client) Invalidate(key string) {
	c.mu.Lock()
	e, ok := c.entries.Peek(key)
	if ok {
		e.invalidated = true
	}
	c.mu.Unlock()
	if ok {
		c.notify(key)
	}
}

// State is a snapshot of a cached collection.
type State[T any] struct {
	Data       T
	HasData    bool
	IsLoading  bool // no data yet and a fetch is running
	IsFetching bool // any fetch is running, including background refetches
	IsStale    bool
	Err        error
	Error      string // user-facing form of Err
	UpdatedAt  time.Time
}

// Query is a typed handle on one cache key.
type Query[T any] struct {
	c     *Client
	key   string
	fetch func(context.Context) (any, error)
}

// New returns a handle that loads key with fn.
func New[T any](c *Client, key string, fn func(context.Context) (T, error)) *Query[T] {
	return &Query[T]{
		c:   c,
		key: key,
		fetch: func(ctx context.Context) (any, error) {
			return fn(ctx)
		},
	}
}

// Key returns the cache key.
func (q *Query[T]) Key() string { return q.key }

// Peek returns the current state without triggering a fetch.
func (q *Query[T]) Peek() State[T] {
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	e, ok := q.c.entries.Peek(q.key)
	if !ok {
		e = &entry{}
	}
	return q.snapshotLocked(e)
}

func (q *Query[T]) snapshotLocked(e *entry) State[T] {
	fetching := q.c.inflight[q.key]
	s := State[T]{
		HasData:    e.hasData,
		IsLoading:  fetching && !e.hasData,
		IsFetching: fetching,
		IsStale:    e.hasData && q.c.staleLocked(e),
		Err:        e.err,
		Error:      client.UserMessage(e.err),
		UpdatedAt:  e.updatedAt,
	}
	if e.hasData {
		s.Data, _ = e.data.(T)
	}
	return s
}

// Observe returns the cached state and never blocks. When nothing is cached a
// background fetch is started and the state reports IsLoading. Stale data is
// returned as is while a background refetch runs.
func (q *Query[T]) Observe() State[T] {
	q.ensure()
	return q.Peek()
}

// ensure starts or joins a fetch when the entry is missing and starts a
// background refetch when it is stale. The channel is nil when the cached
// value is served as is.
func (q *Query[T]) ensure() <-chan singleflight.Result {
	c := q.c
	c.mu.Lock()
	e := c.lookupLocked(q.key)
	var (
		result string
		ch     <-chan singleflight.Result
	)
	switch {
	case !e.hasData:
		result = metrics.CacheMiss
		ch = c.startLocked(q.key, q.fetch)
	case c.staleLocked(e):
		result = metrics.CacheStale
		if !c.inflight[q.key] {
			ch = c.startLocked(q.key, q.fetch)
		}
	default:
		result = metrics.CacheHit
	}
	c.mu.Unlock()

	c.opts.Metrics.IncCache(result)
	if ch != nil {
		c.notify(q.key)
	}
	return ch
}

// Get returns cached data when present, fresh or stale, and otherwise waits for
// the first load. The only error returned is ctx's; fetch failures are reported
// in State.
func (q *Query[T]) Get(ctx context.Context) (State[T], error) {
	ch := q.ensure()
	if s := q.Peek(); s.HasData || ch == nil {
		return s, nil
	}
	return q.wait(ctx, ch)
}

// Refetch forces a fetch regardless of freshness, joining one already in
// flight, and waits for it.
func (q *Query[T]) Refetch(ctx context.Context) (State[T], error) {
	return q.wait(ctx, q.c.start(q.key, q.fetch))
}

func (q *Query[T]) wait(ctx context.Context, ch <-chan singleflight.Result) (State[T], error) {
	if ch == nil {
		return q.Peek(), nil
	}
	select {
	case <-ctx.Done():
		return q.Peek(), ctx.Err()
	case <-ch:
		return q.Peek(), nil
	}
}

// Subscribe calls fn with a fresh snapshot whenever the entry changes.
func (q *Query[T]) Subscribe(fn func(State[T])) func() {
	return q.c.Subscribe(q.key, func() {
		fn(q.Peek())
	})
}

// Invalidate marks the entry stale.
func (q *Query[T]) Invalidate() {
	q.c.Invalidate(q.key)
}
