// Package loader memoizes the result of a remote fetch.
//
// A Cached loader holds at most one value. A non-forced Load returns the
// cached value when one is set and only fetches otherwise; a forced Load
// always fetches and replaces the cache:
//
//	users := loader.New(client.FetchUser)
//
//	u, err := users.Current(ctx) // fetches once
//	u, err = users.Current(ctx)  // served from cache
//	u, err = users.Reload(ctx)   // fetches again
//
// A failed fetch is returned to the caller and leaves the cache as it was.
// There is no retry.
//
// Concurrent non-forced loads on an empty cache each perform their own
// fetch unless the loader is built with WithSingleFlight, in which case
// they share one in-flight request.
package loader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// FetchFunc performs the remote fetch.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Options controls a single Load call.
type Options struct {
	// Force bypasses the cache.
	Force bool
}

// Outcome classifies a Load call for instrumentation.
type Outcome string

const (
	OutcomeHit     Outcome = "hit"
	OutcomeFetched Outcome = "fetched"
	OutcomeShared  Outcome = "shared"
	OutcomeFailed  Outcome = "failed"
)

// Observer receives instrumentation events from a loader.
type Observer interface {
	Loaded(loader string, outcome Outcome, elapsed time.Duration)
}

// Cached is a memoizing loader for a single value.
type Cached[T any] struct {
	fetch FetchFunc[T]

	name         string
	logger       *slog.Logger
	observer     Observer
	clock        clockwork.Clock
	maxAge       time.Duration
	singleFlight bool
	group        singleflight.Group

	mu        sync.Mutex
	value     T
	set       bool
	fetchedAt time.Time
}

// Option configures a Cached loader.
type Option func(*config)

type config struct {
	name         string
	logger       *slog.Logger
	observer     Observer
	clock        clockwork.Clock
	maxAge       time.Duration
	singleFlight bool
}

// WithName sets the name used in logs and metrics.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithObserver sets an instrumentation hook.
func WithObserver(observer Observer) Option {
	return func(c *config) {
		c.observer = observer
	}
}

// WithClock sets the clock used for MaxAge. Default: the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithMaxAge makes a cached value expire after d. Zero, the default, keeps
// it until Invalidate or a forced load.
func WithMaxAge(d time.Duration) Option {
	return func(c *config) {
		c.maxAge = d
	}
}

// WithSingleFlight coalesces concurrent fetches into one request whose
// result is shared by every waiting caller. The shared fetch is not
// cancelled by any caller's context; a caller whose context ends returns
// ctx.Err() while the fetch carries on for the others.
func WithSingleFlight() Option {
	return func(c *config) {
		c.singleFlight = true
	}
}

// New creates a loader around fetch. Nothing is fetched until the first
// Load.
func New[T any](fetch func(ctx context.Context) (T, error), opts ...Option) *Cached[T] {
	cfg := config{name: "loader"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.clock == nil {
		cfg.clock = clockwork.NewRealClock()
	}

	return &Cached[T]{
		fetch:        fetch,
		name:         cfg.name,
		logger:       cfg.logger,
		observer:     cfg.observer,
		clock:        cfg.clock,
		maxAge:       cfg.maxAge,
		singleFlight: cfg.singleFlight,
	}
}

// Load returns the cached value, fetching it first when the cache is empty,
// expired, or opts.Force is set.
func (l *Cached[T]) Load(ctx context.Context, opts Options) (T, error) {
	start := l.clock.Now()

	if !opts.Force {
		if v, ok := l.fresh(); ok {
			l.logger.Debug("loader: returning cached value", "loader", l.name)
			l.report(OutcomeHit, start)
			return v, nil
		}
	}

	if !l.singleFlight {
		v, err := l.fetchAndStore(ctx)
		if err != nil {
			l.report(OutcomeFailed, start)
			return v, err
		}
		l.report(OutcomeFetched, start)
		return v, nil
	}

	// Forced and unforced loads share separate flights so a reload never
	// returns a result that was requested before it.
	key := "load"
	if opts.Force {
		key = "reload"
	}
	// The shared fetch outlives any single caller; each caller stops waiting
	// when its own ctx is done.
	flightCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		return l.fetchAndStore(flightCtx)
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			l.report(OutcomeFailed, start)
			return zero, res.Err
		}
		if res.Shared {
			l.report(OutcomeShared, start)
		} else {
			l.report(OutcomeFetched, start)
		}
		v, _ := res.Val.(T)
		return v, nil
	case <-ctx.Done():
		l.report(OutcomeFailed, start)
		return zero, ctx.Err()
	}
}

// Current is Load without Force.
func (l *Cached[T]) Current(ctx context.Context) (T, error) {
	return l.Load(ctx, Options{})
}

// Reload is Load with Force.
func (l *Cached[T]) Reload(ctx context.Context) (T, error) {
	return l.Load(ctx, Options{Force: true})
}

// Peek returns the cached value, if any, without fetching.
func (l *Cached[T]) Peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.set
}

// Invalidate clears the cache so the next Load fetches.
func (l *Cached[T]) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	l.value = zero
	l.set = false
	l.fetchedAt = time.Time{}
}

func (l *Cached[T]) fresh() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.set {
		var zero T
		return zero, false
	}
	if l.maxAge > 0 && l.clock.Since(l.fetchedAt) >= l.maxAge {
		var zero T
		return zero, false
	}
	return l.value, true
}

// fetchAndStore fetches and, on success, overwrites the cache. Results
// commit last-write-wins.
func (l *Cached[T]) fetchAndStore(ctx context.Context) (T, error) {
	v, err := l.fetch(ctx)
	if err != nil {
		l.logger.Warn("loader: fetch failed", "loader", l.name, "error", err)
		var zero T
		return zero, err
	}

	l.mu.Lock()
	l.value = v
	l.set = true
	l.fetchedAt = l.clock.Now()
	l.mu.Unlock()

	return v, nil
}

func (l *Cached[T]) report(outcome Outcome, start time.Time) {
	if l.observer != nil {
		l.observer.Loaded(l.name, outcome, l.clock.Since(start))
	}
}
