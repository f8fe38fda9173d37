package auth

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vango-dev/appstate/pkg/observable"
)

// Fetcher retrieves the signed-in user from the portal.
//
// status is the HTTP status of the response; user is only meaningful when
// status is 200. A non-nil err means no response was received.
type Fetcher interface {
	FetchSessionUser(ctx context.Context) (status int, user User, err error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (int, User, error)

// FetchSessionUser calls f.
func (f FetcherFunc) FetchSessionUser(ctx context.Context) (int, User, error) {
	return f(ctx)
}

// Store is the authenticated session store.
type Store struct {
	fetcher   Fetcher
	logger    *slog.Logger
	container *observable.Container[Session]

	initial     chan struct{}
	initialOnce sync.Once
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	logger   *slog.Logger
	observer observable.Observer
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithObserver sets the instrumentation hook of the underlying container.
func WithObserver(observer observable.Observer) Option {
	return func(o *storeOptions) {
		o.observer = observer
	}
}

// New creates a store holding the Unauthenticated sentinel and starts the
// first Load in the background. ctx bounds that initial fetch.
func New(ctx context.Context, fetcher Fetcher, opts ...Option) *Store {
	s := NewLazy(fetcher, opts...)
	go func() {
		defer s.markInitialDone()
		s.Load(ctx, nil)
	}()
	return s
}

// NewLazy creates a store holding the Unauthenticated sentinel without
// fetching anything.
func NewLazy(fetcher Fetcher, opts ...Option) *Store {
	cfg := storeOptions{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	s := &Store{
		fetcher: fetcher,
		logger:  cfg.logger,
		container: observable.New(Unauthenticated,
			observable.WithName("session"),
			observable.WithLogger(cfg.logger),
			observable.WithObserver(cfg.observer),
		),
		initial: make(chan struct{}),
	}
	return s
}

// Subscribe registers fn and immediately calls it with the current session.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	return s.container.Subscribe(fn)
}

// Get returns the current session.
func (s *Store) Get() Session {
	return s.container.Get()
}

// Load sets the session from user, fetching the signed-in user first when
// user is nil. It returns the committed session.
func (s *Store) Load(ctx context.Context, user User) Session {
	var next Session
	if user != nil {
		next = Derive(user)
	} else {
		next = s.fetch(ctx)
	}
	s.container.Set(next)
	return next
}

// Reload fetches the signed-in user and sets the session from it.
func (s *Store) Reload(ctx context.Context) Session {
	next := s.fetch(ctx)
	s.container.Set(next)
	return next
}

// Reset signs the session out locally without contacting the portal.
func (s *Store) Reset() {
	s.container.Set(Unauthenticated)
}

// Wait blocks until the background load started by New has finished or
// ctx is done. For a store built with NewLazy it waits for ctx only.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.initial:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) markInitialDone() {
	s.initialOnce.Do(func() { close(s.initial) })
}

// fetch maps a portal response onto a session.
func (s *Store) fetch(ctx context.Context) Session {
	status, user, err := s.fetcher.FetchSessionUser(ctx)
	if err != nil {
		s.logger.Warn("auth: session fetch failed", "error", err)
		return Unauthenticated
	}

	switch status {
	case http.StatusOK:
		return Derive(user)
	case http.StatusUnauthorized:
		return Unauthenticated
	default:
		s.logger.Warn("auth: unexpected session status", "status", status)
		return Unknown(status)
	}
}
