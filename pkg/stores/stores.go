// Package stores builds the process-wide application stores and the
// operations that keep the app list in step with the portal.
//
// The stores are constructed exactly once by the application bootstrap and
// shared from there:
//
//	client, _ := api.New(cfg.Portal.BaseURL)
//	s := stores.New(ctx, stores.Deps{Client: client})
//
//	s.Errors.Subscribe(showToasts)
//	s.Apps.Subscribe(renderAppList)
//	if err := s.RefreshApps(ctx); err != nil { ... }
package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vango-dev/appstate/pkg/api"
	"github.com/vango-dev/appstate/pkg/auth"
	"github.com/vango-dev/appstate/pkg/collection"
	"github.com/vango-dev/appstate/pkg/loader"
	"github.com/vango-dev/appstate/pkg/observable"
)

// Portal is the subset of the portal client the stores use.
type Portal interface {
	auth.Fetcher
	FetchUser(ctx context.Context) (api.User, error)
	ListApps(ctx context.Context) ([]api.App, error)
	CreateApp(ctx context.Context, in api.AppInput) (api.App, error)
	DeleteApp(ctx context.Context, id int64) (api.App, error)
	Verify(ctx context.Context, verifyURL string) (auth.User, error)
	DeleteAccount(ctx context.Context) (api.User, error)
	Providers(ctx context.Context) ([]api.Provider, error)
}

// Observer is the instrumentation hook shared by the stores and the loader.
type Observer interface {
	observable.Observer
	loader.Observer
}

// Deps are the collaborators of the stores.
type Deps struct {
	Client Portal

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Observer is optional.
	Observer Observer

	// SingleFlight coalesces concurrent loads of the current user.
	SingleFlight bool

	// UserMaxAge expires the cached user; zero keeps it until reloaded.
	UserMaxAge time.Duration

	// Lazy skips the eager session load.
	Lazy bool
}

// Stores holds the application state.
type Stores struct {
	// User is the cached current user.
	User *loader.Cached[api.User]

	// Session is the authenticated session.
	Session *auth.Store

	// Errors holds transient error messages. Identical messages coexist and
	// are removed together.
	Errors *collection.List[string, string]

	// Apps holds the apps owned by the current user, keyed by id.
	Apps *collection.List[api.App, int64]

	client Portal
	logger *slog.Logger
}

// New builds the stores. Unless deps.Lazy is set, the session store starts
// loading the signed-in user immediately.
func New(ctx context.Context, deps Deps) *Stores {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	containerOpts := func(name string) []observable.Option {
		opts := []observable.Option{observable.WithName(name), observable.WithLogger(logger)}
		if deps.Observer != nil {
			opts = append(opts, observable.WithObserver(deps.Observer))
		}
		return opts
	}

	loaderOpts := []loader.Option{
		loader.WithName("user"),
		loader.WithLogger(logger),
		loader.WithMaxAge(deps.UserMaxAge),
	}
	if deps.Observer != nil {
		loaderOpts = append(loaderOpts, loader.WithObserver(deps.Observer))
	}
	if deps.SingleFlight {
		loaderOpts = append(loaderOpts, loader.WithSingleFlight())
	}

	authOpts := []auth.Option{auth.WithLogger(logger)}
	if deps.Observer != nil {
		authOpts = append(authOpts, auth.WithObserver(deps.Observer))
	}

	s := &Stores{
		User:   loader.New(deps.Client.FetchUser, loaderOpts...),
		Errors: collection.NewComparable[string](containerOpts("errors")...),
		Apps:   collection.New(api.AppKey, containerOpts("apps")...),
		client: deps.Client,
		logger: logger,
	}
	if deps.Lazy {
		s.Session = auth.NewLazy(deps.Client, authOpts...)
	} else {
		s.Session = auth.New(ctx, deps.Client, authOpts...)
	}
	return s
}

// RefreshApps replaces the app list with the portal's.
func (s *Stores) RefreshApps(ctx context.Context) error {
	apps, err := s.client.ListApps(ctx)
	if err != nil {
		return s.fail("Could not load your apps", err)
	}
	s.Apps.Replace(apps...)
	return nil
}

// RegisterApp registers an app with the portal and appends it to the list.
func (s *Stores) RegisterApp(ctx context.Context, in api.AppInput) (api.App, error) {
	app, err := s.client.CreateApp(ctx, in)
	if err != nil {
		return api.App{}, s.fail(fmt.Sprintf("Could not register %q", in.Name), err)
	}
	s.Apps.Push(app)
	return app, nil
}

// DeleteApp deletes an app on the portal and removes it from the list.
func (s *Stores) DeleteApp(ctx context.Context, app api.App) error {
	if _, err := s.client.DeleteApp(ctx, app.ID); err != nil {
		return s.fail(fmt.Sprintf("Could not delete %q", app.Name), err)
	}
	s.Apps.Remove(app)
	return nil
}

// Verify confirms the account with a verification link and loads the
// verified user into the session. The cached profile is dropped so the next
// load sees the verified account.
func (s *Stores) Verify(ctx context.Context, verifyURL string) (auth.Session, error) {
	user, err := s.client.Verify(ctx, verifyURL)
	if err != nil {
		return s.Session.Get(), s.fail("Could not verify your account", err)
	}
	s.User.Invalidate()
	return s.Session.Load(ctx, user), nil
}

// DeleteAccount deletes the account on the portal and clears every store
// holding its data. Errors are kept.
func (s *Stores) DeleteAccount(ctx context.Context) error {
	if _, err := s.client.DeleteAccount(ctx); err != nil {
		return s.fail("Could not delete your account", err)
	}
	s.Session.Reset()
	s.User.Invalidate()
	s.Apps.Reset()
	return nil
}

// Providers lists the sign-in providers. Failures are not recorded in
// Errors since no session is involved.
func (s *Stores) Providers(ctx context.Context) ([]api.Provider, error) {
	return s.client.Providers(ctx)
}

// fail records a user-facing message in Errors and returns err wrapped
// with it.
func (s *Stores) fail(msg string, err error) error {
	s.logger.Warn("stores: operation failed", "message", msg, "error", err)
	s.Errors.Push(msg)
	return fmt.Errorf("%s: %w", msg, err)
}

// Snapshot is a point-in-time view of every store.
type Snapshot struct {
	User    *api.User    `json:"user"`
	Session auth.Session `json:"session"`
	Errors  []string     `json:"errors"`
	Apps    []api.App    `json:"apps"`
}

// Snapshot returns the current state without fetching. User is nil until
// the loader has a cached value.
func (s *Stores) Snapshot() Snapshot {
	snap := Snapshot{
		Session: s.Session.Get(),
		Errors:  s.Errors.Items(),
		Apps:    s.Apps.Items(),
	}
	if u, ok := s.User.Peek(); ok {
		snap.User = &u
	}
	return snap
}

// MarshalJSON encodes the snapshot of the stores.
func (s *Stores) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// Watch calls fn with a fresh snapshot whenever the session, the error list
// or the app list changes, starting with one immediate call per store. The
// returned function stops watching.
func (s *Stores) Watch(fn func(Snapshot)) (stop func()) {
	emit := func() { fn(s.Snapshot()) }

	stops := []func(){
		s.Session.Subscribe(func(auth.Session) { emit() }),
		s.Errors.Subscribe(func([]string) { emit() }),
		s.Apps.Subscribe(func([]api.App) { emit() }),
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}
