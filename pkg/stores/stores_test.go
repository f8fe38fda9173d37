package stores

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/appstate/pkg/api"
	"github.com/vango-dev/appstate/pkg/auth"
)

type fakePortal struct {
	mu         sync.Mutex
	user       api.User
	userCalls  int
	status     int
	session    auth.User
	apps       []api.App
	nextID     int64
	failDelete error
	failList   error

	verified    auth.User
	failVerify  error
	accountGone bool
	failAccount error
}

func (p *fakePortal) FetchSessionUser(context.Context) (int, auth.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.session, nil
}

func (p *fakePortal) FetchUser(context.Context) (api.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userCalls++
	return p.user, nil
}

func (p *fakePortal) ListApps(context.Context) ([]api.App, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failList != nil {
		return nil, p.failList
	}
	return append([]api.App(nil), p.apps...), nil
}

func (p *fakePortal) CreateApp(_ context.Context, in api.AppInput) (api.App, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	app := api.App{ID: p.nextID, Name: in.Name, Description: in.Description}
	p.apps = append(p.apps, app)
	return app, nil
}

func (p *fakePortal) DeleteApp(_ context.Context, id int64) (api.App, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDelete != nil {
		return api.App{}, p.failDelete
	}
	return api.App{ID: id}, nil
}

func (p *fakePortal) Verify(_ context.Context, verifyURL string) (auth.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failVerify != nil {
		return nil, p.failVerify
	}
	return p.verified, nil
}

func (p *fakePortal) DeleteAccount(context.Context) (api.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAccount != nil {
		return api.User{}, p.failAccount
	}
	p.accountGone = true
	return p.user, nil
}

func (p *fakePortal) Providers(context.Context) ([]api.Provider, error) {
	return []api.Provider{{ID: "github", Label: "GitHub"}}, nil
}

func TestNewLoadsSessionEagerly(t *testing.T) {
	p := &fakePortal{status: http.StatusOK, session: auth.User{"id": 1}}
	ctx := context.Background()

	s := New(ctx, Deps{Client: p})
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Session.Wait(waitCtx); err != nil {
		t.Fatal(err)
	}

	if got := s.Session.Get(); !got.Authenticated || !got.IsVerified {
		t.Errorf("session = %+v", got)
	}
}

func TestLazySession(t *testing.T) {
	p := &fakePortal{status: http.StatusOK, session: auth.User{"id": 1}}
	s := New(context.Background(), Deps{Client: p, Lazy: true})

	if s.Session.Get().State != auth.StateUnauthenticated {
		t.Errorf("lazy store should hold the sentinel, got %+v", s.Session.Get())
	}
}

func TestUserLoaderIsCached(t *testing.T) {
	p := &fakePortal{user: api.User{ID: 3, Name: "ada"}}
	s := New(context.Background(), Deps{Client: p, Lazy: true, SingleFlight: true})
	ctx := context.Background()

	s.User.Current(ctx)
	u, err := s.User.Current(ctx)
	if err != nil || u.Name != "ada" {
		t.Fatalf("Current() = %+v, %v", u, err)
	}
	if p.userCalls != 1 {
		t.Errorf("expected 1 fetch, got %d", p.userCalls)
	}

	s.User.Reload(ctx)
	if p.userCalls != 2 {
		t.Errorf("expected reload to fetch, got %d", p.userCalls)
	}
}

func TestAppOperations(t *testing.T) {
	p := &fakePortal{apps: []api.App{{ID: 1, Name: "bot"}}, nextID: 1}
	s := New(context.Background(), Deps{Client: p, Lazy: true})
	ctx := context.Background()

	var snapshots [][]api.App
	s.Apps.Subscribe(func(apps []api.App) { snapshots = append(snapshots, apps) })

	if err := s.RefreshApps(ctx); err != nil {
		t.Fatal(err)
	}
	created, err := s.RegisterApp(ctx, api.AppInput{Name: "etl"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteApp(ctx, api.App{ID: 1, Name: "bot"}); err != nil {
		t.Fatal(err)
	}

	if got := s.Apps.Items(); !reflect.DeepEqual(got, []api.App{created}) {
		t.Errorf("Apps = %+v, want [%+v]", got, created)
	}
	// initial, replace, push, remove
	if len(snapshots) != 4 {
		t.Errorf("expected 4 notifications, got %d", len(snapshots))
	}
	if len(snapshots) > 1 && !reflect.DeepEqual(snapshots[1], []api.App{{ID: 1, Name: "bot"}}) {
		t.Errorf("refresh published %+v", snapshots[1])
	}
	if s.Errors.Len() != 0 {
		t.Errorf("unexpected errors: %v", s.Errors.Items())
	}
}

func TestFailuresArePushedToErrors(t *testing.T) {
	boom := errors.New("boom")
	p := &fakePortal{failDelete: boom, failList: boom}
	s := New(context.Background(), Deps{Client: p, Lazy: true})
	ctx := context.Background()

	s.Apps.Push(api.App{ID: 7, Name: "keep"})

	err := s.DeleteApp(ctx, api.App{ID: 7, Name: "keep"})
	if !errors.Is(err, boom) {
		t.Fatalf("DeleteApp() = %v, want wrapped boom", err)
	}
	if s.Apps.Len() != 1 {
		t.Error("a failed delete must not remove the app locally")
	}

	if err := s.RefreshApps(ctx); !errors.Is(err, boom) {
		t.Fatalf("RefreshApps() = %v", err)
	}

	want := []string{`Could not delete "keep"`, "Could not load your apps"}
	if got := s.Errors.Items(); !reflect.DeepEqual(got, want) {
		t.Errorf("Errors = %v, want %v", got, want)
	}
}

func TestSnapshotJSON(t *testing.T) {
	p := &fakePortal{user: api.User{ID: 1, Name: "ada"}}
	s := New(context.Background(), Deps{Client: p, Lazy: true})

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"user":null,"session":{"authenticated":false},"errors":[],"apps":[]}`; string(b) != want {
		t.Errorf("snapshot = %s, want %s", b, want)
	}

	s.User.Current(context.Background())
	s.Errors.Push("bad")
	b, _ = json.Marshal(s)
	if !strings.Contains(string(b), `"user":{"id":1,"name":"ada"}`) || !strings.Contains(string(b), `"errors":["bad"]`) {
		t.Errorf("snapshot = %s", b)
	}
}

func TestWatch(t *testing.T) {
	p := &fakePortal{status: http.StatusUnauthorized}
	s := New(context.Background(), Deps{Client: p, Lazy: true})

	var got []Snapshot
	stop := s.Watch(func(snap Snapshot) { got = append(got, snap) })

	if len(got) != 3 {
		t.Fatalf("expected one immediate snapshot per store, got %d", len(got))
	}

	s.Errors.Push("bad")
	if last := got[len(got)-1]; !reflect.DeepEqual(last.Errors, []string{"bad"}) {
		t.Errorf("last snapshot errors = %v", last.Errors)
	}

	stop()
	s.Errors.Push("ignored")
	if len(got) != 4 {
		t.Errorf("expected no snapshots after stop, got %d total", len(got))
	}
}

func TestRefreshNeverPublishesEmptyList(t *testing.T) {
	p := &fakePortal{apps: []api.App{{ID: 1, Name: "bot"}}}
	s := New(context.Background(), Deps{Client: p, Lazy: true})
	ctx := context.Background()
	if err := s.RefreshApps(ctx); err != nil {
		t.Fatal(err)
	}

	var sizes []int
	s.Apps.Subscribe(func(apps []api.App) { sizes = append(sizes, len(apps)) })
	if err := s.RefreshApps(ctx); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(sizes, []int{1, 1}) {
		t.Errorf("subscriber saw list sizes %v, want [1 1]", sizes)
	}
}

func TestVerifyLoadsSession(t *testing.T) {
	p := &fakePortal{
		user:     api.User{ID: 1, Name: "ada"},
		verified: auth.User{"id": 1, "name": "ada", "is_verified": true},
	}
	s := New(context.Background(), Deps{Client: p, Lazy: true})
	ctx := context.Background()
	s.User.Current(ctx)

	sess, err := s.Verify(ctx, "https://portal/verify?token=t")
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Authenticated || !sess.IsVerified || sess.User["name"] != "ada" {
		t.Errorf("session = %+v", sess)
	}
	if got := s.Session.Get(); !reflect.DeepEqual(got, sess) {
		t.Errorf("store holds %+v, want %+v", got, sess)
	}
	if _, ok := s.User.Peek(); ok {
		t.Error("verify should drop the cached user")
	}
}

func TestVerifyFailure(t *testing.T) {
	boom := errors.New("expired")
	p := &fakePortal{failVerify: boom}
	s := New(context.Background(), Deps{Client: p, Lazy: true})

	sess, err := s.Verify(context.Background(), "https://portal/verify")
	if !errors.Is(err, boom) {
		t.Fatalf("Verify() = %v, want wrapped expired", err)
	}
	if sess.State != auth.StateUnauthenticated {
		t.Errorf("session = %+v", sess)
	}
	if got := s.Errors.Items(); !reflect.DeepEqual(got, []string{"Could not verify your account"}) {
		t.Errorf("Errors = %v", got)
	}
}

func TestDeleteAccountClearsStores(t *testing.T) {
	p := &fakePortal{
		user:    api.User{ID: 1, Name: "ada"},
		status:  http.StatusOK,
		session: auth.User{"id": 1},
		apps:    []api.App{{ID: 1, Name: "bot"}},
	}
	s := New(context.Background(), Deps{Client: p, Lazy: true})
	ctx := context.Background()
	s.Session.Reload(ctx)
	s.User.Current(ctx)
	if err := s.RefreshApps(ctx); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteAccount(ctx); err != nil {
		t.Fatal(err)
	}

	if !p.accountGone {
		t.Error("portal account was not deleted")
	}
	if s.Session.Get().State != auth.StateUnauthenticated {
		t.Errorf("session = %+v", s.Session.Get())
	}
	if _, ok := s.User.Peek(); ok {
		t.Error("cached user survived account deletion")
	}
	if s.Apps.Len() != 0 {
		t.Errorf("apps = %+v", s.Apps.Items())
	}
}

func TestDeleteAccountFailureKeepsState(t *testing.T) {
	boom := errors.New("boom")
	p := &fakePortal{status: http.StatusOK, session: auth.User{"id": 1}, failAccount: boom}
	s := New(context.Background(), Deps{Client: p, Lazy: true})
	ctx := context.Background()
	s.Session.Reload(ctx)
	s.Apps.Push(api.App{ID: 2})

	if err := s.DeleteAccount(ctx); !errors.Is(err, boom) {
		t.Fatalf("DeleteAccount() = %v", err)
	}
	if !s.Session.Get().Authenticated || s.Apps.Len() != 1 {
		t.Error("a failed delete must leave the stores untouched")
	}
	if got := s.Errors.Items(); !reflect.DeepEqual(got, []string{"Could not delete your account"}) {
		t.Errorf("Errors = %v", got)
	}
}

func TestProvidersPassThrough(t *testing.T) {
	s := New(context.Background(), Deps{Client: &fakePortal{}, Lazy: true})

	got, err := s.Providers(context.Background())
	if err != nil || len(got) != 1 || got[0].ID != "github" {
		t.Errorf("Providers() = %+v, %v", got, err)
	}
}
