package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type stubFetcher struct {
	mu     sync.Mutex
	status int
	user   User
	err    error
	calls  int
}

func (f *stubFetcher) FetchSessionUser(context.Context) (int, User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.status, f.user, f.err
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestInitialStateIsSentinel(t *testing.T) {
	s := NewLazy(&stubFetcher{})

	if got := mustJSON(t, s.Get()); got != `{"authenticated":false}` {
		t.Errorf("initial session = %s", got)
	}
}

func TestEagerLoadScenario(t *testing.T) {
	f := &stubFetcher{status: http.StatusOK, user: User{"id": 1}}
	ctx := context.Background()

	s := New(ctx, f)
	var mu sync.Mutex
	var seen []string
	s.Subscribe(func(sess Session) {
		b, _ := json.Marshal(sess)
		mu.Lock()
		seen = append(seen, string(b))
		mu.Unlock()
	})

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Wait(waitCtx); err != nil {
		t.Fatalf("Wait() = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	last := seen[len(seen)-1]
	if last != `{"authenticated":true,"id":1,"isVerified":true}` {
		t.Errorf("subscriber observed %s", last)
	}
	if len(seen) == 2 && seen[0] != `{"authenticated":false}` {
		t.Errorf("first observed value = %s, want sentinel", seen[0])
	}
}

func TestLoadStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		fetcher   *stubFetcher
		wantJSON  string
		wantState State
	}{
		{
			name:      "200 verified",
			fetcher:   &stubFetcher{status: http.StatusOK, user: User{"id": 7, "name": "ada"}},
			wantJSON:  `{"authenticated":true,"id":7,"isVerified":true,"name":"ada"}`,
			wantState: StateAuthenticated,
		},
		{
			name:      "200 with nonce is unverified",
			fetcher:   &stubFetcher{status: http.StatusOK, user: User{"id": 7, "nonce": "abc"}},
			wantJSON:  `{"authenticated":true,"id":7,"isVerified":false,"nonce":"abc"}`,
			wantState: StateAuthenticated,
		},
		{
			name:      "401",
			fetcher:   &stubFetcher{status: http.StatusUnauthorized, user: User{"id": 7}},
			wantJSON:  `{"authenticated":false}`,
			wantState: StateUnauthenticated,
		},
		{
			name:      "transport failure",
			fetcher:   &stubFetcher{err: errors.New("connection refused")},
			wantJSON:  `{"authenticated":false}`,
			wantState: StateUnauthenticated,
		},
		{
			name:      "unexpected status",
			fetcher:   &stubFetcher{status: http.StatusInternalServerError},
			wantJSON:  `{"authenticated":false,"unknown":true}`,
			wantState: StateUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewLazy(tt.fetcher)
			got := s.Load(context.Background(), nil)

			if got.State != tt.wantState {
				t.Errorf("State = %v, want %v", got.State, tt.wantState)
			}
			if j := mustJSON(t, s.Get()); j != tt.wantJSON {
				t.Errorf("session = %s, want %s", j, tt.wantJSON)
			}
		})
	}
}

func TestLoadOverridesPayloadFlags(t *testing.T) {
	f := &stubFetcher{status: http.StatusOK, user: User{
		"id":            1,
		"nonce":         "n",
		"authenticated": false,
		"isVerified":    true,
	}}
	s := NewLazy(f)

	got := s.Load(context.Background(), nil)
	if !got.Authenticated || got.IsVerified {
		t.Errorf("flags = authenticated:%v isVerified:%v, want true/false", got.Authenticated, got.IsVerified)
	}
}

func TestLoadWithSuppliedUserSkipsFetch(t *testing.T) {
	f := &stubFetcher{status: http.StatusUnauthorized}
	s := NewLazy(f)

	got := s.Load(context.Background(), User{"id": 3})
	if f.calls != 0 {
		t.Errorf("expected no fetch, got %d", f.calls)
	}
	if !got.Authenticated || !got.IsVerified {
		t.Errorf("session = %+v", got)
	}
}

func TestReloadDerivesFlags(t *testing.T) {
	f := &stubFetcher{status: http.StatusOK, user: User{"id": 1, "nonce": "n"}}
	s := NewLazy(f)
	ctx := context.Background()

	s.Load(ctx, nil)

	f.mu.Lock()
	f.user = User{"id": 1}
	f.mu.Unlock()

	got := s.Reload(ctx)
	if !got.Authenticated || !got.IsVerified {
		t.Errorf("after reload: %+v", got)
	}
	if f.calls != 2 {
		t.Errorf("expected 2 fetches, got %d", f.calls)
	}
}

func TestReloadToUnauthenticated(t *testing.T) {
	f := &stubFetcher{status: http.StatusOK, user: User{"id": 1}}
	s := NewLazy(f)
	ctx := context.Background()

	s.Load(ctx, nil)
	f.mu.Lock()
	f.status = http.StatusUnauthorized
	f.mu.Unlock()

	var last Session
	s.Subscribe(func(sess Session) { last = sess })
	s.Reload(ctx)

	if last.State != StateUnauthenticated || last.User != nil {
		t.Errorf("subscriber saw %+v, want sentinel", last)
	}
}

func TestResetReturnsToSentinel(t *testing.T) {
	f := &stubFetcher{}
	s := NewLazy(f)
	s.Load(context.Background(), User{"id": 1})

	var seen []string
	s.Subscribe(func(sess Session) { seen = append(seen, mustJSON(t, sess)) })
	s.Reset()

	if len(seen) != 2 || seen[1] != `{"authenticated":false}` {
		t.Errorf("subscriber saw %v", seen)
	}
	if f.calls != 0 {
		t.Errorf("Reset fetched %d times", f.calls)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	s := NewLazy(&stubFetcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}

func TestHasNonce(t *testing.T) {
	tests := []struct {
		name string
		user User
		want bool
	}{
		{"absent", User{}, false},
		{"nil", User{"nonce": nil}, false},
		{"empty string", User{"nonce": ""}, false},
		{"string", User{"nonce": "abc"}, true},
		{"number", User{"nonce": 5}, true},
		{"decoded number", User{"nonce": float64(3)}, true},
		{"zero", User{"nonce": 0}, false},
		{"decoded zero", User{"nonce": float64(0)}, false},
		{"false", User{"nonce": false}, false},
		{"true", User{"nonce": true}, true},
		{"object", User{"nonce": map[string]any{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasNonce(tt.user); got != tt.want {
				t.Errorf("hasNonce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if StateUnknown.String() != "unknown" || State(42).String() != "invalid" {
		t.Error("unexpected State strings")
	}
}
