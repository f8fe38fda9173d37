package auth

import (
	"encoding/json"
	"math"
)

// State is the logical state of a Session.
type State int

const (
	// StateUnauthenticated is the sentinel state: no signed-in user.
	StateUnauthenticated State = iota

	// StateAuthenticated means a user profile was loaded.
	StateAuthenticated

	// StateUnknown means the portal answered with a status that is neither
	// 200 nor 401.
	StateUnknown
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Field names with special meaning in a user profile.
const (
	FieldNonce         = "nonce"
	FieldAuthenticated = "authenticated"
	FieldIsVerified    = "isVerified"
)

// User is a user profile as returned by the portal. It is kept as a JSON
// object so fields the portal adds are passed through untouched.
type User map[string]any

// Session is the value held by the session store.
type Session struct {
	// User holds the profile fields. Nil unless State is StateAuthenticated.
	User User

	Authenticated bool
	IsVerified    bool
	State         State

	// Status is the HTTP status that produced a StateUnknown session.
	Status int
}

// Unauthenticated is the sentinel session.
var Unauthenticated = Session{State: StateUnauthenticated}

// Unknown returns the session for an unexpected HTTP status.
func Unknown(status int) Session {
	return Session{State: StateUnknown, Status: status}
}

// Derive builds an authenticated session from user. The authenticated and
// isVerified flags are computed, never copied from the profile; the user is
// verified unless it carries a truthy nonce.
func Derive(user User) Session {
	fields := make(User, len(user))
	for k, v := range user {
		if k == FieldAuthenticated || k == FieldIsVerified {
			continue
		}
		fields[k] = v
	}

	return Session{
		User:          fields,
		Authenticated: true,
		IsVerified:    !hasNonce(user),
		State:         StateAuthenticated,
	}
}

// hasNonce reports whether the profile carries a truthy nonce. nil, false,
// numeric zero and the empty string count as absent.
func hasNonce(user User) bool {
	switch v := user[FieldNonce].(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case float32:
		return v != 0 && !math.IsNaN(float64(v))
	case int:
		return v != 0
	case int64:
		return v != 0
	case int32:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err != nil || (f != 0 && !math.IsNaN(f))
	default:
		return true
	}
}

// MarshalJSON renders the session the way the browser store exposes it:
// the sentinel is exactly {"authenticated":false}; an authenticated session
// is the profile plus the derived flags.
func (s Session) MarshalJSON() ([]byte, error) {
	switch s.State {
	case StateAuthenticated:
		out := make(map[string]any, len(s.User)+2)
		for k, v := range s.User {
			out[k] = v
		}
		out[FieldAuthenticated] = s.Authenticated
		out[FieldIsVerified] = s.IsVerified
		return json.Marshal(out)
	case StateUnknown:
		return json.Marshal(map[string]any{
			FieldAuthenticated: false,
			"unknown":          true,
		})
	default:
		return json.Marshal(map[string]any{FieldAuthenticated: false})
	}
}
