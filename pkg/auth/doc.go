// Package auth provides the authenticated session store.
//
// The store is an observable container holding a Session. It starts out as
// the Unauthenticated sentinel and moves between states as the signed-in
// user is fetched from the portal:
//
//	HTTP 200           → Authenticated (IsVerified derived from "nonce")
//	HTTP 401           → Unauthenticated
//	transport failure  → Unauthenticated
//	any other status   → Unknown
//
// Both Load and Reload derive the session flags from the fetched user, so
// "authenticated" and "isVerified" fields sent by the server are ignored.
//
// # Eager load
//
// New starts a first Load in the background. Subscribers registered before
// it completes see the sentinel first:
//
//	session := auth.New(ctx, client)
//	stop := session.Subscribe(func(s auth.Session) {
//	    if s.Authenticated && !s.IsVerified {
//	        showVerifyBanner()
//	    }
//	})
//	defer stop()
//
// Overlapping loads commit last-write-wins: a Reload does not cancel a
// fetch that is already in flight.
package auth
