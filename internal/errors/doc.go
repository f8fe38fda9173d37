// Package errors provides coded, structured errors for appstate.
//
// Every error carries a code from the registry (e.g. "E101") that maps to
// a category, a short message and a longer explanation. Errors wrap their
// cause, so errors.Is and errors.As see through them.
//
// # Error Categories
//
//   - transport: the portal could not be reached
//   - decode: a response body was not the expected JSON
//   - status: the portal answered with an unexpected HTTP status
//   - config: appstate.json or the environment is invalid
//   - cli: command-line usage errors
//
// # Usage
//
//	err := errors.New("E103").
//	    WithStatus(resp.StatusCode).
//	    WithDetail("GET /api/user")
//
//	errors.PrintError(err)
//	// ERROR E103: Unexpected response status
//	//
//	//   GET /api/user
//	//
//	//   Hint: check that the portal URL points at the API server
package errors
