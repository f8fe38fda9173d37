// Package config provides configuration parsing for appstate.
//
// The configuration is stored in appstate.json, found by walking up from the
// working directory. A missing file is not an error: every field has a
// default. Values are resolved in order: defaults, appstate.json, APPSTATE_*
// environment variables, then command-line flags.
//
// # Configuration File Structure
//
//	{
//	  "portal": {
//	    "baseURL": "https://portal.example.com",
//	    "timeout": "10s",
//	    "sessionCookie": "<value of the portal session cookie>",
//	    "sessionCookieName": "session"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "loader": {
//	    "singleFlight": true,
//	    "userMaxAge": "5m"
//	  },
//	  "inspect": {
//	    "listen": "localhost:7070"
//	  },
//	  "metrics": {
//	    "namespace": "appstate"
//	  }
//	}
//
// # Environment Overrides
//
//	APPSTATE_PORTAL_URL          portal.baseURL
//	APPSTATE_PORTAL_TIMEOUT      portal.timeout
//	APPSTATE_SESSION_COOKIE      portal.sessionCookie
//	APPSTATE_SESSION_COOKIE_NAME portal.sessionCookieName
//	APPSTATE_LOG_LEVEL           log.level
//	APPSTATE_LOG_FORMAT          log.format
//	APPSTATE_SINGLE_FLIGHT       loader.singleFlight
//	APPSTATE_USER_MAX_AGE        loader.userMaxAge
//	APPSTATE_INSPECT_LISTEN      inspect.listen
//	APPSTATE_METRICS_NAMESPACE   metrics.namespace
package config
