package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Portal Errors (E101-E119)
	// ============================================

	"E101": {
		Category:   CategoryTransport,
		Message:    "Portal request failed",
		Detail:     "The request did not receive a response from the portal.",
		Suggestion: "check that the portal is running and the base URL is reachable",
	},
	"E102": {
		Category: CategoryDecode,
		Message:  "Invalid response body",
		Detail:   "The portal response could not be decoded as JSON.",
	},
	"E103": {
		Category:   CategoryStatus,
		Message:    "Unexpected response status",
		Detail:     "The portal answered with a status the client does not handle.",
		Suggestion: "check that the portal URL points at the API server",
	},
	"E104": {
		Category: CategoryStatus,
		Message:  "Not signed in",
		Detail:   "The portal rejected the request because there is no authenticated session.",
	},

	// ============================================
	// Config Errors (E201-E219)
	// ============================================

	"E201": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "A configuration value is missing or out of range.",
	},
	"E202": {
		Category:   CategoryConfig,
		Message:    "Configuration file unreadable",
		Detail:     "appstate.json exists but could not be read or parsed.",
		Suggestion: "fix the JSON syntax or remove the file to use defaults",
	},

	// ============================================
	// CLI Errors (E301-E319)
	// ============================================

	"E301": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
		Detail:   "A command argument could not be parsed.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
