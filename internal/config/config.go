package config

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/appstate/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "appstate.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "APPSTATE_"

	// DefaultBaseURL is the default portal URL.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultTimeout is the default portal request timeout.
	DefaultTimeout = "10s"

	// DefaultListen is the default inspector address.
	DefaultListen = "localhost:7070"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "appstate"

	// DefaultSessionCookieName is the portal's session cookie name.
	DefaultSessionCookieName = "session"
)

// Config represents the complete appstate.json configuration.
type Config struct {
	// Portal configures the portal API client.
	Portal PortalConfig `json:"portal,omitempty"`

	// Log configures the slog handler.
	Log LogConfig `json:"log,omitempty"`

	// Loader configures the cached user loader.
	Loader LoaderConfig `json:"loader,omitempty"`

	// Inspect configures the inspector server.
	Inspect InspectConfig `json:"inspect,omitempty"`

	// Metrics configures the Prometheus collectors.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// PortalConfig contains the portal connection settings.
type PortalConfig struct {
	// BaseURL is the portal root, e.g. "https://portal.example.com".
	BaseURL string `json:"baseURL,omitempty"`

	// Timeout is the per-request timeout (e.g., "10s").
	Timeout string `json:"timeout,omitempty"`

	// SessionCookie is the value of the portal session cookie. Empty means
	// signed out.
	SessionCookie string `json:"sessionCookie,omitempty"`

	// SessionCookieName is the portal session cookie name. Default: "session".
	SessionCookieName string `json:"sessionCookieName,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// LoaderConfig contains cached loader settings.
type LoaderConfig struct {
	// SingleFlight coalesces concurrent loads.
	SingleFlight bool `json:"singleFlight,omitempty"`

	// UserMaxAge expires the cached user (e.g., "5m"). Empty never expires.
	UserMaxAge string `json:"userMaxAge,omitempty"`
}

// InspectConfig contains inspector server settings.
type InspectConfig struct {
	// Listen is the address the inspector binds to.
	Listen string `json:"listen,omitempty"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:           DefaultBaseURL,
			Timeout:           DefaultTimeout,
			SessionCookieName: DefaultSessionCookieName,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Inspect: InspectConfig{
			Listen: DefaultListen,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
	}
}

// Load reads configuration from the specified directory. A missing
// appstate.json is not an error; defaults are used instead.
func Load(dir string) (*Config, error) {
	if !Exists(dir) {
		return New(), nil
	}
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E202").
			WithDetail("Could not read " + path).
			Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E202").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E202").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E202").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = DefaultBaseURL
	}
	if c.Portal.Timeout == "" {
		c.Portal.Timeout = DefaultTimeout
	}
	if c.Portal.SessionCookieName == "" {
		c.Portal.SessionCookieName = DefaultSessionCookieName
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Inspect.Listen == "" {
		c.Inspect.Listen = DefaultListen
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}

// ApplyEnv overrides fields from APPSTATE_* variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("PORTAL_URL", &c.Portal.BaseURL)
	str("PORTAL_TIMEOUT", &c.Portal.Timeout)
	str("SESSION_COOKIE", &c.Portal.SessionCookie)
	str("SESSION_COOKIE_NAME", &c.Portal.SessionCookieName)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("USER_MAX_AGE", &c.Loader.UserMaxAge)
	str("INSPECT_LISTEN", &c.Inspect.Listen)
	str("METRICS_NAMESPACE", &c.Metrics.Namespace)

	if v, ok := lookup(EnvPrefix + "SINGLE_FLIGHT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("E201").
				WithDetail(EnvPrefix + "SINGLE_FLIGHT must be a boolean, got " + strconv.Quote(v))
		}
		c.Loader.SingleFlight = b
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Portal.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("E201").
			WithDetail("portal.baseURL must be an absolute http(s) URL, got " + strconv.Quote(c.Portal.BaseURL))
	}
	if d, err := time.ParseDuration(c.Portal.Timeout); err != nil || d <= 0 {
		return errors.New("E201").
			WithDetail("portal.timeout must be a positive duration, got " + strconv.Quote(c.Portal.Timeout))
	}
	if strings.ContainsAny(c.Portal.SessionCookieName, " \t;=,") || c.Portal.SessionCookieName == "" {
		return errors.New("E201").
			WithDetail("portal.sessionCookieName must be a cookie token, got " + strconv.Quote(c.Portal.SessionCookieName))
	}
	if c.Loader.UserMaxAge != "" {
		if d, err := time.ParseDuration(c.Loader.UserMaxAge); err != nil || d < 0 {
			return errors.New("E201").
				WithDetail("loader.userMaxAge must be a non-negative duration, got " + strconv.Quote(c.Loader.UserMaxAge))
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E201").
			WithDetail(`log.format must be "text" or "json", got ` + strconv.Quote(c.Log.Format))
	}
	if c.Inspect.Listen == "" {
		return errors.New("E201").WithDetail("inspect.listen must not be empty")
	}
	return nil
}

// Timeout returns the parsed portal timeout, falling back to the default.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.Portal.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}

// UserMaxAge returns the parsed loader max age. Zero means never expire.
func (c *Config) UserMaxAge() time.Duration {
	d, err := time.ParseDuration(c.Loader.UserMaxAge)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	l, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, errors.New("E201").
			WithDetail("log.level must be debug, info, warn or error, got " + strconv.Quote(s))
	}
	return l, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the directory containing
// appstate.json.
func FindProjectRoot(startDir string) (string, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}

	for {
		if Exists(dir) {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the nearest appstate.json at
// or above the working directory, then applies environment overrides.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg := New()
	if root, ok := FindProjectRoot(wd); ok {
		if cfg, err = Load(root); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}
