// Package metrics exposes Prometheus collectors for the stores, the cached
// loader and the portal client.
//
// A *Metrics value implements observable.Observer, loader.Observer and
// api.Observer, so the same instance is handed to every component:
//
//	m := metrics.New(metrics.WithRegistry(reg))
//	client, _ := api.New(url, api.WithObserver(m))
//	users := loader.New(client.FetchUser, loader.WithObserver(m))
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/appstate/pkg/loader"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "appstate").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request and load durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "appstate",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors.
type Metrics struct {
	notificationsTotal *prometheus.CounterVec
	subscribers        *prometheus.GaugeVec
	subscriberPanics   *prometheus.CounterVec
	loadsTotal         *prometheus.CounterVec
	loadDuration       *prometheus.HistogramVec
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New(opts ...Option) *Metrics {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "store",
			Name:        "notifications_total",
			Help:        "Total number of values broadcast by a store",
			ConstLabels: cfg.ConstLabels,
		}, []string{"store"}),

		subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "store",
			Name:        "subscribers",
			Help:        "Subscribers reached by the last broadcast of a store",
			ConstLabels: cfg.ConstLabels,
		}, []string{"store"}),

		subscriberPanics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "store",
			Name:        "subscriber_panics_total",
			Help:        "Total number of recovered subscriber panics",
			ConstLabels: cfg.ConstLabels,
		}, []string{"store"}),

		loadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "loader",
			Name:        "loads_total",
			Help:        "Total number of loader calls by outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"loader", "outcome"}),

		loadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "loader",
			Name:        "load_duration_seconds",
			Help:        "Loader call duration in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"loader"}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "api",
			Name:        "requests_total",
			Help:        "Total number of portal requests by endpoint and status",
			ConstLabels: cfg.ConstLabels,
		}, []string{"endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "api",
			Name:        "request_duration_seconds",
			Help:        "Portal request duration in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"endpoint"}),
	}
}

// Notified implements observable.Observer.
func (m *Metrics) Notified(store string, subscribers int) {
	m.notificationsTotal.WithLabelValues(store).Inc()
	m.subscribers.WithLabelValues(store).Set(float64(subscribers))
}

// Recovered implements observable.Observer.
func (m *Metrics) Recovered(store string) {
	m.subscriberPanics.WithLabelValues(store).Inc()
}

// Loaded implements loader.Observer.
func (m *Metrics) Loaded(name string, outcome loader.Outcome, elapsed time.Duration) {
	m.loadsTotal.WithLabelValues(name, string(outcome)).Inc()
	m.loadDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// Request implements api.Observer. A zero status is recorded as "error".
func (m *Metrics) Request(endpoint string, status int, elapsed time.Duration) {
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(endpoint, label).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
