package observable

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Observer receives instrumentation events from a Container.
// Implementations must be safe for concurrent use.
type Observer interface {
	// Notified is called after a committed value was broadcast.
	Notified(container string, subscribers int)

	// Recovered is called when a subscriber panicked during delivery.
	Recovered(container string)
}

// subscriber is a registered callback.
//
// Until ready is set, only Subscribe delivers to it; afterwards only the
// broadcasting goroutine does. seen is the sequence number of the last
// value delivered, so a value is never delivered twice or out of order.
type subscriber[T any] struct {
	id     uint64
	fn     func(T)
	active atomic.Bool
	ready  atomic.Bool
	seen   atomic.Uint64
}

// commit is a value waiting to be broadcast.
type commit[T any] struct {
	value T
	seq   uint64
}

// Container is an observable value holder.
// The zero value is not usable; create containers with New.
type Container[T any] struct {
	name     string
	logger   *slog.Logger
	observer Observer

	// mu protects everything below.
	mu    sync.Mutex
	value T
	seq   uint64
	subs  []*subscriber[T]

	pending      []commit[T]
	broadcasting bool

	nextSubID uint64
}

// Option configures a Container.
type Option func(*options)

type options struct {
	name     string
	logger   *slog.Logger
	observer Observer
}

// WithName sets the name used in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger used to report recovered subscriber panics.
// If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver sets an instrumentation hook.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// New creates a container holding initial.
func New[T any](initial T, opts ...Option) *Container[T] {
	cfg := options{name: "container"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return &Container[T]{
		name:     cfg.name,
		logger:   cfg.logger,
		observer: cfg.observer,
		value:    initial,
	}
}

// Name returns the container name.
func (c *Container[T]) Name() string {
	return c.name
}

// Get returns the current value without subscribing.
func (c *Container[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Len returns the number of active subscribers.
func (c *Container[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Subscribe registers fn and calls it with the current value before
// returning. The returned function removes the subscription; calling it
// more than once is a no-op.
func (c *Container[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	c.nextSubID++
	sub := &subscriber[T]{id: c.nextSubID, fn: fn}
	sub.active.Store(true)
	c.subs = append(c.subs, sub)
	current, seq := c.value, c.seq
	c.mu.Unlock()

	// Catch up until no write slipped in between delivery and handoff.
	for {
		c.deliver(sub, current, seq)

		c.mu.Lock()
		if c.seq == seq {
			sub.ready.Store(true)
			c.mu.Unlock()
			break
		}
		current, seq = c.value, c.seq
		c.mu.Unlock()
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(sub) })
	}
}

// unsubscribe removes sub, keeping the order of the remaining subscribers.
func (c *Container[T]) unsubscribe(sub *subscriber[T]) {
	sub.active.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.subs {
		if existing.id == sub.id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Set replaces the value and notifies every subscriber.
func (c *Container[T]) Set(value T) {
	c.mu.Lock()
	c.commitLocked(value)
}

// Update replaces the value with fn(current) and notifies every subscriber.
// fn runs with the container locked and must not call back into it. If fn
// panics the value is unchanged, the lock is released and the panic
// propagates to the caller.
func (c *Container[T]) Update(fn func(T) T) {
	c.mu.Lock()
	c.commitLocked(c.applyLocked(fn))
}

// applyLocked returns fn(c.value), unlocking c.mu before re-panicking.
func (c *Container[T]) applyLocked(fn func(T) T) T {
	defer func() {
		if r := recover(); r != nil {
			c.mu.Unlock()
			panic(r)
		}
	}()
	return fn(c.value)
}

// commitLocked stores value, queues it for delivery and, unless another
// call is already broadcasting, drains the queue. Called with c.mu held;
// returns with it released.
func (c *Container[T]) commitLocked(value T) {
	c.seq++
	c.value = value
	c.pending = append(c.pending, commit[T]{value: value, seq: c.seq})
	if c.broadcasting {
		c.mu.Unlock()
		return
	}
	c.broadcasting = true

	for len(c.pending) > 0 {
		next := c.pending[0]
		c.pending[0] = commit[T]{}
		c.pending = c.pending[1:]

		subs := make([]*subscriber[T], len(c.subs))
		copy(subs, c.subs)
		c.mu.Unlock()

		delivered := 0
		for _, sub := range subs {
			if !sub.ready.Load() {
				continue
			}
			c.deliver(sub, next.value, next.seq)
			delivered++
		}
		if c.observer != nil {
			c.observer.Notified(c.name, delivered)
		}

		c.mu.Lock()
	}

	c.pending = nil
	c.broadcasting = false
	c.mu.Unlock()
}

// deliver calls the subscriber, recovering from panics so the remaining
// subscribers are still notified.
func (c *Container[T]) deliver(sub *subscriber[T], value T, seq uint64) {
	if !sub.active.Load() {
		return
	}
	if seq != 0 && seq <= sub.seen.Load() {
		return
	}
	sub.seen.Store(seq)

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("observable: subscriber panicked",
				"container", c.name,
				"subscriber", sub.id,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			if c.observer != nil {
				c.observer.Recovered(c.name)
			}
		}
	}()

	sub.fn(value)
}
