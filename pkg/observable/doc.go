// Package observable provides Container, a value holder that pushes every
// write to its subscribers.
//
// A container is created once with an initial value and mutated only
// through Set and Update. Subscribing delivers the current value
// immediately, so a subscriber never misses the state it started from:
//
//	errs := observable.New([]string{})
//	stop := errs.Subscribe(func(msgs []string) {
//	    render(msgs)
//	})
//	defer stop()
//
//	errs.Update(func(msgs []string) []string {
//	    return append(slices.Clone(msgs), "bad")
//	})
//
// # Delivery
//
// Callbacks run on the goroutine that performed the write, in
// subscription order. Writes are never batched or deduplicated: setting an
// unchanged value still notifies.
//
// A write made from inside a callback is queued and delivered once the
// broadcast in progress has reached every subscriber, so all subscribers
// observe values in the order they were committed. The same applies to
// writes from other goroutines that race with a broadcast: the goroutine
// already broadcasting delivers them.
//
// A callback that panics is recovered and logged, and the remaining
// subscribers are still notified.
package observable
