// Package collection provides List, an observable ordered collection whose
// entries are identified by a key.
//
// Every mutation builds a new slice and broadcasts it whole; snapshots
// handed to subscribers are never modified afterwards.
//
//	apps := collection.New(func(a api.App) int64 { return a.ID })
//	apps.Replace(fetched...)
//	apps.Remove(deleted) // removes every entry with deleted.ID
package collection

import (
	"github.com/vango-dev/appstate/pkg/observable"
)

// List is an ordered, identity-keyed collection built on an observable
// container.
type List[T any, K comparable] struct {
	key       func(T) K
	container *observable.Container[[]T]
}

// New creates an empty list whose entries are identified by key.
func New[T any, K comparable](key func(T) K, opts ...observable.Option) *List[T, K] {
	return &List[T, K]{
		key:       key,
		container: observable.New([]T{}, opts...),
	}
}

// NewComparable creates an empty list whose entries are their own key.
func NewComparable[T comparable](opts ...observable.Option) *List[T, T] {
	return New(func(v T) T { return v }, opts...)
}

// Subscribe registers fn and immediately calls it with the current entries.
func (l *List[T, K]) Subscribe(fn func([]T)) (unsubscribe func()) {
	return l.container.Subscribe(fn)
}

// Items returns the current entries.
func (l *List[T, K]) Items() []T {
	return l.container.Get()
}

// Len returns the number of entries.
func (l *List[T, K]) Len() int {
	return len(l.container.Get())
}

// Push appends item.
func (l *List[T, K]) Push(item T) {
	l.container.Update(func(items []T) []T {
		next := make([]T, 0, len(items)+1)
		next = append(next, items...)
		return append(next, item)
	})
}

// PushAll appends items, preserving their order.
func (l *List[T, K]) PushAll(items ...T) {
	l.container.Update(func(current []T) []T {
		next := make([]T, 0, len(current)+len(items))
		next = append(next, current...)
		return append(next, items...)
	})
}

// Remove deletes every entry whose key equals the key of item.
func (l *List[T, K]) Remove(item T) {
	l.RemoveKey(l.key(item))
}

// RemoveKey deletes every entry with key k.
func (l *List[T, K]) RemoveKey(k K) {
	l.container.Update(func(items []T) []T {
		next := make([]T, 0, len(items))
		for _, it := range items {
			if l.key(it) != k {
				next = append(next, it)
			}
		}
		return next
	})
}

// Replace swaps the whole list for items in a single write.
func (l *List[T, K]) Replace(items ...T) {
	next := make([]T, len(items))
	copy(next, items)
	l.container.Set(next)
}

// Reset empties the list.
func (l *List[T, K]) Reset() {
	l.container.Set([]T{})
}
