// Package hooks provides process-wide synchronous event dispatch for service
// lifecycle transitions. Publication is a blocking fan-out to every subscriber
// in registration order; a pre-action subscriber may deny the action through
// its payload, and the publisher checks the verdict only after the full
// fan-out completes.
package hooks

import (
	"log"
	"sync"
)

// Subscriber receives an event payload. Failures inside a subscriber are the
// subscriber's own responsibility; a panic is logged and dispatch continues.
type Subscriber[T any] func(payload T)

// Bus is an ordered list of subscribers for one event.
type Bus[T any] struct {
	mu   sync.RWMutex
	subs []Subscriber[T]
}

func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe appends fn to the dispatch order.
func (b *Bus[T]) Subscribe(fn Subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Dispatch runs every subscriber with the payload, in registration order.
// The subscriber list is copied first so a subscriber may safely subscribe
// during dispatch without affecting the current fan-out.
func (b *Bus[T]) Dispatch(payload T) {
	b.mu.RLock()
	subs := make([]Subscriber[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[HOOKS] panic in subscriber: %v", r)
				}
			}()
			fn(payload)
		}()
	}
}

// Count returns the number of subscribers.
func (b *Bus[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Clear removes all subscribers. Test helper.
func (b *Bus[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// IdentifyData is published after a connection authenticates.
type IdentifyData struct {
	Account string
	Nick    string
	Mask    string
}

// NickData is published when a nickname is grouped to or removed from an
// account.
type NickData struct {
	Account string
	Nick    string
}

// RegisterCheck is a pre-action payload: subscribers may deny a nickname
// registration or grouping before it takes effect. The publisher aborts the
// action, with no further side effects, when Denied reports true after the
// fan-out.
type RegisterCheck struct {
	Nick  string
	Email string

	mu     sync.Mutex
	denied bool
}

// Deny vetoes the pending action.
func (c *RegisterCheck) Deny() {
	c.mu.Lock()
	c.denied = true
	c.mu.Unlock()
}

// Denied reports whether any subscriber vetoed the action.
func (c *RegisterCheck) Denied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.denied
}

// Process-wide lifecycle buses.
var (
	Identify        = NewBus[*IdentifyData]()
	NickGroup       = NewBus[*NickData]()
	NickUngroup     = NewBus[*NickData]()
	NickCanRegister = NewBus[*RegisterCheck]()
)
