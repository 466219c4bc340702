// SPDX-License-Identifier: BSD-3-Clause

package actor

import "sync"

// EventKind enumerates the lifecycle events a process emits over its life.
type EventKind string

const (
	EventStarted         EventKind = "started"
	EventCrashed         EventKind = "crashed"
	EventRestarted       EventKind = "restarted"
	EventTerminated      EventKind = "terminated"
	EventStatePersisted  EventKind = "state_persisted"
	EventStateRestored   EventKind = "state_restored"
	EventPersistenceErr  EventKind = "persistence_error"
	EventProcessDown     EventKind = "process_down"
)

// Event is broadcast on the process-wide lifecycle bus. Fields not relevant
// to Kind are left zero.
type Event struct {
	Kind    EventKind
	Ref     ProcessRef
	Reason  error
	Attempt int // set on EventRestarted
}

// EventHandler observes lifecycle events. Handlers run in subscription
// order for a given event, but delivery across distinct events is
// independent — do not assume a global order across subscribers.
type EventHandler func(Event)

// LifecycleBus is a single-producer, many-subscriber broadcast of process
// lifecycle events. Handlers run synchronously on the publishing goroutine,
// in subscription order, so a slow handler delays the publisher until it
// returns; a panicking handler is recovered and does not affect the process
// or other subscribers.
type LifecycleBus struct {
	mu   sync.Mutex
	subs []EventHandler
}

// NewLifecycleBus returns an empty bus.
func NewLifecycleBus() *LifecycleBus {
	return &LifecycleBus{}
}

// Subscribe registers handler and returns an unsubscribe function.
func (b *LifecycleBus) Subscribe(handler EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := len(b.subs)
	b.subs = append(b.subs, handler)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.subs) {
			b.subs[idx] = nil
		}
	}
}

// Publish fans out ev to every live subscriber, in subscription order.
func (b *LifecycleBus) Publish(ev Event) {
	b.mu.Lock()
	handlers := make([]EventHandler, len(b.subs))
	copy(handlers, b.subs)
	b.mu.Unlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			h(ev)
		}()
	}
}
