// SPDX-License-Identifier: BSD-3-Clause

// Package registry maps process names to refs. All state is owned by a
// single goroutine; every public method is a request sent over a channel
// and answered on a per-call reply channel, so callers never need their own
// locking.
package registry

import (
	"errors"

	"github.com/hamicek/noex-sub004/pkg/actor"
)

// ErrNotFound is returned by Lookup when name has no binding.
var ErrNotFound = errors.New("name not registered")

type registerRequest struct {
	name  string
	ref   actor.ProcessRef
	reply chan error
}

type unregisterRequest struct {
	name string
	done chan struct{}
}

type lookupRequest struct {
	name  string
	reply chan actor.ProcessRef
}

type namesRequest struct {
	reply chan []string
}

type countRequest struct {
	reply chan int
}

// Registry is a process-local name registry (§4.4). Use it as a
// actor.NameRegistry by passing it to actor.WithNameRegistry.
type Registry struct {
	register   chan registerRequest
	unregister chan unregisterRequest
	lookup     chan lookupRequest
	names      chan namesRequest
	count      chan countRequest
	stop       chan struct{}
}

// New starts the registry's owner goroutine and returns a ready Registry.
func New() *Registry {
	r := &Registry{
		register:   make(chan registerRequest),
		unregister: make(chan unregisterRequest),
		lookup:     make(chan lookupRequest),
		names:      make(chan namesRequest),
		count:      make(chan countRequest),
		stop:       make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Registry) run() {
	table := make(map[string]actor.ProcessRef)

	for {
		select {
		case req := <-r.register:
			if _, exists := table[req.name]; exists {
				req.reply <- actor.ErrAlreadyRegistered
				continue
			}
			table[req.name] = req.ref
			req.reply <- nil

		case req := <-r.unregister:
			delete(table, req.name)
			close(req.done)

		case req := <-r.lookup:
			req.reply <- table[req.name]

		case req := <-r.names:
			out := make([]string, 0, len(table))
			for name := range table {
				out = append(out, name)
			}
			req.reply <- out

		case req := <-r.count:
			req.reply <- len(table)

		case <-r.stop:
			return
		}
	}
}

// Close stops the registry's owner goroutine. The Registry must not be used
// afterwards.
func (r *Registry) Close() {
	close(r.stop)
}

// Register binds name to ref. It satisfies actor.NameRegistry.
func (r *Registry) Register(name string, ref actor.ProcessRef) error {
	reply := make(chan error, 1)
	r.register <- registerRequest{name: name, ref: ref, reply: reply}
	return <-reply
}

// Unregister removes name's binding, if any. It satisfies actor.NameRegistry.
func (r *Registry) Unregister(name string) {
	done := make(chan struct{})
	r.unregister <- unregisterRequest{name: name, done: done}
	<-done
}

// Whereis returns the ref bound to name and whether a binding exists.
func (r *Registry) Whereis(name string) (actor.ProcessRef, bool) {
	reply := make(chan actor.ProcessRef, 1)
	r.lookup <- lookupRequest{name: name, reply: reply}
	ref := <-reply
	return ref, !ref.IsZero()
}

// Lookup returns the ref bound to name, or ErrNotFound if none exists.
func (r *Registry) Lookup(name string) (actor.ProcessRef, error) {
	ref, ok := r.Whereis(name)
	if !ok {
		return actor.ProcessRef{}, ErrNotFound
	}
	return ref, nil
}

// IsRegistered reports whether name currently has a binding.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.Whereis(name)
	return ok
}

// Names returns a snapshot of all currently bound names.
func (r *Registry) Names() []string {
	reply := make(chan []string, 1)
	r.names <- namesRequest{reply: reply}
	return <-reply
}

// Count returns the number of currently bound names.
func (r *Registry) Count() int {
	reply := make(chan int, 1)
	r.count <- countRequest{reply: reply}
	return <-reply
}
