// SPDX-License-Identifier: BSD-3-Clause

package distribution

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
)

// ErrGlobalNotFound is returned by Lookup when name has no global binding.
var ErrGlobalNotFound = errors.New("distribution: global name not registered")

// globalEntry is the registry's internal record; RegisteredAt drives
// conflict resolution (§4.7: earlier registeredAt wins, then higher
// priority, then lexicographically lesser ownerNode).
type globalEntry struct {
	name         string
	ref          actor.ProcessRef
	registeredAt time.Time
	priority     int
	ownerNode    cluster.NodeID
}

func (e globalEntry) winsOver(o globalEntry) bool {
	if !e.registeredAt.Equal(o.registeredAt) {
		return e.registeredAt.Before(o.registeredAt)
	}
	if e.priority != o.priority {
		return e.priority > o.priority
	}
	return e.ownerNode < o.ownerNode
}

// GlobalRegistry is a node-local cache of cluster-wide name bindings. A
// mutation is broadcast immediately as a dedicated global_register/
// global_unregister frame, and re-announced on every heartbeat's
// globalRegistryDelta as an anti-entropy backstop (see MergeDelta) —
// see DESIGN.md for why pkg/cluster stays agnostic of this package's
// payload shape either way.
type GlobalRegistry struct {
	localNode cluster.NodeID
	broadcast func(frame cluster.Frame)

	mu    sync.RWMutex
	table map[string]globalEntry

	onRegistered   []func(name string, ref actor.ProcessRef)
	onUnregistered []func(name string)
	onConflict     []func(name string, winner, loser cluster.NodeID)
	onSynced       []func()
}

// NewGlobalRegistry creates a registry for localNode, whose Broadcast hook
// is invoked to fan a frame out to every connected peer.
func NewGlobalRegistry(localNode cluster.NodeID, broadcast func(frame cluster.Frame)) *GlobalRegistry {
	return &GlobalRegistry{
		localNode: localNode,
		broadcast: broadcast,
		table:     make(map[string]globalEntry),
	}
}

// OnRegistered/OnUnregistered/OnConflictResolved register event observers
// (§4.7's `on(registered|unregistered|conflictResolved|synced)`).
func (g *GlobalRegistry) OnRegistered(fn func(name string, ref actor.ProcessRef)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onRegistered = append(g.onRegistered, fn)
}

func (g *GlobalRegistry) OnUnregistered(fn func(name string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onUnregistered = append(g.onUnregistered, fn)
}

func (g *GlobalRegistry) OnConflictResolved(fn func(name string, winner, loser cluster.NodeID)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onConflict = append(g.onConflict, fn)
}

// OnSynced registers an observer fired each time an incoming gossip merge
// (a heartbeat's globalRegistryDelta, see MergeDelta) completes.
func (g *GlobalRegistry) OnSynced(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onSynced = append(g.onSynced, fn)
}

// Register claims name locally and broadcasts the binding; it does not wait
// for peer acknowledgement — conflicts are resolved asynchronously as
// global_register frames cross in flight (§4.7).
func (g *GlobalRegistry) Register(name string, ref actor.ProcessRef, priority int) error {
	entry := globalEntry{name: name, ref: ref, registeredAt: time.Now(), priority: priority, ownerNode: g.localNode}

	g.mu.Lock()
	g.table[name] = entry
	g.mu.Unlock()
	g.fireRegistered(name, ref)

	g.broadcast(cluster.Frame{
		Type: cluster.FrameGlobalRegister,
		Body: encodeBody(globalRegisterBody{
			Name: name, Ref: ref, RegisteredAt: entry.registeredAt.UnixNano(),
			Priority: priority, OwnerNode: string(g.localNode),
		}),
	})
	return nil
}

// Unregister removes name locally and broadcasts the removal.
func (g *GlobalRegistry) Unregister(name string) {
	g.mu.Lock()
	delete(g.table, name)
	g.mu.Unlock()
	g.fireUnregistered(name)

	g.broadcast(cluster.Frame{
		Type: cluster.FrameGlobalUnregister,
		Body: encodeBody(globalUnregisterBody{Name: name, OwnerNode: string(g.localNode)}),
	})
}

// Lookup returns the ref bound to name, or ErrGlobalNotFound.
func (g *GlobalRegistry) Lookup(name string) (actor.ProcessRef, error) {
	ref, ok := g.Whereis(name)
	if !ok {
		return actor.ProcessRef{}, fmt.Errorf("%w: %s", ErrGlobalNotFound, name)
	}
	return ref, nil
}

func (g *GlobalRegistry) Whereis(name string) (actor.ProcessRef, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.table[name]
	if !ok {
		return actor.ProcessRef{}, false
	}
	return e.ref, true
}

func (g *GlobalRegistry) GetNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.table))
	for name := range g.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *GlobalRegistry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.table)
}

// GetEntriesForNode returns every name currently owned by node.
func (g *GlobalRegistry) GetEntriesForNode(node cluster.NodeID) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var names []string
	for name, e := range g.table {
		if e.ownerNode == node {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the entries this node owns, in the wire shape cluster
// gossips as a heartbeat's globalRegistryDelta. Used as the node's
// cluster.GlobalRegistryProvider — each node re-announces only what it
// owns, so peers reconverge even if a direct global_register broadcast was
// dropped in flight.
func (g *GlobalRegistry) Snapshot() []cluster.GlobalEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]cluster.GlobalEntry, 0, len(g.table))
	for _, e := range g.table {
		if e.ownerNode != g.localNode {
			continue
		}
		out = append(out, cluster.GlobalEntry{
			Name:         e.name,
			Ref:          e.ref,
			RegisteredAt: e.registeredAt,
			Priority:     e.priority,
			OwnerNode:    e.ownerNode,
		})
	}
	return out
}

// decodeGossipedRef recovers an actor.ProcessRef from a cluster.GlobalEntry's
// Ref field. cluster.GlobalEntry keeps Ref untyped (any) to stay agnostic of
// this package's types; a same-process Snapshot call carries the concrete
// type straight through, but one that crossed the wire arrives already
// JSON-decoded into a map, so it is re-encoded and decoded into the real type.
func decodeGossipedRef(v any) (actor.ProcessRef, bool) {
	if ref, ok := v.(actor.ProcessRef); ok {
		return ref, true
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return actor.ProcessRef{}, false
	}
	var ref actor.ProcessRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return actor.ProcessRef{}, false
	}
	return ref, true
}

// MergeDelta applies a peer's heartbeat globalRegistryDelta, resolving
// conflicts the same way a direct global_register frame would, then fires
// synced once for the whole batch (§4.7: "merge global-registry entries").
func (g *GlobalRegistry) MergeDelta(entries []cluster.GlobalEntry) {
	for _, e := range entries {
		if e.OwnerNode == g.localNode {
			continue
		}
		ref, ok := decodeGossipedRef(e.Ref)
		if !ok {
			continue
		}
		g.handleGlobalRegister(globalRegisterBody{
			Name:         e.Name,
			Ref:          ref,
			RegisteredAt: e.RegisteredAt.UnixNano(),
			Priority:     e.Priority,
			OwnerNode:    string(e.OwnerNode),
		})
	}
	g.fireSynced()
}

// handleGlobalRegister applies an incoming global_register frame, resolving
// any conflict against an existing local entry for the same name.
func (g *GlobalRegistry) handleGlobalRegister(body globalRegisterBody) {
	incoming := globalEntry{
		name:         body.Name,
		ref:          body.Ref,
		registeredAt: time.Unix(0, body.RegisteredAt),
		priority:     body.Priority,
		ownerNode:    cluster.NodeID(body.OwnerNode),
	}

	g.mu.Lock()
	existing, conflict := g.table[body.Name]
	if conflict && existing.ownerNode != incoming.ownerNode {
		if existing.winsOver(incoming) {
			g.mu.Unlock()
			g.fireConflict(body.Name, existing.ownerNode, incoming.ownerNode)
			return
		}
	}
	g.table[body.Name] = incoming
	g.mu.Unlock()

	if conflict && existing.ownerNode != incoming.ownerNode {
		g.fireConflict(body.Name, incoming.ownerNode, existing.ownerNode)
	}
	g.fireRegistered(body.Name, incoming.ref)
}

func (g *GlobalRegistry) handleGlobalUnregister(body globalUnregisterBody) {
	g.mu.Lock()
	e, ok := g.table[body.Name]
	if ok && e.ownerNode == cluster.NodeID(body.OwnerNode) {
		delete(g.table, body.Name)
	} else {
		ok = false
	}
	g.mu.Unlock()
	if ok {
		g.fireUnregistered(body.Name)
	}
}

// handleNodeLost removes every entry owned by a node that cluster reported
// down, emitting unregistered for each; no separate node-lost event is
// fired.
func (g *GlobalRegistry) handleNodeLost(node cluster.NodeID) {
	g.mu.Lock()
	var lost []string
	for name, e := range g.table {
		if e.ownerNode == node {
			lost = append(lost, name)
			delete(g.table, name)
		}
	}
	g.mu.Unlock()
	for _, name := range lost {
		g.fireUnregistered(name)
	}
}

func (g *GlobalRegistry) fireRegistered(name string, ref actor.ProcessRef) {
	g.mu.RLock()
	handlers := append([]func(string, actor.ProcessRef){}, g.onRegistered...)
	g.mu.RUnlock()
	for _, fn := range handlers {
		go fn(name, ref)
	}
}

func (g *GlobalRegistry) fireUnregistered(name string) {
	g.mu.RLock()
	handlers := append([]func(string){}, g.onUnregistered...)
	g.mu.RUnlock()
	for _, fn := range handlers {
		go fn(name)
	}
}

func (g *GlobalRegistry) fireConflict(name string, winner, loser cluster.NodeID) {
	g.mu.RLock()
	handlers := append([]func(string, cluster.NodeID, cluster.NodeID){}, g.onConflict...)
	g.mu.RUnlock()
	for _, fn := range handlers {
		go fn(name, winner, loser)
	}
}

func (g *GlobalRegistry) fireSynced() {
	g.mu.RLock()
	handlers := append([]func(){}, g.onSynced...)
	g.mu.RUnlock()
	for _, fn := range handlers {
		go fn()
	}
}
