// SPDX-License-Identifier: BSD-3-Clause

// Package runtime assembles one node of the actor runtime: an embedded NATS
// broker for IPC, an actor.Kernel, an event bus, cluster membership, cross-
// node routing, and (optionally) a distributed supervision tree, all
// started together and supervised as OS-level goroutines.
//
// It is the one place a host application wires configuration into a
// running instance, using the same functional-options and oversight-tree
// shape as the rest of this module's supervised components.
package runtime
