// SPDX-License-Identifier: BSD-3-Clause

package dsupervisor

import "errors"

var (
	// ErrDistributedDuplicateChild is returned when a ChildSpec reuses an
	// ID already tracked by this supervisor.
	ErrDistributedDuplicateChild = errors.New("dsupervisor: child id already in use")
	// ErrNoAvailableNode is returned when a selector cannot produce any
	// candidate node (e.g. ExplicitNode's target was just excluded on
	// failover, or no node is connected at all).
	ErrNoAvailableNode = errors.New("dsupervisor: no available node for child placement")
	// ErrChildNotFound is returned when an operation names an unknown
	// child id.
	ErrChildNotFound = errors.New("dsupervisor: child not found")
	// ErrUnsupportedStrategy is returned by Start when the supervisor is
	// configured with simple_one_for_one, which this package does not
	// implement.
	ErrUnsupportedStrategy = errors.New("dsupervisor: unsupported strategy")
)
