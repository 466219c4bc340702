// SPDX-License-Identifier: BSD-3-Clause

package distribution

import "errors"

var (
	// ErrBehaviorNotFound is returned when a remote spawn names a behavior
	// unregistered on the target node. No process is created.
	ErrBehaviorNotFound = errors.New("distribution: behavior not registered")
	// ErrNodeNotReachable indicates the target node has no live cluster
	// connection.
	ErrNodeNotReachable = errors.New("distribution: node not reachable")
	// ErrRemoteCallTimeout indicates a CALL frame's REPLY did not arrive
	// within the configured timeout.
	ErrRemoteCallTimeout = errors.New("distribution: remote call timed out")
	// ErrRemoteServerNotRunning indicates the target node reported the
	// addressed process does not exist.
	ErrRemoteServerNotRunning = errors.New("distribution: remote process not running")
	// ErrSpawnTimeout indicates no SPAWN_RESULT arrived within spawnTimeout.
	ErrSpawnTimeout = errors.New("distribution: remote spawn timed out")
)
