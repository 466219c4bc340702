// SPDX-License-Identifier: BSD-3-Clause

package runtime

import "errors"

var (
	// ErrNameEmpty indicates that the runtime's name cannot be empty.
	ErrNameEmpty = errors.New("runtime name cannot be empty")
	// ErrIPCNil indicates that neither an embedded IPC service nor an
	// external connection provider was given.
	ErrIPCNil = errors.New("IPC not configured: provide either ipcConn or WithIPC option")
	// ErrPanicked indicates that the runtime recovered from a panic during
	// Run.
	ErrPanicked = errors.New("runtime panicked")
	// ErrAddProcess indicates that adding a process to the oversight tree
	// failed.
	ErrAddProcess = errors.New("failed to add process to supervision tree")
	// ErrAddExtraService indicates that adding a caller-supplied service
	// failed.
	ErrAddExtraService = errors.New("failed to add extra service to supervision tree")
	// ErrClusterStart indicates that cluster membership failed to start.
	ErrClusterStart = errors.New("failed to start cluster")
	// ErrEventBusStart indicates that the event bus process failed to
	// start.
	ErrEventBusStart = errors.New("failed to start event bus")
	// ErrDistributedSupervisorStart indicates that the distributed
	// supervisor failed to place its initial children.
	ErrDistributedSupervisorStart = errors.New("failed to start distributed supervisor")
)
