// SPDX-License-Identifier: BSD-3-Clause

package actor

import "errors"

var (
	// ErrInit indicates a behavior's Init handler returned an error; the ref
	// is never published.
	ErrInit = errors.New("process init failed")
	// ErrInitTimeout indicates Init did not return within the configured timeout.
	ErrInitTimeout = errors.New("process init timed out")
	// ErrCallTimeout indicates a call's deadline elapsed before a reply arrived.
	ErrCallTimeout = errors.New("call timed out")
	// ErrCalleeTerminated indicates the callee terminated before replying.
	// The wrapped error, if any, carries the process's exit reason.
	ErrCalleeTerminated = errors.New("callee terminated before reply")
	// ErrNotRunning indicates an operation was attempted against a process
	// that is not in the running lifecycle phase.
	ErrNotRunning = errors.New("process is not running")
	// ErrAlreadyRegistered is returned by Start when opts.Name collides with
	// an existing registry entry.
	ErrAlreadyRegistered = errors.New("name already registered")
	// ErrShutdown is the default orderly termination reason.
	ErrShutdown = errors.New("shutdown")
	// ErrNormal marks a termination that restart policies treat as normal,
	// i.e. never abnormal regardless of strategy.
	ErrNormal = errors.New("normal")
)

// IsAbnormal reports whether reason should be treated as an abnormal exit
// for supervisor restart-policy purposes (§4.2): anything other than a nil
// reason, ErrShutdown or ErrNormal.
func IsAbnormal(reason error) bool {
	return reason != nil && !errors.Is(reason, ErrShutdown) && !errors.Is(reason, ErrNormal)
}
