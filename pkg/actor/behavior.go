// SPDX-License-Identifier: BSD-3-Clause

package actor

import "context"

// Self is handed to a behavior's handlers so they can address their own
// process without re-entering the dispatch loop. Cast and Crash enqueue a
// message to be handled on a later iteration of the loop — never inline —
// so a handler can never recursively invoke itself.
type Self interface {
	Ref() ProcessRef
	Cast(msg any)
	// Stop requests an orderly self-termination with reason (nil or
	// ErrShutdown/ErrNormal for a normal exit). Runs Terminate, if any, then
	// transitions to terminated — same as an external Kernel.Stop.
	Stop(reason error)
	// Crash requests an abnormal self-termination, always recorded as a
	// crashed exit regardless of reason.
	Crash(reason error)
}

// Behavior is the user-supplied tuple of handlers that define a process's
// reaction to init, call, cast and termination. Init, HandleCall and
// HandleCast may block; the kernel guarantees at most one of them runs at a
// time for a given process.
type Behavior interface {
	// Init runs once at start. A non-nil error aborts the start: the ref is
	// never published and the caller of Start observes ErrInit.
	Init(ctx context.Context, self Self, args any) (state any, err error)

	// HandleCall answers a synchronous request. A non-nil error is surfaced
	// to the caller as a rejected call; the process continues running with
	// the state unchanged (newState is ignored when err != nil).
	HandleCall(ctx context.Context, self Self, msg any, state any) (reply any, newState any, err error)

	// HandleCast handles a fire-and-forget message. A non-nil error is
	// logged and swallowed; the process continues with state unchanged.
	HandleCast(ctx context.Context, self Self, msg any, state any) (newState any, err error)
}

// TerminateHandler is an optional extension of Behavior: implement it when
// a behavior needs to run cleanup on orderly or error shutdown.
type TerminateHandler interface {
	Terminate(ctx context.Context, reason error, state any)
}
