// SPDX-License-Identifier: BSD-3-Clause

package fsm

import "errors"

var (
	// ErrUnknownState indicates the machine's current state has no entry in
	// Definition.States; this only happens if Init or a Transition result
	// names a state that was never declared.
	ErrUnknownState = errors.New("fsm: unknown state")
	// ErrCallUnsupported is returned by HandleCall: all fsm traffic, both
	// fire-and-forget events and callWithReply requests, flows through
	// HandleCast so a single dispatch path enforces the action-queue and
	// deferred-reply invariants.
	ErrCallUnsupported = errors.New("fsm: use CallWithReply, not Call")
	// ErrCallTimeout indicates a CallWithReply deadline elapsed with no
	// matching ReplyAction queued.
	ErrCallTimeout = errors.New("fsm: callWithReply timed out")
)
