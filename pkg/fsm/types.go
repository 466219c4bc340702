// SPDX-License-Identifier: BSD-3-Clause

// Package fsm implements the state-machine process variant (§4.3): a
// process whose behavior is organized as named states with enter/exit
// hooks, an action queue (replies, synthetic events, timeouts), and
// deferred-reply support for callWithReply.
package fsm

import (
	"context"
	"time"
)

// Event is delivered to the current state's HandleEvent, whether it
// originated externally (via Cast/CallWithReply), from a next_event action,
// or from a fired timer.
type Event struct {
	Type    string
	Payload any
}

// Timeout kinds carried on Event{Type: "timeout"}.
const (
	TimeoutState   = "state_timeout"
	TimeoutEvent   = "event_timeout"
	TimeoutGeneric = "generic_timeout"
)

// TimeoutPayload is the Payload of a timeout Event.
type TimeoutPayload struct {
	Kind string // one of TimeoutState, TimeoutEvent, TimeoutGeneric
	Name string // set only for TimeoutGeneric
}

// ReplyToken identifies a deferred caller of CallWithReply. A handler that
// receives a non-nil token may answer it later, from any subsequent event,
// by queuing a ReplyAction naming the same token.
type ReplyToken struct {
	id string
}

// StateHandlers is the set of hooks a single named state may define.
type StateHandlers struct {
	// OnEnter runs once, after a transition lands on this state.
	OnEnter func(data any)
	// OnExit runs once, before a transition leaves this state, and is
	// passed the name of the state being entered next.
	OnExit func(data any, next string)
	// HandleEvent reacts to ev. from is non-nil only when ev arrived via
	// CallWithReply and has not yet been answered.
	HandleEvent func(ctx context.Context, ev Event, data any, from *ReplyToken) Result
}

// Definition is the complete description of a state machine: its states and
// how it computes its initial state, data and actions.
type Definition struct {
	Init   func(args any) (state string, data any, actions []Action, err error)
	States map[string]StateHandlers
}

// ResultKind discriminates the Result variants (§4.3).
type ResultKind int

const (
	ResultKeepStateAndData ResultKind = iota
	ResultKeepState
	ResultTransition
	ResultStop
)

// Result is returned by HandleEvent to tell the machine what to do next.
type Result struct {
	Kind      ResultKind
	Data      any
	NextState string
	Actions   []Action
	Reason    error
}

// KeepStateAndData leaves state and data unchanged.
func KeepStateAndData() Result {
	return Result{Kind: ResultKeepStateAndData}
}

// KeepState updates data without changing the current state.
func KeepState(data any, actions ...Action) Result {
	return Result{Kind: ResultKeepState, Data: data, Actions: actions}
}

// TransitionTo moves to nextState with new data, running onExit/onEnter.
func TransitionTo(nextState string, data any, actions ...Action) Result {
	return Result{Kind: ResultTransition, NextState: nextState, Data: data, Actions: actions}
}

// Stop terminates the machine with reason (nil for an orderly stop).
func Stop(reason error) Result {
	return Result{Kind: ResultStop, Reason: reason}
}

// Action is one item in the action queue processed after a Result is
// applied, before the next external event is pulled.
type Action interface{ isAction() }

// ReplyAction answers a deferred CallWithReply token.
type ReplyAction struct {
	To    ReplyToken
	Value any
	Err   error
}

func (ReplyAction) isAction() {}

// NextEventAction inserts a synthetic event, processed before any external
// event still waiting in the mailbox.
type NextEventAction struct {
	Event Event
}

func (NextEventAction) isAction() {}

// StateTimeoutAction fires a state_timeout event after d spent in the
// current state; any transition cancels it.
type StateTimeoutAction struct {
	After time.Duration
}

func (StateTimeoutAction) isAction() {}

// EventTimeoutAction fires an event_timeout event if no event (external or
// synthetic) arrives within d.
type EventTimeoutAction struct {
	After time.Duration
}

func (EventTimeoutAction) isAction() {}

// GenericTimeoutAction schedules (or cancels) a named timer that survives
// state transitions.
type GenericTimeoutAction struct {
	Name   string
	After  time.Duration
	Cancel bool
}

func (GenericTimeoutAction) isAction() {}
