// SPDX-License-Identifier: BSD-3-Clause

package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/id"
	"github.com/hamicek/noex-sub004/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type callOutcome struct {
	value any
	err   error
}

// deferredEnvelope wraps an Event sent via CallWithReply so the machine can
// recognize it needs a ReplyToken and a place to send the eventual answer.
type deferredEnvelope struct {
	id    string
	event Event
	reply chan callOutcome
}

// machineState is the process state actor.Kernel carries between dispatches.
type machineState struct {
	current string
	data    any

	mu            sync.Mutex
	deferred      map[string]chan callOutcome
	stateTimer    *time.Timer
	eventTimer    *time.Timer
	genericTimers map[string]*time.Timer
}

func newMachineState(state string, data any) *machineState {
	return &machineState{
		current:       state,
		data:          data,
		deferred:      make(map[string]chan callOutcome),
		genericTimers: make(map[string]*time.Timer),
	}
}

// machine is the actor.Behavior implementing one running state machine.
type machine struct {
	def    Definition
	logger *slog.Logger
	tracer trace.Tracer
	name   string
}

var _ actor.Behavior = (*machine)(nil)
var _ actor.TerminateHandler = (*machine)(nil)

func (m *machine) Init(ctx context.Context, self actor.Self, args any) (any, error) {
	state, data, actions, err := m.def.Init(args)
	if err != nil {
		return nil, err
	}
	if _, ok := m.def.States[state]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, state)
	}

	ms := newMachineState(state, data)
	if h := m.def.States[state]; h.OnEnter != nil {
		h.OnEnter(ms.data)
	}
	m.processActions(self, ms, actions)
	return ms, nil
}

func (m *machine) HandleCall(ctx context.Context, self actor.Self, msg any, state any) (any, any, error) {
	return nil, state, ErrCallUnsupported
}

func (m *machine) HandleCast(ctx context.Context, self actor.Self, msg any, state any) (any, error) {
	ms := state.(*machineState)

	switch env := msg.(type) {
	case deferredEnvelope:
		ms.mu.Lock()
		ms.deferred[env.id] = env.reply
		ms.mu.Unlock()
		token := ReplyToken{id: env.id}
		m.dispatch(self, ms, env.event, &token)
	case Event:
		m.dispatch(self, ms, env, nil)
	default:
		return ms, fmt.Errorf("fsm: unexpected message %T", msg)
	}
	return ms, nil
}

func (m *machine) Terminate(ctx context.Context, reason error, state any) {
	ms, ok := state.(*machineState)
	if !ok {
		return
	}
	m.cancelAllTimers(ms)
	m.failAllDeferred(ms, fmt.Errorf("%w: %w", actor.ErrCalleeTerminated, reason))
}

func (m *machine) dispatch(self actor.Self, ms *machineState, ev Event, from *ReplyToken) {
	var span trace.Span
	ctx := context.Background()
	if m.tracer != nil {
		ctx, span = m.tracer.Start(ctx, "fsm.dispatch",
			trace.WithAttributes(
				attribute.String("fsm.name", m.name),
				attribute.String("fsm.state", ms.current),
				attribute.String("fsm.event_type", ev.Type),
			))
		defer span.End()
	}

	// Any event, external or synthetic, cancels a pending event_timeout.
	m.cancelEventTimer(ms)

	handlers, ok := m.def.States[ms.current]
	if !ok {
		m.logger.Warn("fsm: event dispatched against unknown state", "state", ms.current)
		return
	}
	if handlers.HandleEvent == nil {
		return
	}

	result := handlers.HandleEvent(ctx, ev, ms.data, from)
	if span != nil && result.Kind == ResultTransition {
		span.SetAttributes(attribute.String("fsm.next_state", result.NextState))
	}
	m.applyResult(self, ms, result)
}

func (m *machine) applyResult(self actor.Self, ms *machineState, result Result) {
	switch result.Kind {
	case ResultKeepStateAndData:
		// nothing to do
	case ResultKeepState:
		ms.data = result.Data
	case ResultTransition:
		old := ms.current
		oldData := ms.data
		if h, ok := m.def.States[old]; ok && h.OnExit != nil {
			h.OnExit(oldData, result.NextState)
		}
		m.cancelStateTimer(ms)

		ms.current = result.NextState
		ms.data = result.Data

		if h, ok := m.def.States[ms.current]; ok && h.OnEnter != nil {
			h.OnEnter(ms.data)
		}
	case ResultStop:
		m.cancelAllTimers(ms)
		m.failAllDeferred(ms, fmt.Errorf("%w: %w", actor.ErrCalleeTerminated, result.Reason))
		self.Stop(result.Reason)
		return
	}

	m.processActions(self, ms, result.Actions)
}

func (m *machine) processActions(self actor.Self, ms *machineState, actions []Action) {
	var nextEvents []Event

	for _, a := range actions {
		switch act := a.(type) {
		case ReplyAction:
			ms.mu.Lock()
			ch, ok := ms.deferred[act.To.id]
			if ok {
				delete(ms.deferred, act.To.id)
			}
			ms.mu.Unlock()
			if ok {
				ch <- callOutcome{value: act.Value, err: act.Err}
			}

		case NextEventAction:
			nextEvents = append(nextEvents, act.Event)

		case StateTimeoutAction:
			m.scheduleStateTimer(self, ms, act.After)

		case EventTimeoutAction:
			m.scheduleEventTimer(self, ms, act.After)

		case GenericTimeoutAction:
			if act.Cancel {
				m.cancelGenericTimer(ms, act.Name)
			} else {
				m.scheduleGenericTimer(self, ms, act.Name, act.After)
			}
		}
	}

	// Synthetic events drain completely before control returns to the
	// mailbox, so they are always handled ahead of the next external event.
	for _, ev := range nextEvents {
		m.dispatch(self, ms, ev, nil)
	}
}

func (m *machine) failAllDeferred(ms *machineState, reason error) {
	ms.mu.Lock()
	pending := ms.deferred
	ms.deferred = make(map[string]chan callOutcome)
	ms.mu.Unlock()

	for _, ch := range pending {
		ch <- callOutcome{err: reason}
	}
}

func (m *machine) cancelAllTimers(ms *machineState) {
	m.cancelStateTimer(ms)
	m.cancelEventTimer(ms)
	ms.mu.Lock()
	for name, t := range ms.genericTimers {
		t.Stop()
		delete(ms.genericTimers, name)
	}
	ms.mu.Unlock()
}

// newID is the token/identifier source for deferred replies.
func newID() string { return id.NewID() }
