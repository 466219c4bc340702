// SPDX-License-Identifier: BSD-3-Clause

package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// process is the kernel's internal record for one running behavior
// instance. All state mutation happens on the goroutine running run(); mu
// only guards the monitors map, which Monitor/Demonitor touch from other
// goroutines.
type process struct {
	ref      ProcessRef
	behavior Behavior
	state    any

	mailbox chan mailboxMessage
	doneCh  chan struct{}

	phase atomic.Int32

	name   string
	logger *slog.Logger
	bus    *LifecycleBus
	kernel *Kernel

	exitListener func(ref ProcessRef, reason error)
	exitReason   error

	mu       sync.Mutex
	monitors map[string]ProcessRef
}

func newCallTimer(d time.Duration) *time.Timer {
	if d <= 0 {
		d = 5 * time.Second
	}
	return time.NewTimer(d)
}

// run is the process's single dispatch goroutine. It processes exactly one
// mailbox message at a time, in arrival order, until a shutdown or crash
// message is received.
func (p *process) run() {
	for {
		msg := <-p.mailbox

		switch msg.kind {
		case kindShutdown, kindCrash:
			p.terminate(msg)
			return
		case kindCall:
			p.dispatchCall(msg)
		case kindCast:
			p.dispatchCast(msg)
		}
	}
}

func (p *process) dispatchCall(msg mailboxMessage) {
	reply, newState, err := invokeCall(p.behavior, p.selfHandle(), msg.payload, p.state)
	if err != nil {
		msg.reply <- callResult{err: err}
		return
	}
	p.state = newState
	msg.reply <- callResult{value: reply}
}

func invokeCall(b Behavior, self Self, msg any, state any) (reply any, newState any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handleCall panicked: %v", r)
		}
	}()
	return b.HandleCall(context.Background(), self, msg, state)
}

func (p *process) dispatchCast(msg mailboxMessage) {
	newState, err := invokeCast(p.behavior, p.selfHandle(), msg.payload, p.state)
	if err != nil {
		p.logger.Warn("cast handler returned error",
			"process", p.ref.String(),
			"error", err)
		return
	}
	p.state = newState
}

func invokeCast(b Behavior, self Self, msg any, state any) (newState any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handleCast panicked: %v", r)
		}
	}()
	return b.HandleCast(context.Background(), self, msg, state)
}

func (p *process) terminate(msg mailboxMessage) {
	p.phase.Store(phaseTerminating)

	if msg.kind == kindCrash {
		p.bus.Publish(Event{Kind: EventCrashed, Ref: p.ref, Reason: msg.reason})
	}

	p.runTerminateHook(msg.reason, msg.shutdownTimeout)

	p.exitReason = msg.reason
	p.phase.Store(phaseTerminated)
	close(p.doneCh)

	if p.name != "" && p.kernel.registry != nil {
		p.kernel.registry.Unregister(p.name)
	}
	p.kernel.deleteProcess(p.ref.ID)

	p.notifyMonitors(msg.reason)

	p.bus.Publish(Event{Kind: EventTerminated, Ref: p.ref, Reason: msg.reason})

	if p.exitListener != nil {
		p.exitListener(p.ref, msg.reason)
	}
}

// runTerminateHook invokes an optional TerminateHandler with panic recovery
// and a deadline; a hook that overruns the deadline is abandoned in place so
// shutdown always completes within timeout.
func (p *process) runTerminateHook(reason error, timeout time.Duration) {
	th, ok := p.behavior.(TerminateHandler)
	if !ok {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = recover() }()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		th.Terminate(ctx, reason, p.state)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		p.logger.Warn("terminate hook exceeded timeout", "process", p.ref.String())
	}
}

func (p *process) notifyMonitors(reason error) {
	p.mu.Lock()
	observers := make([]ProcessRef, 0, len(p.monitors))
	for _, ref := range p.monitors {
		observers = append(observers, ref)
	}
	p.mu.Unlock()

	for _, obs := range observers {
		down := ProcessDown{Ref: p.ref, Reason: reason}
		if op := p.kernel.lookup(obs); op != nil {
			select {
			case op.mailbox <- mailboxMessage{kind: kindCast, payload: down}:
			case <-op.doneCh:
			}
		}
	}
}

func (p *process) selfHandle() Self {
	return &selfHandle{p: p}
}

// selfHandle implements Self. Cast and Crash hand their message to a helper
// goroutine rather than enqueueing inline, guaranteeing the message is only
// ever observed on a later iteration of run(), after the current handler
// returns — never re-entrantly.
type selfHandle struct {
	p *process
}

func (s *selfHandle) Ref() ProcessRef { return s.p.ref }

func (s *selfHandle) Cast(msg any) {
	go func() {
		select {
		case s.p.mailbox <- mailboxMessage{kind: kindCast, payload: msg}:
		case <-s.p.doneCh:
		}
	}()
}

func (s *selfHandle) Stop(reason error) {
	go func() {
		select {
		case s.p.mailbox <- mailboxMessage{kind: kindShutdown, reason: reason}:
		case <-s.p.doneCh:
		}
	}()
}

func (s *selfHandle) Crash(reason error) {
	go func() {
		select {
		case s.p.mailbox <- mailboxMessage{kind: kindCrash, reason: reason}:
		case <-s.p.doneCh:
		}
	}()
}
