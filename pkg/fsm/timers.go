// SPDX-License-Identifier: BSD-3-Clause

package fsm

import (
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
)

func (m *machine) scheduleStateTimer(self actor.Self, ms *machineState, after time.Duration) {
	m.cancelStateTimer(ms)

	ms.mu.Lock()
	ms.stateTimer = time.AfterFunc(after, func() {
		self.Cast(Event{Type: "timeout", Payload: TimeoutPayload{Kind: TimeoutState}})
	})
	ms.mu.Unlock()
}

func (m *machine) cancelStateTimer(ms *machineState) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.stateTimer != nil {
		ms.stateTimer.Stop()
		ms.stateTimer = nil
	}
}

func (m *machine) scheduleEventTimer(self actor.Self, ms *machineState, after time.Duration) {
	m.cancelEventTimer(ms)

	ms.mu.Lock()
	ms.eventTimer = time.AfterFunc(after, func() {
		self.Cast(Event{Type: "timeout", Payload: TimeoutPayload{Kind: TimeoutEvent}})
	})
	ms.mu.Unlock()
}

func (m *machine) cancelEventTimer(ms *machineState) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.eventTimer != nil {
		ms.eventTimer.Stop()
		ms.eventTimer = nil
	}
}

func (m *machine) scheduleGenericTimer(self actor.Self, ms *machineState, name string, after time.Duration) {
	m.cancelGenericTimer(ms, name)

	ms.mu.Lock()
	ms.genericTimers[name] = time.AfterFunc(after, func() {
		self.Cast(Event{Type: "timeout", Payload: TimeoutPayload{Kind: TimeoutGeneric, Name: name}})
	})
	ms.mu.Unlock()
}

func (m *machine) cancelGenericTimer(ms *machineState, name string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if t, ok := ms.genericTimers[name]; ok {
		t.Stop()
		delete(ms.genericTimers, name)
	}
}
