// SPDX-License-Identifier: BSD-3-Clause

package actor

import (
	"context"
	"errors"
	"testing"
	"time"
)

// counterBehavior implements a trivial counter: cast increments/decrements,
// call("get") returns the current value.
type counterBehavior struct{}

func (counterBehavior) Init(ctx context.Context, self Self, args any) (any, error) {
	return 0, nil
}

func (counterBehavior) HandleCall(ctx context.Context, self Self, msg any, state any) (any, any, error) {
	if msg != "get" {
		return nil, state, errors.New("unknown call")
	}
	return state, state, nil
}

func (counterBehavior) HandleCast(ctx context.Context, self Self, msg any, state any) (any, error) {
	n := state.(int)
	switch msg {
	case "inc":
		return n + 1, nil
	case "dec":
		return n - 1, nil
	default:
		return state, errors.New("unknown cast")
	}
}

func TestCounterCastOrderingThenCall(t *testing.T) {
	k := NewKernel("node1")
	ref, err := k.Start(context.Background(), counterBehavior{}, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, m := range []string{"inc", "inc", "inc"} {
		if err := k.Cast(ref, m); err != nil {
			t.Fatalf("cast: %v", err)
		}
	}

	got, err := k.Call(context.Background(), ref, "get")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got.(int) != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}

type initFailBehavior struct{}

func (initFailBehavior) Init(ctx context.Context, self Self, args any) (any, error) {
	return nil, errors.New("boom")
}
func (initFailBehavior) HandleCall(ctx context.Context, self Self, msg any, state any) (any, any, error) {
	return nil, state, nil
}
func (initFailBehavior) HandleCast(ctx context.Context, self Self, msg any, state any) (any, error) {
	return state, nil
}

func TestStartFailsOnInitError(t *testing.T) {
	k := NewKernel("node1")
	ref, err := k.Start(context.Background(), initFailBehavior{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrInit) {
		t.Fatalf("expected ErrInit, got %v", err)
	}
	if !ref.IsZero() {
		t.Fatal("expected zero ref on failed start")
	}
}

type throwingCallBehavior struct{}

func (throwingCallBehavior) Init(ctx context.Context, self Self, args any) (any, error) {
	return 0, nil
}
func (throwingCallBehavior) HandleCall(ctx context.Context, self Self, msg any, state any) (any, any, error) {
	if msg == "panic" {
		panic("handler exploded")
	}
	return "ok", state, nil
}
func (throwingCallBehavior) HandleCast(ctx context.Context, self Self, msg any, state any) (any, error) {
	return state, nil
}

func TestHandlerPanicRejectsCallButKeepsProcessAlive(t *testing.T) {
	k := NewKernel("node1")
	ref, err := k.Start(context.Background(), throwingCallBehavior{}, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := k.Call(context.Background(), ref, "panic"); err == nil {
		t.Fatal("expected error from panicking handler")
	}
	if !k.IsRunning(ref) {
		t.Fatal("expected process to survive a panicking call handler")
	}

	got, err := k.Call(context.Background(), ref, "anything")
	if err != nil {
		t.Fatalf("call after recovered panic: %v", err)
	}
	if got != "ok" {
		t.Fatalf("expected ok, got %v", got)
	}
}

type selfCastBehavior struct {
	done chan struct{}
}

func (b *selfCastBehavior) Init(ctx context.Context, self Self, args any) (any, error) {
	self.Cast("kick")
	return 0, nil
}
func (b *selfCastBehavior) HandleCall(ctx context.Context, self Self, msg any, state any) (any, any, error) {
	return state, state, nil
}
func (b *selfCastBehavior) HandleCast(ctx context.Context, self Self, msg any, state any) (any, error) {
	if msg == "kick" {
		close(b.done)
	}
	return state, nil
}

func TestSelfCastDeliveredAsynchronously(t *testing.T) {
	b := &selfCastBehavior{done: make(chan struct{})}
	k := NewKernel("node1")
	if _, err := k.Start(context.Background(), b, nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-b.done:
	case <-time.After(time.Second):
		t.Fatal("self-cast was never delivered")
	}
}

func TestStopTerminatesProcess(t *testing.T) {
	k := NewKernel("node1")
	ref, err := k.Start(context.Background(), counterBehavior{}, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := k.Stop(ref); err != nil {
		t.Fatalf("stop: %v", err)
	}

	deadline := time.After(time.Second)
	for k.IsRunning(ref) {
		select {
		case <-deadline:
			t.Fatal("process did not terminate in time")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := k.Call(context.Background(), ref, "get"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestMonitorReceivesProcessDown(t *testing.T) {
	k := NewKernel("node1")

	downCh := make(chan ProcessDown, 1)
	observer := &relayBehavior{out: downCh}
	obsRef, err := k.Start(context.Background(), observer, nil)
	if err != nil {
		t.Fatalf("start observer: %v", err)
	}

	target, err := k.Start(context.Background(), counterBehavior{}, nil)
	if err != nil {
		t.Fatalf("start target: %v", err)
	}

	if err := k.Monitor(obsRef, target); err != nil {
		t.Fatalf("monitor: %v", err)
	}

	if err := k.Stop(target, WithStopReason(errors.New("boom"))); err != nil {
		t.Fatalf("stop: %v", err)
	}

	select {
	case down := <-downCh:
		if !down.Ref.Equal(target) {
			t.Fatalf("expected down ref %v, got %v", target, down.Ref)
		}
	case <-time.After(time.Second):
		t.Fatal("expected process_down notification")
	}
}

type relayBehavior struct {
	out chan ProcessDown
}

func (b *relayBehavior) Init(ctx context.Context, self Self, args any) (any, error) {
	return nil, nil
}
func (b *relayBehavior) HandleCall(ctx context.Context, self Self, msg any, state any) (any, any, error) {
	return nil, state, nil
}
func (b *relayBehavior) HandleCast(ctx context.Context, self Self, msg any, state any) (any, error) {
	if down, ok := msg.(ProcessDown); ok {
		b.out <- down
	}
	return state, nil
}
