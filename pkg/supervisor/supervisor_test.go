// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
)

// crashable is a trivial behavior that terminates itself abnormally when it
// receives the "crash" cast, letting tests drive restart decisions
// deterministically.
type crashable struct{}

func (crashable) Init(ctx context.Context, self actor.Self, args any) (any, error) {
	return nil, nil
}
func (crashable) HandleCall(ctx context.Context, self actor.Self, msg any, state any) (any, any, error) {
	return nil, state, nil
}
func (crashable) HandleCast(ctx context.Context, self actor.Self, msg any, state any) (any, error) {
	if msg == "crash" {
		self.Crash(errors.New("boom"))
	}
	return state, nil
}

func startCrashable(ctx context.Context, kernel *actor.Kernel, listener ExitListener) (actor.ProcessRef, error) {
	return kernel.Start(ctx, crashable{}, nil, actor.WithExitListener(func(ref actor.ProcessRef, reason error) {
		listener(ref, reason)
	}))
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestOneForOneRestartsOnlyExitedChild(t *testing.T) {
	k := actor.NewKernel("node1")
	sv := New(k, WithStrategy(OneForOne))

	err := sv.Start(context.Background(),
		ChildSpec{ID: "a", Start: startCrashable, Restart: Permanent},
		ChildSpec{ID: "b", Start: startCrashable, Restart: Permanent},
	)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sv.Stop()

	before, _ := sv.GetChild("b")

	a, _ := sv.GetChild("a")
	if err := k.Cast(a.Ref, "crash"); err != nil {
		t.Fatalf("cast: %v", err)
	}

	waitForCondition(t, time.Second, func() bool {
		info, ok := sv.GetChild("a")
		return ok && info.RestartCount == 1
	})

	after, _ := sv.GetChild("b")
	if after.Ref != before.Ref {
		t.Fatal("sibling b should not have been restarted under one_for_one")
	}
}

func TestOneForAllRestartsAllChildren(t *testing.T) {
	k := actor.NewKernel("node1")
	sv := New(k, WithStrategy(OneForAll))

	err := sv.Start(context.Background(),
		ChildSpec{ID: "a", Start: startCrashable, Restart: Permanent},
		ChildSpec{ID: "b", Start: startCrashable, Restart: Permanent},
	)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sv.Stop()

	before, _ := sv.GetChild("b")

	a, _ := sv.GetChild("a")
	_ = k.Cast(a.Ref, "crash")

	waitForCondition(t, time.Second, func() bool {
		info, ok := sv.GetChild("b")
		return ok && info.Ref != before.Ref
	})
}

func TestTemporaryChildIsNeverRestarted(t *testing.T) {
	k := actor.NewKernel("node1")
	sv := New(k, WithStrategy(OneForOne))

	err := sv.Start(context.Background(),
		ChildSpec{ID: "a", Start: startCrashable, Restart: Temporary},
	)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sv.Stop()

	a, _ := sv.GetChild("a")
	_ = k.Cast(a.Ref, "crash")

	waitForCondition(t, time.Second, func() bool {
		_, ok := sv.GetChild("a")
		return !ok
	})
}

func TestMaxRestartsExceededTerminatesSupervisor(t *testing.T) {
	k := actor.NewKernel("node1")
	sv := New(k, WithStrategy(OneForOne), WithRestartIntensity(RestartIntensity{MaxRestarts: 1, Within: time.Minute}))

	err := sv.Start(context.Background(), ChildSpec{ID: "a", Start: startCrashable, Restart: Permanent})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	a, _ := sv.GetChild("a")
	_ = k.Cast(a.Ref, "crash")
	waitForCondition(t, time.Second, func() bool {
		info, ok := sv.GetChild("a")
		return ok && info.RestartCount == 1
	})

	a2, _ := sv.GetChild("a")
	_ = k.Cast(a2.Ref, "crash")

	select {
	case <-sv.Done():
		if !errors.Is(sv.Err(), ErrMaxRestartsExceeded) {
			t.Fatalf("expected ErrMaxRestartsExceeded, got %v", sv.Err())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor should have terminated after exceeding restart intensity")
	}
}

func TestSimpleOneForOneStartsDynamicChildren(t *testing.T) {
	k := actor.NewKernel("node1")
	template := func(ctx context.Context, kernel *actor.Kernel, args any, listener ExitListener) (actor.ProcessRef, error) {
		return kernel.Start(ctx, crashable{}, args, actor.WithExitListener(func(ref actor.ProcessRef, reason error) {
			listener(ref, reason)
		}))
	}

	sv := New(k, WithStrategy(SimpleOneForOne), WithChildTemplate(template))
	if err := sv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sv.Stop()

	ref, err := sv.StartDynamicChild("worker-1")
	if err != nil {
		t.Fatalf("start dynamic child: %v", err)
	}
	if !k.IsRunning(ref) {
		t.Fatal("expected dynamic child to be running")
	}

	if len(sv.GetChildren()) != 1 {
		t.Fatalf("expected 1 tracked child, got %d", len(sv.GetChildren()))
	}
}
