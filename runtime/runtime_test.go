// SPDX-License-Identifier: BSD-3-Clause

package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
	"github.com/hamicek/noex-sub004/pkg/distribution"
	"github.com/hamicek/noex-sub004/pkg/dsupervisor"
	"github.com/hamicek/noex-sub004/pkg/supervisor"
)

func TestRunRequiresIPC(t *testing.T) {
	rt := New(WithName("node-under-test"))

	err := rt.Run(context.Background(), nil)
	if !errors.Is(err, ErrIPCNil) {
		t.Fatalf("expected ErrIPCNil, got %v", err)
	}
}

func TestRunRequiresName(t *testing.T) {
	rt := New()
	rt.name = ""

	err := rt.Run(context.Background(), nil)
	if !errors.Is(err, ErrNameEmpty) {
		t.Fatalf("expected ErrNameEmpty, got %v", err)
	}
}

// TestRunStartsAndStopsSingleNode brings up a full node (embedded IPC,
// kernel, event bus, cluster, router) with no distributed children, and
// checks that canceling the context unwinds it cleanly.
func TestRunStartsAndStopsSingleNode(t *testing.T) {
	rt := New(
		WithName("node-a"),
		WithDisableLogo(true),
		WithIPC(),
		WithCluster(
			cluster.WithNodeName("node-a"),
			cluster.WithHost("127.0.0.1"),
			cluster.WithPort(19901),
			cluster.WithHeartbeatInterval(50*time.Millisecond),
		),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx, nil) }()

	deadline := time.Now().Add(2 * time.Second)
	for rt.Cluster() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rt.Cluster() == nil {
		t.Fatal("cluster never started")
	}
	if rt.Kernel() == nil {
		t.Fatal("kernel never started")
	}
	if rt.Router() == nil {
		t.Fatal("router never started")
	}
	if rt.DistributedSupervisor() != nil {
		t.Fatal("expected no distributed supervisor without declared children")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run never returned after cancel")
	}
}

// TestRunWithDistributedChildrenPlacesChild exercises the
// WithDistributedChildren wiring end to end on a single node, placing a
// child locally via a trivial behavior.
func TestRunWithDistributedChildrenPlacesChild(t *testing.T) {
	behaviors := distribution.NewBehaviorRegistry()
	behaviors.Register("echo", func() actor.Behavior { return echoRuntimeBehavior{} })

	rt := New(
		WithName("node-b"),
		WithDisableLogo(true),
		WithIPC(),
		WithCluster(
			cluster.WithNodeName("node-b"),
			cluster.WithHost("127.0.0.1"),
			cluster.WithPort(19902),
			cluster.WithHeartbeatInterval(50*time.Millisecond),
		),
		WithBehaviors(behaviors),
		WithDistributedChildren(dsupervisor.ChildSpec{
			ID:           "svc",
			BehaviorName: "echo",
			Selector:     dsupervisor.LocalFirst(),
			Restart:      supervisor.Permanent,
			SpawnTimeout: 2 * time.Second,
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx, nil) }()

	deadline := time.Now().Add(2 * time.Second)
	for rt.DistributedSupervisor() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	sv := rt.DistributedSupervisor()
	if sv == nil {
		t.Fatal("distributed supervisor never started")
	}
	if _, ok := sv.GetChild("svc"); !ok {
		t.Fatal("expected child svc to be placed")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run never returned after cancel")
	}
}

type echoRuntimeBehavior struct{}

func (echoRuntimeBehavior) Init(ctx context.Context, self actor.Self, args any) (any, error) {
	return args, nil
}

func (echoRuntimeBehavior) HandleCall(ctx context.Context, self actor.Self, msg, state any) (any, any, error) {
	return msg, msg, nil
}

func (echoRuntimeBehavior) HandleCast(ctx context.Context, self actor.Self, msg, state any) (any, error) {
	return msg, nil
}
