// SPDX-License-Identifier: BSD-3-Clause

package distribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
)

func TestBehaviorRegistryLookup(t *testing.T) {
	r := NewBehaviorRegistry()
	r.Register("echo", func() actor.Behavior { return echoBehavior{} })

	if !r.Has("echo") {
		t.Fatalf("expected echo registered")
	}
	if _, err := r.resolve("missing"); !errors.Is(err, ErrBehaviorNotFound) {
		t.Fatalf("expected ErrBehaviorNotFound, got %v", err)
	}
	if got := r.GetNames(); len(got) != 1 || got[0] != "echo" {
		t.Fatalf("unexpected names: %v", got)
	}
}

func TestGlobalRegistryConflictResolutionPrefersEarlierRegistration(t *testing.T) {
	earlier := globalEntry{name: "svc", registeredAt: time.Unix(0, 1000), ownerNode: "a@127.0.0.1:1"}
	later := globalEntry{name: "svc", registeredAt: time.Unix(0, 2000), ownerNode: "b@127.0.0.1:2"}

	if !earlier.winsOver(later) {
		t.Fatalf("expected earlier registration to win")
	}
	if later.winsOver(earlier) {
		t.Fatalf("later registration should not win over earlier")
	}
}

func TestGlobalRegistryConflictResolutionPrefersHigherPriorityOnTie(t *testing.T) {
	same := time.Unix(0, 500)
	low := globalEntry{name: "svc", registeredAt: same, priority: 1, ownerNode: "a@127.0.0.1:1"}
	high := globalEntry{name: "svc", registeredAt: same, priority: 5, ownerNode: "b@127.0.0.1:2"}

	if !high.winsOver(low) {
		t.Fatalf("expected higher priority to win on timestamp tie")
	}
}

func TestGlobalRegistryConflictResolutionFallsBackToOwnerNode(t *testing.T) {
	same := time.Unix(0, 500)
	a := globalEntry{name: "svc", registeredAt: same, priority: 1, ownerNode: "aaa@127.0.0.1:1"}
	b := globalEntry{name: "svc", registeredAt: same, priority: 1, ownerNode: "bbb@127.0.0.1:2"}

	if !a.winsOver(b) {
		t.Fatalf("expected lexicographically lesser owner node to win")
	}
}

func TestGlobalRegistryRegisterBroadcastsAndFiresObserver(t *testing.T) {
	var broadcasts []cluster.Frame
	g := NewGlobalRegistry("node-a@127.0.0.1:1", func(f cluster.Frame) { broadcasts = append(broadcasts, f) })

	registered := make(chan string, 1)
	g.OnRegistered(func(name string, ref actor.ProcessRef) { registered <- name })

	if err := g.Register("svc", actor.ProcessRef{ID: "p1", Node: "node-a@127.0.0.1:1"}, 0); err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case name := <-registered:
		if name != "svc" {
			t.Fatalf("expected svc, got %s", name)
		}
	case <-time.After(time.Second):
		t.Fatal("onRegistered did not fire")
	}

	if len(broadcasts) != 1 || broadcasts[0].Type != cluster.FrameGlobalRegister {
		t.Fatalf("expected one global_register broadcast, got %v", broadcasts)
	}

	ref, err := g.Lookup("svc")
	if err != nil || ref.ID != "p1" {
		t.Fatalf("lookup mismatch: %v %v", ref, err)
	}
}

func TestGlobalRegistryHandleNodeLostRemovesOwnedEntries(t *testing.T) {
	g := NewGlobalRegistry("node-a@127.0.0.1:1", func(cluster.Frame) {})
	g.table["svc"] = globalEntry{name: "svc", ownerNode: "node-b@127.0.0.1:2"}
	g.table["other"] = globalEntry{name: "other", ownerNode: "node-a@127.0.0.1:1"}

	g.handleNodeLost("node-b@127.0.0.1:2")

	if _, ok := g.Whereis("svc"); ok {
		t.Fatalf("expected svc to be removed after node loss")
	}
	if _, ok := g.Whereis("other"); !ok {
		t.Fatalf("expected other to survive, owned by a different node")
	}
}

// echoBehavior replies with whatever it was called or cast, storing the last
// message as state — enough surface to exercise remote call/cast routing.
type echoBehavior struct{}

func (echoBehavior) Init(ctx context.Context, self actor.Self, args any) (any, error) {
	return args, nil
}

func (echoBehavior) HandleCall(ctx context.Context, self actor.Self, msg, state any) (any, any, error) {
	return msg, msg, nil
}

func (echoBehavior) HandleCast(ctx context.Context, self actor.Self, msg, state any) (any, error) {
	return msg, nil
}

func newTestCluster(t *testing.T, name string, port int, seeds []string) *cluster.Cluster {
	t.Helper()
	opts := []cluster.Option{
		cluster.WithNodeName(name),
		cluster.WithHost("127.0.0.1"),
		cluster.WithPort(port),
		cluster.WithHeartbeatInterval(50 * time.Millisecond),
	}
	if len(seeds) > 0 {
		opts = append(opts, cluster.WithSeeds(seeds...))
	}
	cl, err := cluster.New(opts...)
	if err != nil {
		t.Fatalf("cluster.New(%s): %v", name, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := cl.Start(ctx); err != nil {
		t.Fatalf("cluster.Start(%s): %v", name, err)
	}
	t.Cleanup(func() { _ = cl.Stop(context.Background()) })
	return cl
}

func waitUntilConnected(t *testing.T, a *cluster.Cluster, id cluster.NodeID) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if a.IsNodeConnected(id) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s never connected to %s", a.GetLocalNodeID(), id)
}

func TestRemoteSpawnAndCallRoundTrip(t *testing.T) {
	clA := newTestCluster(t, "nodea", 18801, nil)
	clB := newTestCluster(t, "nodeb", 18802, []string{"nodea@127.0.0.1:18801"})

	waitUntilConnected(t, clA, clB.GetLocalNodeID())
	waitUntilConnected(t, clB, clA.GetLocalNodeID())

	kernelA := actor.NewKernel(string(clA.GetLocalNodeID()))
	kernelB := actor.NewKernel(string(clB.GetLocalNodeID()))

	behaviorsA := NewBehaviorRegistry()
	behaviorsA.Register("echo", func() actor.Behavior { return echoBehavior{} })
	behaviorsB := NewBehaviorRegistry()
	behaviorsB.Register("echo", func() actor.Behavior { return echoBehavior{} })

	New(kernelA, clA, behaviorsA, nil)
	routerB := New(kernelB, clB, behaviorsB, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ref, err := routerB.StartRemote(ctx, "echo", SpawnOptions{
		TargetNode:   clA.GetLocalNodeID(),
		SpawnTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("StartRemote: %v", err)
	}
	if ref.Node != string(clA.GetLocalNodeID()) {
		t.Fatalf("expected ref on node a, got %s", ref.Node)
	}

	result, err := routerB.Call(ctx, ref, "ping", CallOptions{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != "ping" {
		t.Fatalf("expected echoed ping, got %v", result)
	}
}

func TestStartRemoteUnknownBehaviorReturnsBehaviorNotFound(t *testing.T) {
	clA := newTestCluster(t, "nodec", 18803, nil)
	clB := newTestCluster(t, "noded", 18804, []string{"nodec@127.0.0.1:18803"})

	waitUntilConnected(t, clA, clB.GetLocalNodeID())
	waitUntilConnected(t, clB, clA.GetLocalNodeID())

	kernelA := actor.NewKernel(string(clA.GetLocalNodeID()))
	kernelB := actor.NewKernel(string(clB.GetLocalNodeID()))

	New(kernelA, clA, NewBehaviorRegistry(), nil)
	routerB := New(kernelB, clB, NewBehaviorRegistry(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := routerB.StartRemote(ctx, "nope", SpawnOptions{
		TargetNode:   clA.GetLocalNodeID(),
		SpawnTimeout: 2 * time.Second,
	})
	if !errors.Is(err, ErrBehaviorNotFound) {
		t.Fatalf("expected ErrBehaviorNotFound, got %v", err)
	}
}
