// SPDX-License-Identifier: BSD-3-Clause

package dsupervisor

import (
	"context"
	"testing"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
	"github.com/hamicek/noex-sub004/pkg/distribution"
	"github.com/hamicek/noex-sub004/pkg/supervisor"
)

func nodes(ids ...string) []cluster.NodeInfo {
	out := make([]cluster.NodeInfo, 0, len(ids))
	for i, id := range ids {
		out = append(out, cluster.NodeInfo{ID: cluster.NodeID(id), ProcessCount: i})
	}
	return out
}

func TestResolveNodeExplicit(t *testing.T) {
	got, err := resolveNode(ExplicitNode("b"), nodes("a", "b", "c"), "a", "", "child", new(int))
	if err != nil || got != "b" {
		t.Fatalf("expected b, got %v err %v", got, err)
	}
}

func TestResolveNodeExplicitExcluded(t *testing.T) {
	_, err := resolveNode(ExplicitNode("b"), nodes("a", "b", "c"), "a", "b", "child", new(int))
	if err != ErrNoAvailableNode {
		t.Fatalf("expected ErrNoAvailableNode, got %v", err)
	}
}

func TestResolveNodeLeastLoaded(t *testing.T) {
	candidates := []cluster.NodeInfo{
		{ID: "a", ProcessCount: 5},
		{ID: "b", ProcessCount: 1},
		{ID: "c", ProcessCount: 9},
	}
	got, err := resolveNode(LeastLoaded(), candidates, "a", "", "child", new(int))
	if err != nil || got != "b" {
		t.Fatalf("expected b (least loaded), got %v err %v", got, err)
	}
}

func TestResolveNodeRoundRobinAdvances(t *testing.T) {
	rr := new(int)
	candidates := nodes("a", "b", "c")
	first, _ := resolveNode(RoundRobin(), candidates, "a", "", "child", rr)
	second, _ := resolveNode(RoundRobin(), candidates, "a", "", "child", rr)
	third, _ := resolveNode(RoundRobin(), candidates, "a", "", "child", rr)
	fourth, _ := resolveNode(RoundRobin(), candidates, "a", "", "child", rr)
	if first != "a" || second != "b" || third != "c" || fourth != "a" {
		t.Fatalf("expected round-robin cycle a,b,c,a got %v,%v,%v,%v", first, second, third, fourth)
	}
}

func TestResolveNodeLocalFirstPrefersLocal(t *testing.T) {
	got, err := resolveNode(LocalFirst(), nodes("a", "b"), "b", "", "child", new(int))
	if err != nil || got != "b" {
		t.Fatalf("expected local node b, got %v err %v", got, err)
	}
}

func TestResolveNodeLocalFirstFallsBackWhenLocalExcluded(t *testing.T) {
	got, err := resolveNode(LocalFirst(), nodes("a", "b"), "b", "b", "child", new(int))
	if err != nil || got != "a" {
		t.Fatalf("expected fallback to a, got %v err %v", got, err)
	}
}

func TestResolveNodeFuncStrategy(t *testing.T) {
	fn := func(pool []cluster.NodeInfo, childID string) cluster.NodeID { return pool[len(pool)-1].ID }
	got, err := resolveNode(WithSelectorFunc(fn), nodes("a", "b", "c"), "a", "", "child", new(int))
	if err != nil || got != "c" {
		t.Fatalf("expected c, got %v err %v", got, err)
	}
}

func TestResolveNodeEmptyPool(t *testing.T) {
	_, err := resolveNode(RoundRobin(), nodes("a"), "a", "a", "child", new(int))
	if err != ErrNoAvailableNode {
		t.Fatalf("expected ErrNoAvailableNode, got %v", err)
	}
}

// echoBehavior is a minimal behavior that just survives, for placement tests.
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

// TestFailoverMigratesChildFromDownNode runs two real nodes, places a child
// on node b with round_robin (the connected peer comes first among the
// candidates), stops b (which announces a graceful shutdown), and asserts
// the supervisor fires exactly one node_failure_detected and one
// child_migrated, landing the child back on node a.
func TestFailoverMigratesChildFromDownNode(t *testing.T) {
	clA := newTestCluster(t, "nodea", 18901, nil)
	clB := newTestCluster(t, "nodeb", 18902, []string{"nodea@127.0.0.1:18901"})

	waitUntilConnected(t, clA, clB.GetLocalNodeID())
	waitUntilConnected(t, clB, clA.GetLocalNodeID())

	kernelA := actor.NewKernel(string(clA.GetLocalNodeID()))
	behaviorsA := distribution.NewBehaviorRegistry()
	behaviorsA.Register("echo", func() actor.Behavior { return echoBehavior{} })
	routerA := distribution.New(kernelA, clA, behaviorsA, nil)

	kernelB := actor.NewKernel(string(clB.GetLocalNodeID()))
	behaviorsB := distribution.NewBehaviorRegistry()
	behaviorsB.Register("echo", func() actor.Behavior { return echoBehavior{} })
	distribution.New(kernelB, clB, behaviorsB, nil)

	sv := New(kernelA, clA, routerA, WithName("svc-sup"))

	var migratedTo cluster.NodeID
	var failedNode cluster.NodeID
	migratedCh := make(chan struct{}, 1)
	failedCh := make(chan struct{}, 1)
	sv.OnChildMigrated(func(childID string, from, to cluster.NodeID) {
		migratedTo = to
		select {
		case migratedCh <- struct{}{}:
		default:
		}
	})
	sv.OnNodeFailureDetected(func(nodeID cluster.NodeID, affected []string) {
		failedNode = nodeID
		select {
		case failedCh <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sv.Start(ctx, ChildSpec{
		ID:           "svc",
		BehaviorName: "echo",
		Selector:     RoundRobin(),
		Restart:      supervisor.Permanent,
		SpawnTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sv.Stop()

	info, ok := sv.GetChild("svc")
	if !ok || info.Node != clB.GetLocalNodeID() {
		t.Fatalf("expected svc placed on node b, got %+v ok=%v", info, ok)
	}

	if err := clB.Stop(context.Background()); err != nil {
		t.Fatalf("stop node b: %v", err)
	}

	select {
	case <-failedCh:
	case <-time.After(5 * time.Second):
		t.Fatalf("node_failure_detected never fired")
	}
	select {
	case <-migratedCh:
	case <-time.After(5 * time.Second):
		t.Fatalf("child_migrated never fired")
	}

	if failedNode != clB.GetLocalNodeID() {
		t.Fatalf("expected failure reported for node b, got %s", failedNode)
	}
	if migratedTo != clA.GetLocalNodeID() {
		t.Fatalf("expected child migrated to node a, got %s", migratedTo)
	}

	stats := sv.GetStats()
	if stats.NodeFailuresHandled != 1 {
		t.Fatalf("expected 1 node failure handled, got %d", stats.NodeFailuresHandled)
	}
	if stats.TotalRestarts != 1 {
		t.Fatalf("expected 1 restart, got %d", stats.TotalRestarts)
	}
}
