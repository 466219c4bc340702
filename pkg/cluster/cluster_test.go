// SPDX-License-Identifier: BSD-3-Clause

package cluster

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer ln.Close()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestTwoNodesDiscoverEachOtherViaHeartbeat(t *testing.T) {
	portA := freePort(t)
	portB := freePort(t)

	a, err := New(
		WithNodeName("a"), WithHost("127.0.0.1"), WithPort(portA),
		WithHeartbeatInterval(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new a: %v", err)
	}
	b, err := New(
		WithNodeName("b"), WithHost("127.0.0.1"), WithPort(portB),
		WithHeartbeatInterval(50*time.Millisecond),
		WithSeeds("a@127.0.0.1:"+strconv.Itoa(portA)),
	)
	if err != nil {
		t.Fatalf("new b: %v", err)
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start a: %v", err)
	}
	defer a.Stop(ctx)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start b: %v", err)
	}
	defer b.Stop(ctx)

	waitUntil(t, 3*time.Second, func() bool {
		return a.IsNodeConnected(b.GetLocalNodeID()) && b.IsNodeConnected(a.GetLocalNodeID())
	})
}

func TestNodeDownFiresOnGracefulShutdown(t *testing.T) {
	portA := freePort(t)
	portB := freePort(t)

	a, err := New(
		WithNodeName("a"), WithHost("127.0.0.1"), WithPort(portA),
		WithHeartbeatInterval(30*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new a: %v", err)
	}
	b, err := New(
		WithNodeName("b"), WithHost("127.0.0.1"), WithPort(portB),
		WithHeartbeatInterval(30*time.Millisecond),
		WithSeeds("a@127.0.0.1:"+strconv.Itoa(portA)),
	)
	if err != nil {
		t.Fatalf("new b: %v", err)
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start a: %v", err)
	}
	defer a.Stop(ctx)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start b: %v", err)
	}

	waitUntil(t, 3*time.Second, func() bool {
		return a.IsNodeConnected(b.GetLocalNodeID())
	})

	downCh := make(chan DownReason, 1)
	a.OnNodeDown(func(id NodeID, reason DownReason) {
		if id == b.GetLocalNodeID() {
			select {
			case downCh <- reason:
			default:
			}
		}
	})

	if err := b.Stop(ctx); err != nil {
		t.Fatalf("stop b: %v", err)
	}

	select {
	case reason := <-downCh:
		if reason != ReasonGracefulShutdown {
			t.Fatalf("expected graceful_shutdown, got %s", reason)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected onNodeDown to fire after graceful shutdown")
	}
}
