// SPDX-License-Identifier: BSD-3-Clause

package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestBroker(t *testing.T) *nats.Conn {
	t.Helper()

	ns, err := server.NewServer(&server.Options{Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("new nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)

	return nc
}

func TestPublishMatchesLiteralPattern(t *testing.T) {
	nc := startTestBroker(t)
	k := actor.NewKernel("node1")
	bus, err := New(context.Background(), k, nc)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}

	received := make(chan Message, 1)
	unsub, err := bus.Subscribe("orders.created", func(m Message) error {
		received <- m
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if err := bus.Publish("orders.created", map[string]string{"id": "42"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case m := <-received:
		if m.Topic != "orders.created" {
			t.Fatalf("expected orders.created, got %s", m.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received the message")
	}
}

func TestSegmentWildcardMatchesOneSegment(t *testing.T) {
	nc := startTestBroker(t)
	k := actor.NewKernel("node1")
	bus, err := New(context.Background(), k, nc)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}

	received := make(chan string, 2)
	unsub, err := bus.Subscribe("orders.*", func(m Message) error {
		received <- m.Topic
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	_ = bus.Publish("orders.created", "x")
	_ = bus.Publish("orders.created.detail", "x") // should not match orders.*

	select {
	case topic := <-received:
		if topic != "orders.created" {
			t.Fatalf("unexpected topic %s", topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected one delivery for orders.created")
	}

	select {
	case topic := <-received:
		t.Fatalf("unexpected second delivery for %s", topic)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBareWildcardMatchesEverything(t *testing.T) {
	nc := startTestBroker(t)
	k := actor.NewKernel("node1")
	bus, err := New(context.Background(), k, nc)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}

	received := make(chan string, 4)
	unsub, err := bus.Subscribe("*", func(m Message) error {
		received <- m.Topic
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	_ = bus.Publish("a.b.c", "x")

	select {
	case topic := <-received:
		if topic != "a.b.c" {
			t.Fatalf("unexpected topic %s", topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected bare wildcard to catch everything")
	}
}

func TestSubscriberPanicIsolated(t *testing.T) {
	nc := startTestBroker(t)
	k := actor.NewKernel("node1")
	bus, err := New(context.Background(), k, nc)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}

	okReceived := make(chan struct{}, 1)
	_, _ = bus.Subscribe("ev", func(m Message) error { panic("boom") })
	_, _ = bus.Subscribe("ev", func(m Message) error {
		okReceived <- struct{}{}
		return nil
	})

	_ = bus.Publish("ev", "x")

	select {
	case <-okReceived:
	case <-time.After(2 * time.Second):
		t.Fatal("second subscriber should still run despite first panicking")
	}
}
