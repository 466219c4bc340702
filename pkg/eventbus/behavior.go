// SPDX-License-Identifier: BSD-3-Clause

package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/nats-io/nats.go"
)

// Message is delivered to a subscription handler. Payload is the raw
// JSON-encoded publish body; handlers that need the original Go value must
// agree on a shape and unmarshal it themselves, same as any other
// NATS-backed consumer.
type Message struct {
	Topic   string
	Payload []byte
}

// Handler reacts to a delivered Message. A panicking or erroring handler is
// isolated: it is logged and does not affect other subscribers or the bus.
type Handler func(Message) error

type subscription struct {
	id      string
	pattern string
	handler Handler
}

type subscribeMsg struct {
	pattern string
	handler Handler
	reply   chan string
}

type unsubscribeMsg struct {
	id string
}

type deliverMsg struct {
	topic   string
	payload []byte
}

// busBehavior is the actor.Behavior backing one Bus. It owns the ordered
// subscription list and the NATS subscription that feeds it; every publish,
// local or remote, arrives through the same NATS round trip so subscribers
// observe a single consistent delivery order regardless of origin.
type busBehavior struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

type busState struct {
	nextID int
	subs   []subscription
}

func (b *busBehavior) Init(ctx context.Context, self actor.Self, args any) (any, error) {
	sub, err := b.nc.Subscribe(b.prefix+".>", func(msg *nats.Msg) {
		self.Cast(deliverMsg{
			topic:   topicFromSubject(b.prefix, msg.Subject),
			payload: msg.Data,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to bus subject: %w", err)
	}
	_ = sub

	return &busState{subs: nil}, nil
}

func (b *busBehavior) HandleCall(ctx context.Context, self actor.Self, msg any, state any) (any, any, error) {
	st := state.(*busState)

	switch m := msg.(type) {
	case subscribeMsg:
		st.nextID++
		id := fmt.Sprintf("sub-%d", st.nextID)
		st.subs = append(st.subs, subscription{id: id, pattern: m.pattern, handler: m.handler})
		return id, st, nil
	default:
		return nil, st, fmt.Errorf("eventbus: unknown call %T", msg)
	}
}

func (b *busBehavior) HandleCast(ctx context.Context, self actor.Self, msg any, state any) (any, error) {
	st := state.(*busState)

	switch m := msg.(type) {
	case unsubscribeMsg:
		for i, s := range st.subs {
			if s.id == m.id {
				st.subs = append(st.subs[:i], st.subs[i+1:]...)
				break
			}
		}
		return st, nil

	case deliverMsg:
		for _, s := range st.subs {
			if !matches(s.pattern, m.topic) {
				continue
			}
			b.invoke(s, Message{Topic: m.topic, Payload: m.payload})
		}
		return st, nil

	default:
		return st, fmt.Errorf("eventbus: unknown cast %T", msg)
	}
}

func (b *busBehavior) invoke(s subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event bus subscriber panicked",
				"subscription", s.id, "pattern", s.pattern, "panic", r)
		}
	}()
	if err := s.handler(msg); err != nil {
		b.logger.Warn("event bus subscriber returned error",
			"subscription", s.id, "pattern", s.pattern, "error", err)
	}
}
