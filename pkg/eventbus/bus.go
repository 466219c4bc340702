// SPDX-License-Identifier: BSD-3-Clause

// Package eventbus implements topic-based publish/subscribe with
// dot-segment wildcard matching (§4.5), backed by an embedded NATS
// connection so publishes are visible to any other consumer attached to the
// same broker, not only to in-process subscribers.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/nats-io/nats.go"
)

// Bus is a running event bus. Each Bus is itself a process on the kernel it
// was started on; Subscribe and Publish are thin wrappers around Call/Cast
// against that process.
type Bus struct {
	kernel *actor.Kernel
	ref    actor.ProcessRef
	nc     *nats.Conn
	prefix string
}

// Option configures New.
type Option interface{ apply(*config) }

type config struct {
	prefix string
	logger *slog.Logger
}

type prefixOption struct{ prefix string }

func (o prefixOption) apply(c *config) { c.prefix = o.prefix }

// WithSubjectPrefix namespaces the bus's NATS subjects so multiple
// independent buses can share one broker (default "bus").
func WithSubjectPrefix(prefix string) Option {
	return prefixOption{prefix: prefix}
}

type loggerOption struct{ logger *slog.Logger }

func (o loggerOption) apply(c *config) { c.logger = o.logger }

// WithLogger sets the logger used to report isolated subscriber failures.
func WithLogger(logger *slog.Logger) Option {
	return loggerOption{logger: logger}
}

// New starts a bus process on kernel, using nc as its transport connection.
func New(ctx context.Context, kernel *actor.Kernel, nc *nats.Conn, opts ...Option) (*Bus, error) {
	cfg := &config{prefix: "bus", logger: slog.Default()}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	behavior := &busBehavior{nc: nc, prefix: cfg.prefix, logger: cfg.logger}
	ref, err := kernel.Start(ctx, behavior, nil, actor.WithBehaviorTag("eventbus"))
	if err != nil {
		return nil, fmt.Errorf("start event bus process: %w", err)
	}

	return &Bus{kernel: kernel, ref: ref, nc: nc, prefix: cfg.prefix}, nil
}

// Ref returns the ProcessRef of the bus's backing process.
func (b *Bus) Ref() actor.ProcessRef { return b.ref }

// Subscribe registers handler against pattern and returns a function that
// removes the subscription.
func (b *Bus) Subscribe(pattern string, handler Handler) (unsubscribe func(), err error) {
	result, err := b.kernel.Call(context.Background(), b.ref, subscribeMsg{pattern: pattern, handler: handler})
	if err != nil {
		return nil, err
	}
	id := result.(string)

	return func() {
		_ = b.kernel.Cast(b.ref, unsubscribeMsg{id: id})
	}, nil
}

// Publish encodes message as JSON and fans it out to every subscription
// whose pattern matches topic, local or remote alike.
func (b *Bus) Publish(topic string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotEncodable, err)
	}
	return b.nc.Publish(natsSubject(b.prefix, topic), data)
}
