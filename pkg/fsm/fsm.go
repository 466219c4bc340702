// SPDX-License-Identifier: BSD-3-Clause

package fsm

import (
	"context"
	"log/slog"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/telemetry"
)

// Option configures Start.
type Option interface{ apply(*options) }

type options struct {
	logger     *slog.Logger
	tracerName string
	startOpts  []actor.StartOption
}

type loggerOption struct{ l *slog.Logger }

func (o loggerOption) apply(c *options) { c.logger = o.l }

// WithLogger sets the logger used for dispatch-level diagnostics.
func WithLogger(l *slog.Logger) Option {
	return loggerOption{l: l}
}

type tracerOption struct{ name string }

func (o tracerOption) apply(c *options) { c.tracerName = o.name }

// WithTracerName enables tracing of dispatch under the given instrumentation
// name (via pkg/telemetry.GetTracer). Tracing is disabled if never set.
func WithTracerName(name string) Option {
	return tracerOption{name: name}
}

type startOptsOption struct{ opts []actor.StartOption }

func (o startOptsOption) apply(c *options) { c.startOpts = o.opts }

// WithProcessOptions forwards opts to the underlying actor.Kernel.Start call
// (e.g. actor.WithName, actor.WithMailboxSize).
func WithProcessOptions(opts ...actor.StartOption) Option {
	return startOptsOption{opts: opts}
}

// Start spawns a state-machine process implementing def on kernel.
func Start(ctx context.Context, kernel *actor.Kernel, name string, def Definition, args any, opts ...Option) (actor.ProcessRef, error) {
	cfg := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	m := &machine{def: def, logger: cfg.logger, name: name}
	if cfg.tracerName != "" {
		m.tracer = telemetry.GetTracer(cfg.tracerName)
	}

	startOpts := append([]actor.StartOption{actor.WithBehaviorTag("fsm:" + name)}, cfg.startOpts...)
	return kernel.Start(ctx, m, args, startOpts...)
}

// CallWithReply sends ev to ref and blocks until a handler answers it with a
// ReplyAction naming the resulting token, the machine terminates first
// (ErrCalleeTerminated), or timeout elapses (ErrCallTimeout).
func CallWithReply(ctx context.Context, kernel *actor.Kernel, ref actor.ProcessRef, ev Event, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	reply := make(chan callOutcome, 1)
	env := deferredEnvelope{id: newID(), event: ev, reply: reply}

	if err := kernel.Cast(ref, env); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-reply:
		return out.value, out.err
	case <-timer.C:
		return nil, ErrCallTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send delivers ev as a fire-and-forget event, equivalent to a plain cast.
func Send(kernel *actor.Kernel, ref actor.ProcessRef, ev Event) error {
	return kernel.Cast(ref, ev)
}
