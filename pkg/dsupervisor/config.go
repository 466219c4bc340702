// SPDX-License-Identifier: BSD-3-Clause

package dsupervisor

import (
	"log/slog"

	"github.com/hamicek/noex-sub004/pkg/supervisor"
)

type config struct {
	strategy     supervisor.Strategy
	intensity    supervisor.RestartIntensity
	autoShutdown supervisor.AutoShutdown
	logger       *slog.Logger
	name         string
	exitListener ExitListener
}

// Option configures a DistributedSupervisor at construction.
type Option interface{ apply(*config) }

type strategyOption struct{ s supervisor.Strategy }

func (o strategyOption) apply(c *config) { c.strategy = o.s }

// WithStrategy sets the restart strategy (default one_for_one);
// simple_one_for_one is not supported: Start returns ErrUnsupportedStrategy.
func WithStrategy(s supervisor.Strategy) Option { return strategyOption{s: s} }

type intensityOption struct{ i supervisor.RestartIntensity }

func (o intensityOption) apply(c *config) { c.intensity = o.i }

// WithRestartIntensity overrides the default (3 restarts / 5s) sliding
// window, shared across both ordinary exits and failover restarts.
func WithRestartIntensity(i supervisor.RestartIntensity) Option { return intensityOption{i: i} }

type autoShutdownOption struct{ a supervisor.AutoShutdown }

func (o autoShutdownOption) apply(c *config) { c.autoShutdown = o.a }

// WithAutoShutdown sets the auto-shutdown policy (default never).
func WithAutoShutdown(a supervisor.AutoShutdown) Option { return autoShutdownOption{a: a} }

type loggerOption struct{ l *slog.Logger }

func (o loggerOption) apply(c *config) { c.logger = o.l }

// WithLogger sets the logger used for restart/failover diagnostics.
func WithLogger(l *slog.Logger) Option { return loggerOption{l: l} }

type nameOption struct{ name string }

func (o nameOption) apply(c *config) { c.name = o.name }

// WithName sets the supervisor's own identity, used in log lines.
func WithName(name string) Option { return nameOption{name: name} }

type exitListenerOption struct{ fn ExitListener }

func (o exitListenerOption) apply(c *config) { c.exitListener = o.fn }

// WithExitListener registers fn to be called once this supervisor
// terminates.
func WithExitListener(fn ExitListener) Option { return exitListenerOption{fn: fn} }

func defaultConfig() *config {
	return &config{
		strategy:     supervisor.OneForOne,
		intensity:    supervisor.DefaultRestartIntensity(),
		autoShutdown: supervisor.Never,
		logger:       slog.Default(),
	}
}
