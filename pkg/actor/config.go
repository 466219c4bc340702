// SPDX-License-Identifier: BSD-3-Clause

package actor

import "time"

// startConfig holds the options accepted by Kernel.Start.
type startConfig struct {
	name         string
	behaviorTag  string
	initTimeout  time.Duration
	mailboxSize  int
	exitListener func(ref ProcessRef, reason error)
}

func newStartConfig(opts ...StartOption) *startConfig {
	c := &startConfig{
		initTimeout: 5 * time.Second,
		mailboxSize: 128,
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// StartOption configures a call to Kernel.Start.
type StartOption interface {
	apply(*startConfig)
}

type nameOption struct{ name string }

func (o nameOption) apply(c *startConfig) { c.name = o.name }

// WithName registers the started process under name in the kernel's name
// registry. Start fails with ErrAlreadyRegistered if name is already bound.
func WithName(name string) StartOption {
	return nameOption{name: name}
}

type behaviorTagOption struct{ tag string }

func (o behaviorTagOption) apply(c *startConfig) { c.behaviorTag = o.tag }

// WithBehaviorTag sets the introspection tag carried on the returned ref.
func WithBehaviorTag(tag string) StartOption {
	return behaviorTagOption{tag: tag}
}

type initTimeoutOption struct{ d time.Duration }

func (o initTimeoutOption) apply(c *startConfig) { c.initTimeout = o.d }

// WithInitTimeout bounds how long Init may run before Start fails with
// ErrInitTimeout.
func WithInitTimeout(d time.Duration) StartOption {
	return initTimeoutOption{d: d}
}

type mailboxSizeOption struct{ n int }

func (o mailboxSizeOption) apply(c *startConfig) { c.mailboxSize = o.n }

// WithMailboxSize sets the buffered mailbox capacity (default 128).
func WithMailboxSize(n int) StartOption {
	return mailboxSizeOption{n: n}
}

type exitListenerOption struct {
	fn func(ref ProcessRef, reason error)
}

func (o exitListenerOption) apply(c *startConfig) { c.exitListener = o.fn }

// WithExitListener registers fn to be invoked exactly once, after the
// process fully terminates (orderly or crashed). Supervisors use this to
// learn about child exits without general-purpose monitoring.
func WithExitListener(fn func(ref ProcessRef, reason error)) StartOption {
	return exitListenerOption{fn: fn}
}
