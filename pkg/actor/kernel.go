// SPDX-License-Identifier: BSD-3-Clause

// Package actor implements the process kernel: mailbox-serialized dispatch
// over user-defined behaviors, with process identity, monitoring and
// lifecycle events. It is the innermost layer the rest of the runtime
// (registry, event bus, supervisor, state machine, cluster) builds on.
package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hamicek/noex-sub004/pkg/id"
)

const (
	phaseStarting int32 = iota
	phaseRunning
	phaseTerminating
	phaseTerminated
)

// NameRegistry is the subset of the Registry API the kernel needs to honor
// WithName. It is satisfied by *registry.Registry; kept as an interface
// here so pkg/actor never imports pkg/registry (registry instead imports
// actor for ProcessRef).
type NameRegistry interface {
	Register(name string, ref ProcessRef) error
	Unregister(name string)
}

// ProcessDown is delivered as a cast to every process monitoring a target
// exactly once, when the target terminates.
type ProcessDown struct {
	Ref    ProcessRef
	Reason error
}

// Kernel owns the set of processes local to one node and dispatches Start,
// Call, Cast, Stop and monitor bookkeeping against them.
type Kernel struct {
	node     string
	logger   *slog.Logger
	registry NameRegistry
	bus      *LifecycleBus

	mu        sync.RWMutex
	processes map[string]*process
}

// KernelOption configures a Kernel at construction.
type KernelOption interface{ applyKernel(*Kernel) }

type kernelRegistryOption struct{ r NameRegistry }

func (o kernelRegistryOption) applyKernel(k *Kernel) { k.registry = o.r }

// WithNameRegistry wires a NameRegistry so Start(..., WithName(...)) can
// register processes under a name.
func WithNameRegistry(r NameRegistry) KernelOption {
	return kernelRegistryOption{r: r}
}

type kernelLoggerOption struct{ l *slog.Logger }

func (o kernelLoggerOption) applyKernel(k *Kernel) { k.logger = o.l }

// WithKernelLogger sets the logger used for handler-cast error reports.
func WithKernelLogger(l *slog.Logger) KernelOption {
	return kernelLoggerOption{l: l}
}

// NewKernel creates a Kernel whose processes are addressed under node.
func NewKernel(node string, opts ...KernelOption) *Kernel {
	k := &Kernel{
		node:      node,
		logger:    slog.Default(),
		bus:       NewLifecycleBus(),
		processes: make(map[string]*process),
	}
	for _, opt := range opts {
		opt.applyKernel(k)
	}
	return k
}

// Node returns the local node id processes are addressed under.
func (k *Kernel) Node() string { return k.node }

// Count returns the number of processes currently tracked by the kernel,
// running or mid-termination. Used to feed cluster's gossiped
// NodeInfo.ProcessCount for the distributed supervisor's least_loaded
// node selector.
func (k *Kernel) Count() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.processes)
}

// Events returns the process-wide lifecycle bus.
func (k *Kernel) Events() *LifecycleBus { return k.bus }

// Start runs behavior.Init, allocates a mailbox and transitions the new
// process to running. On failure the ref is never published.
func (k *Kernel) Start(ctx context.Context, behavior Behavior, args any, opts ...StartOption) (ProcessRef, error) {
	cfg := newStartConfig(opts...)

	ref := ProcessRef{ID: id.NewID(), Node: k.node, Behavior: cfg.behaviorTag}
	p := &process{
		ref:         ref,
		behavior:    behavior,
		mailbox:     make(chan mailboxMessage, cfg.mailboxSize),
		doneCh:      make(chan struct{}),
		monitors:    make(map[string]ProcessRef),
		name:        cfg.name,
		logger:      k.logger,
		bus:         k.bus,
		kernel:      k,
		exitListener: cfg.exitListener,
	}
	self := &selfHandle{p: p}

	initCtx, cancel := context.WithTimeout(ctx, cfg.initTimeout)
	defer cancel()

	state, err := runInit(initCtx, behavior, self, args)
	if err != nil {
		if initCtx.Err() != nil {
			return ProcessRef{}, fmt.Errorf("%w: %w", ErrInitTimeout, initCtx.Err())
		}
		return ProcessRef{}, fmt.Errorf("%w: %w", ErrInit, err)
	}
	p.state = state

	if cfg.name != "" && k.registry != nil {
		if regErr := k.registry.Register(cfg.name, ref); regErr != nil {
			return ProcessRef{}, regErr
		}
	}

	k.mu.Lock()
	k.processes[ref.ID] = p
	k.mu.Unlock()

	p.phase.Store(phaseRunning)
	go p.run()

	k.bus.Publish(Event{Kind: EventStarted, Ref: ref})
	return ref, nil
}

func runInit(ctx context.Context, b Behavior, self Self, args any) (state any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panicked: %v", r)
		}
	}()
	return b.Init(ctx, self, args)
}

// Call enqueues a call message and suspends until the handler replies, the
// timeout elapses, or the process terminates first.
func (k *Kernel) Call(ctx context.Context, ref ProcessRef, msg any, opts ...CallOption) (any, error) {
	cfg := newCallConfig(opts...)

	p := k.lookup(ref)
	if p == nil {
		return nil, ErrNotRunning
	}

	reply := make(chan callResult, 1)
	envelope := mailboxMessage{kind: kindCall, payload: msg, reply: reply}

	select {
	case p.mailbox <- envelope:
	case <-p.doneCh:
		return nil, fmt.Errorf("%w: %w", ErrCalleeTerminated, p.exitReason)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	timer := newCallTimer(cfg.timeout)
	defer timer.Stop()

	select {
	case res := <-reply:
		return res.value, res.err
	case <-timer.C:
		return nil, ErrCallTimeout
	case <-p.doneCh:
		return nil, fmt.Errorf("%w: %w", ErrCalleeTerminated, p.exitReason)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cast enqueues msg and returns immediately; delivery is never reported.
func (k *Kernel) Cast(ref ProcessRef, msg any) error {
	p := k.lookup(ref)
	if p == nil {
		return ErrNotRunning
	}
	p.mailbox <- mailboxMessage{kind: kindCast, payload: msg}
	return nil
}

// Stop enqueues a system shutdown (or, if opts sets an abnormal reason, a
// crash) message. The current in-flight handler finishes first.
func (k *Kernel) Stop(ref ProcessRef, opts ...StopOption) error {
	cfg := newStopConfig(opts...)

	p := k.lookup(ref)
	if p == nil {
		return ErrNotRunning
	}

	kind := kindShutdown
	if IsAbnormal(cfg.reason) {
		kind = kindCrash
	}

	select {
	case p.mailbox <- mailboxMessage{kind: kind, reason: cfg.reason, shutdownTimeout: cfg.timeout}:
	case <-p.doneCh:
	}
	return nil
}

// Monitor registers observer to receive a single ProcessDown cast (delivered
// to observer's mailbox) when target terminates.
func (k *Kernel) Monitor(observer, target ProcessRef) error {
	p := k.lookup(target)
	if p == nil {
		return ErrNotRunning
	}
	p.mu.Lock()
	p.monitors[observer.String()] = observer
	p.mu.Unlock()
	return nil
}

// Demonitor removes observer's monitor on target, if any.
func (k *Kernel) Demonitor(observer, target ProcessRef) {
	p := k.lookup(target)
	if p == nil {
		return
	}
	p.mu.Lock()
	delete(p.monitors, observer.String())
	p.mu.Unlock()
}

// IsRunning reports whether ref's lifecycle phase is running.
func (k *Kernel) IsRunning(ref ProcessRef) bool {
	p := k.lookup(ref)
	return p != nil && p.phase.Load() == phaseRunning
}

func (k *Kernel) lookup(ref ProcessRef) *process {
	if ref.Node != "" && ref.Node != k.node {
		return nil
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.processes[ref.ID]
}

func (k *Kernel) deleteProcess(id string) {
	k.mu.Lock()
	delete(k.processes, id)
	k.mu.Unlock()
}
