// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
)

// Supervisor runs one supervision subtree. All mutable state is owned by a
// single goroutine started by Start; every public method is a request sent
// over a channel and answered on a per-call reply channel.
type Supervisor struct {
	kernel       *actor.Kernel
	strategy     Strategy
	intensity    RestartIntensity
	autoShutdown AutoShutdown
	template     ChildTemplate
	logger       *slog.Logger
	name         string
	selfExit     ExitListener

	reqCh    chan request
	exitedCh chan childExit
	stopCh   chan struct{}
	doneCh   chan struct{}

	startErrCh chan error
	finalErr   error
}

type childExit struct {
	id     string
	reason error
}

// New creates an unstarted supervisor.
func New(kernel *actor.Kernel, opts ...Option) *Supervisor {
	cfg := &config{
		strategy:     OneForOne,
		intensity:    DefaultRestartIntensity(),
		autoShutdown: Never,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	return &Supervisor{
		kernel:       kernel,
		strategy:     cfg.strategy,
		intensity:    cfg.intensity,
		autoShutdown: cfg.autoShutdown,
		template:     cfg.template,
		logger:       cfg.logger,
		name:         cfg.name,
		selfExit:     cfg.exitListener,
		reqCh:        make(chan request),
		exitedCh:     make(chan childExit, 32),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		startErrCh:   make(chan error, 1),
	}
}

// Start starts children in declared order and launches the supervisor's own
// run loop. It blocks until startup either completes or fails.
func (sv *Supervisor) Start(ctx context.Context, children ...ChildSpec) error {
	if sv.strategy == SimpleOneForOne {
		if len(children) > 0 {
			return ErrStaticChildrenDisallowed
		}
		if sv.template == nil {
			return ErrTemplateRequired
		}
	}

	go sv.run(ctx, children)
	return <-sv.startErrCh
}

// Stop shuts down every live child in reverse start order, then returns.
func (sv *Supervisor) Stop() error {
	close(sv.stopCh)
	<-sv.doneCh
	return sv.finalErr
}

// Done returns a channel closed once the supervisor has fully terminated,
// whether by Stop, auto-shutdown or exhausted restart intensity.
func (sv *Supervisor) Done() <-chan struct{} { return sv.doneCh }

// Err returns the reason the supervisor terminated, valid after Done closes.
func (sv *Supervisor) Err() error { return sv.finalErr }

// OnLifecycleEvent subscribes handler to every lifecycle event published by
// this supervisor's kernel, including crashed/terminated/restarted/started
// events for children this supervisor manages. The returned function
// unsubscribes.
func (sv *Supervisor) OnLifecycleEvent(handler actor.EventHandler) (unsubscribe func()) {
	return sv.kernel.Events().Subscribe(handler)
}

func (sv *Supervisor) run(ctx context.Context, initial []ChildSpec) {
	children, err := sv.startAll(ctx, initial)
	if err != nil {
		sv.startErrCh <- err
		close(sv.doneCh)
		return
	}
	sv.startErrCh <- nil

	var restartHistory []time.Time
	dynSeq := 0
	terminal := false
	var terminalErr error

	for !terminal {
		select {
		case req := <-sv.reqCh:
			children, terminal, terminalErr = sv.handleRequest(ctx, children, &restartHistory, &dynSeq, req)

		case exit := <-sv.exitedCh:
			children, terminal, terminalErr = sv.handleExit(ctx, children, &restartHistory, exit)

		case <-sv.stopCh:
			sv.shutdownAll(children)
			close(sv.doneCh)
			return
		}
	}

	sv.shutdownAll(children)
	sv.finalErr = terminalErr
	close(sv.doneCh)
	if sv.selfExit != nil {
		sv.selfExit(actor.ProcessRef{ID: sv.name}, terminalErr)
	}
}

func (sv *Supervisor) startAll(ctx context.Context, specs []ChildSpec) ([]*childRecord, error) {
	children := make([]*childRecord, 0, len(specs))

	for _, spec := range specs {
		rec, err := sv.startStatic(ctx, spec)
		if err != nil {
			for i := len(children) - 1; i >= 0; i-- {
				sv.stopAndWait(children[i])
			}
			return nil, fmt.Errorf("start child %q: %w", spec.ID, err)
		}
		children = append(children, rec)
	}
	return children, nil
}

func (sv *Supervisor) startStatic(ctx context.Context, spec ChildSpec) (*childRecord, error) {
	rec := &childRecord{spec: spec}
	ref, err := spec.Start(ctx, sv.kernel, sv.exitListenerFor(spec.ID))
	if err != nil {
		return nil, err
	}
	rec.ref = ref
	rec.alive = true
	return rec, nil
}

func (sv *Supervisor) exitListenerFor(id string) ExitListener {
	return func(ref actor.ProcessRef, reason error) {
		select {
		case sv.exitedCh <- childExit{id: id, reason: reason}:
		case <-sv.doneCh:
		}
	}
}

func (sv *Supervisor) indexOf(children []*childRecord, id string) int {
	for i, c := range children {
		if c.spec.ID == id {
			return i
		}
	}
	return -1
}

func (sv *Supervisor) stopAndWait(c *childRecord) {
	if !c.alive {
		return
	}
	timeout := c.spec.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	_ = sv.kernel.Stop(c.ref, actor.WithStopTimeout(timeout))

	deadline := time.Now().Add(timeout + time.Second)
	for sv.kernel.IsRunning(c.ref) && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	c.alive = false
}

func (sv *Supervisor) shutdownAll(children []*childRecord) {
	for i := len(children) - 1; i >= 0; i-- {
		sv.stopAndWait(children[i])
	}
}

func shouldRestart(policy RestartPolicy, reason error) bool {
	switch policy {
	case Permanent:
		return true
	case Transient:
		return actor.IsAbnormal(reason)
	case Temporary:
		return false
	default:
		return false
	}
}

// admitRestart applies the sliding-window restart-intensity check,
// mutating history in place. Returns false once the budget is exhausted.
func (sv *Supervisor) admitRestart(history *[]time.Time) bool {
	now := time.Now()
	cutoff := now.Add(-sv.intensity.Within)

	fresh := (*history)[:0]
	for _, t := range *history {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	*history = fresh

	if len(*history)+1 > sv.intensity.MaxRestarts {
		return false
	}
	*history = append(*history, now)
	return true
}
