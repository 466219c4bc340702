// SPDX-License-Identifier: BSD-3-Clause

package dsupervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
	"github.com/hamicek/noex-sub004/pkg/distribution"
	"github.com/hamicek/noex-sub004/pkg/supervisor"
)

// DistributedSupervisor runs one supervision subtree whose children are
// placed across cluster nodes (§4.8). All mutable state is owned by a
// single goroutine started by Start; every public method is a request sent
// over a channel and answered on a per-call reply channel — the same shape
// pkg/supervisor uses for its local-only tree.
type DistributedSupervisor struct {
	kernel    *actor.Kernel
	cl        *cluster.Cluster
	router    *distribution.Router
	behaviors *distribution.BehaviorRegistry

	strategy     supervisor.Strategy
	intensity    supervisor.RestartIntensity
	autoShutdown supervisor.AutoShutdown
	logger       *slog.Logger
	name         string
	selfExit     ExitListener

	nodeFailureHandlers   []NodeFailureHandler
	childMigratedHandlers []ChildMigratedHandler

	reqCh      chan request
	exitedCh   chan childExit
	nodeDownCh chan nodeDownEvent
	stopCh     chan struct{}
	doneCh     chan struct{}

	startErrCh chan error
	finalErr   error
}

type childExit struct {
	id     string
	reason error
}

type nodeDownEvent struct {
	id     cluster.NodeID
	reason cluster.DownReason
}

type childRecord struct {
	spec         ChildSpec
	ref          actor.ProcessRef
	node         cluster.NodeID
	alive        bool
	restartCount int
}

// New creates an unstarted DistributedSupervisor over kernel (the local
// node's process kernel) and router (which owns cl and behaviors).
func New(kernel *actor.Kernel, cl *cluster.Cluster, router *distribution.Router, opts ...Option) *DistributedSupervisor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}

	sv := &DistributedSupervisor{
		kernel:       kernel,
		cl:           cl,
		router:       router,
		behaviors:    router.Behaviors(),
		strategy:     cfg.strategy,
		intensity:    cfg.intensity,
		autoShutdown: cfg.autoShutdown,
		logger:       cfg.logger,
		name:         cfg.name,
		selfExit:     cfg.exitListener,
		reqCh:        make(chan request),
		exitedCh:     make(chan childExit, 32),
		nodeDownCh:   make(chan nodeDownEvent, 32),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		startErrCh:   make(chan error, 1),
	}
	cl.OnNodeDown(func(id cluster.NodeID, reason cluster.DownReason) {
		select {
		case sv.nodeDownCh <- nodeDownEvent{id: id, reason: reason}:
		case <-sv.doneCh:
		}
	})
	return sv
}

// OnNodeFailureDetected registers fn, fired once per lost node with the
// children that were placed there. Register before Start; handlers are
// read only from the supervisor's own run loop, with no further locking.
func (sv *DistributedSupervisor) OnNodeFailureDetected(fn NodeFailureHandler) {
	sv.nodeFailureHandlers = append(sv.nodeFailureHandlers, fn)
}

// OnChildMigrated registers fn, fired once per child moved to a new node.
// Register before Start, same caveat as OnNodeFailureDetected.
func (sv *DistributedSupervisor) OnChildMigrated(fn ChildMigratedHandler) {
	sv.childMigratedHandlers = append(sv.childMigratedHandlers, fn)
}

// OnLifecycleEvent subscribes handler to every lifecycle event published by
// the local kernel, including crashed/terminated/restarted/started events
// for locally placed children. The returned function unsubscribes. Children
// placed on remote nodes publish no event here — see the "remote exit
// monitoring is unsupported" note in DESIGN.md.
func (sv *DistributedSupervisor) OnLifecycleEvent(handler actor.EventHandler) (unsubscribe func()) {
	return sv.kernel.Events().Subscribe(handler)
}

// Start places children in declared order and launches the supervisor's own
// run loop. It blocks until startup either completes or fails.
func (sv *DistributedSupervisor) Start(ctx context.Context, children ...ChildSpec) error {
	if sv.strategy == supervisor.SimpleOneForOne {
		return ErrUnsupportedStrategy
	}
	go sv.run(ctx, children)
	return <-sv.startErrCh
}

// Stop terminates every live child, then returns.
func (sv *DistributedSupervisor) Stop() error {
	close(sv.stopCh)
	<-sv.doneCh
	return sv.finalErr
}

// Done returns a channel closed once the supervisor has fully terminated.
func (sv *DistributedSupervisor) Done() <-chan struct{} { return sv.doneCh }

// Err returns the reason the supervisor terminated, valid after Done closes.
func (sv *DistributedSupervisor) Err() error { return sv.finalErr }

func (sv *DistributedSupervisor) run(ctx context.Context, initial []ChildSpec) {
	children, err := sv.startAll(ctx, initial)
	if err != nil {
		sv.startErrCh <- err
		close(sv.doneCh)
		return
	}
	sv.startErrCh <- nil

	var restartHistory []time.Time
	var rrState int
	totalRestarts := 0
	nodeFailures := 0
	terminal := false
	var terminalErr error

	for !terminal {
		select {
		case req := <-sv.reqCh:
			children, terminal, terminalErr = sv.handleRequest(ctx, children, &restartHistory, &rrState, &totalRestarts, &nodeFailures, req)

		case exit := <-sv.exitedCh:
			children, terminal, terminalErr = sv.handleExit(ctx, children, &restartHistory, &rrState, &totalRestarts, exit)

		case ev := <-sv.nodeDownCh:
			children, terminal, terminalErr = sv.handleNodeDown(ctx, children, &restartHistory, &rrState, &totalRestarts, &nodeFailures, ev)

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
		sv.selfExit(terminalErr)
	}
}

func (sv *DistributedSupervisor) startAll(ctx context.Context, specs []ChildSpec) ([]*childRecord, error) {
	seen := make(map[string]bool, len(specs))
	children := make([]*childRecord, 0, len(specs))

	for _, spec := range specs {
		if seen[spec.ID] {
			for i := len(children) - 1; i >= 0; i-- {
				sv.stopAndWait(children[i])
			}
			return nil, fmt.Errorf("%w: %s", ErrDistributedDuplicateChild, spec.ID)
		}
		seen[spec.ID] = true

		rec, err := sv.placeChild(ctx, spec, "")
		if err != nil {
			for i := len(children) - 1; i >= 0; i-- {
				sv.stopAndWait(children[i])
			}
			return nil, fmt.Errorf("place child %q: %w", spec.ID, err)
		}
		children = append(children, rec)
	}
	return children, nil
}

// placeChild resolves a target node (excluding exclude, used on failover)
// and starts spec there, local or remote.
func (sv *DistributedSupervisor) placeChild(ctx context.Context, spec ChildSpec, exclude cluster.NodeID) (*childRecord, error) {
	node, err := sv.resolveNodeFor(spec, exclude, new(int))
	if err != nil {
		return nil, err
	}

	ref, err := sv.startOn(ctx, spec, node)
	if err != nil {
		return nil, err
	}
	return &childRecord{spec: spec, ref: ref, node: node, alive: true}, nil
}

func (sv *DistributedSupervisor) candidateNodes() []cluster.NodeInfo {
	nodes := sv.cl.GetConnectedNodes()
	return append(nodes, sv.cl.GetLocalNodeInfo())
}

func (sv *DistributedSupervisor) resolveNodeFor(spec ChildSpec, exclude cluster.NodeID, rrState *int) (cluster.NodeID, error) {
	return resolveNode(spec.Selector, sv.candidateNodes(), sv.cl.GetLocalNodeID(), exclude, spec.ID, rrState)
}

func (sv *DistributedSupervisor) startOn(ctx context.Context, spec ChildSpec, node cluster.NodeID) (actor.ProcessRef, error) {
	if node == sv.cl.GetLocalNodeID() {
		return sv.startLocal(ctx, spec)
	}
	return sv.startRemote(ctx, spec, node)
}

func (sv *DistributedSupervisor) startLocal(ctx context.Context, spec ChildSpec) (actor.ProcessRef, error) {
	factory, ok := sv.behaviors.Get(spec.BehaviorName)
	if !ok {
		return actor.ProcessRef{}, fmt.Errorf("%w: %s", distribution.ErrBehaviorNotFound, spec.BehaviorName)
	}

	var startOpts []actor.StartOption
	if spec.Registration != distribution.RegistrationNone {
		startOpts = append(startOpts, actor.WithName(spec.ID))
	}
	startOpts = append(startOpts, actor.WithExitListener(sv.exitListenerFor(spec.ID)))

	ref, err := sv.kernel.Start(ctx, factory(), spec.Args, startOpts...)
	if err != nil {
		return actor.ProcessRef{}, err
	}
	if spec.Registration == distribution.RegistrationGlobal {
		_ = sv.router.Global().Register(spec.ID, ref, 0)
	}
	return ref, nil
}

func (sv *DistributedSupervisor) startRemote(ctx context.Context, spec ChildSpec, node cluster.NodeID) (actor.ProcessRef, error) {
	spawnTimeout := spec.SpawnTimeout
	if spawnTimeout <= 0 {
		spawnTimeout = 10 * time.Second
	}
	return sv.router.StartRemote(ctx, spec.BehaviorName, distribution.SpawnOptions{
		TargetNode:   node,
		Name:         spec.ID,
		Registration: spec.Registration,
		SpawnTimeout: spawnTimeout,
		InitTimeout:  spec.InitTimeout,
		Args:         spec.Args,
	})
}

func (sv *DistributedSupervisor) exitListenerFor(id string) func(ref actor.ProcessRef, reason error) {
	return func(ref actor.ProcessRef, reason error) {
		select {
		case sv.exitedCh <- childExit{id: id, reason: reason}:
		case <-sv.doneCh:
		}
	}
}

func (sv *DistributedSupervisor) indexOf(children []*childRecord, id string) int {
	for i, c := range children {
		if c.spec.ID == id {
			return i
		}
	}
	return -1
}

// stopAndWait terminates c. Local children are polled via kernel.IsRunning,
// matching pkg/supervisor's own approach; remote children cannot be polled
// over the wire (§6 defines no remote isRunning frame), so a remote stop is
// fire-and-forget, same as the underlying STOP frame's own contract.
func (sv *DistributedSupervisor) stopAndWait(c *childRecord) {
	if !c.alive {
		return
	}
	timeout := c.spec.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	_ = sv.router.Stop(c.ref, timeout)

	if c.node == sv.cl.GetLocalNodeID() {
		deadline := time.Now().Add(timeout + time.Second)
		for sv.kernel.IsRunning(c.ref) && time.Now().Before(deadline) {
			time.Sleep(2 * time.Millisecond)
		}
	} else {
		time.Sleep(10 * time.Millisecond)
	}
	c.alive = false
}

func (sv *DistributedSupervisor) shutdownAll(children []*childRecord) {
	for i := len(children) - 1; i >= 0; i-- {
		sv.stopAndWait(children[i])
	}
}

func shouldRestart(policy supervisor.RestartPolicy, reason error) bool {
	switch policy {
	case supervisor.Permanent:
		return true
	case supervisor.Transient:
		return actor.IsAbnormal(reason)
	case supervisor.Temporary:
		return false
	default:
		return false
	}
}

func admitRestart(intensity supervisor.RestartIntensity, history *[]time.Time) bool {
	now := time.Now()
	cutoff := now.Add(-intensity.Within)

	fresh := (*history)[:0]
	for _, t := range *history {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	*history = fresh

	if len(*history)+1 > intensity.MaxRestarts {
		return false
	}
	*history = append(*history, now)
	return true
}

func snapshot(c *childRecord) ChildInfo {
	return ChildInfo{
		ID: c.spec.ID, Ref: c.ref, Node: c.node, Alive: c.alive,
		RestartCount: c.restartCount, Significant: c.spec.Significant,
	}
}

func snapshotAll(children []*childRecord) []ChildInfo {
	out := make([]ChildInfo, 0, len(children))
	for _, c := range children {
		out = append(out, snapshot(c))
	}
	return out
}
