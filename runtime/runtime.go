// SPDX-License-Identifier: BSD-3-Clause

package runtime

import (
	"context"
	"fmt"

	"cirello.io/oversight/v2"
	"github.com/arunsworld/nursery"
	"github.com/nats-io/nats.go"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
	"github.com/hamicek/noex-sub004/pkg/distribution"
	"github.com/hamicek/noex-sub004/pkg/dsupervisor"
	"github.com/hamicek/noex-sub004/pkg/eventbus"
	"github.com/hamicek/noex-sub004/pkg/id"
	"github.com/hamicek/noex-sub004/pkg/ipc"
	"github.com/hamicek/noex-sub004/pkg/log"
	"github.com/hamicek/noex-sub004/pkg/process"
	"github.com/hamicek/noex-sub004/service"
)

const defaultBanner = `
  actor runtime
  process kernel · supervisor · cluster · distribution
`

// Compile-time assertion that Runtime implements service.Service, so a
// Runtime can itself be nested inside another oversight tree.
var _ service.Service = (*Runtime)(nil)

// Runtime assembles and supervises one node's worth of actor-runtime
// infrastructure: an embedded NATS broker, an actor.Kernel, an event bus,
// cluster membership, cross-node routing, and an optional distributed
// supervisor.
type Runtime struct {
	config

	kernel  *actor.Kernel
	cluster *cluster.Cluster
	router  *distribution.Router
	bus     *eventbus.Bus
	dsup    *dsupervisor.DistributedSupervisor
}

// New creates an unstarted Runtime from the given options.
func New(opts ...Option) *Runtime {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Runtime{config: *cfg}
}

// Name returns the runtime's configured name.
func (r *Runtime) Name() string { return r.name }

// Kernel returns the process kernel this runtime started, valid once Run
// has reached the bootstrap phase.
func (r *Runtime) Kernel() *actor.Kernel { return r.kernel }

// Cluster returns the cluster membership this runtime started.
func (r *Runtime) Cluster() *cluster.Cluster { return r.cluster }

// Router returns the cross-node router this runtime started.
func (r *Runtime) Router() *distribution.Router { return r.router }

// DistributedSupervisor returns the distributed supervisor, if any children
// were declared via WithDistributedChildren.
func (r *Runtime) DistributedSupervisor() *dsupervisor.DistributedSupervisor { return r.dsup }

// Run starts the embedded IPC broker (or reuses ipcConn, if given), then
// bootstraps the kernel/bus/cluster/router/distributed-supervisor stack,
// and blocks until ctx is canceled or a fatal startup error occurs.
//
// The ipcConn parameter may be nil if an IPC service was configured via
// WithIPC. If both are given, the external ipcConn takes precedence and no
// embedded broker is started.
func (r *Runtime) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) (err error) {
	if r.name == "" {
		return ErrNameEmpty
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s %w: %v", r.Name(), ErrPanicked, rec)
		}
	}()

	r.otelSetup()
	l := log.GetGlobalLogger()

	if r.id == "" {
		r.id = id.NewID()
	}

	if !r.disableLogo {
		if r.customLogo != "" {
			l.Info(r.customLogo)
		} else {
			l.Info(defaultBanner)
		}
	}

	if r.ipc == nil && ipcConn == nil {
		return ErrIPCNil
	}

	tree := oversight.New(
		oversight.NeverHalt(),
		oversight.DefaultRestartStrategy(),
		oversight.WithLogger(log.NewOversightLogger(l)),
	)

	if r.ipc != nil && ipcConn == nil {
		if err := tree.Add(
			process.New(r.ipc, nil),
			oversight.Transient(),
			oversight.Timeout(r.timeout),
			r.ipc.Name(),
		); err != nil {
			return fmt.Errorf("%w %s to tree: %w", ErrAddProcess, r.ipc.Name(), err)
		}
	} else {
		if err := tree.Add(
			process.New(ipc.NewStub(), nil),
			oversight.Transient(),
			oversight.Timeout(r.timeout),
			"ipc-stub",
		); err != nil {
			return fmt.Errorf("%w %s to tree: %w", ErrAddProcess, "ipc-stub", err)
		}
	}

	for _, svc := range r.extraServices {
		if err := tree.Add(
			process.New(svc, ipcConn),
			oversight.Transient(),
			oversight.Timeout(r.timeout),
			svc.Name(),
		); err != nil {
			return fmt.Errorf("%w %s to tree: %w", ErrAddExtraService, svc.Name(), err)
		}
	}

	supervise := func(ctx context.Context, c chan error) {
		c <- tree.Start(ctx)
	}

	bootstrap := func(ctx context.Context, c chan error) {
		c <- r.bootstrap(ctx, ipcConn)
	}

	l.InfoContext(ctx, "starting runtime", "name", r.name, "id", r.id)
	return nursery.RunConcurrentlyWithContext(ctx, supervise, bootstrap)
}

// bootstrap wires the kernel, event bus, cluster, router, and distributed
// supervisor together, then blocks until ctx is done and shuts everything
// down in reverse order.
func (r *Runtime) bootstrap(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
	l := log.GetGlobalLogger()

	conn := ipcConn
	if conn == nil {
		conn = r.ipc.GetConnProvider()
	}
	nc, err := nats.Connect("", nats.InProcessServer(conn))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEventBusStart, err)
	}
	defer nc.Close()

	r.kernel = actor.NewKernel(r.name)

	bus, err := eventbus.New(ctx, r.kernel, nc, r.eventBusOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEventBusStart, err)
	}
	r.bus = bus

	clusterOpts := append([]cluster.Option{cluster.WithProcessCountProvider(r.kernel.Count)}, r.clusterOpts...)
	cl, err := cluster.New(clusterOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrClusterStart, err)
	}
	if err := cl.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrClusterStart, err)
	}
	r.cluster = cl

	r.router = distribution.New(r.kernel, cl, r.behaviors, l)

	if len(r.children) > 0 {
		r.dsup = dsupervisor.New(r.kernel, cl, r.router, r.dsupervisorOpts...)
		if err := r.dsup.Start(ctx, r.children...); err != nil {
			_ = cl.Stop(context.Background())
			return fmt.Errorf("%w: %w", ErrDistributedSupervisorStart, err)
		}
	}

	l.InfoContext(ctx, "runtime bootstrap complete", "name", r.name, "node", cl.GetLocalNodeID())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if r.dsup != nil {
		_ = r.dsup.Stop()
	}
	_ = cl.Stop(shutdownCtx)

	return ctx.Err()
}
