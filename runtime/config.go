// SPDX-License-Identifier: BSD-3-Clause

package runtime

import (
	"log/slog"
	"time"

	"github.com/hamicek/noex-sub004/pkg/cluster"
	"github.com/hamicek/noex-sub004/pkg/distribution"
	"github.com/hamicek/noex-sub004/pkg/dsupervisor"
	"github.com/hamicek/noex-sub004/pkg/eventbus"
	"github.com/hamicek/noex-sub004/pkg/telemetry"
	"github.com/hamicek/noex-sub004/service"
	"github.com/hamicek/noex-sub004/service/ipc"
)

type config struct {
	name        string
	id          string
	disableLogo bool
	customLogo  string
	otelSetup   func()
	logger      *slog.Logger
	timeout     time.Duration

	ipc *ipc.IPC

	clusterOpts     []cluster.Option
	eventBusOpts    []eventbus.Option
	behaviors       *distribution.BehaviorRegistry
	dsupervisorOpts []dsupervisor.Option
	children        []dsupervisor.ChildSpec

	extraServices []service.Service
}

// Option configures a Runtime at construction.
type Option interface{ apply(*config) }

type nameOption struct{ name string }

func (o nameOption) apply(c *config) { c.name = o.name }

// WithName sets the runtime's own name, used in logs and as the default
// oversight tree identity.
func WithName(name string) Option { return nameOption{name: name} }

type idOption struct{ id string }

func (o idOption) apply(c *config) { c.id = o.id }

// WithID pins the runtime's identity instead of generating one.
func WithID(id string) Option { return idOption{id: id} }

type disableLogoOption struct{ disableLogo bool }

func (o disableLogoOption) apply(c *config) { c.disableLogo = o.disableLogo }

// WithDisableLogo suppresses the startup banner.
func WithDisableLogo(disableLogo bool) Option { return disableLogoOption{disableLogo: disableLogo} }

type customLogoOption struct{ customLogo string }

func (o customLogoOption) apply(c *config) { c.customLogo = o.customLogo }

// WithCustomLogo replaces the default startup banner text.
func WithCustomLogo(customLogo string) Option { return customLogoOption{customLogo: customLogo} }

type otelSetupOption struct{ fn func() }

func (o otelSetupOption) apply(c *config) { c.otelSetup = o.fn }

// WithOtelSetup overrides the OpenTelemetry bootstrap called once at the
// start of Run (default: pkg/telemetry.DefaultSetup, which installs
// in-process trace and meter providers with no exporter).
func WithOtelSetup(fn func()) Option { return otelSetupOption{fn: fn} }

type loggerOption struct{ logger *slog.Logger }

func (o loggerOption) apply(c *config) { c.logger = o.logger }

// WithLogger sets the structured logger used for startup/shutdown events.
func WithLogger(logger *slog.Logger) Option { return loggerOption{logger: logger} }

type timeoutOption struct{ timeout time.Duration }

func (o timeoutOption) apply(c *config) { c.timeout = o.timeout }

// WithTimeout sets the startup/shutdown timeout applied to every supervised
// process in the oversight tree.
func WithTimeout(timeout time.Duration) Option { return timeoutOption{timeout: timeout} }

type ipcOption struct{ ipc *ipc.IPC }

func (o ipcOption) apply(c *config) { c.ipc = o.ipc }

// WithIPC configures the embedded NATS broker backing the event bus.
// Caller-supplied services are handed the ipcConn given to Run, which is nil
// when only WithIPC is used. Omit this and pass a non-nil ipcConn to Run
// instead to reuse an externally managed broker.
func WithIPC(opts ...ipc.Option) Option { return ipcOption{ipc: ipc.New(opts...)} }

type clusterOption struct{ opts []cluster.Option }

func (o clusterOption) apply(c *config) { c.clusterOpts = o.opts }

// WithCluster configures cluster membership (§4.6). The runtime always
// appends its own WithProcessCountProvider wired to the kernel it creates,
// so a least_loaded distributed-supervisor selector has real data even if
// the caller never mentions process counts.
func WithCluster(opts ...cluster.Option) Option { return clusterOption{opts: opts} }

type eventBusOption struct{ opts []eventbus.Option }

func (o eventBusOption) apply(c *config) { c.eventBusOpts = o.opts }

// WithEventBus configures the in-process event bus (§4.5).
func WithEventBus(opts ...eventbus.Option) Option { return eventBusOption{opts: opts} }

type behaviorsOption struct{ behaviors *distribution.BehaviorRegistry }

func (o behaviorsOption) apply(c *config) { c.behaviors = o.behaviors }

// WithBehaviors supplies the node-local behavior registry remote spawns are
// resolved against (§4.7). Every node in a cluster must register the same
// names against equivalent behaviors.
func WithBehaviors(behaviors *distribution.BehaviorRegistry) Option {
	return behaviorsOption{behaviors: behaviors}
}

type distributedSupervisorOption struct{ opts []dsupervisor.Option }

func (o distributedSupervisorOption) apply(c *config) { c.dsupervisorOpts = o.opts }

// WithDistributedSupervisor configures the distributed supervisor (§4.8).
// Has no effect unless WithDistributedChildren also names at least one
// child to place.
func WithDistributedSupervisor(opts ...dsupervisor.Option) Option {
	return distributedSupervisorOption{opts: opts}
}

type childrenOption struct{ children []dsupervisor.ChildSpec }

func (o childrenOption) apply(c *config) { c.children = o.children }

// WithDistributedChildren declares the children the distributed supervisor
// places and migrates on node failure. Declaring at least one child is what
// turns the distributed supervisor on.
func WithDistributedChildren(children ...dsupervisor.ChildSpec) Option {
	return childrenOption{children: children}
}

type extraServicesOption struct{ services []service.Service }

func (o extraServicesOption) apply(c *config) { c.extraServices = o.services }

// WithExtraServices adds caller-supplied services to the oversight tree,
// started alongside the embedded IPC broker.
func WithExtraServices(services ...service.Service) Option {
	return extraServicesOption{services: services}
}

func defaultConfig() *config {
	return &config{
		name:      "runtime",
		otelSetup: telemetry.DefaultSetup,
		logger:    slog.Default(),
		timeout:   10 * time.Second,
		behaviors: distribution.NewBehaviorRegistry(),
	}
}
