// SPDX-License-Identifier: BSD-3-Clause

// Package telemetry provides OpenTelemetry integration for the runtime's own
// instrumentation: trace spans around supervisor restart decisions, cluster
// handshakes and heartbeats, and FSM transitions.
//
// The package installs no exporter by default. DefaultSetup configures
// in-process trace and meter providers tagged with a service resource and
// installs them as the global OpenTelemetry providers, replacing any set
// before; a host application can attach its own span/metric processors to
// them after calling DefaultSetup, and the runtime forces no network egress
// on embedders that don't want it.
//
// # Basic usage
//
//	telemetry.DefaultSetup()
//	tracer := telemetry.GetTracer("noex/supervisor")
//	ctx, span := tracer.Start(ctx, "supervisor.restartChild")
//	defer span.End()
//
// Call Setup explicitly (instead of relying on DefaultSetup's lazy
// initialization) when the service name or sampling ratio needs to be
// customized:
//
//	shutdown, err := telemetry.Setup(ctx, telemetry.WithServiceName("noex-node-a"))
//	if err != nil {
//		return err
//	}
//	defer shutdown(ctx)
package telemetry
