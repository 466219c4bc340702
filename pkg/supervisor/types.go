// SPDX-License-Identifier: BSD-3-Clause

// Package supervisor implements the supervision tree (§4.2): ordered child
// startup/shutdown, restart-policy decisions, the four restart strategies,
// restart-intensity limiting, and auto-shutdown on significant-child loss.
package supervisor

import (
	"context"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
)

// RestartPolicy decides whether a child is restarted after it exits.
type RestartPolicy string

const (
	Permanent RestartPolicy = "permanent"
	Transient RestartPolicy = "transient"
	Temporary RestartPolicy = "temporary"
)

// Strategy selects which siblings are affected when a child is restarted.
type Strategy string

const (
	OneForOne       Strategy = "one_for_one"
	OneForAll       Strategy = "one_for_all"
	RestForOne      Strategy = "rest_for_one"
	SimpleOneForOne Strategy = "simple_one_for_one"
)

// AutoShutdown controls whether the supervisor shuts itself down once a
// significant child is gone for good.
type AutoShutdown string

const (
	Never          AutoShutdown = "never"
	AnySignificant AutoShutdown = "any_significant"
	AllSignificant AutoShutdown = "all_significant"
)

// ExitListener is notified exactly once when a started process terminates.
// Child and template start functions receive one bound to their own record
// so the supervisor learns about exits without generic monitor bookkeeping.
type ExitListener func(ref actor.ProcessRef, reason error)

// StartFunc starts one static child, wiring exitListener as the process's
// actor.WithExitListener.
type StartFunc func(ctx context.Context, kernel *actor.Kernel, exitListener ExitListener) (actor.ProcessRef, error)

// ChildTemplate starts one dynamic child of a simple_one_for_one supervisor
// from caller-supplied args.
type ChildTemplate func(ctx context.Context, kernel *actor.Kernel, args any, exitListener ExitListener) (actor.ProcessRef, error)

// ChildSpec describes one statically declared child.
type ChildSpec struct {
	ID              string
	Start           StartFunc
	Restart         RestartPolicy
	ShutdownTimeout time.Duration
	Significant     bool
}

// RestartIntensity bounds how many restarts may occur within a sliding
// window before the supervisor gives up and terminates itself.
type RestartIntensity struct {
	MaxRestarts int
	Within      time.Duration
}

// DefaultRestartIntensity matches the contract default (3 restarts / 5s).
func DefaultRestartIntensity() RestartIntensity {
	return RestartIntensity{MaxRestarts: 3, Within: 5 * time.Second}
}

// ChildInfo is a read-only snapshot of one supervised child.
type ChildInfo struct {
	ID           string
	Ref          actor.ProcessRef
	Alive        bool
	RestartCount int
	Significant  bool
}

type childRecord struct {
	spec         ChildSpec
	ref          actor.ProcessRef
	alive        bool
	restartCount int
	args         any // only meaningful for simple_one_for_one dynamic children
}
