// SPDX-License-Identifier: BSD-3-Clause

// Package dsupervisor implements the distributed supervisor (§4.8): a
// supervision tree whose children are specified by behavior name and placed
// on cluster nodes via a selector, migrated automatically on node failure.
package dsupervisor

import (
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
	"github.com/hamicek/noex-sub004/pkg/distribution"
	"github.com/hamicek/noex-sub004/pkg/supervisor"
)

// SelectorStrategy names one of the built-in node selection strategies.
type SelectorStrategy string

const (
	LocalFirstStrategy  SelectorStrategy = "local_first"
	RoundRobinStrategy  SelectorStrategy = "round_robin"
	LeastLoadedStrategy SelectorStrategy = "least_loaded"
	RandomStrategy      SelectorStrategy = "random"
	explicitStrategy    SelectorStrategy = "explicit"
	fnStrategy          SelectorStrategy = "fn"
)

// SelectorFn picks a placement node for childID out of nodes (local node
// included), which never contains an excluded node.
type SelectorFn func(nodes []cluster.NodeInfo, childID string) cluster.NodeID

// NodeSelector picks where a child is placed. Build one with LocalFirst,
// RoundRobin, LeastLoaded, Random, ExplicitNode or WithSelectorFunc.
type NodeSelector struct {
	strategy SelectorStrategy
	node     cluster.NodeID
	fn       SelectorFn
}

func LocalFirst() NodeSelector  { return NodeSelector{strategy: LocalFirstStrategy} }
func RoundRobin() NodeSelector  { return NodeSelector{strategy: RoundRobinStrategy} }
func LeastLoaded() NodeSelector { return NodeSelector{strategy: LeastLoadedStrategy} }
func Random() NodeSelector      { return NodeSelector{strategy: RandomStrategy} }

// ExplicitNode always places the child on node (subject to exclusion on
// failover, in which case ErrNoAvailableNode is returned).
func ExplicitNode(node cluster.NodeID) NodeSelector {
	return NodeSelector{strategy: explicitStrategy, node: node}
}

// WithSelectorFunc places the child wherever fn decides.
func WithSelectorFunc(fn SelectorFn) NodeSelector {
	return NodeSelector{strategy: fnStrategy, fn: fn}
}

// ChildSpec describes one distributed child.
type ChildSpec struct {
	ID              string
	BehaviorName    string
	Args            any
	Selector        NodeSelector
	Registration    distribution.Registration
	Restart         supervisor.RestartPolicy
	ShutdownTimeout time.Duration
	SpawnTimeout    time.Duration
	InitTimeout     time.Duration
	Significant     bool
}

// ChildInfo is a read-only snapshot of one distributed child.
type ChildInfo struct {
	ID           string
	Ref          actor.ProcessRef
	Node         cluster.NodeID
	Alive        bool
	RestartCount int
	Significant  bool
}

// Stats summarizes a distributed supervisor's lifetime (§6: `.getStats`).
type Stats struct {
	TotalChildren       int
	AliveChildren       int
	TotalRestarts       int
	NodeFailuresHandled int
}

// NodeFailureHandler is invoked once per lost node, naming every child that
// was placed there (§4.8: `node_failure_detected`).
type NodeFailureHandler func(nodeID cluster.NodeID, affectedChildren []string)

// ChildMigratedHandler is invoked once per child moved to a new node after a
// node failure (§4.8: `child_migrated`).
type ChildMigratedHandler func(childID string, fromNode, toNode cluster.NodeID)

// ExitListener is notified exactly once when the distributed supervisor
// itself terminates — the distributed analogue of supervisor.ExitListener.
type ExitListener func(reason error)
