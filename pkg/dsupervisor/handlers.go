// SPDX-License-Identifier: BSD-3-Clause

package dsupervisor

import (
	"context"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
	"github.com/hamicek/noex-sub004/pkg/supervisor"
)

func (sv *DistributedSupervisor) handleRequest(ctx context.Context, children []*childRecord, history *[]time.Time, rrState, totalRestarts, nodeFailures *int, req request) ([]*childRecord, bool, error) {
	switch r := req.(type) {
	case startChildReq:
		if sv.indexOf(children, r.spec.ID) >= 0 {
			r.reply <- ErrDistributedDuplicateChild
			return children, false, nil
		}
		rec, err := sv.placeChild(ctx, r.spec, "")
		if err != nil {
			r.reply <- err
			return children, false, nil
		}
		children = append(children, rec)
		r.reply <- nil
		return children, false, nil

	case terminateChildReq:
		idx := sv.indexOf(children, r.id)
		if idx < 0 {
			r.reply <- ErrChildNotFound
			return children, false, nil
		}
		sv.stopAndWait(children[idx])
		children = append(children[:idx], children[idx+1:]...)
		r.reply <- nil
		return children, false, nil

	case restartChildReq:
		idx := sv.indexOf(children, r.id)
		if idx < 0 {
			r.reply <- ErrChildNotFound
			return children, false, nil
		}
		sv.stopAndWait(children[idx])
		sv.restartChildAt(ctx, children[idx], children[idx].node)
		r.reply <- nil
		return children, false, nil

	case getChildrenReq:
		r.reply <- snapshotAll(children)
		return children, false, nil

	case getChildReq:
		idx := sv.indexOf(children, r.id)
		if idx < 0 {
			r.reply <- getChildResult{}
			return children, false, nil
		}
		r.reply <- getChildResult{info: snapshot(children[idx]), ok: true}
		return children, false, nil

	case getStatsReq:
		alive := 0
		for _, c := range children {
			if c.alive {
				alive++
			}
		}
		r.reply <- Stats{
			TotalChildren:       len(children),
			AliveChildren:       alive,
			TotalRestarts:       *totalRestarts,
			NodeFailuresHandled: *nodeFailures,
		}
		return children, false, nil

	default:
		return children, false, nil
	}
}

// restartChildAt restarts c in place on node (its current node, for an
// ordinary exit; a replacement node, for a failover migration), bumping its
// restart count.
func (sv *DistributedSupervisor) restartChildAt(ctx context.Context, c *childRecord, node cluster.NodeID) {
	attempt := c.restartCount + 1
	sv.kernel.Events().Publish(actor.Event{Kind: actor.EventRestarted, Ref: c.ref, Attempt: attempt})

	ref, err := sv.startOn(ctx, c.spec, node)
	if err != nil {
		sv.logger.Error("dsupervisor: child restart failed", "child", c.spec.ID, "node", node, "error", err)
		return
	}
	c.ref = ref
	c.node = node
	c.alive = true
	c.restartCount = attempt
}

// handleExit applies an ordinary (non-node-failure) exit from a locally
// placed child — remote child exits that are not node failures produce no
// signal over the wire (§6 defines no remote monitor frame), so this path
// only ever fires for children started via startLocal.
func (sv *DistributedSupervisor) handleExit(ctx context.Context, children []*childRecord, history *[]time.Time, rrState, totalRestarts *int, exit childExit) ([]*childRecord, bool, error) {
	idx := sv.indexOf(children, exit.id)
	if idx < 0 {
		return children, false, nil
	}
	child := children[idx]
	if !child.alive {
		return children, false, nil
	}
	child.alive = false

	if !shouldRestart(child.spec.Restart, exit.reason) {
		significant := child.spec.Significant
		children = append(children[:idx], children[idx+1:]...)
		if sv.checkAutoShutdown(children, significant) {
			return children, true, exit.reason
		}
		return children, false, nil
	}

	if !admitRestart(sv.intensity, history) {
		sv.logger.Error("dsupervisor: restart intensity exceeded", "supervisor", sv.name)
		return children, true, supervisor.ErrMaxRestartsExceeded
	}

	sv.applyRestartStrategy(ctx, children, idx, child.node)
	*totalRestarts++
	return children, false, nil
}

func (sv *DistributedSupervisor) applyRestartStrategy(ctx context.Context, children []*childRecord, idx int, node cluster.NodeID) {
	switch sv.strategy {
	case supervisor.OneForAll:
		for i := len(children) - 1; i >= 0; i-- {
			if i == idx {
				continue
			}
			sv.stopAndWait(children[i])
		}
		for i := range children {
			sv.restartChildAt(ctx, children[i], children[i].node)
		}
	case supervisor.RestForOne:
		for i := len(children) - 1; i > idx; i-- {
			sv.stopAndWait(children[i])
		}
		for i := idx; i < len(children); i++ {
			sv.restartChildAt(ctx, children[i], children[i].node)
		}
	default: // OneForOne
		sv.restartChildAt(ctx, children[idx], node)
	}
}

func (sv *DistributedSupervisor) checkAutoShutdown(remaining []*childRecord, lostSignificant bool) bool {
	switch sv.autoShutdown {
	case supervisor.AnySignificant:
		return lostSignificant
	case supervisor.AllSignificant:
		for _, c := range remaining {
			if c.spec.Significant && c.alive {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// handleNodeDown implements §4.8's Failover algorithm: every child placed
// on the lost node is migrated (subject to its restart policy), then
// node_failure_detected fires once and child_migrated fires once per moved
// child.
func (sv *DistributedSupervisor) handleNodeDown(ctx context.Context, children []*childRecord, history *[]time.Time, rrState, totalRestarts, nodeFailures *int, ev nodeDownEvent) ([]*childRecord, bool, error) {
	var affected []string
	for _, c := range children {
		if c.node == ev.id && c.alive {
			affected = append(affected, c.spec.ID)
		}
	}
	if len(affected) == 0 {
		return children, false, nil
	}
	*nodeFailures++

	terminal := false
	var terminalErr error

	for _, c := range children {
		if c.node != ev.id || !c.alive {
			continue
		}
		fromNode := c.node
		c.alive = false // lost, not cleanly stopped — no stopAndWait over a dead connection

		if !shouldRestart(c.spec.Restart, cluster.ErrNodeNotConnected) {
			continue
		}
		if !admitRestart(sv.intensity, history) {
			sv.logger.Error("dsupervisor: restart intensity exceeded during failover", "supervisor", sv.name)
			terminal, terminalErr = true, supervisor.ErrMaxRestartsExceeded
			continue
		}

		newNode, err := sv.resolveNodeFor(c.spec, ev.id, rrState)
		if err != nil {
			sv.logger.Error("dsupervisor: no node available for failover", "child", c.spec.ID, "error", err)
			continue
		}
		sv.restartChildAt(ctx, c, newNode)
		*totalRestarts++
		sv.fireChildMigrated(c.spec.ID, fromNode, newNode)
	}

	sv.fireNodeFailureDetected(ev.id, affected)
	return children, terminal, terminalErr
}

func (sv *DistributedSupervisor) fireNodeFailureDetected(nodeID cluster.NodeID, affected []string) {
	for _, fn := range sv.nodeFailureHandlers {
		go fn(nodeID, affected)
	}
}

func (sv *DistributedSupervisor) fireChildMigrated(childID string, from, to cluster.NodeID) {
	for _, fn := range sv.childMigratedHandlers {
		go fn(childID, from, to)
	}
}
