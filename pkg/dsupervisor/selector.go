// SPDX-License-Identifier: BSD-3-Clause

package dsupervisor

import (
	"math/rand"

	"github.com/hamicek/noex-sub004/pkg/cluster"
)

// resolveNode applies sel over candidates (local node included), excluding
// exclude (the just-failed node, on failover; empty on initial placement).
// rrState is the supervisor's shared round-robin cursor, advanced in place.
func resolveNode(sel NodeSelector, candidates []cluster.NodeInfo, localNode cluster.NodeID, exclude cluster.NodeID, childID string, rrState *int) (cluster.NodeID, error) {
	pool := make([]cluster.NodeInfo, 0, len(candidates))
	for _, n := range candidates {
		if n.ID == exclude {
			continue
		}
		pool = append(pool, n)
	}
	if len(pool) == 0 {
		return "", ErrNoAvailableNode
	}

	switch sel.strategy {
	case explicitStrategy:
		for _, n := range pool {
			if n.ID == sel.node {
				return n.ID, nil
			}
		}
		return "", ErrNoAvailableNode

	case fnStrategy:
		if sel.fn == nil {
			return "", ErrNoAvailableNode
		}
		picked := sel.fn(pool, childID)
		for _, n := range pool {
			if n.ID == picked {
				return picked, nil
			}
		}
		return "", ErrNoAvailableNode

	case LeastLoadedStrategy:
		best := pool[0]
		for _, n := range pool[1:] {
			if n.ProcessCount < best.ProcessCount {
				best = n
			}
		}
		return best.ID, nil

	case RandomStrategy:
		return pool[rand.Intn(len(pool))].ID, nil

	case RoundRobinStrategy:
		idx := *rrState % len(pool)
		*rrState++
		return pool[idx].ID, nil

	case LocalFirstStrategy:
		fallthrough
	default:
		if exclude != localNode {
			for _, n := range pool {
				if n.ID == localNode {
					return localNode, nil
				}
			}
		}
		return pool[0].ID, nil
	}
}
