// SPDX-License-Identifier: BSD-3-Clause

package cluster

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/hamicek/noex-sub004/pkg/state"
)

// peer tracks one remote node's connection and membership status. All
// fields except the embedded status machine (which serializes itself) are
// guarded by mu.
type peer struct {
	id NodeID

	mu              sync.Mutex
	conn            net.Conn
	info            NodeInfo
	lastHeartbeatAt time.Time
	everUp          bool

	status *state.FSM
}

func newPeer(id NodeID, onStatusChange func(from, to PeerStatus)) (*peer, error) {
	fsm, err := newPeerStatusMachine(id, onStatusChange)
	if err != nil {
		return nil, err
	}
	return &peer{id: id, status: fsm}, nil
}

func (p *peer) setConn(c net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = c
}

func (p *peer) connection() net.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

func (p *peer) touchHeartbeat(info NodeInfo) {
	p.mu.Lock()
	p.lastHeartbeatAt = time.Now()
	p.info = info
	p.mu.Unlock()
}

func (p *peer) snapshot() NodeInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := p.info
	info.ID = p.id
	info.Status = PeerStatus(p.status.CurrentState())
	info.LastHeartbeatAt = p.lastHeartbeatAt
	return info
}

func (p *peer) isStale(threshold time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastHeartbeatAt.IsZero() {
		return false
	}
	return time.Since(p.lastHeartbeatAt) > threshold
}

func (p *peer) markSuspect() {
	if p.status.IsInState(string(PeerUp)) {
		_ = p.status.Fire(context.Background(), triggerSuspect, nil)
	}
}
