// SPDX-License-Identifier: BSD-3-Clause

package cluster

import "time"

// Status is the local cluster's own lifecycle phase.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// PeerStatus is a connected node's membership state, driven by the node
// status machine in node_status.go.
type PeerStatus string

const (
	PeerJoining PeerStatus = "joining"
	PeerUp      PeerStatus = "up"
	PeerSuspect PeerStatus = "suspect"
	PeerDown    PeerStatus = "down"
)

// DownReason names why a peer was declared down.
type DownReason string

const (
	ReasonHeartbeatTimeout  DownReason = "heartbeat_timeout"
	ReasonConnectionClosed  DownReason = "connection_closed"
	ReasonConnectionRefused DownReason = "connection_refused"
	ReasonGracefulShutdown  DownReason = "graceful_shutdown"
)

// NodeInfo is the gossiped, read-only description of one cluster member.
type NodeInfo struct {
	ID              NodeID     `json:"id"`
	Host            string     `json:"host"`
	Port            int        `json:"port"`
	Status          PeerStatus `json:"status"`
	ProcessCount    int        `json:"processCount"`
	LastHeartbeatAt time.Time  `json:"lastHeartbeatAt"`
	StartedAt       time.Time  `json:"startedAt"`
}

// Uptime reports elapsed time since StartedAt.
func (n NodeInfo) Uptime() time.Duration { return time.Since(n.StartedAt) }

// GlobalEntry is one gossiped global-registry binding (§4.7).
type GlobalEntry struct {
	Name         string    `json:"name"`
	Ref          any       `json:"ref"`
	RegisteredAt time.Time `json:"registeredAt"`
	Priority     int       `json:"priority"`
	OwnerNode    NodeID    `json:"ownerNode"`
}

// handshakeBody is FrameHandshake's payload.
type handshakeBody struct {
	NodeID          NodeID `json:"nodeId"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// heartbeatBody is FrameHeartbeat's payload.
type heartbeatBody struct {
	NodeInfo            NodeInfo      `json:"nodeInfo"`
	KnownNodes          []NodeID      `json:"knownNodes"`
	GlobalRegistryDelta []GlobalEntry `json:"globalRegistryDelta,omitempty"`
}

const protocolVersion = 1

// NodeUpHandler is notified the first time a peer transitions to connected.
type NodeUpHandler func(info NodeInfo)

// NodeDownHandler is notified on any peer transition to disconnected.
type NodeDownHandler func(id NodeID, reason DownReason)

// StatusChangeHandler is notified on local status transitions.
type StatusChangeHandler func(status Status)
