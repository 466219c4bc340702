// SPDX-License-Identifier: BSD-3-Clause

package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"net"
)

// handleConn performs the mandatory handshake and then loops reading frames
// until the connection closes or the cluster stops. outbound is true when
// this side initiated the dial (its handshake goes first); expected, if
// non-empty, is the NodeID this connection was dialed to reach.
func (c *Cluster) handleConn(ctx context.Context, conn net.Conn, outbound bool, expected NodeID) {
	defer conn.Close()

	remoteID, err := c.handshake(conn, outbound)
	if err != nil {
		c.logger().Warn("cluster: handshake failed", "error", err, "outbound", outbound)
		return
	}
	if outbound && expected != "" && remoteID != expected {
		c.logger().Warn("cluster: peer identified differently than dialed", "expected", expected, "got", remoteID)
	}

	p := c.getOrCreatePeer(remoteID)
	if p == nil {
		return
	}
	p.setConn(conn)

	for {
		frame, err := readFrame(conn, c.cfg.clusterSecret)
		if err != nil {
			if errors.Is(err, ErrHMACMismatch) {
				c.logger().Warn("cluster: dropping frame with invalid hmac", "node", remoteID)
			}
			c.declareDown(remoteID, ReasonConnectionClosed)
			return
		}

		switch frame.Type {
		case FrameHeartbeat:
			var body heartbeatBody
			if err := json.Unmarshal(frame.Body, &body); err != nil {
				continue
			}
			c.handleHeartbeat(ctx, p, body)

		case FrameGracefulShutdown:
			c.declareDown(remoteID, ReasonGracefulShutdown)
			return

		default:
			// CALL/CAST/SPAWN/etc. frames belong to the distribution layer
			// (§4.7), which registers its own handler over this connection.
			c.dispatchUnhandledFrame(remoteID, frame)
		}
	}
}

func (c *Cluster) handshake(conn net.Conn, outbound bool) (NodeID, error) {
	local := handshakeBody{NodeID: c.localID, ProtocolVersion: protocolVersion}
	send := func() error {
		return writeFrame(conn, Frame{Type: FrameHandshake, Body: encodeBody(local)}, c.cfg.clusterSecret)
	}
	recv := func() (NodeID, error) {
		frame, err := readFrame(conn, c.cfg.clusterSecret)
		if err != nil {
			return "", err
		}
		if frame.Type != FrameHandshake {
			return "", ErrHandshakeFailed
		}
		var body handshakeBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return "", ErrHandshakeFailed
		}
		if body.ProtocolVersion != protocolVersion {
			return "", ErrHandshakeFailed
		}
		return body.NodeID, nil
	}

	if outbound {
		if err := send(); err != nil {
			return "", err
		}
		return recv()
	}
	remote, err := recv()
	if err != nil {
		return "", err
	}
	if err := send(); err != nil {
		return "", err
	}
	return remote, nil
}

func (c *Cluster) handleHeartbeat(ctx context.Context, p *peer, body heartbeatBody) {
	p.touchHeartbeat(body.NodeInfo)
	switch {
	case p.status.IsInState(string(PeerJoining)):
		_ = p.status.Fire(context.Background(), triggerHeartbeat, nil)
	case p.status.IsInState(string(PeerSuspect)):
		_ = p.status.Fire(context.Background(), triggerRecover, nil)
	}

	for _, id := range body.KnownNodes {
		if id == c.localID {
			continue
		}
		if _, known := c.GetNode(id); known {
			continue
		}
		go c.dial(ctx, id)
	}

	if len(body.GlobalRegistryDelta) > 0 {
		c.mu.RLock()
		handler := c.onGlobalRegistryDelta
		c.mu.RUnlock()
		if handler != nil {
			handler(p.id, body.GlobalRegistryDelta)
		}
	}
}

// dispatchUnhandledFrame is a narrow seam for the distribution layer (§4.7)
// to intercept call/cast/spawn/global_* frames without cluster needing to
// know their schemas.
func (c *Cluster) dispatchUnhandledFrame(from NodeID, frame Frame) {
	c.mu.RLock()
	handler := c.onFrame
	c.mu.RUnlock()
	if handler == nil {
		c.logger().Debug("cluster: unhandled frame, no distribution layer registered", "type", frame.Type, "from", from)
		return
	}
	handler(from, frame)
}
