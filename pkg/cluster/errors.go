// SPDX-License-Identifier: BSD-3-Clause

package cluster

import "errors"

var (
	// ErrInvalidNodeID indicates a NodeId failed §3's grammar.
	ErrInvalidNodeID = errors.New("cluster: invalid node id")
	// ErrInvalidConfig is returned by New when the options fail validation.
	ErrInvalidConfig = errors.New("cluster: invalid configuration")
	// ErrClusterNotStarted is not returned by any Cluster method; SendFrame
	// on a cluster that was never started reports ErrNodeNotConnected.
	ErrClusterNotStarted = errors.New("cluster: not started")
	// ErrAlreadyStarted guards a second Start call.
	ErrAlreadyStarted = errors.New("cluster: already started")
	// ErrHMACMismatch means a received frame's HMAC did not verify; the
	// frame is dropped and the connection that carried it is closed.
	ErrHMACMismatch = errors.New("cluster: hmac verification failed")
	// ErrHandshakeFailed indicates the peer's handshake frame was missing,
	// malformed, or named an incompatible protocol version.
	ErrHandshakeFailed = errors.New("cluster: handshake failed")
	// ErrNodeNotConnected is returned when sending to a peer that has no
	// live connection.
	ErrNodeNotConnected = errors.New("cluster: node not connected")
)
