// SPDX-License-Identifier: BSD-3-Clause

// Package cluster implements inter-node membership (§4.6): node identity,
// an authenticated TCP transport, heartbeat-driven gossip, and failure
// detection.
package cluster

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// NodeID is the canonical "name@host:port" identity of a cluster node.
type NodeID string

var nameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// ParseNodeID validates raw against the NodeId grammar (§3) and returns its
// canonical form: host lowercased, IPv6 brackets preserved, name and port
// untouched.
func ParseNodeID(raw string) (NodeID, error) {
	at := strings.LastIndex(raw, "@")
	if at <= 0 {
		return "", fmt.Errorf("%w: missing '@' in %q", ErrInvalidNodeID, raw)
	}
	name, hostport := raw[:at], raw[at+1:]

	if !nameRE.MatchString(name) {
		return "", fmt.Errorf("%w: invalid node name %q", ErrInvalidNodeID, name)
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidNodeID, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("%w: invalid port %q", ErrInvalidNodeID, portStr)
	}

	canonHost := host
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		if ip.To4() == nil && !strings.HasPrefix(host, "[") {
			canonHost = "[" + strings.ToLower(host) + "]"
		} else {
			canonHost = strings.ToLower(host)
		}
	} else {
		canonHost = strings.ToLower(host)
	}

	return NodeID(fmt.Sprintf("%s@%s:%d", name, canonHost, port)), nil
}

// HostPort splits a NodeID back into its dial address, discarding the name.
func (n NodeID) HostPort() (string, error) {
	at := strings.LastIndex(string(n), "@")
	if at < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidNodeID, n)
	}
	return string(n)[at+1:], nil
}

// Name returns the node-name portion preceding '@'.
func (n NodeID) Name() string {
	at := strings.LastIndex(string(n), "@")
	if at < 0 {
		return string(n)
	}
	return string(n)[:at]
}
