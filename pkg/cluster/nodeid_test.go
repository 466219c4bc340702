// SPDX-License-Identifier: BSD-3-Clause

package cluster

import "testing"

func TestParseNodeIDCanonicalizesHost(t *testing.T) {
	id, err := ParseNodeID("node1@MyHost.Example.com:4369")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "node1@myhost.example.com:4369" {
		t.Fatalf("unexpected canonical form: %s", id)
	}
}

func TestParseNodeIDRejectsBadName(t *testing.T) {
	if _, err := ParseNodeID("1bad@host:4369"); err == nil {
		t.Fatal("expected error for name starting with a digit")
	}
}

func TestParseNodeIDRejectsBadPort(t *testing.T) {
	if _, err := ParseNodeID("node1@host:99999"); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestParseNodeIDPreservesIPv6Brackets(t *testing.T) {
	id, err := ParseNodeID("node1@[::1]:4369")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "node1@[::1]:4369" {
		t.Fatalf("unexpected canonical form: %s", id)
	}
}

func TestNodeIDHostPortAndName(t *testing.T) {
	id := NodeID("node1@127.0.0.1:4369")
	hp, err := id.HostPort()
	if err != nil {
		t.Fatalf("hostport: %v", err)
	}
	if hp != "127.0.0.1:4369" {
		t.Fatalf("unexpected hostport: %s", hp)
	}
	if id.Name() != "node1" {
		t.Fatalf("unexpected name: %s", id.Name())
	}
}
