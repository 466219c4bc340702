// SPDX-License-Identifier: BSD-3-Clause

// Package distribution implements cross-node routing (§4.7): a node-local
// behavior registry, remote spawn, transparent call/cast routing between
// local and remote refs, and a gossiped global name registry with
// conflict resolution.
package distribution

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
)

func encodeBody(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Registration selects what happens to a freshly remote-spawned process.
type Registration string

const (
	RegistrationNone   Registration = "none"
	RegistrationLocal  Registration = "local"
	RegistrationGlobal Registration = "global"
)

// BehaviorFactory builds a fresh actor.Behavior instance for one spawn —
// behaviors are registered by name, not by value, so each remote spawn gets
// its own instance rather than sharing mutable state across processes.
type BehaviorFactory func() actor.Behavior

// SpawnOptions configures a remote spawn request.
type SpawnOptions struct {
	TargetNode   cluster.NodeID
	Name         string
	Registration Registration
	SpawnTimeout time.Duration
	InitTimeout  time.Duration
	Args         any
}

// CallOptions configures transparent routing of a Call.
type CallOptions struct {
	Timeout time.Duration
}

// wireRef is ProcessRef's wire-safe mirror; actor.ProcessRef already
// round-trips through encoding/json directly, so frames carry it unchanged.
type wireRef = actor.ProcessRef

type spawnBody struct {
	BehaviorName string       `json:"behaviorName"`
	Args         any          `json:"args,omitempty"`
	Name         string       `json:"name,omitempty"`
	Registration Registration `json:"registration"`
}

type spawnResultBody struct {
	Ref       wireRef `json:"ref,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorKind string  `json:"errorKind,omitempty"`
}

type callBody struct {
	TargetRef     wireRef `json:"targetRef"`
	Message       any     `json:"message"`
	CorrelationID string  `json:"correlationId"`
	TimeoutMs     int64   `json:"timeoutMs"`
}

type castBody struct {
	TargetRef wireRef `json:"targetRef"`
	Message   any     `json:"message"`
}

type stopBody struct {
	TargetRef wireRef `json:"targetRef"`
	TimeoutMs int64   `json:"timeoutMs"`
}

type replyBody struct {
	CorrelationID string `json:"correlationId"`
	Result        any    `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorKind     string `json:"errorKind,omitempty"`
}

type globalRegisterBody struct {
	Name         string  `json:"name"`
	Ref          wireRef `json:"ref"`
	RegisteredAt int64   `json:"registeredAt"`
	Priority     int     `json:"priority"`
	OwnerNode    string  `json:"ownerNode"`
}

type globalUnregisterBody struct {
	Name      string `json:"name"`
	OwnerNode string `json:"ownerNode"`
}

// exitBackground is the ctx used for handler invocations triggered by
// inbound network frames, where no caller context exists to inherit from.
func exitBackground() context.Context { return context.Background() }
