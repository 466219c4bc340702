// SPDX-License-Identifier: BSD-3-Clause

package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
	"github.com/hamicek/noex-sub004/pkg/cluster"
	"github.com/hamicek/noex-sub004/pkg/id"
)

// Router is the node's single point of presence on the cluster: it owns the
// behavior registry, the global registry, and transparent call/cast/spawn
// routing between the local actor.Kernel and remote nodes.
type Router struct {
	kernel    *actor.Kernel
	cl        *cluster.Cluster
	behaviors *BehaviorRegistry
	global    *GlobalRegistry
	logger    *slog.Logger

	mu           sync.Mutex
	pendingCalls map[string]chan replyBody
	pendingSpawn map[string]chan spawnResultBody
}

// New wires a Router over kernel and cl, registering itself as cl's sole
// FrameHandler. kernel.Node() must equal the full string form of
// cl.GetLocalNodeID() for ProcessRef routing to agree between the two layers.
func New(kernel *actor.Kernel, cl *cluster.Cluster, behaviors *BehaviorRegistry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		kernel:       kernel,
		cl:           cl,
		behaviors:    behaviors,
		logger:       logger,
		pendingCalls: make(map[string]chan replyBody),
		pendingSpawn: make(map[string]chan spawnResultBody),
	}
	r.global = NewGlobalRegistry(cl.GetLocalNodeID(), r.broadcast)
	cl.OnFrame(r.handleFrame)
	cl.OnNodeDown(func(nid cluster.NodeID, reason cluster.DownReason) {
		r.global.handleNodeLost(nid)
	})
	cl.SetGlobalRegistryProvider(r.global.Snapshot)
	cl.OnGlobalRegistryDelta(func(from cluster.NodeID, entries []cluster.GlobalEntry) {
		r.global.MergeDelta(entries)
	})
	return r
}

// Behaviors returns the node-local behavior registry.
func (r *Router) Behaviors() *BehaviorRegistry { return r.behaviors }

// Global returns the gossiped global name registry.
func (r *Router) Global() *GlobalRegistry { return r.global }

func (r *Router) broadcast(frame cluster.Frame) {
	for _, info := range r.cl.GetConnectedNodes() {
		if err := r.cl.SendFrame(info.ID, frame); err != nil {
			r.logger.Warn("distribution: broadcast send failed", "node", info.ID, "error", err)
		}
	}
}

// Call performs a transparent call: local refs route straight through the
// kernel; remote refs are serialized as a CALL frame and block for a REPLY
// keyed by a fresh correlation id.
func (r *Router) Call(ctx context.Context, ref actor.ProcessRef, msg any, opts CallOptions) (any, error) {
	if ref.IsLocal(r.kernel.Node()) {
		return r.kernel.Call(ctx, ref, msg)
	}

	targetNode := cluster.NodeID(ref.Node)
	if !r.cl.IsNodeConnected(targetNode) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotReachable, targetNode)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	corrID := id.NewID()
	replyCh := make(chan replyBody, 1)

	r.mu.Lock()
	r.pendingCalls[corrID] = replyCh
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pendingCalls, corrID)
		r.mu.Unlock()
	}()

	frame := cluster.Frame{
		Type:          cluster.FrameCall,
		CorrelationID: corrID,
		Body: encodeBody(callBody{
			TargetRef: ref, Message: msg, CorrelationID: corrID, TimeoutMs: timeout.Milliseconds(),
		}),
	}
	if err := r.cl.SendFrame(targetNode, frame); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNodeNotReachable, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-replyCh:
		if reply.Error != "" {
			return nil, remoteError(reply.ErrorKind, reply.Error)
		}
		return reply.Result, nil
	case <-timer.C:
		return nil, ErrRemoteCallTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cast performs transparent fire-and-forget routing, local or remote.
func (r *Router) Cast(ref actor.ProcessRef, msg any) error {
	if ref.IsLocal(r.kernel.Node()) {
		return r.kernel.Cast(ref, msg)
	}
	targetNode := cluster.NodeID(ref.Node)
	if !r.cl.IsNodeConnected(targetNode) {
		return fmt.Errorf("%w: %s", ErrNodeNotReachable, targetNode)
	}
	return r.cl.SendFrame(targetNode, cluster.Frame{
		Type: cluster.FrameCast,
		Body: encodeBody(castBody{TargetRef: ref, Message: msg}),
	})
}

// Stop performs transparent termination: local refs stop through the
// kernel; remote refs fire a STOP frame at the owning node and do not wait
// for confirmation, the same fire-and-enqueue contract actor.Kernel.Stop
// has locally.
func (r *Router) Stop(ref actor.ProcessRef, timeout time.Duration) error {
	if ref.IsLocal(r.kernel.Node()) {
		if timeout > 0 {
			return r.kernel.Stop(ref, actor.WithStopTimeout(timeout))
		}
		return r.kernel.Stop(ref)
	}
	targetNode := cluster.NodeID(ref.Node)
	if !r.cl.IsNodeConnected(targetNode) {
		return fmt.Errorf("%w: %s", ErrNodeNotReachable, targetNode)
	}
	return r.cl.SendFrame(targetNode, cluster.Frame{
		Type: cluster.FrameStop,
		Body: encodeBody(stopBody{TargetRef: ref, TimeoutMs: timeout.Milliseconds()}),
	})
}

// StartRemote spawns behaviorName on opts.TargetNode, registering the
// result per opts.Registration.
func (r *Router) StartRemote(ctx context.Context, behaviorName string, opts SpawnOptions) (actor.ProcessRef, error) {
	if !r.cl.IsNodeConnected(opts.TargetNode) {
		return actor.ProcessRef{}, fmt.Errorf("%w: %s", ErrNodeNotReachable, opts.TargetNode)
	}

	spawnTimeout := opts.SpawnTimeout
	if spawnTimeout <= 0 {
		spawnTimeout = 10 * time.Second
	}
	corrID := id.NewID()
	resultCh := make(chan spawnResultBody, 1)

	r.mu.Lock()
	r.pendingSpawn[corrID] = resultCh
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pendingSpawn, corrID)
		r.mu.Unlock()
	}()

	frame := cluster.Frame{
		Type:          cluster.FrameSpawn,
		CorrelationID: corrID,
		Body: encodeBody(spawnBody{
			BehaviorName: behaviorName, Args: opts.Args, Name: opts.Name, Registration: opts.Registration,
		}),
	}
	if err := r.cl.SendFrame(opts.TargetNode, frame); err != nil {
		return actor.ProcessRef{}, fmt.Errorf("%w: %w", ErrNodeNotReachable, err)
	}

	timer := time.NewTimer(spawnTimeout)
	defer timer.Stop()
	select {
	case result := <-resultCh:
		if result.Error != "" {
			return actor.ProcessRef{}, remoteError(result.ErrorKind, result.Error)
		}
		if opts.Registration == RegistrationGlobal {
			_ = r.global.Register(opts.Name, result.Ref, 0)
		}
		return result.Ref, nil
	case <-timer.C:
		return actor.ProcessRef{}, ErrSpawnTimeout
	case <-ctx.Done():
		return actor.ProcessRef{}, ctx.Err()
	}
}

const (
	kindRemoteServerNotRunning = "remote_server_not_running"
	kindBehaviorNotFound       = "behavior_not_found"
)

// remoteError recovers a known sentinel from a reply's error kind where
// possible, so callers can errors.Is against it like any local error.
func remoteError(kind, msg string) error {
	switch kind {
	case kindRemoteServerNotRunning:
		return ErrRemoteServerNotRunning
	case kindBehaviorNotFound:
		return ErrBehaviorNotFound
	default:
		return fmt.Errorf("distribution: remote error: %s", msg)
	}
}

// handleFrame is registered as the cluster's FrameHandler and dispatches
// every non-membership frame type this package understands.
func (r *Router) handleFrame(from cluster.NodeID, frame cluster.Frame) {
	switch frame.Type {
	case cluster.FrameCall:
		r.handleCall(from, frame)
	case cluster.FrameCast:
		r.handleCast(frame)
	case cluster.FrameStop:
		r.handleStop(frame)
	case cluster.FrameReply:
		r.handleReply(frame)
	case cluster.FrameSpawn:
		r.handleSpawn(from, frame)
	case cluster.FrameSpawnResult:
		r.handleSpawnResult(frame)
	case cluster.FrameGlobalRegister:
		var body globalRegisterBody
		if json.Unmarshal(frame.Body, &body) == nil {
			r.global.handleGlobalRegister(body)
		}
	case cluster.FrameGlobalUnregister:
		var body globalUnregisterBody
		if json.Unmarshal(frame.Body, &body) == nil {
			r.global.handleGlobalUnregister(body)
		}
	default:
		r.logger.Debug("distribution: unrecognized frame", "type", frame.Type, "from", from)
	}
}

func (r *Router) handleCall(from cluster.NodeID, frame cluster.Frame) {
	var body callBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		return
	}
	timeout := time.Duration(body.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(exitBackground(), timeout)
	defer cancel()

	result, err := r.kernel.Call(ctx, body.TargetRef, body.Message)
	reply := replyBody{CorrelationID: body.CorrelationID}
	switch {
	case errors.Is(err, actor.ErrNotRunning):
		reply.Error, reply.ErrorKind = err.Error(), kindRemoteServerNotRunning
	case err != nil:
		reply.Error = err.Error()
	default:
		reply.Result = result
	}
	_ = r.cl.SendFrame(from, cluster.Frame{Type: cluster.FrameReply, CorrelationID: body.CorrelationID, Body: encodeBody(reply)})
}

func (r *Router) handleCast(frame cluster.Frame) {
	var body castBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		return
	}
	if err := r.kernel.Cast(body.TargetRef, body.Message); err != nil {
		r.logger.Warn("distribution: remote cast delivery failed", "error", err)
	}
}

func (r *Router) handleStop(frame cluster.Frame) {
	var body stopBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		return
	}
	var opts []actor.StopOption
	if body.TimeoutMs > 0 {
		opts = append(opts, actor.WithStopTimeout(time.Duration(body.TimeoutMs)*time.Millisecond))
	}
	if err := r.kernel.Stop(body.TargetRef, opts...); err != nil {
		r.logger.Debug("distribution: remote stop target not running", "ref", body.TargetRef, "error", err)
	}
}

func (r *Router) handleReply(frame cluster.Frame) {
	var body replyBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		return
	}
	r.mu.Lock()
	ch, ok := r.pendingCalls[body.CorrelationID]
	r.mu.Unlock()
	if ok {
		ch <- body
	}
}

func (r *Router) handleSpawn(from cluster.NodeID, frame cluster.Frame) {
	var body spawnBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		return
	}

	result := spawnResultBody{}
	factory, err := r.behaviors.resolve(body.BehaviorName)
	if err != nil {
		result.Error, result.ErrorKind = err.Error(), kindBehaviorNotFound
		_ = r.cl.SendFrame(from, cluster.Frame{Type: cluster.FrameSpawnResult, CorrelationID: frame.CorrelationID, Body: encodeBody(result)})
		return
	}

	var startOpts []actor.StartOption
	if body.Name != "" {
		startOpts = append(startOpts, actor.WithName(body.Name))
	}
	ref, err := r.kernel.Start(exitBackground(), factory(), body.Args, startOpts...)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Ref = ref
		if body.Registration == RegistrationGlobal {
			_ = r.global.Register(body.Name, ref, 0)
		}
	}
	_ = r.cl.SendFrame(from, cluster.Frame{Type: cluster.FrameSpawnResult, CorrelationID: frame.CorrelationID, Body: encodeBody(result)})
}

func (r *Router) handleSpawnResult(frame cluster.Frame) {
	var body spawnResultBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		return
	}
	r.mu.Lock()
	ch, ok := r.pendingSpawn[frame.CorrelationID]
	r.mu.Unlock()
	if ok {
		ch <- body
	}
}
