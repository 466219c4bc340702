// SPDX-License-Identifier: BSD-3-Clause

package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/arunsworld/nursery"
)

// Cluster manages membership with a set of peer nodes: an authenticated TCP
// transport, heartbeat gossip, and failure detection (§4.6).
type Cluster struct {
	cfg *config

	localID   NodeID
	startedAt time.Time

	mu       sync.RWMutex
	status   Status
	peers    map[NodeID]*peer
	listener net.Listener

	onNodeUp               []NodeUpHandler
	onNodeDown             []NodeDownHandler
	onStatus               []StatusChangeHandler
	onFrame                FrameHandler
	onGlobalRegistryDelta  GlobalRegistryDeltaHandler
	globalRegistryProvider func() []GlobalEntry

	cancel context.CancelFunc
	doneCh chan struct{}
}

// New creates an unstarted Cluster.
func New(opts ...Option) (*Cluster, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Cluster{
		cfg:    cfg,
		status: StatusStopped,
		peers:  make(map[NodeID]*peer),
	}, nil
}

// Start binds the TCP listener, records local node info, and launches the
// heartbeat/dial/accept loops. It returns once the listener is bound;
// background loops keep running until Stop.
func (c *Cluster) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusStopped {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.setStatusLocked(StatusStarting)
	c.mu.Unlock()

	localID, err := ParseNodeID(fmt.Sprintf("%s@%s:%d", c.cfg.nodeName, c.cfg.host, c.cfg.port))
	if err != nil {
		return err
	}
	c.localID = localID
	c.startedAt = time.Now()

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", c.cfg.host, c.cfg.port))
	if err != nil {
		c.mu.Lock()
		c.setStatusLocked(StatusStopped)
		c.mu.Unlock()
		return fmt.Errorf("cluster: listen: %w", err)
	}
	c.listener = ln

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.doneCh = make(chan struct{})

	c.mu.Lock()
	c.setStatusLocked(StatusRunning)
	c.mu.Unlock()

	go func() {
		defer close(c.doneCh)
		_ = nursery.RunConcurrentlyWithContext(runCtx,
			func(ctx context.Context, errc chan error) { errc <- c.acceptLoop(ctx) },
			func(ctx context.Context, errc chan error) { errc <- c.heartbeatLoop(ctx) },
			func(ctx context.Context, errc chan error) { errc <- c.dialSeedsLoop(ctx) },
		)
	}()

	return nil
}

// Stop sends a graceful-shutdown notice to every connected peer, closes the
// listener and all connections, and stops background loops.
func (c *Cluster) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusRunning {
		c.mu.Unlock()
		return nil
	}
	c.setStatusLocked(StatusStopping)
	peers := make([]*peer, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, p)
	}
	ln := c.listener
	c.mu.Unlock()

	for _, p := range peers {
		if conn := p.connection(); conn != nil {
			_ = writeFrame(conn, Frame{Type: FrameGracefulShutdown}, c.cfg.clusterSecret)
			_ = conn.Close()
		}
	}
	if ln != nil {
		_ = ln.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.doneCh != nil {
		<-c.doneCh
	}

	c.mu.Lock()
	c.setStatusLocked(StatusStopped)
	c.mu.Unlock()
	return nil
}

// GetStatus returns the local cluster's own lifecycle status.
func (c *Cluster) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// GetLocalNodeID returns this process's own NodeID.
func (c *Cluster) GetLocalNodeID() NodeID { return c.localID }

// GetLocalNodeInfo returns a snapshot of the local node.
func (c *Cluster) GetLocalNodeInfo() NodeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info := NodeInfo{
		ID:        c.localID,
		Host:      c.cfg.host,
		Port:      c.cfg.port,
		Status:    PeerUp,
		StartedAt: c.startedAt,
	}
	if c.cfg.processCountProvider != nil {
		info.ProcessCount = c.cfg.processCountProvider()
	}
	return info
}

// GetNodes returns every known peer, regardless of status.
func (c *Cluster) GetNodes() []NodeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]NodeInfo, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p.snapshot())
	}
	return out
}

// GetConnectedNodes returns only peers currently in the up state.
func (c *Cluster) GetConnectedNodes() []NodeInfo {
	out := make([]NodeInfo, 0)
	for _, info := range c.GetNodes() {
		if info.Status == PeerUp {
			out = append(out, info)
		}
	}
	return out
}

// GetNode looks up one peer by id.
func (c *Cluster) GetNode(id NodeID) (NodeInfo, bool) {
	c.mu.RLock()
	p, ok := c.peers[id]
	c.mu.RUnlock()
	if !ok {
		return NodeInfo{}, false
	}
	return p.snapshot(), true
}

// IsNodeConnected reports whether id is currently in the up state.
func (c *Cluster) IsNodeConnected(id NodeID) bool {
	info, ok := c.GetNode(id)
	return ok && info.Status == PeerUp
}

// OnNodeUp registers fn to be called the first time any peer transitions to
// up.
func (c *Cluster) OnNodeUp(fn NodeUpHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNodeUp = append(c.onNodeUp, fn)
}

// OnNodeDown registers fn to be called whenever any peer transitions to down.
func (c *Cluster) OnNodeDown(fn NodeDownHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNodeDown = append(c.onNodeDown, fn)
}

// OnStatusChange registers fn to be called on local status transitions.
func (c *Cluster) OnStatusChange(fn StatusChangeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = append(c.onStatus, fn)
}

// FrameHandler receives every frame the cluster transport does not
// interpret itself (everything but handshake/heartbeat/graceful_shutdown) —
// the seam the distribution layer (§4.7) hangs call/cast/spawn routing off.
type FrameHandler func(from NodeID, frame Frame)

// OnFrame registers the single handler for non-membership frames. Only one
// handler is supported; a distribution layer registers itself at most once
// per Cluster.
func (c *Cluster) OnFrame(fn FrameHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = fn
}

// GlobalRegistryDeltaHandler receives the globalRegistryDelta carried by an
// incoming heartbeat, so the distribution layer can merge it into its
// node-local cache (§4.7).
type GlobalRegistryDeltaHandler func(from NodeID, entries []GlobalEntry)

// OnGlobalRegistryDelta registers the single handler for gossiped
// global-registry entries. A distribution layer registers itself at most
// once per Cluster.
func (c *Cluster) OnGlobalRegistryDelta(fn GlobalRegistryDeltaHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onGlobalRegistryDelta = fn
}

// SetGlobalRegistryProvider supplies the entries this node gossips in each
// outgoing heartbeat's globalRegistryDelta.
func (c *Cluster) SetGlobalRegistryProvider(fn func() []GlobalEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalRegistryProvider = fn
}

// SendFrame writes a frame addressed to id's current connection. Returns
// ErrNodeNotConnected if no live connection exists.
func (c *Cluster) SendFrame(id NodeID, frame Frame) error {
	c.mu.RLock()
	p, ok := c.peers[id]
	secret := c.cfg.clusterSecret
	c.mu.RUnlock()
	if !ok {
		return ErrNodeNotConnected
	}
	conn := p.connection()
	if conn == nil {
		return ErrNodeNotConnected
	}
	return writeFrame(conn, frame, secret)
}

func (c *Cluster) setStatusLocked(s Status) {
	c.status = s
	for _, fn := range c.onStatus {
		go fn(s)
	}
}

func (c *Cluster) logger() *slog.Logger { return c.cfg.logger }

func (c *Cluster) acceptLoop(ctx context.Context) error {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			c.logger().Warn("cluster: accept failed", "error", err)
			continue
		}
		go c.handleConn(ctx, conn, false, "")
	}
}

func (c *Cluster) dialSeedsLoop(ctx context.Context) error {
	for _, seed := range c.cfg.seeds {
		id, err := ParseNodeID(seed)
		if err != nil {
			c.logger().Warn("cluster: invalid seed", "seed", seed, "error", err)
			continue
		}
		go c.dial(ctx, id)
	}
	<-ctx.Done()
	return nil
}

func (c *Cluster) dial(ctx context.Context, id NodeID) {
	hostport, err := id.HostPort()
	if err != nil {
		return
	}
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", hostport)
	if err != nil {
		c.logger().Warn("cluster: dial failed", "node", id, "error", err)
		c.declareDown(id, ReasonConnectionRefused)
		return
	}
	c.handleConn(ctx, conn, true, id)
}

func (c *Cluster) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.sendHeartbeats()
			c.sweepStale()
		}
	}
}

func (c *Cluster) sendHeartbeats() {
	c.mu.RLock()
	provider := c.globalRegistryProvider
	c.mu.RUnlock()
	var delta []GlobalEntry
	if provider != nil {
		delta = provider()
	}

	body := heartbeatBody{
		NodeInfo:            c.GetLocalNodeInfo(),
		KnownNodes:          c.knownNodeIDs(),
		GlobalRegistryDelta: delta,
	}
	frame := Frame{Type: FrameHeartbeat, Body: encodeBody(body)}

	c.mu.RLock()
	peers := make([]*peer, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, p)
	}
	c.mu.RUnlock()

	for _, p := range peers {
		conn := p.connection()
		if conn == nil {
			continue
		}
		if err := writeFrame(conn, frame, c.cfg.clusterSecret); err != nil {
			c.logger().Warn("cluster: heartbeat send failed", "node", p.id, "error", err)
		}
	}
}

// sweepStale applies the heartbeat_timeout rule from §4.6 at the configured
// threshold, and — as a supplemented early-warning signal not named by the
// spec — marks a peer suspect once it has missed half that many intervals,
// so GetNode callers can observe degrading connectivity before a node is
// declared fully down.
func (c *Cluster) sweepStale() {
	threshold := c.cfg.heartbeatInterval * time.Duration(c.cfg.heartbeatMissThreshold)
	suspectThreshold := threshold / 2

	c.mu.RLock()
	peers := make([]*peer, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, p)
	}
	c.mu.RUnlock()

	for _, p := range peers {
		switch {
		case p.isStale(threshold):
			c.declareDown(p.id, ReasonHeartbeatTimeout)
		case p.isStale(suspectThreshold):
			p.markSuspect()
		}
	}
}

func (c *Cluster) knownNodeIDs() []NodeID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]NodeID, 0, len(c.peers)+1)
	ids = append(ids, c.localID)
	for id := range c.peers {
		ids = append(ids, id)
	}
	return ids
}

func (c *Cluster) getOrCreatePeer(id NodeID) *peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.peers[id]; ok {
		return p
	}
	p, err := newPeer(id, func(from, to PeerStatus) {
		c.onPeerStatusChange(id, from, to)
	})
	if err != nil {
		return nil
	}
	c.peers[id] = p
	return p
}

// onPeerStatusChange only fans out the up transition; down is reported
// exclusively by declareDown, which alone knows the real DownReason.
func (c *Cluster) onPeerStatusChange(id NodeID, from, to PeerStatus) {
	if to != PeerUp || from == PeerUp {
		return
	}
	c.mu.RLock()
	p := c.peers[id]
	handlers := append([]NodeUpHandler(nil), c.onNodeUp...)
	c.mu.RUnlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	first := !p.everUp
	p.everUp = true
	p.mu.Unlock()
	if !first {
		return
	}
	info := p.snapshot()
	for _, fn := range handlers {
		go fn(info)
	}
}

func (c *Cluster) declareDown(id NodeID, reason DownReason) {
	c.mu.RLock()
	p, ok := c.peers[id]
	handlers := append([]NodeDownHandler(nil), c.onNodeDown...)
	c.mu.RUnlock()
	if !ok {
		return
	}
	if conn := p.connection(); conn != nil {
		_ = conn.Close()
	}
	if p.status.IsInState(string(PeerDown)) {
		return
	}
	_ = p.status.Fire(context.Background(), triggerDown, nil)
	for _, fn := range handlers {
		go fn(id, reason)
	}
}
