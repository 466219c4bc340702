// SPDX-License-Identifier: BSD-3-Clause

package cluster

import (
	"context"
	"fmt"

	"github.com/hamicek/noex-sub004/pkg/state"
)

const (
	triggerHeartbeat = "heartbeat_received"
	triggerSuspect   = "mark_suspect"
	triggerRecover   = "recover"
	triggerDown      = "mark_down"
)

// newPeerStatusMachine builds the small, statically-declared permit graph
// that tracks one peer's membership status: joining -> up on its first
// heartbeat, up <-> suspect as heartbeats are missed or resume, and either
// state to down once failure is declared. This is the one place in the
// module where the dynamic-transition mismatch documented in
// pkg/fsm doesn't apply — a fixed handful of named transitions is exactly
// what a declared-permit state machine models well.
func newPeerStatusMachine(nodeID NodeID, onChange func(from, to PeerStatus)) (*state.FSM, error) {
	cfg := state.NewConfig(
		state.WithName(fmt.Sprintf("peer-status:%s", nodeID)),
		state.WithInitialState(string(PeerJoining)),
		state.WithStates(string(PeerJoining), string(PeerUp), string(PeerSuspect), string(PeerDown)),
		state.WithTransition(string(PeerJoining), string(PeerUp), triggerHeartbeat),
		state.WithTransition(string(PeerUp), string(PeerSuspect), triggerSuspect),
		state.WithTransition(string(PeerSuspect), string(PeerUp), triggerRecover),
		state.WithTransition(string(PeerSuspect), string(PeerDown), triggerDown),
		state.WithTransition(string(PeerUp), string(PeerDown), triggerDown),
		state.WithTransition(string(PeerJoining), string(PeerDown), triggerDown),
		state.WithBroadcast(func(ctx context.Context, machineName, previous, current, trigger string) error {
			if onChange != nil {
				onChange(PeerStatus(previous), PeerStatus(current))
			}
			return nil
		}),
	)

	fsm, err := state.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := fsm.Start(context.Background()); err != nil {
		return nil, err
	}
	return fsm, nil
}
