// SPDX-License-Identifier: BSD-3-Clause

// Package state wraps github.com/qmuntal/stateless behind a small
// functional-options configuration, for components whose transitions are a
// fixed, statically-declared permit graph (as opposed to pkg/fsm's dynamic
// per-message state-machine process, where the next state is computed at
// runtime from message content).
//
// # Basic usage
//
//	cfg := state.NewConfig(
//		state.WithName("peer-status"),
//		state.WithInitialState("joining"),
//		state.WithStates("joining", "up", "suspect", "down"),
//		state.WithTransition("joining", "up", "heartbeat_received"),
//		state.WithTransition("up", "suspect", "mark_suspect"),
//		state.WithTransition("suspect", "up", "recover"),
//		state.WithTransition("suspect", "down", "mark_down"),
//		state.WithBroadcast(func(ctx context.Context, name, from, to, trigger string) error {
//			// notify observers of the transition
//			return nil
//		}),
//	)
//
//	sm, err := state.New(cfg)
//	if err != nil {
//		return err
//	}
//	if err := sm.Start(ctx); err != nil {
//		return err
//	}
//	if err := sm.Fire(ctx, "heartbeat_received", nil); err != nil {
//		// trigger not permitted from the current state
//	}
//
// # Guards, actions, and persistence
//
// WithGuardedTransition attaches a condition that must hold for a
// transition to fire; WithActionTransition attaches a side effect run
// during the transition; WithPersistence registers a callback invoked on
// every state change, for callers that need the current state to survive
// a restart.
//
// # Observability
//
// Every Fire call is wrapped in an OpenTelemetry span, and
// transition/guard/action failures are reported through typed errors
// (ErrInvalidTransition, ErrTransitionGuardFailed,
// ErrTransitionActionFailed, and friends).
package state
