// SPDX-License-Identifier: BSD-3-Clause

package fsm

import (
	"context"
	"testing"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
)

// trafficLight cycles red -> green -> yellow -> red on an "advance" event.
func trafficLightDefinition() Definition {
	next := map[string]string{"red": "green", "green": "yellow", "yellow": "red"}

	states := map[string]StateHandlers{}
	for name, nextState := range next {
		nextState := nextState
		states[name] = StateHandlers{
			HandleEvent: func(ctx context.Context, ev Event, data any, from *ReplyToken) Result {
				if ev.Type != "advance" {
					return KeepStateAndData()
				}
				return TransitionTo(nextState, data)
			},
		}
	}

	return Definition{
		Init: func(args any) (string, any, []Action, error) {
			return "red", nil, nil, nil
		},
		States: states,
	}
}

func TestTransitionsAdvanceThroughStates(t *testing.T) {
	k := actor.NewKernel("node1")
	ref, err := Start(context.Background(), k, "light", trafficLightDefinition(), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := Send(k, ref, Event{Type: "advance"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := Send(k, ref, Event{Type: "advance"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Give the single mailbox goroutine a moment to drain both casts.
	time.Sleep(50 * time.Millisecond)
	if !k.IsRunning(ref) {
		t.Fatal("expected machine to still be running")
	}
}

// counterWithReply answers callWithReply("get") immediately and increments
// on a plain cast("inc").
func counterWithReplyDefinition() Definition {
	return Definition{
		Init: func(args any) (string, any, []Action, error) {
			return "counting", 0, nil, nil
		},
		States: map[string]StateHandlers{
			"counting": {
				HandleEvent: func(ctx context.Context, ev Event, data any, from *ReplyToken) Result {
					n := data.(int)
					switch ev.Type {
					case "inc":
						return KeepState(n + 1)
					case "get":
						if from == nil {
							return KeepStateAndData()
						}
						return KeepState(n, ReplyAction{To: *from, Value: n})
					default:
						return KeepStateAndData()
					}
				},
			},
		},
	}
}

func TestCallWithReplyAnswersImmediately(t *testing.T) {
	k := actor.NewKernel("node1")
	ref, err := Start(context.Background(), k, "counter", counterWithReplyDefinition(), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_ = Send(k, ref, Event{Type: "inc"})
	_ = Send(k, ref, Event{Type: "inc"})

	got, err := CallWithReply(context.Background(), k, ref, Event{Type: "get"}, time.Second)
	if err != nil {
		t.Fatalf("callWithReply: %v", err)
	}
	if got.(int) != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}

// deferredReplyDefinition never answers "get" inline; a later "release"
// event answers every pending token.
func deferredReplyDefinition() Definition {
	type pending struct {
		tokens []ReplyToken
	}
	return Definition{
		Init: func(args any) (string, any, []Action, error) {
			return "waiting", pending{}, nil, nil
		},
		States: map[string]StateHandlers{
			"waiting": {
				HandleEvent: func(ctx context.Context, ev Event, data any, from *ReplyToken) Result {
					p := data.(pending)
					switch ev.Type {
					case "get":
						if from != nil {
							p.tokens = append(p.tokens, *from)
						}
						return KeepState(p)
					case "release":
						actions := make([]Action, 0, len(p.tokens))
						for _, tok := range p.tokens {
							actions = append(actions, ReplyAction{To: tok, Value: "done"})
						}
						return KeepState(pending{}, actions...)
					default:
						return KeepStateAndData()
					}
				},
			},
		},
	}
}

func TestDeferredReplyAnsweredLater(t *testing.T) {
	k := actor.NewKernel("node1")
	ref, err := Start(context.Background(), k, "deferred", deferredReplyDefinition(), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)
	go func() {
		v, err := CallWithReply(context.Background(), k, ref, Event{Type: "get"}, 2*time.Second)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- v
	}()

	time.Sleep(50 * time.Millisecond) // ensure "get" is recorded before "release"
	if err := Send(k, ref, Event{Type: "release"}); err != nil {
		t.Fatalf("send release: %v", err)
	}

	select {
	case v := <-resultCh:
		if v != "done" {
			t.Fatalf("expected done, got %v", v)
		}
	case err := <-errCh:
		t.Fatalf("callWithReply: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("deferred reply never arrived")
	}
}

func TestCallWithReplyTimesOutWithoutRelease(t *testing.T) {
	k := actor.NewKernel("node1")
	ref, err := Start(context.Background(), k, "deferred2", deferredReplyDefinition(), nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err = CallWithReply(context.Background(), k, ref, Event{Type: "get"}, 50*time.Millisecond)
	if err != ErrCallTimeout {
		t.Fatalf("expected ErrCallTimeout, got %v", err)
	}
}
