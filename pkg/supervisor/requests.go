// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/hamicek/noex-sub004/pkg/actor"
)

type request interface{ isRequest() }

type startChildReq struct {
	spec  ChildSpec
	reply chan error
}

func (startChildReq) isRequest() {}

type startDynamicReq struct {
	args  any
	reply chan dynResult
}

func (startDynamicReq) isRequest() {}

type dynResult struct {
	ref actor.ProcessRef
	err error
}

type terminateChildReq struct {
	id    string
	reply chan error
}

func (terminateChildReq) isRequest() {}

type restartChildReq struct {
	id    string
	reply chan error
}

func (restartChildReq) isRequest() {}

type getChildrenReq struct {
	reply chan []ChildInfo
}

func (getChildrenReq) isRequest() {}

type getChildReq struct {
	id    string
	reply chan getChildResult
}

func (getChildReq) isRequest() {}

type getChildResult struct {
	info ChildInfo
	ok   bool
}

// StartChild appends a new statically-declared child, started immediately.
// Not valid under simple_one_for_one; use StartDynamicChild instead.
func (sv *Supervisor) StartChild(spec ChildSpec) error {
	reply := make(chan error, 1)
	sv.reqCh <- startChildReq{spec: spec, reply: reply}
	return <-reply
}

// StartDynamicChild starts a new instance of the child template with args.
// Only valid under simple_one_for_one.
func (sv *Supervisor) StartDynamicChild(args any) (actor.ProcessRef, error) {
	reply := make(chan dynResult, 1)
	sv.reqCh <- startDynamicReq{args: args, reply: reply}
	res := <-reply
	return res.ref, res.err
}

// TerminateChild stops and permanently removes the named child; subsequent
// restart decisions never see it again.
func (sv *Supervisor) TerminateChild(id string) error {
	reply := make(chan error, 1)
	sv.reqCh <- terminateChildReq{id: id, reply: reply}
	return <-reply
}

// RestartChild force-restarts the named child in place, preserving its
// position in the start order.
func (sv *Supervisor) RestartChild(id string) error {
	reply := make(chan error, 1)
	sv.reqCh <- restartChildReq{id: id, reply: reply}
	return <-reply
}

// GetChildren returns a snapshot of every currently tracked child.
func (sv *Supervisor) GetChildren() []ChildInfo {
	reply := make(chan []ChildInfo, 1)
	sv.reqCh <- getChildrenReq{reply: reply}
	return <-reply
}

// GetChild returns the named child's snapshot, if it is still tracked.
func (sv *Supervisor) GetChild(id string) (ChildInfo, bool) {
	reply := make(chan getChildResult, 1)
	sv.reqCh <- getChildReq{id: id, reply: reply}
	res := <-reply
	return res.info, res.ok
}

func (sv *Supervisor) handleRequest(ctx context.Context, children []*childRecord, history *[]time.Time, dynSeq *int, req request) ([]*childRecord, bool, error) {
	switch r := req.(type) {
	case startChildReq:
		if sv.strategy == SimpleOneForOne {
			r.reply <- ErrStaticChildrenDisallowed
			return children, false, nil
		}
		rec, err := sv.startStatic(ctx, r.spec)
		if err != nil {
			r.reply <- err
			return children, false, nil
		}
		children = append(children, rec)
		r.reply <- nil
		return children, false, nil

	case startDynamicReq:
		if sv.strategy != SimpleOneForOne {
			r.reply <- dynResult{err: ErrNotSimpleOneForOne}
			return children, false, nil
		}
		*dynSeq++
		id := fmt.Sprintf("dyn-%d", *dynSeq)
		ref, err := sv.template(ctx, sv.kernel, r.args, sv.exitListenerFor(id))
		if err != nil {
			r.reply <- dynResult{err: err}
			return children, false, nil
		}
		children = append(children, &childRecord{
			spec:  ChildSpec{ID: id, Restart: Temporary},
			ref:   ref,
			alive: true,
			args:  r.args,
		})
		r.reply <- dynResult{ref: ref}
		return children, false, nil

	case terminateChildReq:
		idx := sv.indexOf(children, r.id)
		if idx < 0 {
			r.reply <- ErrChildNotFound
			return children, false, nil
		}
		sv.stopAndWait(children[idx])
		children = append(children[:idx], children[idx+1:]...)
		r.reply <- nil
		return children, false, nil

	case restartChildReq:
		idx := sv.indexOf(children, r.id)
		if idx < 0 {
			r.reply <- ErrChildNotFound
			return children, false, nil
		}
		sv.stopAndWait(children[idx])
		sv.restartChildAt(ctx, children, idx)
		r.reply <- nil
		return children, false, nil

	case getChildrenReq:
		r.reply <- snapshotAll(children)
		return children, false, nil

	case getChildReq:
		idx := sv.indexOf(children, r.id)
		if idx < 0 {
			r.reply <- getChildResult{}
			return children, false, nil
		}
		r.reply <- getChildResult{info: snapshot(children[idx]), ok: true}
		return children, false, nil

	default:
		return children, false, nil
	}
}

func (sv *Supervisor) handleExit(ctx context.Context, children []*childRecord, history *[]time.Time, exit childExit) ([]*childRecord, bool, error) {
	idx := sv.indexOf(children, exit.id)
	if idx < 0 {
		return children, false, nil
	}
	child := children[idx]
	if !child.alive {
		// We proactively stopped this child ourselves; the async exit
		// notification is expected and carries no new information.
		return children, false, nil
	}
	child.alive = false

	if !shouldRestart(child.spec.Restart, exit.reason) {
		significant := child.spec.Significant
		children = append(children[:idx], children[idx+1:]...)
		if sv.checkAutoShutdown(children, significant) {
			return children, true, exit.reason
		}
		return children, false, nil
	}

	if !sv.admitRestart(history) {
		sv.logger.Error("supervisor: restart intensity exceeded", "supervisor", sv.name)
		return children, true, ErrMaxRestartsExceeded
	}

	sv.applyRestartStrategy(ctx, children, idx)
	return children, false, nil
}

func (sv *Supervisor) applyRestartStrategy(ctx context.Context, children []*childRecord, idx int) {
	switch sv.strategy {
	case OneForOne, SimpleOneForOne:
		sv.restartChildAt(ctx, children, idx)

	case OneForAll:
		for i := len(children) - 1; i >= 0; i-- {
			if i == idx {
				continue
			}
			sv.stopAndWait(children[i])
		}
		for i := range children {
			sv.restartChildAt(ctx, children, i)
		}

	case RestForOne:
		for i := len(children) - 1; i > idx; i-- {
			sv.stopAndWait(children[i])
		}
		for i := idx; i < len(children); i++ {
			sv.restartChildAt(ctx, children, i)
		}
	}
}

func (sv *Supervisor) restartChildAt(ctx context.Context, children []*childRecord, idx int) {
	c := children[idx]
	attempt := c.restartCount + 1
	sv.kernel.Events().Publish(actor.Event{Kind: actor.EventRestarted, Ref: c.ref, Attempt: attempt})

	var ref actor.ProcessRef
	var err error
	if sv.strategy == SimpleOneForOne {
		ref, err = sv.template(ctx, sv.kernel, c.args, sv.exitListenerFor(c.spec.ID))
	} else {
		ref, err = c.spec.Start(ctx, sv.kernel, sv.exitListenerFor(c.spec.ID))
	}
	if err != nil {
		sv.logger.Error("supervisor: child restart failed", "child", c.spec.ID, "error", err)
		return
	}

	c.ref = ref
	c.alive = true
	c.restartCount = attempt
}

// checkAutoShutdown reports whether losing a child (with significance
// lostSignificant) should begin supervisor shutdown under the configured
// policy.
func (sv *Supervisor) checkAutoShutdown(remaining []*childRecord, lostSignificant bool) bool {
	switch sv.autoShutdown {
	case AnySignificant:
		return lostSignificant
	case AllSignificant:
		for _, c := range remaining {
			if c.spec.Significant && c.alive {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func snapshot(c *childRecord) ChildInfo {
	return ChildInfo{
		ID:           c.spec.ID,
		Ref:          c.ref,
		Alive:        c.alive,
		RestartCount: c.restartCount,
		Significant:  c.spec.Significant,
	}
}

func snapshotAll(children []*childRecord) []ChildInfo {
	out := make([]ChildInfo, 0, len(children))
	for _, c := range children {
		out = append(out, snapshot(c))
	}
	return out
}
