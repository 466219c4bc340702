// SPDX-License-Identifier: BSD-3-Clause

package dsupervisor

type request interface{ isRequest() }

type startChildReq struct {
	spec  ChildSpec
	reply chan error
}

func (startChildReq) isRequest() {}

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

type getStatsReq struct {
	reply chan Stats
}

func (getStatsReq) isRequest() {}

// StartChild appends a new child, placed immediately per its selector.
func (sv *DistributedSupervisor) StartChild(spec ChildSpec) error {
	reply := make(chan error, 1)
	sv.reqCh <- startChildReq{spec: spec, reply: reply}
	return <-reply
}

// TerminateChild stops and permanently removes the named child.
func (sv *DistributedSupervisor) TerminateChild(id string) error {
	reply := make(chan error, 1)
	sv.reqCh <- terminateChildReq{id: id, reply: reply}
	return <-reply
}

// RestartChild force-restarts the named child on its current node.
func (sv *DistributedSupervisor) RestartChild(id string) error {
	reply := make(chan error, 1)
	sv.reqCh <- restartChildReq{id: id, reply: reply}
	return <-reply
}

// GetChildren returns a snapshot of every currently tracked child.
func (sv *DistributedSupervisor) GetChildren() []ChildInfo {
	reply := make(chan []ChildInfo, 1)
	sv.reqCh <- getChildrenReq{reply: reply}
	return <-reply
}

// GetChild returns the named child's snapshot, if still tracked.
func (sv *DistributedSupervisor) GetChild(id string) (ChildInfo, bool) {
	reply := make(chan getChildResult, 1)
	sv.reqCh <- getChildReq{id: id, reply: reply}
	res := <-reply
	return res.info, res.ok
}

// GetStats returns lifetime counters (§6: `.getStats`).
func (sv *DistributedSupervisor) GetStats() Stats {
	reply := make(chan Stats, 1)
	sv.reqCh <- getStatsReq{reply: reply}
	return <-reply
}
