// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import "errors"

var (
	// ErrMaxRestartsExceeded is the supervisor's own termination reason once
	// restart intensity is exhausted; it is what the supervisor's own parent
	// observes as its exit reason.
	ErrMaxRestartsExceeded = errors.New("supervisor: max restart intensity exceeded")
	// ErrTemplateRequired indicates a simple_one_for_one supervisor was
	// started without a ChildTemplate.
	ErrTemplateRequired = errors.New("supervisor: simple_one_for_one requires a child template")
	// ErrStaticChildrenDisallowed indicates Start was called with static
	// ChildSpecs under the simple_one_for_one strategy.
	ErrStaticChildrenDisallowed = errors.New("supervisor: static children are not allowed under simple_one_for_one")
	// ErrNotSimpleOneForOne is returned by StartDynamicChild against a
	// supervisor using any other strategy.
	ErrNotSimpleOneForOne = errors.New("supervisor: dynamic children require simple_one_for_one")
	// ErrChildNotFound is returned when an operation names an unknown child id.
	ErrChildNotFound = errors.New("supervisor: child not found")
	// ErrAlreadyStarted/ErrNotStarted are not returned by any Supervisor
	// method.
	ErrAlreadyStarted = errors.New("supervisor: already started")
	ErrNotStarted     = errors.New("supervisor: not started")
)
