// SPDX-License-Identifier: BSD-3-Clause

package actor

// ProcessRef is an opaque, freely serializable reference to a process.
// Equality is by (ID, Node); Behavior is carried only for introspection.
type ProcessRef struct {
	ID       string `json:"id"`
	Node     string `json:"node"`
	Behavior string `json:"behavior,omitempty"`
}

// IsZero reports whether r is the zero-value ref (never returned by Start).
func (r ProcessRef) IsZero() bool {
	return r.ID == "" && r.Node == ""
}

// Equal reports whether two refs address the same process.
func (r ProcessRef) Equal(other ProcessRef) bool {
	return r.ID == other.ID && r.Node == other.Node
}

// IsLocal reports whether r was spawned on node.
func (r ProcessRef) IsLocal(node string) bool {
	return r.Node == node
}

func (r ProcessRef) String() string {
	if r.Node == "" {
		return r.ID
	}
	return r.ID + "@" + r.Node
}
