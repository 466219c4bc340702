// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"errors"
	"testing"

	"github.com/hamicek/noex-sub004/pkg/actor"
)

func TestRegisterLookupUnregister(t *testing.T) {
	r := New()
	defer r.Close()

	ref := actor.ProcessRef{ID: "abc", Node: "n1"}
	if err := r.Register("worker", ref); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, ok := r.Whereis("worker")
	if !ok || !got.Equal(ref) {
		t.Fatalf("expected %v, got %v (ok=%v)", ref, got, ok)
	}

	if !r.IsRegistered("worker") {
		t.Fatal("expected worker to be registered")
	}

	r.Unregister("worker")
	if r.IsRegistered("worker") {
		t.Fatal("expected worker to be unregistered")
	}
}

func TestRegisterNameCollision(t *testing.T) {
	r := New()
	defer r.Close()

	ref1 := actor.ProcessRef{ID: "a", Node: "n1"}
	ref2 := actor.ProcessRef{ID: "b", Node: "n1"}

	if err := r.Register("singleton", ref1); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register("singleton", ref2)
	if !errors.Is(err, actor.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestNamesAndCount(t *testing.T) {
	r := New()
	defer r.Close()

	_ = r.Register("a", actor.ProcessRef{ID: "1", Node: "n1"})
	_ = r.Register("b", actor.ProcessRef{ID: "2", Node: "n1"})

	if r.Count() != 2 {
		t.Fatalf("expected count 2, got %d", r.Count())
	}
	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}
