// SPDX-License-Identifier: BSD-3-Clause

package id

import "testing"

func TestNewIDUnique(t *testing.T) {
	a := NewID()
	b := NewID()

	if a == "" || b == "" {
		t.Fatal("expected non-empty id")
	}
	if a == b {
		t.Fatal("expected distinct ids across calls")
	}
}
