// SPDX-License-Identifier: BSD-3-Clause

// Package id generates opaque unique identifiers used as process ids and
// wire correlation ids throughout the runtime.
package id

import "github.com/google/uuid"

// NewID generates and returns a new UUID as a string.
func NewID() string {
	return uuid.New().String()
}
