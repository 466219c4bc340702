// SPDX-License-Identifier: BSD-3-Clause

package eventbus

import "errors"

var (
	// ErrNotEncodable is returned by Publish when message cannot be marshaled
	// for transport over the underlying NATS connection.
	ErrNotEncodable = errors.New("message is not JSON-encodable")
	// ErrBusNotRunning indicates the bus's backing process has already
	// terminated.
	ErrBusNotRunning = errors.New("event bus is not running")
)
