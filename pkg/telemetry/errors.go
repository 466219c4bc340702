// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import "errors"

var (
	// ErrProviderNotInitialized is returned when attempting to use a provider that hasn't been initialized.
	ErrProviderNotInitialized = errors.New("provider not initialized")

	// ErrInvalidConfiguration is returned when the telemetry configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrMissingEndpoint is returned when a required service name is empty.
	ErrMissingEndpoint = errors.New("service name is mandatory")

	// ErrShutdownFailed is returned when the provider fails to shutdown cleanly.
	ErrShutdownFailed = errors.New("shutdown failed")
)
