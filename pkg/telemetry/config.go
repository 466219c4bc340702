// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import "time"

// Config holds the configuration for the telemetry provider.
type Config struct {
	serviceName    string
	serviceVersion string
	enableMetrics  bool
	enableTraces   bool
	enableLogs     bool
	samplingRatio  float64
	resourceAttrs  map[string]string
	shutdownTimeout time.Duration
}

// DefaultConfig returns a default configuration for the telemetry provider.
// The runtime carries no exporter of its own: traces, metrics and logs are
// generated and kept in-process. Setup replaces any global OpenTelemetry
// providers installed before it with its own.
func DefaultConfig() *Config {
	return &Config{
		serviceName:     "noex",
		serviceVersion:  "0.1.0",
		enableMetrics:   true,
		enableTraces:    true,
		enableLogs:      true,
		samplingRatio:   1.0,
		resourceAttrs:   make(map[string]string),
		shutdownTimeout: 5 * time.Second,
	}
}

// Option defines a function that modifies the telemetry configuration.
type Option func(*Config)

// WithServiceName sets the service name for telemetry data.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.serviceName = name
	}
}

// WithServiceVersion sets the service version for telemetry data.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.serviceVersion = version
	}
}

// WithMetrics enables or disables metric generation.
func WithMetrics(enabled bool) Option {
	return func(c *Config) {
		c.enableMetrics = enabled
	}
}

// WithTraces enables or disables trace generation.
func WithTraces(enabled bool) Option {
	return func(c *Config) {
		c.enableTraces = enabled
	}
}

// WithLogs enables or disables log-bridge generation.
func WithLogs(enabled bool) Option {
	return func(c *Config) {
		c.enableLogs = enabled
	}
}

// WithSamplingRatio sets the sampling ratio for traces (0.0 to 1.0).
func WithSamplingRatio(ratio float64) Option {
	return func(c *Config) {
		if ratio < 0.0 {
			ratio = 0.0
		}
		if ratio > 1.0 {
			ratio = 1.0
		}
		c.samplingRatio = ratio
	}
}

// WithResourceAttributes sets additional resource attributes for telemetry data.
func WithResourceAttributes(attrs map[string]string) Option {
	return func(c *Config) {
		c.resourceAttrs = attrs
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for providers to flush.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
