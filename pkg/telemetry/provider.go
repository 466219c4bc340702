// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Provider encapsulates OpenTelemetry providers for metrics and traces
// generated by the runtime. It carries no exporter, so spans and metrics never
// leave the process. Setup installs its tracer and meter providers as the
// global OpenTelemetry providers, replacing any installed earlier.
type Provider struct {
	config        *Config
	traceProvider *trace.TracerProvider
	meterProvider *sdkmetric.MeterProvider
	resource      *resource.Resource
}

// NewProvider creates a new telemetry provider with the given configuration options.
func NewProvider(opts ...Option) (*Provider, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	res, err := createResource(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := &Provider{
		config:   config,
		resource: res,
	}

	provider.setupProviders()
	provider.setGlobalProviders()
	setupTextMapPropagator()

	return provider, nil
}

// Tracer returns a tracer with the given name.
func (p *Provider) Tracer(name string) oteltrace.Tracer {
	if p.traceProvider == nil {
		return tracenoop.NewTracerProvider().Tracer(name)
	}
	return p.traceProvider.Tracer(name)
}

// Meter returns a meter with the given name.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider().Meter(name)
	}
	return p.meterProvider.Meter(name)
}

// Shutdown gracefully shuts down all providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.shutdownTimeout)
	defer cancel()

	var errs []error

	if p.traceProvider != nil {
		if err := p.traceProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}

	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrShutdownFailed, errs)
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.samplingRatio < 0.0 || config.samplingRatio > 1.0 {
		return fmt.Errorf("sampling ratio must be between 0.0 and 1.0, got %f", config.samplingRatio)
	}
	if config.serviceName == "" {
		return ErrMissingEndpoint
	}

	return nil
}

// createResource creates an OpenTelemetry resource with service information.
func createResource(config *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.serviceName),
		semconv.ServiceVersion(config.serviceVersion),
	}

	for key, value := range config.resourceAttrs {
		attrs = append(attrs, attribute.String(key, value))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			attrs...,
		),
	)
}

// setupProviders initializes the trace and metric providers. Neither is
// wired to an exporter here: the SDK types still carry the service resource
// and sampler, so a caller that adds a span/metric processor later (e.g. in
// a host application) sees correctly tagged data.
func (p *Provider) setupProviders() {
	if p.config.enableTraces {
		p.traceProvider = trace.NewTracerProvider(
			trace.WithResource(p.resource),
			trace.WithSampler(trace.TraceIDRatioBased(p.config.samplingRatio)),
		)
	}

	if p.config.enableMetrics {
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(p.resource),
		)
	}
}

func (p *Provider) setGlobalProviders() {
	if p.traceProvider != nil {
		otel.SetTracerProvider(p.traceProvider)
	}

	if p.meterProvider != nil {
		otel.SetMeterProvider(p.meterProvider)
	}

	if p.config.enableLogs {
		global.SetLoggerProvider(noop.NewLoggerProvider())
	}
}

func setupTextMapPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
