package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const defaultExportInterval = 30 * time.Second

// ProviderConfig configures the process-wide meter provider.
type ProviderConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Endpoint overrides the OTLP collector URL. Empty defers to the
	// OTEL_EXPORTER_OTLP_* environment variables.
	Endpoint       string
	ExportInterval time.Duration
}

// Provider owns the global meter provider and its periodic reader.
type Provider struct {
	sdk *sdkmetric.MeterProvider
}

// NewProvider exports metrics over OTLP/HTTP and installs the provider
// globally. Disabled metrics install nothing and Shutdown is a no-op.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	var opts []otlpmetrichttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	return install(ctx, cfg, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
}

func install(ctx context.Context, cfg ProviderConfig, reader sdkmetric.Reader) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	sdk := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(sdk)
	return &Provider{sdk: sdk}, nil
}

// Shutdown flushes pending measurements and stops the reader.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
