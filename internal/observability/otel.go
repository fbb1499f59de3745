// Package observability wires OpenTelemetry tracing for the API process.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"

	"github.com/CRMWizAI/sora2api/internal/config"
)

const (
	attrSoraModel   = attribute.Key("sora2api.provider.model")
	attrRecordStore = attribute.Key("sora2api.record_store")
)

// Replaced in tests.
var (
	startExporter = func(ctx context.Context, opts ...otlptracegrpc.Option) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	}
	buildResource = serviceResource
)

// SetupOTel installs a global tracer provider exporting spans over OTLP/gRPC
// and returns its shutdown. With tracing disabled the globals are left alone.
func SetupOTel(ctx context.Context, cfg *config.Config, version string) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := startExporter(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to start trace exporter: %w", err)
	}

	res, err := buildResource(ctx, cfg, version)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.OTELSampleRatio))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func exporterOptions(cfg *config.Config) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTELEndpoint)}
	if cfg.OTELInsecure {
		return append(opts, otlptracegrpc.WithInsecure())
	}
	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
}

// serviceResource describes this deployment on every exported span.
// OTEL_RESOURCE_ATTRIBUTES can add to it.
func serviceResource(ctx context.Context, cfg *config.Config, version string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.OTELServiceName),
			semconv.ServiceVersion(version),
			semconv.DeploymentEnvironment(cfg.Environment),
			attrSoraModel.String(cfg.SoraModel),
			attrRecordStore.String(cfg.RecordStore),
		),
	)
}
