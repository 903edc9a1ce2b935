package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"profile-service/config"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const shutdownTimeout = 5 * time.Second

type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Enabled reports whether any OTLP endpoint is configured.
func Enabled(cfg config.TelemetryConfig) bool {
	return cfg.OTLPEndpoint != "" || cfg.OTLPTracesEndpoint != "" || cfg.OTLPMetricsEndpoint != ""
}

// Init installs the global propagator and, when an OTLP endpoint is set,
// trace and meter providers exporting to it. The returned func flushes and
// stops both providers.
func Init(ctx context.Context, cfg config.TelemetryConfig, environment string, log zerolog.Logger) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !Enabled(cfg) {
		log.Info().Msg("opentelemetry disabled: no OTLP endpoint configured")
		return noopShutdown, nil
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("deployment.environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	traceExporter, metricExporter, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(
			metricExporter,
			metric.WithInterval(cfg.MetricExportInterval),
		)),
	)
	otel.SetTracerProvider(traceProvider)
	otel.SetMeterProvider(meterProvider)

	log.Info().
		Str("protocol", cfg.OTLPProtocol).
		Str("traces_endpoint", tracesEndpoint(cfg)).
		Str("metrics_endpoint", metricsEndpoint(cfg)).
		Msg("opentelemetry enabled")

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return errors.Join(traceProvider.Shutdown(ctx), meterProvider.Shutdown(ctx))
	}, nil
}

func tracesEndpoint(cfg config.TelemetryConfig) string {
	if cfg.OTLPTracesEndpoint != "" {
		return cfg.OTLPTracesEndpoint
	}
	return cfg.OTLPEndpoint
}

func metricsEndpoint(cfg config.TelemetryConfig) string {
	if cfg.OTLPMetricsEndpoint != "" {
		return cfg.OTLPMetricsEndpoint
	}
	return cfg.OTLPEndpoint
}

func newExporters(ctx context.Context, cfg config.TelemetryConfig) (trace.SpanExporter, metric.Exporter, error) {
	switch cfg.OTLPProtocol {
	case "http/protobuf", "http":
		traceOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(tracesEndpoint(cfg)),
			otlptracehttp.WithHeaders(cfg.OTLPHeaders),
			otlptracehttp.WithTimeout(cfg.ExportTimeout),
		}
		metricOpts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(metricsEndpoint(cfg)),
			otlpmetrichttp.WithHeaders(cfg.OTLPHeaders),
			otlpmetrichttp.WithTimeout(cfg.ExportTimeout),
		}
		if cfg.OTLPInsecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create trace exporter: %w", err)
		}
		metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create metric exporter: %w", err)
		}
		return traceExporter, metricExporter, nil
	case "grpc", "":
		traceOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(tracesEndpoint(cfg)),
			otlptracegrpc.WithHeaders(cfg.OTLPHeaders),
			otlptracegrpc.WithTimeout(cfg.ExportTimeout),
		}
		metricOpts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(metricsEndpoint(cfg)),
			otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders),
			otlpmetricgrpc.WithTimeout(cfg.ExportTimeout),
		}
		if cfg.OTLPInsecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create trace exporter: %w", err)
		}
		metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create metric exporter: %w", err)
		}
		return traceExporter, metricExporter, nil
	default:
		return nil, nil, fmt.Errorf("unsupported OTLP protocol %q", cfg.OTLPProtocol)
	}
}

// Handler wraps h with otelhttp server instrumentation. Spans are named after
// the matched mux route template.
func Handler(h http.Handler, service string) http.Handler {
	return otelhttp.NewHandler(h, service,
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					return r.Method + " " + tpl
				}
			}
			return r.Method + " " + operation
		}),
	)
}
