// Package telemetry sets up optional OpenTelemetry tracing of backend
// requests.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/me/blogfront/internal/config"
	"github.com/me/blogfront/internal/logging"
)

// ServiceName identifies this client in exported spans.
const ServiceName = "blog-cli"

// Tracing holds the tracer provider used for outgoing requests.
type Tracing struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	shutdown   func(context.Context) error
}

// Init creates a tracer provider for exporter (none, stdout or otlp).
// Stdout spans are written to w. The OTLP exporter reads the standard
// OTEL_EXPORTER_OTLP_* variables.
func Init(ctx context.Context, exporter, version string, w io.Writer, logger *slog.Logger) (*Tracing, error) {
	logger = logging.OrDiscard(logger)
	t := &Tracing{
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
		shutdown:   func(context.Context) error { return nil },
	}

	var spanExporter sdktrace.SpanExporter
	switch exporter {
	case "", config.TraceNone:
		t.provider = noop.NewTracerProvider()
		return t, nil
	case config.TraceStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		spanExporter = exp
	case config.TraceOTLP:
		exp, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		spanExporter = exp
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporter)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	// Commands are short-lived, so spans are exported as they end.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(spanExporter),
	)
	t.provider = tp
	t.shutdown = tp.Shutdown
	logger.Debug("tracing enabled", "exporter", exporter)
	return t, nil
}

// Transport wraps base so every request gets a client span and trace
// context headers.
func (t *Tracing) Transport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(t.provider),
		otelhttp.WithPropagators(t.propagator),
	)
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
