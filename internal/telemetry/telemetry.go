package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/curaious/fabricqr/internal/config"
)

const serviceVersion = "0.1.0"

func newFileExporter(w io.Writer) (trace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

// newCollectorExporter sends traces to an OTEL collector over OTLP/HTTP.
func newCollectorExporter(ctx context.Context, endpoint string) (trace.SpanExporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(trimScheme(endpoint))}
	if !strings.HasPrefix(endpoint, "https://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func trimScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimPrefix(endpoint, "https://")
}

func newResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)
}

// NewProvider installs the global tracer provider and W3C propagator.
//
// Exporter priority:
// 1. OTEL_EXPORTER_OTLP_ENDPOINT - OTLP/HTTP collector (e.g. "localhost:4318")
// 2. OTEL_TRACES_FILE - pretty-printed spans written to a file
// 3. none - spans are recorded but not exported
//
// Returns a teardown func.
func NewProvider(ctx context.Context, conf *config.Config) (func(), error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var (
		exp   trace.SpanExporter
		file  *os.File
		err   error
		attrs = []any{slog.String("service", conf.OTEL_SERVICE_NAME)}
	)

	switch {
	case conf.OTEL_EXPORTER_OTLP_ENDPOINT != "":
		exp, err = newCollectorExporter(ctx, conf.OTEL_EXPORTER_OTLP_ENDPOINT)
		attrs = append(attrs, slog.String("endpoint", conf.OTEL_EXPORTER_OTLP_ENDPOINT))
	case conf.OTEL_TRACES_FILE != "":
		file, err = os.Create(conf.OTEL_TRACES_FILE)
		if err == nil {
			exp, err = newFileExporter(file)
		}
		attrs = append(attrs, slog.String("file", conf.OTEL_TRACES_FILE))
	}
	if err != nil {
		slog.Error("Unable to create trace exporter", slog.Any("error", err))
		return func() {}, err
	}

	opts := []trace.TracerProviderOption{trace.WithResource(newResource(conf.OTEL_SERVICE_NAME))}
	if exp != nil {
		opts = append(opts, trace.WithBatcher(exp))
		slog.Info("Tracing enabled", attrs...)
	}

	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("Unable to shutdown trace provider", slog.Any("error", err))
		}
		if file != nil {
			if err := file.Close(); err != nil {
				slog.Error("Unable to close traces file", slog.Any("error", err))
			}
		}
	}, nil
}
