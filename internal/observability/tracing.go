package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/signalsfoundry/sitecover/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporters accepted by TracingConfig.Exporter.
const (
	ExporterStdout   = "stdout"
	ExporterOTLP     = "otlp"
	ExporterOTLPGRPC = "otlpgrpc"
)

const defaultOTLPEndpoint = "localhost:4317"

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // used when Exporter == otlp
	SampleRatio float64
	// Output receives stdout-exporter spans; defaults to stderr so that
	// command output on stdout stays machine readable.
	Output io.Writer
}

// Normalize fills defaults for unset fields and clamps the sample ratio.
func (cfg TracingConfig) Normalize() TracingConfig {
	cfg.Exporter = strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if cfg.Exporter == "" {
		cfg.Exporter = ExporterStdout
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "sitecover"
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		cfg.SampleRatio = 1
	}
	if cfg.Exporter != ExporterStdout && cfg.Endpoint == "" {
		cfg.Endpoint = defaultOTLPEndpoint
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	return cfg
}

// NewTracerProvider builds a provider for cfg without installing it
// globally. Stdout spans are written synchronously; OTLP spans are batched.
func NewTracerProvider(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	cfg = cfg.Normalize()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.namespace", "sitecover"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	}
	switch cfg.Exporter {
	case ExporterStdout:
		exp, err := stdouttrace.New(
			stdouttrace.WithWriter(cfg.Output),
			stdouttrace.WithoutTimestamps(),
		)
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithSyncer(exp))
	case ExporterOTLP, ExporterOTLPGRPC:
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter %s: %w", cfg.Endpoint, err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// InitTracing installs the global tracer provider and propagators. With
// tracing disabled a no-op provider is installed. The returned function
// flushes and stops the provider.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	cfg = cfg.Normalize()

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	tp, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

// ShutdownWithTimeout calls shutdown with a five second budget and logs
// any failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
