package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/orrery/internal/logging"
)

// TracerName identifies spans emitted by this module.
const TracerName = "github.com/signalsfoundry/orrery"

const (
	exporterStdout      = "stdout"
	exporterOTLP        = "otlp"
	defaultOTLPEndpoint = "localhost:4317"
	shutdownTimeout     = 5 * time.Second
)

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // otlp only
	SampleRatio float64

	// Writer receives stdout-exporter spans; stderr when nil. Stdout belongs
	// to the terminal renderer.
	Writer io.Writer
}

func (c TracingConfig) withDefaults() TracingConfig {
	c.Exporter = strings.ToLower(strings.TrimSpace(c.Exporter))
	if c.Exporter == "" {
		c.Exporter = exporterStdout
	}
	if c.ServiceName == "" {
		c.ServiceName = "orrery"
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultOTLPEndpoint
	}
	if c.Writer == nil {
		c.Writer = os.Stderr
	}
	return c
}

// TracingConfigFromEnv reads ORRERY_TRACING_ENABLED, _EXPORTER,
// _SERVICE_NAME, _SAMPLE_RATIO and ORRERY_OTLP_ENDPOINT. A ratio outside
// [0,1] falls back to 1.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("ORRERY_TRACING_ENABLED"), "true"),
		Exporter:    os.Getenv("ORRERY_TRACING_EXPORTER"),
		ServiceName: os.Getenv("ORRERY_TRACING_SERVICE_NAME"),
		Endpoint:    os.Getenv("ORRERY_OTLP_ENDPOINT"),
		SampleRatio: 1,
	}
	if raw := os.Getenv("ORRERY_TRACING_SAMPLE_RATIO"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	cfg.Exporter = strings.ToLower(cfg.Exporter)
	if cfg.Exporter == "" {
		cfg.Exporter = exporterStdout
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "orrery"
	}
	return cfg
}

// InitTracing installs the global tracer provider described by cfg and
// returns a shutdown function that flushes pending spans. When tracing is
// disabled a noop provider is installed and shutdown does nothing.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	cfg = cfg.withDefaults()

	spanProcessor, err := newSpanProcessor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.namespace", "orrery"),
		),
		resource.WithProcessRuntimeVersion(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(samplerFor(cfg.SampleRatio)),
		sdktrace.WithSpanProcessor(spanProcessor),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Any("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

// samplerFor keeps whole traces together: children follow their parent,
// roots are sampled by ratio.
func samplerFor(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// newSpanProcessor writes stdout spans synchronously and batches OTLP
// export.
func newSpanProcessor(ctx context.Context, cfg TracingConfig) (sdktrace.SpanProcessor, error) {
	switch cfg.Exporter {
	case exporterStdout:
		exp, err := stdouttrace.New(
			stdouttrace.WithWriter(cfg.Writer),
			stdouttrace.WithoutTimestamps(),
		)
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		return sdktrace.NewSimpleSpanProcessor(exp), nil
	case exporterOTLP, "otlpgrpc":
		exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		return sdktrace.NewBatchSpanProcessor(exp), nil
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
}

// StartSpan opens a span on the global tracer provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// ShutdownWithTimeout flushes tracing within a bounded time. Failures are
// logged, not returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
