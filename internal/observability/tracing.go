package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/mesh-simulator/internal/logging"
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
)

const (
	exporterStdout = "stdout"
	exporterOTLP   = "otlp"

	defaultOTLPEndpoint = "localhost:4317"
	shutdownTimeout     = 5 * time.Second
)

// Resource attribute keys describing the scenario a run was produced under.
const (
	AttrSeed          = attribute.Key("meshsim.seed")
	AttrTopologyKind  = attribute.Key("meshsim.topology.kind")
	AttrFailureRates  = attribute.Key("meshsim.failure_rates")
	AttrMessageCount  = attribute.Key("meshsim.message_count")
	AttrDeriveDensity = attribute.Key("meshsim.density.derived")
)

// TracingConfig governs how harness tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // OTLP gRPC collector address
	SampleRatio float64
	// Scenario is merged into the tracer resource, so every exported span
	// identifies the seed and topology of the run that emitted it.
	Scenario []attribute.KeyValue
}

// Scenario holds the run facts recorded on the tracer resource.
type Scenario struct {
	Seed          uint64
	TopologyKind  string
	FailureRates  []float64
	MessageCount  int
	DeriveDensity bool
}

// Attributes renders s as resource attributes. The seed is kept as a decimal
// string because OTLP integers are signed.
func (s Scenario) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSeed.String(strconv.FormatUint(s.Seed, 10)),
		AttrTopologyKind.String(s.TopologyKind),
		AttrFailureRates.Float64Slice(s.FailureRates),
		AttrMessageCount.Int(s.MessageCount),
		AttrDeriveDensity.Bool(s.DeriveDensity),
	}
}

// WithScenario returns a copy of cfg that records s on the tracer resource.
func (cfg TracingConfig) WithScenario(s Scenario) TracingConfig {
	cfg.Scenario = s.Attributes()
	return cfg
}

// TracingConfigFromEnv reads MESHSIM_TRACING_* and MESHSIM_OTLP_ENDPOINT.
// Tracing stays off unless MESHSIM_TRACING_ENABLED is "true"; a sample
// ratio outside [0,1] falls back to sampling everything.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("MESHSIM_TRACING_ENABLED"), "true"),
		ServiceName: envOr("MESHSIM_TRACING_SERVICE_NAME", "meshsim"),
		Exporter:    strings.ToLower(envOr("MESHSIM_TRACING_EXPORTER", exporterStdout)),
		Endpoint:    os.Getenv("MESHSIM_OTLP_ENDPOINT"),
		SampleRatio: 1,
	}
	if raw := os.Getenv("MESHSIM_TRACING_SAMPLE_RATIO"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// InitTracing installs the global tracer provider described by cfg and
// returns the function that flushes it. A disabled config installs a noop
// provider.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		spanProcessor(cfg, exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
		logging.Int("scenario_attributes", len(cfg.Scenario)),
	)
	return tp.Shutdown, nil
}

func newResource(ctx context.Context, cfg TracingConfig) (*resource.Resource, error) {
	attrs := append([]attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "mesh-simulator"),
	}, cfg.Scenario...)
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}
	return res, nil
}

// spanProcessor exports stdout spans synchronously so they interleave with
// the run's logs; OTLP spans are batched.
func spanProcessor(cfg TracingConfig, exp sdktrace.SpanExporter) sdktrace.TracerProviderOption {
	if exporterKind(cfg) == exporterStdout {
		return sdktrace.WithSyncer(exp)
	}
	return sdktrace.WithBatcher(exp)
}

func exporterKind(cfg TracingConfig) string {
	switch strings.ToLower(cfg.Exporter) {
	case "", exporterStdout:
		return exporterStdout
	case exporterOTLP, "otlpgrpc":
		return exporterOTLP
	default:
		return cfg.Exporter
	}
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch exporterKind(cfg) {
	case exporterStdout:
		return stdouttrace.New(
			stdouttrace.WithWriter(os.Stderr),
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithoutTimestamps(),
		)
	case exporterOTLP:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes tracing within a fixed deadline. Failures are
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

const tracerName = "github.com/signalsfoundry/mesh-simulator"

// StartSpan starts a span on the global tracer provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
