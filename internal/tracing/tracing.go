package tracing

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

// Span attribute keys shared by the HTTP layer and the workflow engine.
const (
	AttrResultID    = attribute.Key("classifyq.result_id")
	AttrResultState = attribute.Key("classifyq.result_state")
	AttrStep        = attribute.Key("classifyq.step")
	AttrModel       = attribute.Key("classifyq.model.version")
)

const workflowTracer = "classifyq/classify"

type Config struct {
	Enabled     bool
	ServiceName string
	Environment string
	// ModelVersion is stamped on every span so traces can be split by the
	// model that produced the predictions.
	ModelVersion string

	OTLPEndpoint string
	OTLPInsecure bool

	SampleRatio float64
}

// resolve fills blanks from the standard OTEL_* variables and defaults.
func (c Config) resolve() Config {
	c.ServiceName = firstNonEmpty(c.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), "classifyq")
	c.OTLPEndpoint = sanitizeEndpoint(firstNonEmpty(c.OTLPEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "localhost:4317"))
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); v != "" {
		c.OTLPInsecure = parseBool(v)
	}
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		c.SampleRatio = 1
	}
	return c
}

// Setup installs the OTLP tracer provider. Exporter failures leave tracing
// off but never fail startup.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	otel.SetTextMapPropagator(propagation.TraceContext{})
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}
	cfg = cfg.resolve()

	expOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		expOpts = append(expOpts, otlptracegrpc.WithInsecure())
	} else {
		expOpts = append(expOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	exp, err := otlptracegrpc.New(ctx, expOpts...)
	if err != nil {
		logger.Warn("otel exporter init failed; tracing disabled", "err", err, "endpoint", cfg.OTLPEndpoint)
		return noop, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, resourceAttrs(cfg)...))
	if err != nil {
		logger.Warn("otel resource init failed; using default", "err", err)
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint, "sample_ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}

func resourceAttrs(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	if cfg.ModelVersion != "" {
		attrs = append(attrs, AttrModel.String(cfg.ModelVersion))
	}
	return attrs
}

// StartStep opens a workflow span named classifyq.classify.<step> for one
// result.
func StartStep(ctx context.Context, step, resultID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrStep.String(step))
	if resultID != "" {
		attrs = append(attrs, AttrResultID.String(resultID))
	}
	return otel.Tracer(workflowTracer).Start(ctx, "classifyq.classify."+step, trace.WithAttributes(attrs...))
}

// InjectHeaders writes traceparent/tracestate into outbound webhook and
// inference requests. Baggage is never forwarded.
func InjectHeaders(ctx context.Context, h http.Header) {
	if h == nil {
		return
	}
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(h))
}

func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	// The gRPC exporter wants host:port, not a URL.
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.TrimSuffix(raw, "/")
}

func parseBool(v string) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "true", "1", "yes", "y", "on":
		return true
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
