package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

const defaultServiceName = "neurobridge-mastery"

type OtelConfig struct {
	Enabled     bool
	ServiceName string
	Environment string
	Version     string
	SampleRatio float64
	// Endpoint is an OTLP/HTTP host:port. Empty exports to stdout.
	Endpoint string
	// Headers uses the OTEL_EXPORTER_OTLP_HEADERS form: k1=v1,k2=v2.
	Headers  string
	Insecure bool
}

func (c OtelConfig) serviceName() string {
	if name := strings.TrimSpace(c.ServiceName); name != "" {
		return name
	}
	return defaultServiceName
}

var (
	initOnce sync.Once
	shutdown = func(context.Context) error { return nil }
)

// InitOTel installs the process-wide tracer provider and W3C propagators on
// first call. Later calls return the same shutdown func, which is never nil.
// Exporter or resource failures are logged and tracing continues degraded.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	initOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		res, err := newResource(ctx, cfg)
		if err != nil {
			warn(log, "otel resource incomplete", err)
		}
		exporter, err := newExporter(ctx, cfg)
		if err != nil {
			warn(log, "otel exporter unavailable, spans will be dropped", err)
		}
		tp := newTracerProvider(res, exporter, cfg.SampleRatio)

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		shutdown = tp.Shutdown
		if log != nil {
			exportTo := cfg.Endpoint
			if exportTo == "" {
				exportTo = "stdout"
			}
			log.Info("otel tracing initialized", "service", cfg.serviceName(), "export_to", exportTo, "sample_ratio", clampRatio(cfg.SampleRatio))
		}
	})
	return shutdown
}

func warn(log *logger.Logger, msg string, err error) {
	if log != nil {
		log.Warn(msg, "error", err)
	}
}

func newResource(ctx context.Context, cfg OtelConfig) (*resource.Resource, error) {
	return resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.serviceName()),
		semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
}

// newTracerProvider samples parent-based at ratio. A nil exporter yields a
// provider that records spans without exporting them.
func newTracerProvider(res *resource.Resource, exporter sdktrace.SpanExporter, ratio float64) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(ratio)))),
	}
	if res != nil {
		opts = append(opts, sdktrace.WithResource(res))
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}
	return sdktrace.NewTracerProvider(opts...)
}

func newExporter(ctx context.Context, cfg OtelConfig) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		return exp, nil
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if headers := parseHeaders(cfg.Headers); len(headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(headers))
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return exp, nil
}

func clampRatio(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// parseHeaders drops malformed pairs and returns nil when nothing survives.
func parseHeaders(raw string) map[string]string {
	var headers map[string]string
	for _, part := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(part, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		if headers == nil {
			headers = map[string]string{}
		}
		headers[key] = val
	}
	return headers
}
