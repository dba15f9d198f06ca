// Package tracing provides OpenTelemetry distributed tracing support.
package tracing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds tracing configuration.
type Config struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint (e.g. localhost:4317).
	Endpoint string `mapstructure:"endpoint"`

	// Insecure disables TLS for the collector connection.
	Insecure bool `mapstructure:"insecure"`

	// ServiceName is the service name reported in traces.
	ServiceName string `mapstructure:"service_name"`

	// ServiceVersion is the service version reported in traces.
	ServiceVersion string `mapstructure:"service_version"`

	// Environment is the deployment environment label.
	Environment string `mapstructure:"environment"`

	// SampleRate is the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate"`

	// BatchTimeout is the maximum time before exporting a batch.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`

	// ExportTimeout bounds each export operation.
	ExportTimeout time.Duration `mapstructure:"export_timeout"`
}

// Provider wraps the OpenTelemetry TracerProvider.
type Provider struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	enabled bool
}

// NewProvider creates a new tracing provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{enabled: false}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "authgate"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	if cfg.ExportTimeout == 0 {
		cfg.ExportTimeout = 30 * time.Second
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:      tp,
		tracer:  tp.Tracer(cfg.ServiceName),
		enabled: true,
	}, nil
}

// Shutdown gracefully shuts down the tracing provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the tracer instance.
func (p *Provider) Tracer() trace.Tracer {
	if !p.enabled {
		return trace.NewNoopTracerProvider().Tracer("")
	}
	return p.tracer
}

// Enabled returns whether tracing is enabled.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// StartSpan starts a new span with the given name.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !p.enabled {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, name, opts...)
}

// Middleware opens a server span per request, continuing a trace propagated
// in the incoming headers. The authentication gateway annotates the span
// further down the chain.
func Middleware(p *Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil || !p.enabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := p.StartSpan(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			attrs := NewSpanAttributes().
				Add(AttrHTTPMethod, r.Method).
				Add(AttrHTTPPath, r.URL.Path).
				Add(AttrHTTPStatus, ww.Status())
			if ww.Status() >= 400 {
				attrs.Add("error", true)
			}
			SetSpanAttributes(span, attrs)
		})
	}
}

// Common span attribute keys.
const (
	// Gateway attributes
	AttrRouteClass  = "route.classification"
	AttrAuthOutcome = "auth.outcome"
	AttrAuthKind    = "auth.error_kind"

	// Request attributes
	AttrHTTPMethod = "http.method"
	AttrHTTPPath   = "http.path"
	AttrHTTPStatus = "http.status_code"

	// JWT attributes
	AttrJWTIssuer  = "jwt.issuer"
	AttrJWTSubject = "jwt.subject"
)

// SpanAttributes is a helper to build span attributes.
type SpanAttributes struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributes creates a new SpanAttributes builder.
func NewSpanAttributes() *SpanAttributes {
	return &SpanAttributes{}
}

// Add adds a key-value attribute.
func (a *SpanAttributes) Add(key string, value interface{}) *SpanAttributes {
	switch v := value.(type) {
	case string:
		a.attrs = append(a.attrs, attribute.String(key, v))
	case int:
		a.attrs = append(a.attrs, attribute.Int(key, v))
	case int64:
		a.attrs = append(a.attrs, attribute.Int64(key, v))
	case float64:
		a.attrs = append(a.attrs, attribute.Float64(key, v))
	case bool:
		a.attrs = append(a.attrs, attribute.Bool(key, v))
	case []string:
		a.attrs = append(a.attrs, attribute.StringSlice(key, v))
	}
	return a
}

// Build returns the attribute slice.
func (a *SpanAttributes) Build() []attribute.KeyValue {
	return a.attrs
}

// SetSpanAttributes sets attributes on a span.
func SetSpanAttributes(span trace.Span, attrs *SpanAttributes) {
	if span == nil || attrs == nil {
		return
	}
	span.SetAttributes(attrs.Build()...)
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
