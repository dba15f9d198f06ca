package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newRecordingProvider builds an enabled provider backed by an in-memory
// span recorder, avoiding any collector connection.
func newRecordingProvider() (*Provider, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return &Provider{tp: tp, tracer: tp.Tracer("test"), enabled: true}, sr
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))

	ctx := context.Background()
	gotCtx, span := p.StartSpan(ctx, "noop")
	assert.Equal(t, ctx, gotCtx)
	assert.False(t, span.SpanContext().IsValid())
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	handler := Middleware(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddleware_RecordsServerSpan(t *testing.T) {
	p, sr := newRecordingProvider()

	handler := Middleware(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widgets", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/widgets", spans[0].Name())

	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, attribute.Int(AttrHTTPStatus, http.StatusUnauthorized))
	assert.Contains(t, attrs, attribute.String(AttrHTTPPath, "/api/widgets"))
	assert.Contains(t, attrs, attribute.Bool("error", true))
}

func TestSpanAttributes_Add(t *testing.T) {
	attrs := NewSpanAttributes().
		Add("s", "value").
		Add("i", 42).
		Add("i64", int64(7)).
		Add("f", 0.5).
		Add("b", true).
		Add("ss", []string{"a", "b"}).
		Build()

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("s", "value"),
		attribute.Int("i", 42),
		attribute.Int64("i64", 7),
		attribute.Float64("f", 0.5),
		attribute.Bool("b", true),
		attribute.StringSlice("ss", []string{"a", "b"}),
	}, attrs)
}

func TestRecordError_NilSafe(t *testing.T) {
	RecordError(nil, nil)
	SetSpanAttributes(nil, nil)

	p, sr := newRecordingProvider()
	_, span := p.StartSpan(context.Background(), "op")
	RecordError(span, assert.AnError)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
