package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pal-ai/gateway/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTraceHTTPClient(t *testing.T) {
	recorder := installRecorder(t)

	req := httptest.NewRequest(http.MethodGet, "https://api.openweathermap.org/data/2.5/weather?appid=secret&lat=15", nil)
	var sent *http.Request
	status, err := TraceHTTPClient(req, "weather", func(r *http.Request) (int, error) {
		sent = r
		return http.StatusOK, nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	require.NotNil(t, sent)
	assert.NotEmpty(t, sent.Header.Get("Traceparent"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP GET", span.Name())
	assert.Equal(t, trace.SpanKindClient, span.SpanKind())

	url, ok := attr(span, HTTPURLKey)
	require.True(t, ok)
	assert.Equal(t, "https://api.openweathermap.org/data/2.5/weather", url.AsString())
	assert.NotContains(t, url.AsString(), "secret")

	peer, _ := attr(span, PeerServiceKey)
	assert.Equal(t, "weather", peer.AsString())
	assert.Equal(t, codes.Ok, span.Status().Code)
}

func TestTraceHTTPClientFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
	}{
		{"transport error", 0, errors.New("connection refused")},
		{"upstream error status", http.StatusBadGateway, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := installRecorder(t)
			req := httptest.NewRequest(http.MethodPost, "http://predict.local/predict", nil)

			_, err := TraceHTTPClient(req, "", func(*http.Request) (int, error) {
				return tt.status, tt.err
			})
			assert.Equal(t, tt.err, err)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status().Code)
		})
	}
}

func TestAnnotateLocationAndTraceID(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartSpan(context.Background(), "weather", "weather.Current")
	AnnotateLocation(ctx, 15.7155, 120.9037)
	assert.NotEmpty(t, TraceID(ctx))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	lat, ok := attr(spans[0], "location.latitude")
	require.True(t, ok)
	assert.InDelta(t, 15.7155, lat.AsFloat64(), 1e-9)

	assert.Empty(t, TraceID(context.Background()))
}

func TestRecordError(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartSpan(context.Background(), "test", "op")
	RecordError(ctx, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, Sampler(0, "production").Description(), "0.1")
	assert.Contains(t, Sampler(0, "development").Description(), "AlwaysOnSampler")
	assert.Contains(t, Sampler(0.25, "production").Description(), "0.25")
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{Enabled: false}, "gateway", "test", "development")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
