package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HTTP span attributes
const (
	HTTPMethodKey    = attribute.Key("http.method")
	HTTPURLKey       = attribute.Key("http.url")
	HTTPStatusKey    = attribute.Key("http.status_code")
	HTTPRouteKey     = attribute.Key("http.route")
	HTTPClientIPKey  = attribute.Key("http.client_ip")
	HTTPUserAgentKey = attribute.Key("http.user_agent")
	HTTPRequestIDKey = attribute.Key("http.request_id")
	PeerServiceKey   = attribute.Key("peer.service")
	UserIDKey        = attribute.Key("user.id")
)

// TraceHTTPClient wraps an outbound request in a client span and injects the
// trace context into its headers. The query string is left out of the span
// because upstream API keys travel there.
func TraceHTTPClient(req *http.Request, peer string, fn func(*http.Request) (int, error)) (int, error) {
	ctx, span := StartSpan(req.Context(), "httpclient", fmt.Sprintf("HTTP %s", req.Method),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		HTTPMethodKey.String(req.Method),
		HTTPURLKey.String(req.URL.Scheme+"://"+req.URL.Host+req.URL.Path),
	)
	if peer != "" {
		span.SetAttributes(PeerServiceKey.String(peer))
	}

	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	statusCode, err := fn(req)
	if statusCode > 0 {
		span.SetAttributes(HTTPStatusKey.Int(statusCode))
	}

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case statusCode >= 400:
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	default:
		span.SetStatus(codes.Ok, "")
	}

	return statusCode, err
}

// RecordError marks the span in ctx as failed
func RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err, trace.WithAttributes(attrs...))
		span.SetStatus(codes.Error, err.Error())
	}
}

// AnnotateLocation tags the span in ctx with a coordinate
func AnnotateLocation(ctx context.Context, latitude, longitude float64) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.Float64("location.latitude", latitude),
			attribute.Float64("location.longitude", longitude),
		)
	}
}
