package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/h1exec/internal/message"
)

// StartExchangeSpan starts a client span named after the request method.
func StartExchangeSpan(ctx context.Context, tracer trace.Tracer, method, path string, target message.Host) (context.Context, trace.Span) {
	method = strings.ToUpper(method)
	ctx, span := tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		semconv.URLPath(path),
		semconv.NetworkProtocolName("http"),
		semconv.NetworkProtocolVersion("1.1"),
	}
	if target.Name != "" {
		attrs = append(attrs, semconv.ServerAddress(target.Name), semconv.ServerPort(target.Port))
	}
	span.SetAttributes(attrs...)
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHeaders writes W3C trace context fields into h, replacing any
// existing values.
func InjectHeaders(ctx context.Context, h *message.Header) {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{h: h})
}

// ExtractHeaders returns ctx enriched with the trace context carried by h.
func ExtractHeaders(ctx context.Context, h message.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{h: &h})
}

// headerCarrier adapts an ordered message.Header to the OTel TextMapCarrier.
type headerCarrier struct {
	h *message.Header
}

func (c headerCarrier) Get(key string) string { return c.h.Get(key) }
func (c headerCarrier) Set(key, value string) { c.h.Set(key, value) }
func (c headerCarrier) Keys() []string        { return c.h.Names() }

var _ propagation.TextMapCarrier = headerCarrier{}
