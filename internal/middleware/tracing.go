package middleware

import (
	"net/http"
	"strings"

	"github.com/osvaldoandrade/classifyq/internal/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Context keys handlers set so the request span can name the result it
// served. Routes with an :id param are tagged without help.
const (
	ResultIDKey    = "result_id"
	ResultStateKey = "result_state"
)

// TracingMiddleware opens one server span per classification request,
// continuing any W3C parent sent by the caller.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "classifyq"
	}
	tracer := otel.Tracer(serviceName + "/http")

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.path", c.Request.URL.Path),
		}
		if id := RequestID(ctx); id != "" {
			attrs = append(attrs, attribute.String("classifyq.request_id", id))
		}
		if c.Request.ContentLength > 0 {
			attrs = append(attrs, attribute.Int64("classifyq.upload_bytes", c.Request.ContentLength))
		}
		ctx, span := tracer.Start(ctx, spanName(c.Request.Method, c.FullPath(), c.Request.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if route := c.FullPath(); route != "" {
			span.SetAttributes(attribute.String("http.route", route))
		}
		resultID := c.Param("id")
		if resultID == "" {
			resultID = c.GetString(ResultIDKey)
		}
		if resultID != "" {
			span.SetAttributes(tracing.AttrResultID.String(resultID))
		}
		if state := c.GetString(ResultStateKey); state != "" {
			span.SetAttributes(tracing.AttrResultState.String(state))
		}

		switch {
		case status == http.StatusBadGateway:
			span.SetStatus(codes.Error, "classification failed")
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func spanName(method, route, path string) string {
	if route == "" {
		route = path
	}
	return "classifyq " + method + " " + route
}
