package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddlewareGenerates(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	var fromCtx string
	r.GET("/x", func(c *gin.Context) {
		fromCtx = RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	got := w.Header().Get("X-Request-Id")
	if got == "" || got != fromCtx {
		t.Errorf("header %q, context %q", got, fromCtx)
	}
}

func TestRequestIDMiddlewarePropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("X-Request-Id = %q", got)
	}
}

func TestLoggerMiddlewareScopesLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggerMiddleware(base))
	r.GET("/x", func(c *gin.Context) {
		Logger(c).Info("handler ran")
		c.Status(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-42"`) {
		t.Errorf("request id missing from logs: %s", out)
	}
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("access line missing: %s", out)
	}
}

func TestLoggerFallsBackToDefault(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if Logger(c) == nil {
		t.Fatal("expected default logger")
	}
}

func TestTracingMiddlewarePassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(TracingMiddleware(""))
	r.GET("/results/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/results/1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestTracingMiddlewareTagsResult(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(RequestIDMiddleware(), TracingMiddleware(""))
	r.GET("/v1/classify/results/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/v1/classify/images", func(c *gin.Context) {
		c.Set(ResultIDKey, "res-9")
		c.Set(ResultStateKey, "FAILED")
		c.Status(http.StatusBadGateway)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/classify/results/res-1", nil)
	req.Header.Set("X-Request-Id", "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/classify/images", strings.NewReader("x")))

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}

	get := spanAttrs(spans[0])
	if spans[0].Name() != "classifyq GET /v1/classify/results/:id" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if get["classifyq.result_id"] != "res-1" || get["classifyq.request_id"] != "req-7" || get["http.status_code"] != "200" {
		t.Errorf("GET attrs = %v", get)
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("GET span marked as error")
	}

	post := spanAttrs(spans[1])
	if post["classifyq.result_id"] != "res-9" || post["classifyq.result_state"] != "FAILED" || post["http.status_code"] != "502" {
		t.Errorf("POST attrs = %v", post)
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("POST span status = %v, want error", spans[1].Status().Code)
	}
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]string {
	out := map[string]string{}
	for _, kv := range s.Attributes() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}
