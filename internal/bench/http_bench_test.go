package bench

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/classifyq/pkg/app"
	"github.com/osvaldoandrade/classifyq/pkg/config"
	"github.com/osvaldoandrade/classifyq/pkg/domain"
	_ "github.com/osvaldoandrade/classifyq/pkg/persistence/redis" // Register redis persistence.
)

func newBenchApp(b *testing.B) *app.Application {
	b.Helper()
	gin.SetMode(gin.ReleaseMode)

	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis start: %v", err)
	}
	b.Cleanup(mr.Close)

	cfg, err := config.LoadConfigOptional("")
	if err != nil {
		b.Fatalf("config: %v", err)
	}
	cfg.Env = "dev"
	cfg.LogLevel = "error"
	cfg.Storage.Provider = "local"
	cfg.Storage.LocalDir = b.TempDir()
	cfg.Inference.Provider = "mock"
	cfg.Inference.MockDelayMs = 0
	cfg.Persistence.Type = "redis"
	cfg.Persistence.Config = map[string]any{"addr": mr.Addr()}

	a, err := app.NewApplication(cfg)
	if err != nil {
		b.Fatalf("app init: %v", err)
	}
	app.SetupMappings(a)
	b.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func imageBody(b *testing.B) ([]byte, string) {
	b.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", "bench.png")
	if err != nil {
		b.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(bytes.Repeat([]byte{0x42}, 32*1024))
	_ = mw.Close()
	return buf.Bytes(), mw.FormDataContentType()
}

func BenchmarkHTTP_SubmitWait(b *testing.B) {
	a := newBenchApp(b)
	body, ct := imageBody(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/classify/images?wait=true", bytes.NewReader(body))
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		a.Engine.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			b.Fatalf("submit status %d body=%s", w.Code, w.Body.String())
		}
	}
}

func BenchmarkSubmission_Submit(b *testing.B) {
	a := newBenchApp(b)
	ctx := context.Background()
	img := domain.Image{Name: "bench.png", ContentType: "image/png", Data: bytes.Repeat([]byte{0x42}, 32*1024)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := a.Submissions.Submit(ctx, img, nil)
		if err != nil || res.State != domain.StateCompleted {
			b.Fatalf("Submit: %+v %v", res, err)
		}
	}
}

// History appends rewrite the whole blob, so cost grows with depth.
func BenchmarkHistory_Append(b *testing.B) {
	a := newBenchApp(b)
	ctx := context.Background()
	d := int64(10)
	r := domain.Result{
		SourceName:  "bench.png",
		Predictions: []domain.Prediction{{Label: "Golden Retriever", Confidence: 0.94}},
		State:       domain.StateCompleted,
		DurationMs:  &d,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.ID = "bench-" + string(rune('a'+i%26))
		if err := a.History.Append(ctx, r); err != nil {
			b.Fatalf("Append: %v", err)
		}
	}
}
