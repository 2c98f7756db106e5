package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{DSN: "postgres://localhost/classifyq"}
	cfg.loadDefaults()

	if cfg.MaxOpenConns != 10 {
		t.Errorf("MaxOpenConns = %d, want 10", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 2 {
		t.Errorf("MaxIdleConns = %d, want 2", cfg.MaxIdleConns)
	}
	if cfg.ConnTimeoutSeconds != 5 {
		t.Errorf("ConnTimeoutSeconds = %d, want 5", cfg.ConnTimeoutSeconds)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("validate() error = %v", err)
	}
}

func TestNewPluginRequiresDSN(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"empty object", `{}`},
		{"blank dsn", `{"dsn":"   "}`},
		{"invalid json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlugin(persistence.PluginConfig{Config: []byte(tt.config), Timezone: time.UTC})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPluginRegistered(t *testing.T) {
	found := false
	for _, p := range persistence.ListProviders() {
		if p == "postgres" {
			found = true
		}
	}
	if !found {
		t.Error("postgres provider not registered")
	}
}

// newLivePlugin connects to CLASSIFYQ_TEST_POSTGRES_DSN and skips when unset.
func newLivePlugin(t *testing.T) *Plugin {
	t.Helper()
	dsn := os.Getenv("CLASSIFYQ_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CLASSIFYQ_TEST_POSTGRES_DSN not set")
	}
	raw, _ := json.Marshal(Config{DSN: dsn})
	p, err := NewPlugin(persistence.PluginConfig{Config: raw, Timezone: time.UTC})
	if err != nil {
		t.Fatalf("NewPlugin() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	if err := p.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	return p.(*Plugin)
}

func TestPostgresResultRoundTrip(t *testing.T) {
	p := newLivePlugin(t)
	ctx := context.Background()
	store := p.ResultStorage()

	id := "pg-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = p.db.ExecContext(context.Background(), `DELETE FROM classification_results WHERE id = $1`, id)
	})

	if _, err := store.GetResult(ctx, id); !persistence.IsNotFound(err) {
		t.Fatalf("GetResult() on missing id error = %v, want not found", err)
	}

	d := int64(42)
	rec := domain.Result{
		ID:          id,
		Locator:     "file:///tmp/uploads/" + id + "-dog.png",
		SourceName:  "dog.png",
		Predictions: []domain.Prediction{{Label: "Golden Retriever", Confidence: 0.94}},
		State:       domain.StateCompleted,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DurationMs:  &d,
	}
	if err := store.SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	got, err := store.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if got.State != domain.StateCompleted || got.SourceName != "dog.png" || got.DurationMs == nil || *got.DurationMs != 42 ||
		len(got.Predictions) != 1 || got.Predictions[0].Label != "Golden Retriever" || !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("GetResult() = %+v", got)
	}

	// Saving again upserts instead of failing on the primary key.
	rec.Predictions[0].Confidence = 0.5
	if err := store.SaveResult(ctx, rec); err != nil {
		t.Fatalf("second SaveResult() error = %v", err)
	}
	got, err = store.GetResult(ctx, id)
	if err != nil || got.Predictions[0].Confidence != 0.5 {
		t.Errorf("after upsert = %+v, %v", got, err)
	}
}

func TestPostgresHistoryBlob(t *testing.T) {
	p := newLivePlugin(t)
	ctx := context.Background()
	store := p.HistoryStorage()

	key := "history-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = p.db.ExecContext(context.Background(), `DELETE FROM classification_history WHERE key = $1`, key)
	})

	if _, err := store.Load(ctx, key); !persistence.IsNotFound(err) {
		t.Fatalf("Load() on missing key error = %v, want not found", err)
	}
	if err := store.Save(ctx, key, []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, key, []byte(`[{"id":"b"},{"id":"a"}]`)); err != nil {
		t.Fatalf("overwrite Save() error = %v", err)
	}
	got, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != `[{"id":"b"},{"id":"a"}]` {
		t.Errorf("Load() = %s", got)
	}
}
