package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"
)

func TestFilePluginResultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	raw, _ := json.Marshal(Config{Dir: dir})
	plugin, err := persistence.NewPersistence(
		persistence.ProviderConfig{Type: "file", Config: raw},
		persistence.PluginConfig{Timezone: time.UTC},
	)
	if err != nil {
		t.Fatalf("NewPersistence() error = %v", err)
	}
	ctx := context.Background()
	if err := plugin.Health(ctx); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	rec := domain.Result{ID: "abc", State: domain.StateFailed, FailureReason: "network timeout"}
	if err := plugin.ResultStorage().SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "results", "abc.json")); err != nil {
		t.Fatalf("result file missing: %v", err)
	}

	got, err := plugin.ResultStorage().GetResult(ctx, "abc")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if got.FailureReason != "network timeout" {
		t.Errorf("FailureReason = %q", got.FailureReason)
	}
}

func TestFilePluginNotFound(t *testing.T) {
	plugin, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if _, err := plugin.ResultStorage().GetResult(ctx, "missing"); !persistence.IsNotFound(err) {
		t.Errorf("GetResult() error = %v, want not found", err)
	}
	if _, err := plugin.HistoryStorage().Load(ctx, persistence.HistoryKey); !persistence.IsNotFound(err) {
		t.Errorf("Load() error = %v, want not found", err)
	}
}

func TestFilePluginRejectsUnsafeKeys(t *testing.T) {
	plugin, _ := New(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		if err := plugin.HistoryStorage().Save(ctx, key, []byte("[]")); err == nil {
			t.Errorf("Save(%q) expected error", key)
		}
	}
}

func TestFilePluginHistoryOverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	plugin, _ := New(dir)
	ctx := context.Background()

	_ = plugin.HistoryStorage().Save(ctx, persistence.HistoryKey, []byte(`["a"]`))
	_ = plugin.HistoryStorage().Save(ctx, persistence.HistoryKey, []byte(`["b","a"]`))

	got, err := plugin.HistoryStorage().Load(ctx, persistence.HistoryKey)
	if err != nil || string(got) != `["b","a"]` {
		t.Fatalf("Load() = %s, %v", got, err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if len(e.Name()) > 5 && e.Name()[:5] == ".tmp-" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}
