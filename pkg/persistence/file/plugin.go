// Package file persists results and history blobs as JSON files under a
// root directory. Writes go to a temp file in the same directory and are
// renamed into place, so a reader never observes a torn file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"
)

// Config holds file-backend configuration.
type Config struct {
	Dir string `json:"dir"`
}

type Plugin struct {
	root string
}

func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, fmt.Errorf("file persistence config: %w", err)
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "classifyq-data")
	}
	return New(cfg.Dir)
}

func New(dir string) (*Plugin, error) {
	if err := os.MkdirAll(filepath.Join(dir, "results"), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Plugin{root: dir}, nil
}

func (p *Plugin) ResultStorage() persistence.ResultStorage   { return &resultStorage{p: p} }
func (p *Plugin) HistoryStorage() persistence.HistoryStorage { return &historyStorage{p: p} }

func (p *Plugin) Health(ctx context.Context) error {
	_, err := os.Stat(p.root)
	return err
}

func (p *Plugin) Close() error { return nil }

func init() {
	persistence.RegisterProvider("file", NewPlugin)
}

func safeName(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid key %q", name)
	}
	return name, nil
}

func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.ErrNotFound
	}
	return b, err
}

type resultStorage struct{ p *Plugin }

func (s *resultStorage) path(id string) (string, error) {
	name, err := safeName(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.p.root, "results", name+".json"), nil
}

func (s *resultStorage) SaveResult(ctx context.Context, rec domain.Result) error {
	path, err := s.path(rec.ID)
	if err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := writeAtomic(path, b); err != nil {
		return fmt.Errorf("write result %s: %w", rec.ID, err)
	}
	return nil
}

func (s *resultStorage) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var rec domain.Result
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &rec, nil
}

type historyStorage struct{ p *Plugin }

func (s *historyStorage) path(key string) (string, error) {
	name, err := safeName(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.p.root, name+".json"), nil
}

func (s *historyStorage) Load(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return readFile(path)
}

func (s *historyStorage) Save(ctx context.Context, key string, blob []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, blob); err != nil {
		return fmt.Errorf("write history %s: %w", key, err)
	}
	return nil
}
