package memory

import (
	"context"
	"sync"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"
)

// Plugin implements PluginPersistence for in-memory storage
// This is primarily for testing and local development
type Plugin struct {
	mu      sync.RWMutex
	results map[string]domain.Result
	blobs   map[string][]byte
}

// NewPlugin creates a new in-memory persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	return New(), nil
}

func New() *Plugin {
	return &Plugin{
		results: make(map[string]domain.Result),
		blobs:   make(map[string][]byte),
	}
}

// ResultStorage returns the result storage implementation
func (p *Plugin) ResultStorage() persistence.ResultStorage {
	return &resultStorage{plugin: p}
}

// HistoryStorage returns the history blob storage implementation
func (p *Plugin) HistoryStorage() persistence.HistoryStorage {
	return &historyStorage{plugin: p}
}

// Health always returns nil for in-memory storage
func (p *Plugin) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (p *Plugin) Close() error {
	return nil
}

func init() {
	persistence.RegisterProvider("memory", NewPlugin)
}

type resultStorage struct {
	plugin *Plugin
}

func (s *resultStorage) SaveResult(ctx context.Context, rec domain.Result) error {
	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()

	s.plugin.results[rec.ID] = rec.Clone()
	return nil
}

func (s *resultStorage) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	s.plugin.mu.RLock()
	defer s.plugin.mu.RUnlock()

	rec, ok := s.plugin.results[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

type historyStorage struct {
	plugin *Plugin
}

func (s *historyStorage) Load(ctx context.Context, key string) ([]byte, error) {
	s.plugin.mu.RLock()
	defer s.plugin.mu.RUnlock()

	b, ok := s.plugin.blobs[key]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *historyStorage) Save(ctx context.Context, key string, blob []byte) error {
	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()

	s.plugin.blobs[key] = append([]byte(nil), blob...)
	return nil
}
