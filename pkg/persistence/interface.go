package persistence

import (
	"context"
	"errors"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
)

var (
	// ErrNotFound is returned when a key does not exist
	ErrNotFound = domain.ErrNotFound
)

// HistoryKey is the well-known key under which the history blob is stored.
const HistoryKey = "classificationResults"

// PluginPersistence provides storage operations for persistence plugins.
// This is the main interface that all persistence backends must implement.
type PluginPersistence interface {
	// ResultStorage returns the durable per-result store (persist transport)
	ResultStorage() ResultStorage

	// HistoryStorage returns the whole-blob history store
	HistoryStorage() HistoryStorage

	// Health checks if the persistence backend is healthy
	Health(ctx context.Context) error

	// Close releases resources held by the persistence backend
	Close() error
}

// ResultStorage defines persistence operations for classification results
type ResultStorage interface {
	// SaveResult stores (or overwrites) a result keyed by its ID
	SaveResult(ctx context.Context, rec domain.Result) error

	// GetResult retrieves a result by ID
	GetResult(ctx context.Context, id string) (*domain.Result, error)
}

// HistoryStorage is a key-value store for serialized history blobs.
// Save always overwrites the whole value.
type HistoryStorage interface {
	// Load returns the blob stored at key, or ErrNotFound
	Load(ctx context.Context, key string) ([]byte, error)

	// Save overwrites the blob stored at key
	Save(ctx context.Context, key string, blob []byte) error
}

// IsNotFound reports whether err is a not-found error from any backend.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
