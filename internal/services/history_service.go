package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/osvaldoandrade/classifyq/internal/metrics"
	"github.com/osvaldoandrade/classifyq/pkg/domain"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"
)

var ErrNotCompleted = errors.New("only completed results can be added to history")

// HistoryService is the most-recent-first list of completed results,
// stored as a single blob under persistence.HistoryKey.
type HistoryService interface {
	Append(ctx context.Context, result domain.Result) error
	LoadAll(ctx context.Context) []domain.Result
	Count(ctx context.Context) (int, error)
}

type historyService struct {
	store  persistence.HistoryStorage
	key    string
	logger *slog.Logger

	mu sync.Mutex
}

func NewHistoryService(store persistence.HistoryStorage, logger *slog.Logger) HistoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &historyService{store: store, key: persistence.HistoryKey, logger: logger}
}

// Append prepends result and rewrites the whole blob. Read, prepend and
// write happen under one lock so concurrent appends never drop entries.
func (h *historyService) Append(ctx context.Context, result domain.Result) error {
	if result.State != domain.StateCompleted {
		metrics.HistoryAppendsTotal.WithLabelValues("rejected").Inc()
		return ErrNotCompleted
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.read(ctx)
	if err != nil {
		metrics.HistoryAppendsTotal.WithLabelValues("failure").Inc()
		return err
	}
	for _, r := range current {
		if r.ID == result.ID {
			h.logger.Warn("history already contains result id", "id", result.ID)
			break
		}
	}

	next := make([]domain.Result, 0, len(current)+1)
	next = append(next, result.Clone())
	next = append(next, current...)

	blob, err := json.Marshal(next)
	if err != nil {
		metrics.HistoryAppendsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("encode history: %w", err)
	}
	if err := h.store.Save(ctx, h.key, blob); err != nil {
		metrics.HistoryAppendsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("save history: %w", err)
	}
	metrics.HistoryAppendsTotal.WithLabelValues("success").Inc()
	return nil
}

// LoadAll never fails: a missing, unreadable or corrupt blob yields an
// empty history.
func (h *historyService) LoadAll(ctx context.Context) []domain.Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	out, err := h.read(ctx)
	if err != nil {
		h.logger.Warn("history load failed", "err", err)
		return []domain.Result{}
	}
	return out
}

func (h *historyService) Count(ctx context.Context) (int, error) {
	return len(h.LoadAll(ctx)), nil
}

// read returns the decoded history. Storage errors are returned; a corrupt
// blob is logged and treated as empty.
func (h *historyService) read(ctx context.Context) ([]domain.Result, error) {
	blob, err := h.store.Load(ctx, h.key)
	if persistence.IsNotFound(err) {
		return []domain.Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(blob) == 0 {
		return []domain.Result{}, nil
	}
	var out []domain.Result
	if err := json.Unmarshal(blob, &out); err != nil {
		h.logger.Warn("history unreadable, starting empty", "err", &domain.SerializationError{Key: h.key, Err: err})
		return []domain.Result{}, nil
	}
	if out == nil {
		out = []domain.Result{}
	}
	return out, nil
}
