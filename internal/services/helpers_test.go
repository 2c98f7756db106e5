package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
)

func completedResult(id string) domain.Result {
	d := int64(42)
	return domain.Result{
		ID:          id,
		Locator:     "loc-" + id,
		SourceName:  "dog.png",
		Predictions: []domain.Prediction{{Label: "Golden Retriever", Confidence: 0.94}},
		State:       domain.StateCompleted,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DurationMs:  &d,
	}
}

type fakeUploader struct {
	locator string
	err     error
	delay   time.Duration
}

func (f *fakeUploader) UploadBytes(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if f.locator != "" {
		return f.locator, nil
	}
	return "loc-" + objectPath, nil
}

type fakeClassifier struct {
	preds []domain.Prediction
	err   error
	delay time.Duration
	panic bool
}

func (f *fakeClassifier) Classify(ctx context.Context, image []byte, contentType string) ([]domain.Prediction, error) {
	if f.panic {
		panic("classifier exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.preds, nil
}

type fakeResults struct {
	mu    sync.Mutex
	saved []domain.Result
	err   error
}

func (f *fakeResults) SaveResult(ctx context.Context, r domain.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, r)
	return nil
}

func (f *fakeResults) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.saved {
		if r.ID == id {
			cp := r.Clone()
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeResults) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Result
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, r domain.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, r)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// recorder collects observer snapshots.
type recorder struct {
	mu      sync.Mutex
	updates []domain.Result
}

func (r *recorder) observe(res domain.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, res)
}

func (r *recorder) snapshot() []domain.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Result, len(r.updates))
	copy(out, r.updates)
	return out
}

var errBoom = errors.New("boom")
