package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
	"github.com/osvaldoandrade/classifyq/pkg/persistence/memory"
)

func newSubmission(up *fakeUploader, cl *fakeClassifier) (SubmissionService, HistoryService, StatusHub) {
	engine := NewClassificationService(up, cl, nil, nil, nil, nil, time.Second)
	history := NewHistoryService(memory.New().HistoryStorage(), nil)
	hub := NewStatusHub(time.Minute, nil)
	return NewSubmissionService(engine, history, hub, nil), history, hub
}

func TestSubmissionSubmitFoldsIntoHistoryOnce(t *testing.T) {
	svc, history, hub := newSubmission(&fakeUploader{}, &fakeClassifier{preds: []domain.Prediction{{Label: "cat", Confidence: 0.8}}})
	ctx := context.Background()

	rec := &recorder{}
	res, err := svc.Submit(ctx, dogImage, rec.observe)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(rec.snapshot()) != 3 {
		t.Errorf("caller observer got %d updates", len(rec.snapshot()))
	}

	got := history.LoadAll(ctx)
	if len(got) != 1 || got[0].ID != res.ID {
		t.Fatalf("history = %v", ids(got))
	}
	if latest, ok := hub.Latest(res.ID); !ok || latest.State != domain.StateCompleted {
		t.Errorf("hub latest = %+v, %v", latest, ok)
	}
}

func TestSubmissionFailureSkipsHistory(t *testing.T) {
	svc, history, hub := newSubmission(&fakeUploader{err: errors.New("network timeout")}, &fakeClassifier{})
	ctx := context.Background()

	res, err := svc.Submit(ctx, dogImage, nil)
	if err == nil || res.State != domain.StateFailed {
		t.Fatalf("Submit() = %+v, %v", res, err)
	}
	if got := history.LoadAll(ctx); len(got) != 0 {
		t.Errorf("history = %v, want empty", ids(got))
	}
	if latest, _ := hub.Latest(res.ID); latest.FailureReason != "network timeout" {
		t.Errorf("hub latest = %+v", latest)
	}
}

func TestSubmissionStartReturnsFirstSnapshot(t *testing.T) {
	svc, history, hub := newSubmission(&fakeUploader{delay: 20 * time.Millisecond}, &fakeClassifier{preds: []domain.Prediction{{Label: "cat", Confidence: 0.8}}})

	ctx, cancel := context.WithCancel(context.Background())
	first, err := svc.Start(ctx, dogImage)
	cancel()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if first.State != domain.StateUploading || first.ID == "" {
		t.Fatalf("first = %+v", first)
	}

	if err := svc.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	latest, ok := hub.Latest(first.ID)
	if !ok || latest.State != domain.StateCompleted {
		t.Errorf("hub latest = %+v, %v", latest, ok)
	}
	if got := history.LoadAll(context.Background()); len(got) != 1 {
		t.Errorf("history len = %d", len(got))
	}
}
