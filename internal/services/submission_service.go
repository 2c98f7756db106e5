package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
)

// SubmissionService is the caller side of the classification engine: it
// mirrors progress into the status hub and records completed results in
// the history.
type SubmissionService interface {
	// Submit runs one image to a terminal state.
	Submit(ctx context.Context, image domain.Image, onUpdate domain.Observer) (*domain.Result, error)
	// Start runs one image in the background and returns its first snapshot.
	Start(ctx context.Context, image domain.Image) (domain.Result, error)
	Wait(ctx context.Context) error
}

type submissionService struct {
	engine  ClassificationService
	history HistoryService
	hub     StatusHub
	logger  *slog.Logger

	running sync.WaitGroup
}

func NewSubmissionService(engine ClassificationService, history HistoryService, hub StatusHub, logger *slog.Logger) SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &submissionService{engine: engine, history: history, hub: hub, logger: logger}
}

func (s *submissionService) Submit(ctx context.Context, image domain.Image, onUpdate domain.Observer) (*domain.Result, error) {
	res, err := s.engine.Run(ctx, image, func(r domain.Result) {
		if s.hub != nil {
			s.hub.Publish(r)
		}
		if onUpdate != nil {
			onUpdate(r)
		}
	})
	if err != nil {
		return res, err
	}
	if s.history != nil && res.State == domain.StateCompleted {
		if herr := s.history.Append(context.WithoutCancel(ctx), *res); herr != nil {
			s.logger.Warn("history append failed", "id", res.ID, "err", herr)
		}
	}
	return res, nil
}

func (s *submissionService) Start(ctx context.Context, image domain.Image) (domain.Result, error) {
	first := make(chan domain.Result, 1)
	var once sync.Once

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		_, err := s.Submit(context.WithoutCancel(ctx), image, func(r domain.Result) {
			once.Do(func() { first <- r })
		})
		if err != nil {
			s.logger.Info("background classification failed", "file", image.Name, "err", err)
		}
		once.Do(func() { close(first) })
	}()

	select {
	case r, ok := <-first:
		if !ok {
			return domain.Result{}, errors.New("classification ended without an update")
		}
		return r, nil
	case <-ctx.Done():
		return domain.Result{}, ctx.Err()
	}
}

func (s *submissionService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.engine.Wait(ctx)
}
