package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/osvaldoandrade/classifyq/internal/metrics"
	"github.com/osvaldoandrade/classifyq/internal/providers"
	"github.com/osvaldoandrade/classifyq/internal/tracing"
	"github.com/osvaldoandrade/classifyq/pkg/domain"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	StepStore   = "store"
	StepInfer   = "infer"
	StepPersist = "persist"
	StepNotify  = "notify"
)

var errNoPredictions = errors.New("inference returned no predictions")

// ClassificationService drives one image through store, infer, persist and
// notify, reporting every state change to the caller's observer.
type ClassificationService interface {
	Run(ctx context.Context, image domain.Image, onUpdate domain.Observer) (*domain.Result, error)
	// Wait blocks until detached persist/notify tasks finish or ctx ends.
	Wait(ctx context.Context) error
}

type classificationService struct {
	uploader    providers.Uploader
	classifier  providers.Classifier
	results     persistence.ResultStorage
	notifier    NotifierService
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
	stepTimeout time.Duration

	detached sync.WaitGroup
}

func NewClassificationService(uploader providers.Uploader, classifier providers.Classifier, results persistence.ResultStorage, notifier NotifierService, logger *slog.Logger, now func() time.Time, stepTimeout time.Duration) ClassificationService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &classificationService{
		uploader:    uploader,
		classifier:  classifier,
		results:     results,
		notifier:    notifier,
		logger:      logger,
		now:         now,
		newID:       uuid.NewString,
		stepTimeout: stepTimeout,
	}
}

func (s *classificationService) Run(ctx context.Context, image domain.Image, onUpdate domain.Observer) (*domain.Result, error) {
	res := &domain.Result{
		ID:          s.newID(),
		SourceName:  image.Name,
		Predictions: []domain.Prediction{},
		State:       domain.StateUploading,
		CreatedAt:   s.now().UTC(),
	}

	ctx, span := tracing.StartStep(ctx, "run", res.ID,
		attribute.String("classifyq.file_name", image.Name),
		attribute.Int("classifyq.image_bytes", len(image.Data)),
	)
	defer span.End()

	log := s.logger.With("id", res.ID, "file", image.Name)
	s.emit(onUpdate, res)

	locator, err := runStep(ctx, StepStore, s.stepTimeout, func(ctx context.Context) (string, error) {
		return s.uploader.UploadBytes(ctx, providers.ImageObjectPath(image.Name), image.ContentType, image.Data)
	})
	if err != nil {
		return s.fail(ctx, span, log, res, onUpdate, StepStore, err)
	}
	res.Locator = locator
	s.advance(res, domain.StateProcessing)
	s.emit(onUpdate, res)

	start := time.Now()
	preds, err := runStep(ctx, StepInfer, s.stepTimeout, func(ctx context.Context) ([]domain.Prediction, error) {
		return s.classifier.Classify(ctx, image.Data, image.ContentType)
	})
	if err == nil && len(preds) == 0 {
		err = errNoPredictions
	}
	if err != nil {
		return s.fail(ctx, span, log, res, onUpdate, StepInfer, err)
	}
	elapsed := time.Since(start).Milliseconds()
	res.Predictions = preds
	res.DurationMs = &elapsed
	s.advance(res, domain.StateCompleted)

	metrics.SubmissionsTotal.WithLabelValues(string(domain.StateCompleted)).Inc()
	metrics.InferenceLatencySeconds.Observe(float64(elapsed) / 1000)
	span.SetAttributes(attribute.Int64("classifyq.duration_ms", elapsed), tracing.AttrResultState.String(string(domain.StateCompleted)))
	log.Info("classification completed", "locator", res.Locator, "predictions", len(preds), "durationMs", elapsed)

	if s.results != nil {
		s.detach(ctx, StepPersist, res.Clone(), s.results.SaveResult)
	}
	if s.notifier != nil {
		s.detach(ctx, StepNotify, res.Clone(), s.notifier.Notify)
	}

	s.emit(onUpdate, res)
	out := res.Clone()
	return &out, nil
}

func (s *classificationService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.detached.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *classificationService) fail(ctx context.Context, span trace.Span, log *slog.Logger, res *domain.Result, onUpdate domain.Observer, step string, cause error) (*domain.Result, error) {
	terr := domain.NewTransportError(step, cause)
	res.FailureReason = terr.Reason
	s.advance(res, domain.StateFailed)

	metrics.SubmissionsTotal.WithLabelValues(string(domain.StateFailed)).Inc()
	span.RecordError(cause)
	span.SetStatus(codes.Error, terr.Reason)
	span.SetAttributes(tracing.AttrResultState.String(string(domain.StateFailed)), attribute.String("classifyq.failed_step", step))
	log.Warn("classification failed", "step", step, "err", cause)

	s.emit(onUpdate, res)
	out := res.Clone()
	return &out, terr
}

// advance moves res forward; a backward move is a programming error and is
// logged rather than applied.
func (s *classificationService) advance(res *domain.Result, next domain.State) {
	if !res.State.CanTransition(next) {
		s.logger.Error("illegal state transition", "id", res.ID, "from", res.State, "to", next)
		return
	}
	res.State = next
}

func (s *classificationService) emit(onUpdate domain.Observer, res *domain.Result) {
	if onUpdate == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ObserverPanicsTotal.Inc()
			s.logger.Warn("observer panicked", "id", res.ID, "state", res.State, "panic", rec)
		}
	}()
	onUpdate(res.Clone())
}

func (s *classificationService) detach(ctx context.Context, kind string, res domain.Result, fn func(context.Context, domain.Result) error) {
	s.detached.Add(1)
	go func() {
		defer s.detached.Done()
		ctx := context.WithoutCancel(ctx)
		if s.stepTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.stepTimeout)
			defer cancel()
		}
		ctx, span := tracing.StartStep(ctx, kind, res.ID)
		defer span.End()

		err := func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic: %v", rec)
				}
			}()
			return fn(ctx, res)
		}()
		if err == nil {
			return
		}
		warn := &domain.PersistenceWarning{Kind: kind, ResultID: res.ID, Err: err}
		span.RecordError(warn)
		metrics.SideEffectFailuresTotal.WithLabelValues(kind).Inc()
		s.logger.Warn("best-effort side effect failed", "kind", kind, "id", res.ID, "err", warn)
	}()
}

type stepOutcome[T any] struct {
	val T
	err error
}

// runStep races fn against the step timeout. On timeout fn's context is
// cancelled but fn is not waited for.
func runStep[T any](ctx context.Context, step string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracing.StartStep(ctx, step, "")
	defer span.End()

	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan stepOutcome[T], 1)
	start := time.Now()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				var zero T
				out <- stepOutcome[T]{val: zero, err: fmt.Errorf("%s panicked: %v", step, rec)}
			}
		}()
		v, err := fn(stepCtx)
		out <- stepOutcome[T]{val: v, err: err}
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	var res stepOutcome[T]
	select {
	case res = <-out:
	case <-timer:
		res.err = fmt.Errorf("%s timed out after %s", step, timeout)
	case <-ctx.Done():
		res.err = fmt.Errorf("%s cancelled: %w", step, ctx.Err())
	}

	outcome := "success"
	if res.err != nil {
		outcome = "failure"
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
	}
	metrics.StepLatencySeconds.WithLabelValues(step, outcome).Observe(time.Since(start).Seconds())
	return res.val, res.err
}
