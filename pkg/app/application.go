package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/osvaldoandrade/classifyq/internal/metrics"
	"github.com/osvaldoandrade/classifyq/internal/middleware"
	"github.com/osvaldoandrade/classifyq/internal/providers"
	"github.com/osvaldoandrade/classifyq/internal/services"
	"github.com/osvaldoandrade/classifyq/internal/tracing"
	"github.com/osvaldoandrade/classifyq/pkg/config"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"

	"github.com/gin-gonic/gin"
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Persistence     persistence.PluginPersistence
	Classification  services.ClassificationService
	Submissions     services.SubmissionService
	History         services.HistoryService
	Hub             services.StatusHub
	Logger          *slog.Logger
	TZ              *time.Location
	TracingShutdown func(context.Context) error

	uploader   providers.Uploader
	classifier providers.Classifier
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithUploader replaces the configured image store
func WithUploader(u providers.Uploader) ApplicationOption {
	return func(app *Application) error {
		app.uploader = u
		return nil
	}
}

// WithClassifier replaces the configured inference transport
func WithClassifier(c providers.Classifier) ApplicationOption {
	return func(app *Application) error {
		app.classifier = c
		return nil
	}
}

// WithPersistence replaces the configured persistence plugin
func WithPersistence(p persistence.PluginPersistence) ApplicationOption {
	return func(app *Application) error {
		app.Persistence = p
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.FixedZone("UTC", 0)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	app := &Application{Config: cfg, Logger: logger, TZ: loc}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Env,
		ModelVersion: cfg.Model.Version,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	app.TracingShutdown = shutdown

	if app.Persistence == nil {
		pc, err := cfg.PersistenceProvider()
		if err != nil {
			return nil, err
		}
		p, err := persistence.NewPersistence(pc, persistence.PluginConfig{Timezone: loc})
		if err != nil {
			return nil, fmt.Errorf("init persistence: %w", err)
		}
		app.Persistence = p
	}
	if app.uploader == nil {
		if app.uploader, err = newUploader(cfg, logger); err != nil {
			return nil, err
		}
	}
	if app.classifier == nil {
		if app.classifier, err = newClassifier(cfg); err != nil {
			return nil, err
		}
	}

	notifier := services.NewNotifierService(logger, cfg.Notification.WebhookURL, cfg.Notification.HmacSecret, time.Duration(cfg.Notification.TimeoutSeconds)*time.Second)
	app.Classification = services.NewClassificationService(
		app.uploader,
		app.classifier,
		app.Persistence.ResultStorage(),
		notifier,
		logger,
		time.Now,
		cfg.StepTimeout(),
	)
	app.History = services.NewHistoryService(app.Persistence.HistoryStorage(), logger)
	app.Hub = services.NewStatusHub(time.Duration(cfg.StatusRetentionSeconds)*time.Second, time.Now)
	app.Submissions = services.NewSubmissionService(app.Classification, app.History, app.Hub, logger)

	metrics.RegisterHistoryCollector(app.History, logger)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware(cfg.ServiceName),
	)
	app.Engine = engine

	return app, nil
}

// Shutdown drains background classifications and side effects, then
// releases persistence and flushes traces.
func (a *Application) Shutdown(ctx context.Context) error {
	if err := a.Submissions.Wait(ctx); err != nil {
		a.Logger.Warn("pending classifications not drained", "err", err)
	}
	if err := a.Persistence.Close(); err != nil {
		a.Logger.Warn("persistence close failed", "err", err)
	}
	if a.TracingShutdown != nil {
		return a.TracingShutdown(ctx)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", cfg.ServiceName, "env", cfg.Env)
}

func newUploader(cfg *config.Config, logger *slog.Logger) (providers.Uploader, error) {
	switch cfg.Storage.Provider {
	case "azblob":
		up, err := providers.NewAzureUploader(providers.AzureBlobConfig{
			ConnectionString: cfg.Storage.AzureConnectionString,
			ContainerName:    cfg.Storage.AzureContainer,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init azure uploader: %w", err)
		}
		if ec, ok := up.(interface{ EnsureContainer(context.Context) error }); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := ec.EnsureContainer(ctx); err != nil {
				logger.Warn("azure container check failed", "container", cfg.Storage.AzureContainer, "err", err)
			}
		}
		return up, nil
	default:
		return providers.NewLocalUploader(cfg.Storage.LocalDir), nil
	}
}

func newClassifier(cfg *config.Config) (providers.Classifier, error) {
	switch cfg.Inference.Provider {
	case "http":
		labels, err := providers.LoadLabels(cfg.Inference.LabelsFile)
		if err != nil {
			return nil, fmt.Errorf("load labels: %w", err)
		}
		return providers.NewHTTPClassifier(providers.HTTPClassifierConfig{
			Endpoint: cfg.Inference.Endpoint,
			TopK:     cfg.Inference.TopK,
			Labels:   labels,
			Timeout:  time.Duration(cfg.Inference.TimeoutSeconds) * time.Second,
		})
	default:
		return providers.NewMockClassifier(time.Duration(cfg.Inference.MockDelayMs) * time.Millisecond), nil
	}
}
