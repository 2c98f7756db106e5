package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/osvaldoandrade/classifyq/pkg/app"
	"github.com/osvaldoandrade/classifyq/pkg/config"
	_ "github.com/osvaldoandrade/classifyq/pkg/persistence/file"     // Register file persistence
	_ "github.com/osvaldoandrade/classifyq/pkg/persistence/memory"   // Register in-memory persistence (dev/local)
	_ "github.com/osvaldoandrade/classifyq/pkg/persistence/postgres" // Register postgres persistence
	_ "github.com/osvaldoandrade/classifyq/pkg/persistence/redis"    // Register redis persistence
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "[WARN] load .env:", err)
	}

	cfgPath := getenv("CLASSIFYQ_CONFIG_PATH", "")

	cfg, err := config.LoadConfigOptional(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] load config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] invalid config:", err)
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] init app:", err)
		os.Exit(1)
	}
	app.SetupMappings(application)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           application.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		application.Logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "[ERROR] http server:", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.StepTimeoutSeconds+10)*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	// Let in-flight classifications reach a terminal state and flush side effects.
	if err := application.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "[WARN] shutdown:", err)
	}
}
