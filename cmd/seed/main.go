// Command seed creates the sample QuickFold accounts on an empty database.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quick-fold/quickfold-customer-app/internal/app"
	"github.com/quick-fold/quickfold-customer-app/internal/config"
	"github.com/quick-fold/quickfold-customer-app/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("quickfold-seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	created, err := app.Seed(ctx, application.Service(), app.SampleUsers, log)
	if closeErr := application.Close(); closeErr != nil {
		log.Warn("cleanup failed", slog.String("error", closeErr.Error()))
	}
	if err != nil {
		log.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("seeding completed", slog.Int("created", created))
}
