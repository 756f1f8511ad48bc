// Package main runs database migrations for the TimeCapsule API.
//
// Usage:
//
//	migrate [up|down|status|version|redo|reset]
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"

	"github.com/timecapsule/timecapsule/internal/repository"
)

type migrateConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var cfg migrateConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{MaxConns: 1})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx, command, args...); err != nil {
		logger.Error("migration failed", "command", command, "error", err)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("migration complete", "command", command)
}
