package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/migrations"
	"github.com/noah-isme/sessionguard/pkg/config"
	"github.com/noah-isme/sessionguard/pkg/database"
	"github.com/noah-isme/sessionguard/pkg/logger"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of versions to apply; 0 applies all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	logr.Info("applying migrations",
		zap.String("direction", *direction),
		zap.Int("steps", *steps),
		zap.String("database", cfg.Database.Name),
	)
	if err := database.Migrate(cfg.Database.DSN(), migrations.FS, *direction, *steps); err != nil {
		logr.Fatal("migration failed", zap.Error(err))
	}
	logr.Info("migrations applied")
}
