package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sessionguard/api/swagger"
	"github.com/noah-isme/sessionguard/internal/events"
	"github.com/noah-isme/sessionguard/internal/iplookup"
	"github.com/noah-isme/sessionguard/internal/repository"
	"github.com/noah-isme/sessionguard/internal/service"
	"github.com/noah-isme/sessionguard/pkg/cache"
	"github.com/noah-isme/sessionguard/pkg/config"
	"github.com/noah-isme/sessionguard/pkg/database"
	"github.com/noah-isme/sessionguard/pkg/jobs"
	"github.com/noah-isme/sessionguard/pkg/logger"
)

// @title Sessionguard API
// @version 1.0.0
// @description Device-bound session management with IP binding and admin device controls
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		logr.Info("redis disabled, rate limiting off")
	case err != nil:
		logr.Warn("redis unavailable, rate limiting off", zap.Error(err))
	}
	rateLimits := repository.NewRateLimitRepository(redisClient, logr)
	defer rateLimits.Close() //nolint:errcheck

	publisher := newPublisher(cfg.Kafka, logr)
	defer publisher.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	sessionRepo := repository.NewSessionRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	if err := sessionRepo.VerifyPolicy(ctx, cfg.Session.MultiDeviceEnabled); err != nil {
		logr.Fatal("session store does not match device policy", zap.Error(err))
	}
	userRepo := repository.NewUserRepository(db)
	historyRepo := repository.NewIPHistoryRepository(db)

	history := service.NewIPHistoryService(historyRepo, jobs.QueueConfig{
		Workers:      cfg.IPHistory.Workers,
		BufferSize:   cfg.IPHistory.BufferSize,
		MaxRetries:   cfg.IPHistory.MaxRetries,
		RetryDelay:   500 * time.Millisecond,
		DrainTimeout: 5 * time.Second,
	}, metrics, logr)
	history.Start(ctx)
	defer history.Stop()

	authSvc := service.NewAuthService(userRepo, logr, service.AuthConfig{
		AdminTokenSecret: cfg.AdminJWT.Secret,
		AdminTokenIssuer: cfg.AdminJWT.Issuer,
	})
	sessionSvc := service.NewSessionService(sessionRepo, deviceRepo, authSvc, history, publisher, metrics, validate, logr, service.SessionConfig{
		TTL:             cfg.Session.TTL,
		MultiDevice:     cfg.Session.MultiDeviceEnabled,
		ConflictRetries: cfg.Session.ConflictRetries,
	})
	validatorSvc := service.NewValidatorService(sessionRepo, publisher, metrics, logr, service.ValidatorConfig{
		TrustPrivateNetworks: cfg.Session.TrustPrivateNetworks,
	})
	revocationSvc := service.NewRevocationService(sessionRepo, deviceRepo, publisher, metrics, validate, logr)
	deviceSvc := service.NewDeviceService(deviceRepo, sessionRepo, history, logr)
	exportSvc := service.NewExportService(deviceSvc, logr, nil, nil)

	resolver := iplookup.NewRequestResolver(iplookup.Options{
		AttemptTimeout: cfg.IPLookup.AttemptTimeout,
		Budget:         cfg.IPLookup.Budget,
		Logger:         logr,
		Observer:       metrics,
	})

	router, err := newRouter(cfg, logr, routerDeps{
		metrics:    metrics,
		rateLimits: rateLimits,
		resolver:   resolver,
		auth:       authSvc,
		sessions:   sessionSvc,
		validator:  validatorSvc,
		revocation: revocationSvc,
		devices:    deviceSvc,
		exports:    exportSvc,
		validate:   validate,
		db:         db,
	})
	if err != nil {
		logr.Fatal("failed to build router", zap.Error(err))
	}

	go runJanitor(ctx, sessionSvc, cfg.Session.JanitorInterval, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newPublisher(cfg config.KafkaConfig, logr *zap.Logger) events.Publisher {
	if !cfg.Enabled {
		return events.NoopPublisher{}
	}
	publisher, err := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, logr)
	if err != nil {
		logr.Warn("session events disabled", zap.Error(err))
		return events.NoopPublisher{}
	}
	return publisher
}

type staleSessionExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// runJanitor periodically deactivates sessions past their expiry.
func runJanitor(ctx context.Context, sessions staleSessionExpirer, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := sessions.ExpireStale(ctx)
			if err != nil {
				logr.Warn("expire stale sessions failed", zap.Error(err))
				continue
			}
			if expired > 0 {
				logr.Info("expired stale sessions", zap.Int64("count", expired))
			}
		}
	}
}
