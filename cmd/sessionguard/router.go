package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/fingerprint"
	"github.com/noah-isme/sessionguard/internal/handler"
	"github.com/noah-isme/sessionguard/internal/iplookup"
	"github.com/noah-isme/sessionguard/internal/middleware"
	"github.com/noah-isme/sessionguard/internal/models"
	"github.com/noah-isme/sessionguard/internal/repository"
	"github.com/noah-isme/sessionguard/internal/service"
	"github.com/noah-isme/sessionguard/pkg/config"
	"github.com/noah-isme/sessionguard/pkg/logger"
	corsmiddleware "github.com/noah-isme/sessionguard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sessionguard/pkg/middleware/requestid"
)

type routerDeps struct {
	metrics    *service.MetricsService
	rateLimits *repository.RateLimitRepository
	resolver   *iplookup.RequestResolver
	auth       *service.AuthService
	sessions   *service.SessionService
	validator  *service.ValidatorService
	revocation *service.RevocationService
	devices    *service.DeviceService
	exports    *service.ExportService
	validate   *validator.Validate
	db         *sqlx.DB
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) (*gin.Engine, error) {
	cookie := middleware.SessionCookie{
		Name:   cfg.Session.CookieName,
		Domain: cfg.Session.CookieDomain,
		Secure: cfg.Session.CookieSecure,
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return deps.db.PingContext(ctx) },
		"redis":    deps.rateLimits.Ping,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if !cfg.RateLimit.Enabled {
		deps.rateLimits = nil
	}
	api := r.Group(strings.TrimRight(cfg.APIPrefix, "/"))
	api.Use(middleware.RateLimit(deps.rateLimits, middleware.RateLimitRules{
		Window:  cfg.RateLimit.Window,
		Auth:    cfg.RateLimit.AuthLimit,
		Admin:   cfg.RateLimit.AdminLimit,
		Default: cfg.RateLimit.DefaultLimit,
	}, deps.metrics, logr))

	sessionGate := middleware.Session(deps.validator, deps.resolver, cookie, logr)

	authHandler := handler.NewAuthHandler(deps.sessions, deps.resolver, cookie)
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/session", sessionGate, authHandler.Session)

	fingerprintHandler := handler.NewFingerprintHandler(fingerprint.NewDeriver(nil), deps.validate)
	api.POST("/fingerprint", fingerprintHandler.Derive)

	userHandler := handler.NewUserHandler(deps.devices, deps.revocation, deps.resolver)
	api.GET("/user/current-ip", userHandler.CurrentIP)
	user := api.Group("/user", sessionGate, middleware.RequireApproved(deps.auth))
	user.GET("/devices", userHandler.Devices)
	user.DELETE("/devices", userHandler.DeleteDevices)
	user.GET("/device-count", userHandler.DeviceCount)
	user.GET("/ip-history", userHandler.IPHistory)

	adminHandler := handler.NewAdminHandler(deps.devices, deps.revocation, deps.exports)
	admin := api.Group("/admin",
		middleware.AdminJWT(deps.auth, logr),
		middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
	)
	admin.GET("/user-devices", adminHandler.UserDevices)
	admin.POST("/user-devices", adminHandler.DeviceAction)
	admin.GET("/user-devices/export", adminHandler.ExportDevices)

	return r, nil
}
