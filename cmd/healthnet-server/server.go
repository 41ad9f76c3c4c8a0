package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/healthnet/healthnet/internal/config"
	"github.com/healthnet/healthnet/internal/domain/account"
	"github.com/healthnet/healthnet/internal/domain/admin"
	"github.com/healthnet/healthnet/internal/domain/appointment"
	"github.com/healthnet/healthnet/internal/domain/diagnosis"
	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/domain/emergency"
	"github.com/healthnet/healthnet/internal/domain/labresult"
	"github.com/healthnet/healthnet/internal/domain/patient"
	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/db"
	"github.com/healthnet/healthnet/internal/platform/middleware"
)

const (
	jsonBodyLimit   = "1M"
	shutdownTimeout = 10 * time.Second
)

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV") == "" || os.Getenv("ENV") == "development")

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Services
	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer a.Close()
	logger.Info().Str("storage", cfg.StorageBackend).Msg("connected to database")

	e := newEcho(cfg, a, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// uploadLimit leaves room for multipart framing and form fields around a
// file of the configured maximum size.
func uploadLimit(maxUpload string) string {
	return fmt.Sprint(middleware.ParseLimit(maxUpload) + 1<<20)
}

func newEcho(cfg *config.Config, a *app, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.UploadURLPrefix))
	e.Use(middleware.Sanitize())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(jsonBodyLimit, uploadLimit(cfg.MaxUploadSize)))

	// Profile photos are linked from the public SafePass view. Other uploads
	// (lab result files) are only streamed through authorised endpoints.
	var publicRoutes []string
	if !cfg.UsesS3() {
		prefix := strings.TrimRight(cfg.UploadURLPrefix, "/") + "/" + patient.PhotoDir + "/"
		r := e.Static(prefix, filepath.Join(cfg.UploadDir, patient.PhotoDir))
		publicRoutes = append(publicRoutes, r.Path)
	}

	// Auth middleware
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      cfg.JWTIssuer,
		SigningKey:  a.signingKey,
		Skipper:     auth.SkipperWith(publicRoutes...),
		Revocations: a.revocations,
	}))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.pool))

	// API group
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	auth.RegisterLogoutRoute(apiV1, a.revocations)
	account.NewHandler(a.accounts).RegisterRoutes(apiV1)
	admin.NewHandler(a.admins).RegisterRoutes(apiV1)
	doctor.NewHandler(a.doctors).RegisterRoutes(apiV1)
	patient.NewHandler(a.patients, a.doctors).RegisterRoutes(apiV1)
	diagnosis.NewHandler(a.diagnoses).RegisterRoutes(apiV1)
	labresult.NewHandler(a.labResults).RegisterRoutes(apiV1)
	appointment.NewHandler(a.appointments).RegisterRoutes(apiV1)

	// SafePass: patient management under /api/v1, public lookup at the root.
	safePass := emergency.NewHandler(a.safePass)
	safePass.RegisterRoutes(apiV1)
	safePass.RegisterPublicRoutes(e, middleware.RateLimit(middleware.EmergencyRateLimitConfig(cfg.EmergencyRateLimitRPS)))

	return e
}
