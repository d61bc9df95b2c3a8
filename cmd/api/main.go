// @title MLMS API
// @version 1.0
// @description Microfinance loan management: clients, loans, repayment schedules and risk advice.
// @BasePath /api/v1
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/ai"
	"github.com/innovators/mlms/mlms-backend/internal/config"
	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/handler"
	"github.com/innovators/mlms/mlms-backend/internal/middleware"
	"github.com/innovators/mlms/mlms-backend/internal/repository/memory"
	"github.com/innovators/mlms/mlms-backend/internal/repository/postgres"
	"github.com/innovators/mlms/mlms-backend/internal/repository/redis"
	"github.com/innovators/mlms/mlms-backend/internal/repository/storage"
	"github.com/innovators/mlms/mlms-backend/internal/service"
	"github.com/innovators/mlms/mlms-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// adviceBurst is how many AI requests a client may fire back to back
const adviceBurst = 5

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// Connect to database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Redis is optional; without it sessions live in memory and AI responses are not cached
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.NewClient(redis.ConnectionInfo{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to redis")
	}

	// Initialize repositories
	clientRepo := postgres.NewClientRepository(pool)
	loanRepo := postgres.NewLoanRepository(pool)
	sessionRepo := newSessionRepository(redisClient, cfg.SessionTTL)
	objects := newObjectRepository(ctx, cfg)

	// Realtime hub
	hub := websocket.NewHub()

	// Initialize services
	scorer := newRiskScorer(cfg)
	clientService := service.NewClientService(clientRepo)
	clientService.SetEventPublisher(hub)
	loanService := service.NewLoanService(loanRepo, clientRepo)
	loanService.SetEventPublisher(hub)
	riskService := service.NewRiskService(clientRepo, scorer)
	riskService.SetEventPublisher(hub)
	sessionService := service.NewSessionService(sessionRepo, loanService, clientRepo, scorer)
	sessionService.SetEventPublisher(hub)
	sessionService.SetRiskTimeout(cfg.RiskScorerTimeout)
	portfolioService := service.NewPortfolioService(loanRepo, clientRepo)
	exportService := service.NewExportService(loanRepo, objects)

	var documentService *service.DocumentService
	if objects != nil {
		documentService = service.NewDocumentService(clientRepo, objects)
		documentService.SetEventPublisher(hub)
	}

	adviceService := service.NewAdviceService(newTextGenerator(ctx, cfg.AI), cfg.AI.Model, cfg.AI.Timeout)
	if redisClient != nil && cfg.AI.CacheTTL > 0 && adviceService.Enabled() {
		adviceService.SetResponseCache(redis.NewResponseCache(redisClient, cfg.AI.CacheTTL))
	}

	// Initialize handlers
	handlers := handler.Handlers{
		Schedule:  handler.NewScheduleHandler(loanService),
		Client:    handler.NewClientHandler(clientService, riskService, documentService),
		Loan:      handler.NewLoanHandler(loanService, exportService),
		Session:   handler.NewSessionHandler(sessionService),
		Advice:    handler.NewAdviceHandler(adviceService, portfolioService, clientService),
		WebSocket: handler.NewWebSocketHandler(hub, sessionService, cfg.CORSOrigins),
		Swagger:   handler.NewSwaggerHandler(cfg.PublicURL),
	}

	adviceLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimitPerMinute, adviceBurst)
	defer adviceLimiter.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(middleware.RequestLogger())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":              "ok",
			"ai":                  adviceService.Enabled(),
			"storage":             objects != nil,
			"pendingRiskRequests": sessionService.PendingRiskRequests(),
		})
	})

	// Register API routes
	handler.RegisterRoutes(e, handlers, adviceLimiter)

	// Start server in goroutine
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Bool("ai_enabled", adviceService.Enabled()).
			Str("storage", cfg.StorageDriver).
			Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newSessionRepository keeps form sessions in redis when available so they survive restarts
func newSessionRepository(client *redis.Client, ttl time.Duration) domain.SessionRepository {
	if client != nil {
		return redis.NewSessionRepository(client, ttl)
	}
	log.Warn().Msg("REDIS_ADDR not set, form sessions are kept in memory")
	return memory.NewSessionRepository(ttl)
}

// newObjectRepository returns nil when storage is disabled
func newObjectRepository(ctx context.Context, cfg *config.Config) storage.ObjectRepository {
	switch cfg.StorageDriver {
	case config.StorageS3:
		repo, err := storage.NewS3ObjectRepository(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Using S3 object storage")
		return repo
	case config.StorageMinIO:
		repo, err := storage.NewMinIOObjectRepository(ctx, cfg.MinIO)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MinIO storage")
		}
		log.Info().Str("bucket", cfg.MinIO.Bucket).Msg("Using MinIO object storage")
		return repo
	}
	log.Warn().Msg("Object storage disabled, CNIC uploads and export links are unavailable")
	return nil
}

// newTextGenerator returns nil when no API key is configured
func newTextGenerator(ctx context.Context, cfg config.AIConfig) ai.TextGenerator {
	if !cfg.Enabled() {
		log.Warn().Msg("GEMINI_API_KEY not set, AI advice returns the not-configured message")
		return nil
	}
	gen, err := ai.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Gemini client")
	}
	return gen
}

func newRiskScorer(cfg *config.Config) service.RiskScorer {
	if cfg.RiskScorerURL != "" {
		log.Info().Str("url", cfg.RiskScorerURL).Msg("Using remote risk scorer")
		return service.NewRemoteRiskScorer(cfg.RiskScorerURL, cfg.RiskScorerTimeout)
	}
	return service.HeuristicRiskScorer{}
}
