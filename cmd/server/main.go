package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SAP-F-2025/practice-service/internal/cache"
	"github.com/SAP-F-2025/practice-service/internal/clients/gcp"
	"github.com/SAP-F-2025/practice-service/internal/clients/gemini"
	"github.com/SAP-F-2025/practice-service/internal/config"
	"github.com/SAP-F-2025/practice-service/internal/credits"
	"github.com/SAP-F-2025/practice-service/internal/handlers"
	"github.com/SAP-F-2025/practice-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/practice-service/internal/services"
	"github.com/SAP-F-2025/practice-service/internal/utils"
	"github.com/SAP-F-2025/practice-service/internal/validator"
	"github.com/SAP-F-2025/practice-service/pkg"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := utils.NewServiceLogger(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := pkg.Migrate(db); err != nil {
		return err
	}
	repo := postgres.NewRepository(db)

	// Redis is optional; without it balances and questions are not shared across restarts
	var cacheManager *cache.CacheManager
	redisClient, err := pkg.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache", "error", err)
	} else {
		defer redisClient.Close()
		zapLogger, zerr := newZapLogger(cfg)
		if zerr != nil {
			return zerr
		}
		defer zapLogger.Sync()
		cacheManager = cache.NewCacheManager(cache.NewRedisCache(redisClient, zapLogger), cfg.Session.CacheTTL)
	}

	estimator, err := credits.LoadEstimator(cfg.Credits.CostTablePath)
	if err != nil {
		return err
	}
	var balances credits.BalanceCache
	if cacheManager != nil {
		balances = cacheManager.Balances
	}
	hub := credits.NewHub(balances, logger)

	// Gemini generates questions and grades free-text answers
	geminiClient, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	if err != nil {
		return err
	}
	defer geminiClient.Close()

	smCfg := services.ServiceManagerConfig{
		Credits: services.CreditServiceConfig{
			SignupGrant: cfg.Credits.SignupGrant,
			PurchaseURL: cfg.Credits.PurchaseURL,
		},
		Submission: services.SubmissionServiceConfig{MaxImageBytes: cfg.Session.MaxImageBytes},
		Session: services.SessionServiceConfig{
			IdleTTL:       cfg.Session.IdleTTL,
			ReapInterval:  cfg.Session.ReapInterval,
			MaxImageBytes: cfg.Session.MaxImageBytes,
		},
		Generator: geminiClient,
		Grader:    geminiClient,
		Hub:       hub,
		Estimator: estimator,
		Cache:     cacheManager,
	}

	if cfg.GCP.VisionEnabled {
		extractor, err := gcp.NewVisionExtractor(ctx, logger)
		if err != nil {
			logger.Warn("Vision unavailable, image answers disabled", "error", err)
		} else {
			defer extractor.Close()
			smCfg.Extractor = extractor
		}
	}
	if cfg.GCP.SpeechEnabled {
		transcriber, err := gcp.NewSpeechTranscriber(ctx, gcp.SpeechConfig{LanguageCode: cfg.GCP.SpeechLanguage}, logger)
		if err != nil {
			logger.Warn("Speech unavailable, spoken answers disabled", "error", err)
		} else {
			defer transcriber.Close()
			smCfg.Transcriber = transcriber
		}
	}
	if cfg.GCP.ImageBucket != "" {
		bucket, err := gcp.NewImageBucket(ctx, cfg.GCP.ImageBucket, cfg.GCP.ImageCDNDomain, logger)
		if err != nil {
			logger.Warn("Image bucket unavailable, uploads disabled", "error", err)
		} else {
			defer bucket.Close()
			smCfg.Images = bucket
		}
	}

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		return err
	}
	defer publisher.Close()
	smCfg.Publisher = publisher

	serviceManager := services.NewServiceManager(repo, smCfg, logger)
	sessions := serviceManager.Session()
	go sessions.Run(ctx)

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handlerManager := handlers.NewHandlerManager(
		serviceManager,
		validator.New(),
		handlers.NewCasdoorVerifier(cfg.Casdoor),
		utils.NewSlogLogger(logger),
		handlers.HandlerConfig{
			PurchaseURL:   cfg.Credits.PurchaseURL,
			MaxImageBytes: cfg.Session.MaxImageBytes,
			CORSOrigins:   cfg.CORSOrigins,
		},
	)
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	sessions.Shutdown(shutdownCtx)
	return nil
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
