package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/studyhub/assessment-service/internal/config"
	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/generation"
	"github.com/studyhub/assessment-service/internal/grading"
	"github.com/studyhub/assessment-service/internal/handlers"
	"github.com/studyhub/assessment-service/internal/repositories/casdoor"
	"github.com/studyhub/assessment-service/internal/repositories/postgres"
	"github.com/studyhub/assessment-service/internal/services"
	"github.com/studyhub/assessment-service/internal/storage"
	"github.com/studyhub/assessment-service/internal/utils"
	"github.com/studyhub/assessment-service/internal/validator"
	"github.com/studyhub/assessment-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis is optional; repositories fall back to the database
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, caching disabled", "error", err)
			redisClient = nil
		}
	}

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}
	repo := repoManager.GetRepository()

	ctx := context.Background()

	caller, err := generation.NewCaller(ctx, cfg.Generator)
	if err != nil {
		log.Fatalf("Failed to initialize %s caller: %v", cfg.Generator.Provider, err)
	}
	if closer, ok := caller.(io.Closer); ok {
		defer closer.Close()
	}

	var grader grading.Grader
	if cfg.Grader.URL != "" {
		grader = grading.NewHTTPGrader(cfg.Grader.URL, cfg.Grader.Timeout, logger.With("component", "grader"))
	} else {
		logger.Info("GRADER_URL not set, grading locally")
		grader = grading.NewLocalGrader(caller, logger.With("component", "grader"))
	}

	var uploader storage.Uploader = storage.DisabledUploader{}
	if cfg.StorageEnabled() {
		uploader = storage.NewSupabaseUploader(cfg.Storage)
	}

	publisher, err := newPublisher(cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	serviceManager := services.NewServiceManager(repo, logger, validator.New(), services.ServiceManagerConfig{
		Publisher:         publisher,
		Generator:         generation.NewLLMGenerator(caller, logger.With("component", "generator")),
		Grader:            grader,
		Uploader:          uploader,
		GenerationTimeout: cfg.Generator.Timeout,
		GradingTimeout:    cfg.Grader.Timeout,
		UseGemini:         cfg.Grader.UseGemini,
	})
	if err := serviceManager.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)

	auth := handlers.NewAuthenticator(cfg.Casdoor, repo.User(), logger.With("component", "auth"))
	handlers.NewHandlerManager(serviceManager, logger, auth.Handler()).SetupRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := serviceManager.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}
	if err := repoManager.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to close repositories", "error", err)
	}

	logger.Info("Server exited")
}

// newPublisher sends events to Kafka when brokers are configured
func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("KAFKA_BROKERS not set, events stay in process")
		return events.NewInMemoryPublisher(cfg.Kafka.Topic, logger), nil
	}
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
}
