package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/attunehealth/theraplan/backend/internal/adapters/cache"
	"github.com/attunehealth/theraplan/backend/internal/adapters/database"
	"github.com/attunehealth/theraplan/backend/internal/adapters/events"
	"github.com/attunehealth/theraplan/backend/internal/api/handlers"
	"github.com/attunehealth/theraplan/backend/internal/api/routes"
	"github.com/attunehealth/theraplan/backend/internal/application/services"
	"github.com/attunehealth/theraplan/backend/internal/domain/providers"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/clients/openai"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/clients/postgres"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/clients/redis"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/observability"
	"github.com/attunehealth/theraplan/backend/pkg/config"
	"github.com/attunehealth/theraplan/backend/pkg/retry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	sqlxDB := sqlx.NewDb(pgClient.DB(), "postgres")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - risk lookups fall back to the database
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize OpenAI client
	if cfg.OpenAI.APIKey == "" {
		log.Fatalf("OPENAI_API_KEY is required")
	}
	openaiClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("Failed to initialize OpenAI client: %v", err)
	}

	// Initialize adapters
	versionRepo := database.NewPlanVersionAdapter(pgClient)
	sessionRepo := database.NewSessionAdapter(sqlxDB)

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	// Initialize event bus for plan lifecycle events
	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available)")
	}

	// Initialize services
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Generation.MaxAttempts

	planGeneration := services.NewPlanGenerationService(openaiClient, retryCfg)
	summaries := services.NewSummaryService(openaiClient, retryCfg)
	riskService := services.NewRiskService(openaiClient, sessionRepo, cacheProvider, eventBus)
	diarization := services.NewDiarizationService(openaiClient, openaiClient, sessionRepo)
	planService := services.NewPlanService(sessionRepo, versionRepo, planGeneration, summaries, riskService, eventBus)

	// Initialize handlers
	planHandler := handlers.NewPlanHandler(planService)
	riskHandler := handlers.NewRiskHandler(riskService)
	transcriptionHandler := handlers.NewTranscriptionHandler(diarization)

	// Set up router
	router := routes.NewRouter(
		planHandler,
		riskHandler,
		transcriptionHandler,
		metrics,
	)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: handler,
		// Generation fans out several upstream calls with retries, so the
		// write timeout is generous.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	log.Println("Server stopped")
}
