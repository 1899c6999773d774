package main

import (
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"studio-backend/internal/config"
	"studio-backend/internal/database"
	"studio-backend/internal/handlers"
	"studio-backend/internal/logger"
	"studio-backend/internal/middleware"
	"studio-backend/internal/replicate"
	"studio-backend/internal/services"
	"studio-backend/internal/supabase"
)

// projectStore is satisfied by both the direct Postgres client and the PostgREST client.
type projectStore interface {
	services.ProjectStore
	handlers.WaitlistStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLog, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			AttachStacktrace: true,
		}); err != nil {
			zapLog.Fatal("failed to init sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	var store projectStore
	if cfg.DatabaseURL != "" {
		dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL, cfg.WaitlistTable, cfg.ProjectsTable)
		if err != nil {
			zapLog.Fatal("failed to connect to database", zap.Error(err))
		}
		defer dbClient.Close()

		migrator, err := database.NewMigrator(dbClient.DB(), zapLog, database.Tables{
			Waitlist: cfg.WaitlistTable,
			Projects: cfg.ProjectsTable,
		})
		if err != nil {
			zapLog.Fatal("failed to initialize migrator", zap.Error(err))
		}
		if err := migrator.Run(); err != nil {
			zapLog.Fatal("migration failed", zap.Error(err))
		}
		store = dbClient
	} else {
		zapLog.Warn("DATABASE_URL not set, using the PostgREST API and skipping migrations")
		supabaseClient, err := supabase.NewClient(cfg)
		if err != nil {
			zapLog.Fatal("failed to initialize supabase client", zap.Error(err))
		}
		store = supabase.NewRestClient(supabaseClient, cfg.WaitlistTable, cfg.ProjectsTable)
	}

	storageClient := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)

	replicateClient := replicate.NewClient(cfg.ReplicateAPIBaseURL, cfg.ReplicateAPIToken, cfg.GenerationTimeout).
		WithPollInterval(cfg.PollInterval).
		WithMaxAssetSize(cfg.MaxImageBytes)
	if !replicateClient.Configured() {
		zapLog.Warn("REPLICATE_API_TOKEN not set, /api/generate will fail")
	}

	generationService := services.NewGenerationService(
		storageClient,
		replicateClient,
		store,
		zapLog.Named("generation"),
		cfg.ReplicateModel,
		cfg.InputBucket,
		cfg.OutputBucket,
	)

	waitlistHandler := handlers.NewWaitlistHandler(store, zapLog.Named("waitlist"), cfg.WaitlistTokenSecret)
	generateHandler := handlers.NewGenerateHandler(generationService, zapLog.Named("generate"), cfg.GenerationTimeout, cfg.MaxImageBytes)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(logger.GinMiddleware(zapLog))
	router.Use(middleware.Recovery(zapLog))
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(corsMiddleware(cfg.CORSAllowedOrigins))

	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api")
	api.POST("/waitlist", waitlistHandler.Join)

	generate := []gin.HandlerFunc{generateHandler.Generate}
	if cfg.WaitlistPassEnabled() {
		generate = append([]gin.HandlerFunc{middleware.WaitlistPass(cfg.WaitlistTokenSecret)}, generate...)
	}
	api.POST("/generate", generate...)

	zapLog.Info("server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		zapLog.Fatal("failed to start server", zap.Error(err))
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	return cors.New(corsConfig)
}
