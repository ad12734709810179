package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/norddok/norddok/internal/api/handlers"
	"github.com/norddok/norddok/internal/config"
	"github.com/norddok/norddok/internal/database"
	"github.com/norddok/norddok/internal/jobs"
	"github.com/norddok/norddok/internal/openai"
	"github.com/norddok/norddok/internal/repository"
	"github.com/norddok/norddok/internal/scoring"
	"github.com/norddok/norddok/internal/server"
	"github.com/norddok/norddok/internal/service"
	"github.com/norddok/norddok/internal/storage"
	"github.com/norddok/norddok/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the norddok knowledge store API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-rescore", false, "Disable the background confidence rescore worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if a DSN is configured
	if cfg.HasSentry() {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required: the store cannot embed chunks without it")
	}

	embeddingClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		AnalysisModel:       cfg.AnalysisModel,
	})
	chunkRepo := repository.NewChunkRepository(pool, cfg.EmbeddingDimensions)

	var archiver service.OutcomeArchiver
	if cfg.HasS3() {
		archive, err := storage.NewOutcomeArchive(ctx, storage.OutcomeArchiveConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create outcome archive: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure outcome archive bucket: %w", err)
		}
		log.Printf("outcome archive bucket '%s' ready", cfg.S3Bucket)
		archiver = archive
	}

	scorer := scoring.NewScorer()

	chunkSvc := service.NewChunkStoreService(chunkRepo, embeddingClient, scoring.InitialConfidence, cfg.EmbeddingDimensions)
	retrievalSvc := service.NewRetrievalService(chunkRepo, embeddingClient)
	outcomeSvc := service.NewOutcomeService(chunkSvc, archiver)
	corpusSvc := service.NewCorpusService(chunkSvc)
	rescoreSvc := service.NewRescoreService(chunkRepo, scorer)
	insightSvc := service.NewInsightService(chunkRepo, embeddingClient, chunkSvc)

	var rescoreWorker *jobs.Worker
	noRescore, _ := cmd.Flags().GetBool("no-rescore")
	if !noRescore {
		processor := jobs.NewRescoreWorker(rescoreSvc, cfg.RescoreBatchSize)
		rescoreWorker = jobs.NewWorker(processor, cfg.RescoreInterval)
		go rescoreWorker.Start(ctx)
		log.Println("rescore worker started")
	}

	routerCfg := server.RouterConfig{
		AuthToken:           cfg.AuthToken,
		ChunkHandler:        handlers.NewChunkHandler(chunkSvc),
		SearchHandler:       handlers.NewSearchHandler(retrievalSvc),
		OutcomeHandler:      handlers.NewOutcomeHandler(outcomeSvc),
		CorpusHandler:       handlers.NewCorpusHandler(corpusSvc),
		ConfirmationHandler: handlers.NewConfirmationHandler(rescoreSvc),
		InsightHandler:      handlers.NewInsightHandler(insightSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if rescoreWorker != nil {
		rescoreWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
