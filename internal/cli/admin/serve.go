package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/citedoc/internal/api/handlers"
	"github.com/cloo-solutions/citedoc/internal/config"
	"github.com/cloo-solutions/citedoc/internal/database"
	"github.com/cloo-solutions/citedoc/internal/extract"
	"github.com/cloo-solutions/citedoc/internal/jobs"
	"github.com/cloo-solutions/citedoc/internal/openai"
	"github.com/cloo-solutions/citedoc/internal/repository"
	"github.com/cloo-solutions/citedoc/internal/server"
	"github.com/cloo-solutions/citedoc/internal/service"
	"github.com/cloo-solutions/citedoc/internal/storage"
	"github.com/cloo-solutions/citedoc/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the citedoc API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides CITEDOC_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}

// components holds the wired services shared by serve and index.
type components struct {
	store     service.DocumentStore
	documents *service.DocumentService
	retrieval *service.RetrievalService
	answers   *service.AnswerService
	features  handlers.Features
	pool      *pgxpool.Pool
}

func (c *components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	migrations, _ := cmd.Flags().GetString("migrations")
	if cfg.HasDatabase() && !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL, migrations); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	var indexWorker *jobs.Worker
	if cfg.IndexAsync {
		processor := jobs.NewIndexWorker(c.store, c.documents, 0)
		indexWorker = jobs.NewWorker(processor, cfg.IndexPollInterval)
		c.documents.OnPending(indexWorker.Wake)
		go indexWorker.Start(ctx)
		log.Println("index worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(c.documents, c.retrieval),
		AskHandler:      handlers.NewAskHandler(c.answers),
		HealthHandler:   handlers.NewHealthHandler(c.features),
		MaxUploadBytes:  cfg.MaxUploadBytes,
		MaxRequestBytes: cfg.MaxRequestBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s (strategy %s)", cfg.Port, c.features.Strategy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if indexWorker != nil {
		indexWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	// 10% sampling in production, everything in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

// buildComponents wires storage, embeddings and generation from cfg.
// Every optional collaborator degrades to a local fallback when unset.
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{}

	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Println("connected to database")
		c.pool = pool
		c.store = repository.NewPostgresStore(pool)
	} else {
		log.Println("CITEDOC_DATABASE_URL not set, keeping documents in memory")
		c.store = repository.NewMemoryStore()
	}

	var files service.FileStorage
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		files = s3Client
	}

	// Interfaces stay nil rather than holding a typed nil *openai.Client.
	var (
		embeddingClient service.EmbeddingClient
		generator       service.Generator
	)
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.ChatModel,
		})
		embeddingClient = client
		generator = client
	} else {
		log.Println("CITEDOC_OPENAI_API_KEY not set, using hash embeddings and extractive answers")
	}

	embedder := service.NewEmbedderWithConfig(embeddingClient, service.EmbedderConfig{
		Model:   cfg.EmbeddingModel,
		Timeout: cfg.EmbeddingTimeout,
	})

	c.documents = service.NewDocumentService(c.store, embedder, files, extract.NewPDF(), service.DocumentServiceConfig{
		Chunking:   cfg.ChunkConfig(),
		AsyncIndex: cfg.IndexAsync,
	})
	c.retrieval = service.NewRetrievalService(c.store, embedder).WithMinSimilarity(cfg.MinSimilarity)

	answerCfg := cfg.AnswerConfig()
	c.answers = service.NewAnswerService(c.store, c.retrieval, generator, service.NewReconciler(cfg.ReconcilerConfig()), answerCfg)

	c.features = handlers.Features{
		Generation: generator != nil,
		Embeddings: embeddingClient != nil,
		Storage:    files != nil,
		Database:   cfg.HasDatabase(),
		Strategy:   string(answerCfg.Strategy),
	}

	return c, nil
}
