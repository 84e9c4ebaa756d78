package config

import (
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/citedoc/internal/service"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// DatabaseURL selects the Postgres store; empty keeps documents in memory.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"citedoc-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey      string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel    string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	ChatModel         string        `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingTimeout  time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"10s"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"60s"`

	ChunkMode    string `envconfig:"CHUNK_MODE" default:"smart"`
	ChunkSize    int    `envconfig:"CHUNK_SIZE"`
	ChunkOverlap int    `envconfig:"CHUNK_OVERLAP" default:"-1"`

	Strategy      string  `envconfig:"STRATEGY" default:"full_vector"`
	TopK          int     `envconfig:"TOP_K" default:"5"`
	KeywordTopK   int     `envconfig:"KEYWORD_TOP_K" default:"5"`
	MinSimilarity float64 `envconfig:"MIN_SIMILARITY" default:"0.1"`

	FuzzyStep      int     `envconfig:"FUZZY_STEP" default:"50"`
	FuzzyThreshold float64 `envconfig:"FUZZY_THRESHOLD" default:"0.6"`

	IndexAsync        bool          `envconfig:"INDEX_ASYNC" default:"false"`
	IndexPollInterval time.Duration `envconfig:"INDEX_POLL_INTERVAL" default:"2s"`

	MaxUploadBytes  int64 `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	MaxRequestBytes int64 `envconfig:"MAX_REQUEST_BYTES" default:"1048576"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CITEDOC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if _, err := service.ParseStrategy(cfg.Strategy); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// ChunkConfig returns the chunking parameters, starting from the defaults
// of the configured mode.
func (c *Config) ChunkConfig() service.ChunkConfig {
	var cc service.ChunkConfig
	if service.ParseChunkMode(c.ChunkMode) == service.ChunkModeFixed {
		cc = service.DefaultFixedChunkConfig()
	} else {
		cc = service.DefaultChunkConfig()
	}
	if c.ChunkSize > 0 {
		cc.ChunkSize = c.ChunkSize
	}
	if c.ChunkOverlap >= 0 {
		cc.Overlap = c.ChunkOverlap
	}
	return cc
}

// AnswerConfig returns the orchestrator parameters. Load has already
// rejected unknown strategies.
func (c *Config) AnswerConfig() service.AnswerConfig {
	strategy, err := service.ParseStrategy(c.Strategy)
	if err != nil {
		strategy = service.StrategyFullVector
	}
	return service.AnswerConfig{
		Strategy:          strategy,
		TopK:              c.TopK,
		KeywordTopK:       c.KeywordTopK,
		GenerationTimeout: c.GenerationTimeout,
	}
}

func (c *Config) ReconcilerConfig() service.ReconcilerConfig {
	rc := service.DefaultReconcilerConfig()
	if c.FuzzyStep > 0 {
		rc.FuzzyStep = c.FuzzyStep
	}
	if c.FuzzyThreshold > 0 {
		rc.FuzzyThreshold = c.FuzzyThreshold
	}
	return rc
}
