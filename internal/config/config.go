// Package config loads process configuration from environment variables
// (with .env support via godotenv), following the teacher's convention of a
// single flat Config struct populated at startup and passed down by value.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// JobQueueConfig holds the §4.2 tunables.
type JobQueueConfig struct {
	MaxAttempts  int
	PollInterval time.Duration
	BackoffBase  time.Duration
}

// EmbeddingConfig describes the EC (C3) endpoint.
type EmbeddingConfig struct {
	APIKey string
	Model  string
	Dim    int
	Batch  int
}

// ExtractionConfig describes the XC (C4) endpoint used for both entity
// extraction and answer composition.
type ExtractionConfig struct {
	APIKey string
	Model  string
}

// RerankConfig describes the optional RC (C5) endpoint.
type RerankConfig struct {
	URL   string // empty disables reranking
	Model string
}

// DBConfig holds store DSNs and backend selection.
type DBConfig struct {
	DatabaseURL string
	RedisURL    string // optional; empty disables the idempotency cache
	QdrantURL   string // optional; empty keeps pgvector as the PGS vector backend
	VectorDim   int
}

// RetrievalConfig holds the §4.9 defaults.
type RetrievalConfig struct {
	DefaultDepth   int
	MaxDepth       int
	DefaultTopK    int
	RerankMultiple int
}

// ObsConfig controls OpenTelemetry wiring.
type ObsConfig struct {
	ServiceName  string
	OTLPEndpoint string // empty disables trace export
}

// Config is the fully resolved process configuration.
type Config struct {
	HTTPAddr      string
	LogLevel      string
	WebhookSecret string

	DB        DBConfig
	JobQueue  JobQueueConfig
	Embedding EmbeddingConfig
	Extract   ExtractionConfig
	Rerank    RerankConfig
	Retrieval RetrievalConfig
	Obs       ObsConfig
}

// Load reads configuration from the environment, loading .env first if
// present (best-effort, matching the teacher's cmd/agentd bootstrap).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		DB: DBConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			RedisURL:    os.Getenv("REDIS_URL"),
			QdrantURL:   os.Getenv("QDRANT_URL"),
			VectorDim:   getEnvInt("EMBED_DIM", 1536),
		},
		JobQueue: JobQueueConfig{
			MaxAttempts:  getEnvInt("MAX_ATTEMPTS", 3),
			PollInterval: getEnvDuration("POLL_INTERVAL", 2*time.Second),
			BackoffBase:  getEnvDuration("BACKOFF_BASE", 30*time.Second),
		},
		Embedding: EmbeddingConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnv("EMBED_MODEL", "text-embedding-3-large"),
			Dim:    getEnvInt("EMBED_DIM", 1536),
			Batch:  getEnvInt("EMBED_BATCH", 50),
		},
		Extract: ExtractionConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  getEnv("EXTRACT_MODEL", "claude-sonnet-4-5"),
		},
		Rerank: RerankConfig{
			URL:   os.Getenv("RERANKER_URL"),
			Model: getEnv("RERANK_MODEL", "rerank-english-v1"),
		},
		Retrieval: RetrievalConfig{
			DefaultDepth:   getEnvInt("RETRIEVAL_DEFAULT_DEPTH", 2),
			MaxDepth:       getEnvInt("MAX_DEPTH", 4),
			DefaultTopK:    getEnvInt("RETRIEVAL_DEFAULT_TOPK", 20),
			RerankMultiple: getEnvInt("RERANK_CANDIDATE_MULTIPLIER", 3),
		},
		Obs: ObsConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "graphrag-core"),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	if cfg.DB.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
