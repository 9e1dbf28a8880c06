// Command worker runs the cooperative poll loop (C9) against the job
// queue, dispatching PROCESS_DOCUMENT through UPSERT_GRAPH to the handlers
// in internal/pipeline. Grounded on the teacher's cmd/orchestrator/main.go
// signal-handling shape (signal.NotifyContext, run until cancelled).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/fenwick-labs/graphrag/internal/config"
	"github.com/fenwick-labs/graphrag/internal/embedclient"
	"github.com/fenwick-labs/graphrag/internal/extractclient"
	"github.com/fenwick-labs/graphrag/internal/jobqueue"
	"github.com/fenwick-labs/graphrag/internal/logging"
	"github.com/fenwick-labs/graphrag/internal/observability"
	"github.com/fenwick-labs/graphrag/internal/pgs"
	"github.com/fenwick-labs/graphrag/internal/pipeline"
	"github.com/fenwick-labs/graphrag/internal/rs"
	"github.com/fenwick-labs/graphrag/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownOTel, err := observability.InitOTel(ctx, cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdownOTel = nil
	}
	if shutdownOTel != nil {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	store, err := rs.Open(ctx, cfg.DB.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open relational store: %w", err)
	}
	defer store.Close()

	pgStore, err := pgs.Open(ctx, store.Pool(), cfg.DB)
	if err != nil {
		return fmt.Errorf("open property graph store: %w", err)
	}

	var guard *jobqueue.RedisGuardCache
	if cfg.DB.RedisURL != "" {
		guard, err = jobqueue.NewRedisGuardCache(cfg.DB.RedisURL)
		if err != nil {
			return fmt.Errorf("connect idempotency cache: %w", err)
		}
	}
	queue := jobqueue.NewQueue(store.Pool(), guard, cfg.JobQueue)

	embed, err := embedclient.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("init embedding client: %w", err)
	}
	extract := extractclient.New(cfg.Extract)

	handlers := &pipeline.Handlers{
		RS: store, PGS: pgStore, Queue: queue,
		Embed: embed, Extract: extract,
		EmbedBatchSize: cfg.Embedding.Batch,
	}

	w := worker.New(queue, handlers.Registry(), cfg.JobQueue)

	log.Info().Msg("worker starting")
	w.Run(ctx)
	return nil
}
