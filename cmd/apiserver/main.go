// Command apiserver exposes the §6 HTTP boundary: document ingestion,
// query/answer, vault/connection/workspace CRUD, the webhook intake, and
// job introspection. Exits nonzero if PGS connectivity cannot be verified
// at startup (§6). Grounded on the teacher's cmd/webui/main.go graceful
// shutdown shape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fenwick-labs/graphrag/internal/answer"
	"github.com/fenwick-labs/graphrag/internal/config"
	"github.com/fenwick-labs/graphrag/internal/embedclient"
	"github.com/fenwick-labs/graphrag/internal/httpapi"
	"github.com/fenwick-labs/graphrag/internal/ingest"
	"github.com/fenwick-labs/graphrag/internal/jobqueue"
	"github.com/fenwick-labs/graphrag/internal/logging"
	"github.com/fenwick-labs/graphrag/internal/observability"
	"github.com/fenwick-labs/graphrag/internal/pgs"
	"github.com/fenwick-labs/graphrag/internal/rerankclient"
	"github.com/fenwick-labs/graphrag/internal/retrieve"
	"github.com/fenwick-labs/graphrag/internal/rs"
	"github.com/fenwick-labs/graphrag/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("apiserver exiting")
		os.Exit(1)
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
		return fmt.Errorf("verify property graph store connectivity: %w", err)
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
	rerank := rerankclient.New(cfg.Rerank)

	retrieveEngine := retrieve.New(store, pgStore, embed, rerank, cfg.Retrieval)
	composer := answer.New(cfg.Extract)
	ingester := ingest.New(store, queue)
	verifier := webhook.New(cfg.WebhookSecret, store)

	srv := &httpapi.Server{
		RS: store, Queue: queue, Ingester: ingester,
		Retrieve: retrieveEngine, Answer: composer, Webhook: verifier,
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Routes()}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("apiserver listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}
