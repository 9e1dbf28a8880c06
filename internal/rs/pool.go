// Package rs is the relational store (C1): authoritative metadata for
// workspaces, vaults, connections, documents, chunks, entity mentions, and
// the job queue. Grounded on the teacher's
// internal/persistence/databases.newPgPool singleton-pool construction,
// widened to the pool size the spec's concurrency model calls for.
package rs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps the singleton pgxpool.Pool that backs RS (and, when no
// separate Qdrant URL is configured, PGS vector storage too).
type Store struct {
	pool *pgxpool.Pool
}

// Open constructs the pool (at most 50 connections), pings it with a 60s
// timeout, and bootstraps the schema. Connection acquisition has no timeout
// of its own; it is bounded only by the caller's context.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = 50
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.bootstrap(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return s, nil
}

// Pool exposes the underlying pool for components (PGS pgvector backend,
// jobqueue) that need to share the same connection pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the pool. Safe to call once at shutdown.
func (s *Store) Close() { s.pool.Close() }

// Ping verifies connectivity, used by the /healthz probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) bootstrap(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS workspaces (
	id   UUID PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vaults (
	id           UUID PRIMARY KEY,
	workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	is_default   BOOLEAN NOT NULL DEFAULT FALSE,
	description  TEXT NOT NULL DEFAULT '',
	UNIQUE (workspace_id, name)
);
CREATE UNIQUE INDEX IF NOT EXISTS vaults_one_default_per_workspace
	ON vaults (workspace_id) WHERE is_default;

CREATE TABLE IF NOT EXISTS connections (
	id               UUID PRIMARY KEY,
	workspace_id     UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	source_type      TEXT NOT NULL,
	external_auth_id TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS vault_connection_links (
	vault_id      UUID NOT NULL REFERENCES vaults(id) ON DELETE CASCADE,
	connection_id UUID NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
	PRIMARY KEY (vault_id, connection_id)
);

CREATE TABLE IF NOT EXISTS documents (
	id            UUID PRIMARY KEY,
	workspace_id  UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	connection_id UUID NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
	source_type   TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	url           TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	author_name   TEXT NOT NULL DEFAULT '',
	author_email  TEXT NOT NULL DEFAULT '',
	content_text  TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (workspace_id, source_type, external_id)
);

CREATE TABLE IF NOT EXISTS chunks (
	id            UUID PRIMARY KEY,
	workspace_id  UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	document_id   UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	idx           INT NOT NULL,
	text          TEXT NOT NULL,
	start_offset  INT NOT NULL,
	end_offset    INT NOT NULL,
	UNIQUE (workspace_id, document_id, idx)
);
CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks (document_id, idx);

CREATE TABLE IF NOT EXISTS entity_mentions (
	id           UUID PRIMARY KEY,
	workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	document_id  UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_id     UUID REFERENCES chunks(id) ON DELETE SET NULL,
	entity_key   TEXT NOT NULL,
	entity_type  TEXT NOT NULL,
	entity_name  TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 1.0
);
CREATE INDEX IF NOT EXISTS entity_mentions_document_idx ON entity_mentions (document_id);

CREATE TABLE IF NOT EXISTS jobs (
	id           UUID PRIMARY KEY,
	workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	type         TEXT NOT NULL,
	payload      JSONB NOT NULL DEFAULT '{}'::jsonb,
	status       TEXT NOT NULL DEFAULT 'queued',
	attempts     INT NOT NULL DEFAULT 0,
	last_error   TEXT NOT NULL DEFAULT '',
	run_after    TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS jobs_claim_idx ON jobs (status, run_after, created_at) WHERE status = 'queued';
CREATE INDEX IF NOT EXISTS jobs_workspace_type_status_idx ON jobs (workspace_id, type, status);
`
