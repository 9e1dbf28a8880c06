// Package pgs is the property graph store (C2): chunk vectors plus a typed
// node/edge graph over Document, Chunk, Person, Company and Topic. The
// vector half is grounded on the teacher's pgVector
// (postgres_vector.go: toVectorLiteral, the <=>/<->/<#> distance operator
// switch, JSONB metadata filtering); the graph half on pgGraph
// (postgres_graph.go: nodes/edges tables, ON CONFLICT upsert, Neighbors).
// An optional pkg/provider/qdrant.go-style backend (qdrant/go-client)
// substitutes for the vector half when QDRANT_URL is set (§9 Open
// Question: "PGS vector backend is pluggable").
package pgs

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VectorHit is one pre-filtered nearest-neighbor result (§4.9 stage 3).
type VectorHit struct {
	ChunkID    string
	DocumentID string
	Score      float64
}

// VectorStore is the chunk-embedding index, always scoped by workspace and
// optionally by a connection-id set (tenant isolation, P6/P7).
type VectorStore interface {
	UpsertChunkVector(ctx context.Context, workspaceID, connectionID, documentID, chunkID string, vector []float32) error
	DeleteDocumentVectors(ctx context.Context, documentID string) error
	SimilaritySearch(ctx context.Context, workspaceID string, connectionIDs []string, vector []float32, k int) ([]VectorHit, error)
}

type pgVectorStore struct {
	pool   *pgxpool.Pool
	metric string
}

// newPGVectorStore bootstraps the pgvector-backed embeddings table.
func newPGVectorStore(ctx context.Context, pool *pgxpool.Pool, dim int) (*pgVectorStore, error) {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, fmt.Errorf("pgs: create vector extension: %w", err)
	}
	vecType := "vector"
	if dim > 0 {
		vecType = fmt.Sprintf("vector(%d)", dim)
	}
	_, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunk_vectors (
	chunk_id      TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	workspace_id  TEXT NOT NULL,
	connection_id TEXT NOT NULL,
	vec           %s NOT NULL
);
CREATE INDEX IF NOT EXISTS chunk_vectors_ws_conn_idx ON chunk_vectors(workspace_id, connection_id);
`, vecType))
	if err != nil {
		return nil, fmt.Errorf("pgs: create chunk_vectors table: %w", err)
	}
	return &pgVectorStore{pool: pool, metric: "cosine"}, nil
}

func (s *pgVectorStore) UpsertChunkVector(ctx context.Context, workspaceID, connectionID, documentID, chunkID string, vector []float32) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO chunk_vectors (chunk_id, document_id, workspace_id, connection_id, vec)
VALUES ($1, $2, $3, $4, $5::vector)
ON CONFLICT (chunk_id) DO UPDATE SET vec = EXCLUDED.vec, document_id = EXCLUDED.document_id`,
		chunkID, documentID, workspaceID, connectionID, toVectorLiteral(vector),
	)
	return err
}

func (s *pgVectorStore) DeleteDocumentVectors(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunk_vectors WHERE document_id = $1`, documentID)
	return err
}

// SimilaritySearch pre-filters by workspace (and, when non-empty, by the
// connection-id set resolved from the query's vaults) before scoring, so an
// embedding from outside the caller's scope can never surface (P6/P7).
func (s *pgVectorStore) SimilaritySearch(ctx context.Context, workspaceID string, connectionIDs []string, vector []float32, k int) ([]VectorHit, error) {
	if k <= 0 {
		k = 10
	}
	vecLit := toVectorLiteral(vector)

	where := "WHERE workspace_id = $3"
	args := []any{vecLit, k, workspaceID}
	if len(connectionIDs) > 0 {
		where += " AND connection_id = ANY($4)"
		args = append(args, connectionIDs)
	}

	query := fmt.Sprintf(`
SELECT chunk_id, document_id, 1 - (vec <=> $1::vector) AS score
FROM chunk_vectors
%s
ORDER BY vec <=> $1::vector
LIMIT $2`, where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]VectorHit, 0, k)
	for rows.Next() {
		var hit VectorHit
		if err := rows.Scan(&hit.ChunkID, &hit.DocumentID, &hit.Score); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
