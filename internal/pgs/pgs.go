package pgs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fenwick-labs/graphrag/internal/config"
)

// Store bundles the vector index and the typed graph behind one handle.
type Store struct {
	Vectors VectorStore
	Graph   *GraphStore
}

// Open builds the PGS against pool, using pgvector unless cfg.QdrantURL
// selects the alternate backend (§9 Open Question).
func Open(ctx context.Context, pool *pgxpool.Pool, cfg config.DBConfig) (*Store, error) {
	graph, err := newGraphStore(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("pgs: init graph store: %w", err)
	}

	if cfg.QdrantURL != "" {
		vectors, err := newQdrantVectorStore(ctx, cfg.QdrantURL, cfg.VectorDim)
		if err != nil {
			return nil, fmt.Errorf("pgs: init qdrant vector store: %w", err)
		}
		return &Store{Vectors: vectors, Graph: graph}, nil
	}

	vectors, err := newPGVectorStore(ctx, pool, cfg.VectorDim)
	if err != nil {
		return nil, fmt.Errorf("pgs: init pgvector store: %w", err)
	}
	return &Store{Vectors: vectors, Graph: graph}, nil
}
