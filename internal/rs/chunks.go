package rs

import (
	"context"

	"github.com/google/uuid"

	"github.com/fenwick-labs/graphrag/internal/domain"
)

// ReplaceChunks deletes all existing chunks for a document (cascading to
// entity_mentions.chunk_id via ON DELETE SET NULL) and inserts the new set
// in a single transaction, implementing the CHUNK_DOCUMENT handler's
// "delete existing, insert new" step (§4.4).
func (s *Store) ReplaceChunks(ctx context.Context, workspaceID, documentID string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return nil, err
	}

	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.ID = uuid.NewString()
		c.WorkspaceID = workspaceID
		c.DocumentID = documentID
		if _, err := tx.Exec(ctx, `
INSERT INTO chunks (id, workspace_id, document_id, idx, text, start_offset, end_offset)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			c.ID, c.WorkspaceID, c.DocumentID, c.Idx, c.Text, c.StartOffset, c.EndOffset,
		); err != nil {
			return nil, err
		}
		out[i] = c
	}

	return out, tx.Commit(ctx)
}

// ChunksForDocument returns a document's chunks ordered by idx.
func (s *Store) ChunksForDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, workspace_id, document_id, idx, text, start_offset, end_offset
FROM chunks WHERE document_id = $1 ORDER BY idx`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.DocumentID, &c.Idx, &c.Text, &c.StartOffset, &c.EndOffset); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
