package rs

import (
	"context"

	"github.com/google/uuid"

	"github.com/fenwick-labs/graphrag/internal/domain"
)

// ReplaceMentions atomically swaps all entity mentions for a document,
// implementing §4.7's "replace all existing mentions for (workspace_id,
// document_id) with freshly computed ones".
func (s *Store) ReplaceMentions(ctx context.Context, workspaceID, documentID string, mentions []domain.EntityMention) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM entity_mentions WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	for _, m := range mentions {
		id := uuid.NewString()
		var chunkID *string
		if m.ChunkID != "" {
			chunkID = &m.ChunkID
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO entity_mentions (id, workspace_id, document_id, chunk_id, entity_key, entity_type, entity_name, confidence)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			id, workspaceID, documentID, chunkID, m.EntityKey, m.EntityType, m.EntityName, m.Confidence,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// MentionsForDocument returns all entity mentions recorded for a document.
func (s *Store) MentionsForDocument(ctx context.Context, documentID string) ([]domain.EntityMention, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, workspace_id, document_id, coalesce(chunk_id::text, ''), entity_key, entity_type, entity_name, confidence
FROM entity_mentions WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EntityMention
	for rows.Next() {
		var m domain.EntityMention
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.DocumentID, &m.ChunkID, &m.EntityKey, &m.EntityType, &m.EntityName, &m.Confidence); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
