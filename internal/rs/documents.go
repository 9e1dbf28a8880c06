package rs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fenwick-labs/graphrag/internal/apierr"
	"github.com/fenwick-labs/graphrag/internal/domain"
)

// DocUpsertStatus mirrors the three outcomes of the §4.1 dedup entry point.
type DocUpsertStatus string

const (
	DocCreated   DocUpsertStatus = "created"
	DocUpdated   DocUpsertStatus = "updated"
	DocUnchanged DocUpsertStatus = "unchanged"
)

// UpsertDocument implements the §4.1/§3-I2 dedup-by-content-hash contract:
// no existing row inserts, matching hash is a no-op, differing hash updates
// fields and hash. Returns the resolved document id and outcome status.
func (s *Store) UpsertDocument(ctx context.Context, doc domain.Document) (string, DocUpsertStatus, error) {
	var existingID, existingHash string
	err := s.pool.QueryRow(ctx, `
SELECT id, content_hash FROM documents
WHERE workspace_id = $1 AND source_type = $2 AND external_id = $3`,
		doc.WorkspaceID, doc.SourceType, doc.ExternalID,
	).Scan(&existingID, &existingHash)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		id := uuid.NewString()
		now := time.Now().UTC()
		_, err := s.pool.Exec(ctx, `
INSERT INTO documents (id, workspace_id, connection_id, source_type, external_id, url, title,
	author_name, author_email, content_text, content_hash, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
			id, doc.WorkspaceID, doc.ConnectionID, doc.SourceType, doc.ExternalID, doc.URL, doc.Title,
			doc.AuthorName, doc.AuthorEmail, doc.ContentText, doc.ContentHash, now,
		)
		if err != nil {
			return "", "", err
		}
		return id, DocCreated, nil

	case err != nil:
		return "", "", err

	case existingHash == doc.ContentHash:
		return existingID, DocUnchanged, nil

	default:
		now := time.Now().UTC()
		_, err := s.pool.Exec(ctx, `
UPDATE documents
SET connection_id = $2, url = $3, title = $4, author_name = $5, author_email = $6,
    content_text = $7, content_hash = $8, updated_at = $9
WHERE id = $1`,
			existingID, doc.ConnectionID, doc.URL, doc.Title, doc.AuthorName, doc.AuthorEmail,
			doc.ContentText, doc.ContentHash, now,
		)
		if err != nil {
			return "", "", err
		}
		return existingID, DocUpdated, nil
	}
}

// GetDocument loads a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	var d domain.Document
	err := s.pool.QueryRow(ctx, `
SELECT id, workspace_id, connection_id, source_type, external_id, url, title,
       author_name, author_email, content_text, content_hash, created_at, updated_at
FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.WorkspaceID, &d.ConnectionID, &d.SourceType, &d.ExternalID, &d.URL, &d.Title,
		&d.AuthorName, &d.AuthorEmail, &d.ContentText, &d.ContentHash, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, apierr.NotFound("document not found")
	}
	return d, err
}

// DocumentByIDOrNil returns (doc, true) if found, or (zero, false) on the
// benign not-found race described in spec §7 ("document missing during
// CHUNK" is logged and treated as success, not an error).
func (s *Store) DocumentByIDOrNil(ctx context.Context, id string) (domain.Document, bool, error) {
	d, err := s.GetDocument(ctx, id)
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) && apiErr.Code == apierr.CodeNotFound {
		return domain.Document{}, false, nil
	}
	if err != nil {
		return domain.Document{}, false, err
	}
	return d, true, nil
}
