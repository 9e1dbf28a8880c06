// Package ingest is the ingestion boundary (C13): content normalization
// plus the dedup-by-hash entry point that hands a canonical document to RS
// and fans out PROCESS_DOCUMENT. Grounded on
// original_source/backend/app/api/ingest.py's ingest_document handler,
// translated from the SQLAlchemy on_conflict_do_update path to
// rs.Store.UpsertDocument + jobqueue.Queue.EnqueueIfAbsent.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fenwick-labs/graphrag/internal/domain"
	"github.com/fenwick-labs/graphrag/internal/jobqueue"
	"github.com/fenwick-labs/graphrag/internal/rs"
)

// ContentType discriminates the raw payload a caller hands to IngestDocument
// so it can be normalized to plain text before hashing (§4.11). ContentText
// callers that already hold extracted text leave this at ContentText.
type ContentType string

const (
	ContentText ContentType = "text"
	ContentHTML ContentType = "html"
	ContentPDF  ContentType = "pdf"
	ContentXLSX ContentType = "xlsx"
)

// DocumentInput is the caller-supplied shape before hashing and dedup. For
// ContentType values other than ContentText, RawContent holds the
// not-yet-normalized bytes and ContentText is ignored.
type DocumentInput struct {
	WorkspaceID  string
	ConnectionID string
	SourceType   string
	ExternalID   string
	URL          string
	Title        string
	AuthorName   string
	AuthorEmail  string
	ContentText  string
	ContentType  ContentType
	RawContent   []byte
}

// normalize dispatches RawContent through the matching Normalize* function,
// filling in ContentText (and Title, when the source supplies one and the
// caller didn't) before the document is hashed.
func normalize(in *DocumentInput) error {
	switch in.ContentType {
	case "", ContentText:
		return nil
	case ContentHTML:
		title, markdown, err := NormalizeHTML(string(in.RawContent), in.URL)
		if err != nil {
			return err
		}
		in.ContentText = markdown
		if in.Title == "" {
			in.Title = title
		}
		return nil
	case ContentPDF:
		text, err := NormalizePDF(bytes.NewReader(in.RawContent), int64(len(in.RawContent)))
		if err != nil {
			return err
		}
		in.ContentText = text
		return nil
	case ContentXLSX:
		text, err := NormalizeXLSX(bytes.NewReader(in.RawContent))
		if err != nil {
			return err
		}
		in.ContentText = text
		return nil
	default:
		return fmt.Errorf("ingest: unknown content type %q", in.ContentType)
	}
}

// Result mirrors the original handler's IngestDocumentResponse shape.
type Result struct {
	DocumentID string
	Status     rs.DocUpsertStatus
}

// Ingester wraps RS and the job queue.
type Ingester struct {
	rs    *rs.Store
	queue *jobqueue.Queue
}

func New(store *rs.Store, queue *jobqueue.Queue) *Ingester {
	return &Ingester{rs: store, queue: queue}
}

// IngestDocument hashes the content, upserts by (workspace_id, source_type,
// external_id), and enqueues PROCESS_DOCUMENT unless the content was
// unchanged (§4.1: "unchanged documents never re-enter the pipeline").
func (ig *Ingester) IngestDocument(ctx context.Context, in DocumentInput) (Result, error) {
	if err := normalize(&in); err != nil {
		return Result{}, err
	}

	doc := domain.Document{
		WorkspaceID:  in.WorkspaceID,
		ConnectionID: in.ConnectionID,
		SourceType:   in.SourceType,
		ExternalID:   in.ExternalID,
		URL:          in.URL,
		Title:        in.Title,
		AuthorName:   in.AuthorName,
		AuthorEmail:  in.AuthorEmail,
		ContentText:  in.ContentText,
		ContentHash:  contentHash(in.ContentText),
	}

	id, status, err := ig.rs.UpsertDocument(ctx, doc)
	if err != nil {
		return Result{}, err
	}

	if status != rs.DocUnchanged {
		payload := map[string]string{"document_id": id}
		if _, err := ig.queue.EnqueueIfAbsent(ctx, in.WorkspaceID, domain.JobProcessDocument, id, payload); err != nil {
			return Result{}, err
		}
	}

	return Result{DocumentID: id, Status: status}, nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
