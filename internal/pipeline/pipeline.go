// Package pipeline implements the five job handlers PROCESS_DOCUMENT,
// CHUNK_DOCUMENT, EMBED_CHUNKS, EXTRACT_ENTITIES_RELATIONS and
// UPSERT_GRAPH as worker.Handler funcs (spec §4.3-§4.8). Each handler is a
// thin orchestration layer over rs/pgs/chunker/entityresolver/embedclient/
// extractclient; none of them hold state across calls (I6, idempotency).
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fenwick-labs/graphrag/internal/chunker"
	"github.com/fenwick-labs/graphrag/internal/domain"
	"github.com/fenwick-labs/graphrag/internal/embedclient"
	"github.com/fenwick-labs/graphrag/internal/entityresolver"
	"github.com/fenwick-labs/graphrag/internal/extractclient"
	"github.com/fenwick-labs/graphrag/internal/jobqueue"
	"github.com/fenwick-labs/graphrag/internal/logging"
	"github.com/fenwick-labs/graphrag/internal/pgs"
	"github.com/fenwick-labs/graphrag/internal/rs"
	"github.com/fenwick-labs/graphrag/internal/worker"
)

// ignoreDomains is the free-mail-provider set ported from
// original_source/backend/app/processing/extraction.py's IGNORE_DOMAINS;
// a Company entity is never heuristically created for these.
var ignoreDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true, "hotmail.com": true,
	"outlook.com": true, "gmx.de": true, "gmx.net": true, "web.de": true,
	"icloud.com": true, "me.com": true, "t-online.de": true, "live.com": true,
	"aol.com": true, "protonmail.com": true, "proton.me": true, "mail.com": true,
}

// Handlers bundles the dependencies every pipeline stage needs.
type Handlers struct {
	RS             *rs.Store
	PGS            *pgs.Store
	Queue          *jobqueue.Queue
	Embed          *embedclient.Client
	Extract        *extractclient.Client
	EmbedBatchSize int
}

// Registry builds the worker.Registry mapping each JobType to its handler.
func (h *Handlers) Registry() worker.Registry {
	return worker.Registry{
		domain.JobProcessDocument:          h.ProcessDocument,
		domain.JobChunkDocument:            h.ChunkDocument,
		domain.JobEmbedChunks:              h.EmbedChunks,
		domain.JobExtractEntitiesRelations: h.ExtractEntitiesRelations,
		domain.JobUpsertGraph:              h.UpsertGraph,
	}
}

type documentPayload struct {
	DocumentID string `json:"document_id"`
}

func parseDocumentID(payload []byte) (string, error) {
	var p documentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("pipeline: malformed payload: %w", err)
	}
	if p.DocumentID == "" {
		return "", fmt.Errorf("pipeline: payload missing document_id")
	}
	return p.DocumentID, nil
}

// ProcessDocument (§4.3) is the pipeline's entry handler: it does no work of
// its own beyond fanning out to CHUNK_DOCUMENT, so that ingestion never
// blocks on chunking/embedding/extraction latency.
func (h *Handlers) ProcessDocument(ctx context.Context, workspaceID string, payload []byte) error {
	docID, err := parseDocumentID(payload)
	if err != nil {
		return err
	}
	_, _, err = h.RS.DocumentByIDOrNil(ctx, docID)
	if err != nil {
		return err
	}
	_, err = h.Queue.EnqueueIfAbsent(ctx, workspaceID, domain.JobChunkDocument, docID, documentPayload{DocumentID: docID})
	return err
}

// ChunkDocument (§4.4) loads the document, re-chunks deterministically, and
// replaces the stored chunk set before fanning out to EMBED_CHUNKS and
// EXTRACT_ENTITIES_RELATIONS.
func (h *Handlers) ChunkDocument(ctx context.Context, workspaceID string, payload []byte) error {
	docID, err := parseDocumentID(payload)
	if err != nil {
		return err
	}

	doc, ok, err := h.RS.DocumentByIDOrNil(ctx, docID)
	if err != nil {
		return err
	}
	if !ok {
		logging.FromContext(ctx).Warn().Str("document_id", docID).Msg("document vanished before chunking, skipping")
		return nil
	}

	raw := chunker.Chunk(doc.ContentText, chunker.DefaultSize, chunker.DefaultOverlap)
	chunks := make([]domain.Chunk, len(raw))
	for i, c := range raw {
		chunks[i] = domain.Chunk{Idx: c.Idx, Text: c.Text, StartOffset: c.StartOffset, EndOffset: c.EndOffset}
	}

	stored, err := h.RS.ReplaceChunks(ctx, workspaceID, docID, chunks)
	if err != nil {
		return err
	}

	// Drop the prior re-chunk's Chunk nodes/edges and chunk vectors before
	// re-upserting, so a re-chunk never leaves orphaned graph rows or stale
	// vectors behind (§4.4).
	if err := h.PGS.Graph.DeleteDocumentGraph(ctx, workspaceID, docID); err != nil {
		return err
	}
	if err := h.PGS.Vectors.DeleteDocumentVectors(ctx, docID); err != nil {
		return err
	}

	if err := h.PGS.Graph.UpsertDocumentNode(ctx, doc); err != nil {
		return err
	}
	for _, c := range stored {
		if err := h.PGS.Graph.UpsertChunkNode(ctx, c); err != nil {
			return err
		}
	}

	if _, err := h.Queue.EnqueueIfAbsent(ctx, workspaceID, domain.JobEmbedChunks, docID, documentPayload{DocumentID: docID}); err != nil {
		return err
	}
	_, err = h.Queue.EnqueueIfAbsent(ctx, workspaceID, domain.JobExtractEntitiesRelations, docID, documentPayload{DocumentID: docID})
	return err
}

// EmbedChunks (§4.5) batches a document's chunks through EC and writes the
// resulting vectors into the PGS vector index.
func (h *Handlers) EmbedChunks(ctx context.Context, workspaceID string, payload []byte) error {
	docID, err := parseDocumentID(payload)
	if err != nil {
		return err
	}

	doc, ok, err := h.RS.DocumentByIDOrNil(ctx, docID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	chunks, err := h.RS.ChunksForDocument(ctx, docID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	batchSize := h.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := h.Embed.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i, c := range batch {
			if err := h.PGS.Vectors.UpsertChunkVector(ctx, workspaceID, doc.ConnectionID, docID, c.ID, vectors[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExtractEntitiesRelations (§4.7) calls XC, augments with heuristic
// entities derived from the document's author header, resolves every
// entity to a stable key, links evidence to chunks by substring match, and
// replaces the document's stored mentions.
func (h *Handlers) ExtractEntitiesRelations(ctx context.Context, workspaceID string, payload []byte) error {
	docID, err := parseDocumentID(payload)
	if err != nil {
		return err
	}

	doc, ok, err := h.RS.DocumentByIDOrNil(ctx, docID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	chunks, err := h.RS.ChunksForDocument(ctx, docID)
	if err != nil {
		return err
	}

	result, err := h.Extract.Extract(ctx, extractclient.DocumentInput{
		ContentText: doc.ContentText,
		Title:       doc.Title,
		AuthorName:  doc.AuthorName,
		AuthorEmail: doc.AuthorEmail,
		SourceType:  doc.SourceType,
	})
	if err != nil {
		return err
	}
	result.Entities = append(result.Entities, dedupeEntities(result.Entities, heuristicEntities(doc.AuthorName, doc.AuthorEmail))...)

	mentions := make([]domain.EntityMention, 0, len(result.Entities))
	for _, e := range result.Entities {
		etype := domain.EntityType(e.Type)
		key := entityresolver.ResolveKey(entityresolver.Entity{Type: etype, Name: e.Name, Email: e.Email, Domain: e.Domain})
		chunkID := findEvidenceChunk(chunks, e.Evidence)
		mentions = append(mentions, domain.EntityMention{
			WorkspaceID: workspaceID, DocumentID: docID, ChunkID: chunkID,
			EntityKey: key, EntityType: etype, EntityName: e.Name, Confidence: 1.0,
		})
	}

	if err := h.RS.ReplaceMentions(ctx, workspaceID, docID, mentions); err != nil {
		return err
	}

	_, err = h.Queue.EnqueueIfAbsent(ctx, workspaceID, domain.JobUpsertGraph, docID, upsertGraphPayload{
		DocumentID: docID,
		Entities:   result.Entities,
		Relations:  result.Relations,
	})
	return err
}

// dedupeEntities drops any heuristic entity whose name already appears
// (case-insensitively) among existing, ported from the original
// extract_entities_relations' existing_names set so the author's own
// name/company isn't double-counted when XC already extracted it from the
// document body.
func dedupeEntities(existing, heuristic []extractclient.Entity) []extractclient.Entity {
	existingNames := make(map[string]bool, len(existing))
	for _, e := range existing {
		existingNames[strings.ToLower(e.Name)] = true
	}
	out := make([]extractclient.Entity, 0, len(heuristic))
	for _, e := range heuristic {
		if existingNames[strings.ToLower(e.Name)] {
			continue
		}
		out = append(out, e)
	}
	return out
}

func heuristicEntities(authorName, authorEmail string) []extractclient.Entity {
	var out []extractclient.Entity
	if authorEmail == "" {
		return out
	}
	at := strings.IndexByte(authorEmail, '@')
	if at < 0 {
		return out
	}
	name := authorName
	if name == "" {
		name = authorEmail[:at]
	}
	out = append(out, extractclient.Entity{Type: string(domain.EntityPerson), Name: name, Email: authorEmail})

	domainPart := strings.ToLower(authorEmail[at+1:])
	if !ignoreDomains[domainPart] {
		company := domainPart
		if dot := strings.IndexByte(company, '.'); dot > 0 {
			company = company[:dot]
		}
		out = append(out, extractclient.Entity{Type: string(domain.EntityCompany), Name: strings.ToUpper(company[:1]) + company[1:], Domain: domainPart})
	}
	return out
}

// findEvidenceChunk returns the id of the first chunk whose text contains
// evidence, or "" when no chunk matches (§4.7 step 3, "best-effort, may be
// empty"). The match is case-insensitive since the model may not preserve
// the source's exact casing.
func findEvidenceChunk(chunks []domain.Chunk, evidence string) string {
	if evidence == "" {
		return ""
	}
	needle := strings.ToLower(evidence)
	for _, c := range chunks {
		if strings.Contains(strings.ToLower(c.Text), needle) {
			return c.ID
		}
	}
	return ""
}
