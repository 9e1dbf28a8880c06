package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/fenwick-labs/graphrag/internal/domain"
	"github.com/fenwick-labs/graphrag/internal/entityresolver"
	"github.com/fenwick-labs/graphrag/internal/extractclient"
)

const maxEvidenceChars = 200

// upsertGraphPayload is the UPSERT_GRAPH job payload: the raw extraction
// result plus the document_id the queue's payload-parsing helpers expect.
type upsertGraphPayload struct {
	DocumentID string                   `json:"document_id"`
	Entities   []extractclient.Entity   `json:"entities"`
	Relations  []extractclient.Relation `json:"relations"`
}

var entityTypeLabel = map[string]domain.EntityType{
	"person":  domain.EntityPerson,
	"company": domain.EntityCompany,
	"topic":   domain.EntityTopic,
}

// UpsertGraph (§4.8) MERGEs entity nodes, MENTIONS edges, and typed relation
// edges into the PGS from the EXTRACT_ENTITIES_RELATIONS result carried in
// the job payload. Every write is MERGE-shaped, so replay under at-least-once
// delivery is a no-op (I6).
func (h *Handlers) UpsertGraph(ctx context.Context, workspaceID string, payload []byte) error {
	docID, err := parseDocumentID(payload)
	if err != nil {
		return err
	}

	var result upsertGraphPayload
	if err := json.Unmarshal(payload, &result); err != nil {
		return err
	}

	keyByName := make(map[string]string, len(result.Entities))
	for _, e := range result.Entities {
		etype := coerceEntityType(e.Type)
		key := entityresolver.ResolveKey(entityresolver.Entity{Type: etype, Name: e.Name, Email: e.Email, Domain: e.Domain})
		keyByName[e.Name] = key

		if err := h.PGS.Graph.UpsertEntityNode(ctx, workspaceID, key, etype, e.Name); err != nil {
			return err
		}
		if err := h.PGS.Graph.UpsertMentionEdge(ctx, workspaceID, docID, "", key, truncate(e.Evidence, maxEvidenceChars)); err != nil {
			return err
		}
	}

	for _, r := range result.Relations {
		fromKey, ok := keyByName[r.FromName]
		if !ok {
			continue
		}
		toKey, ok := keyByName[r.ToName]
		if !ok {
			continue
		}
		relType := normalizeRelationType(r.Type)
		qualifiers := map[string]any{"document_id": docID}
		if r.Qualifiers.Time != "" {
			qualifiers["time"] = r.Qualifiers.Time
		}
		if r.Qualifiers.Location != "" {
			qualifiers["location"] = r.Qualifiers.Location
		}
		if err := h.PGS.Graph.UpsertRelationEdge(ctx, workspaceID, fromKey, relType, toKey, truncate(r.Evidence, maxEvidenceChars), qualifiers); err != nil {
			return err
		}
	}
	return nil
}

func coerceEntityType(raw string) domain.EntityType {
	if t, ok := entityTypeLabel[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return domain.EntityTopic
}

// normalizeRelationType ports the original normalize_relation_type:
// upper(rel.type).replace(' ', '_'), defaulting to RELATED_TO.
func normalizeRelationType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "RELATED_TO"
	}
	return strings.ToUpper(strings.ReplaceAll(raw, " ", "_"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
