package pgs

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fenwick-labs/graphrag/internal/domain"
)

// node label prefixes; entity nodes are keyed by entityresolver.ResolveKey
// directly so MERGE semantics fall out of the (workspace_id, id) primary key
// (§4.8, I3). The key alone is not unique across tenants, so every node and
// edge also carries workspace_id, mirroring vectorstore.go's SimilaritySearch
// scoping (§3, P6/P7).
const (
	labelDocument = "Document"
	labelChunk    = "Chunk"
)

const relMentions = "MENTIONS"
const relPartOf = "PART_OF"

// Fact is one traversed edge, returned to the retrieval engine (§4.9 stage 6).
type Fact struct {
	FromKey  string
	FromName string
	RelType  string
	ToKey    string
	ToName   string
	Evidence string
}

// GraphStore is the typed node/edge half of the PGS, grounded on the
// teacher's pgGraph (postgres_graph.go): a generic labeled-node / typed-edge
// schema with JSONB props, upsert via ON CONFLICT.
type GraphStore struct {
	pool *pgxpool.Pool
}

func newGraphStore(ctx context.Context, pool *pgxpool.Pool) (*GraphStore, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS graph_nodes (
	workspace_id TEXT NOT NULL,
	id           TEXT NOT NULL,
	label        TEXT NOT NULL,
	props        JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (workspace_id, id)
);
CREATE TABLE IF NOT EXISTS graph_edges (
	id           BIGSERIAL PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	rel          TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	props        JSONB NOT NULL DEFAULT '{}'::jsonb,
	UNIQUE (workspace_id, source_id, rel, target_id)
);
CREATE INDEX IF NOT EXISTS graph_edges_src_rel_idx ON graph_edges(workspace_id, source_id, rel);
CREATE INDEX IF NOT EXISTS graph_edges_tgt_rel_idx ON graph_edges(workspace_id, target_id, rel);
`)
	if err != nil {
		return nil, err
	}
	return &GraphStore{pool: pool}, nil
}

func docNodeID(documentID string) string { return "document:" + documentID }
func chunkNodeID(chunkID string) string  { return "chunk:" + chunkID }

// UpsertDocumentNode MERGEs a Document node.
func (g *GraphStore) UpsertDocumentNode(ctx context.Context, doc domain.Document) error {
	return g.upsertNode(ctx, doc.WorkspaceID, docNodeID(doc.ID), labelDocument, map[string]any{
		"workspace_id": doc.WorkspaceID,
		"title":        doc.Title,
		"url":          doc.URL,
		"source_type":  doc.SourceType,
	})
}

// UpsertChunkNode MERGEs a Chunk node and its PART_OF edge to the document.
func (g *GraphStore) UpsertChunkNode(ctx context.Context, chunk domain.Chunk) error {
	if err := g.upsertNode(ctx, chunk.WorkspaceID, chunkNodeID(chunk.ID), labelChunk, map[string]any{
		"workspace_id": chunk.WorkspaceID,
		"document_id":  chunk.DocumentID,
		"idx":          chunk.Idx,
	}); err != nil {
		return err
	}
	return g.upsertEdge(ctx, chunk.WorkspaceID, chunkNodeID(chunk.ID), relPartOf, docNodeID(chunk.DocumentID), nil)
}

// UpsertEntityNode MERGEs a Person/Company/Topic node keyed by its resolved
// entity key scoped to workspaceID, so repeated extraction runs within the
// same tenant collapse onto the same node (I3) without merging across
// tenants that happen to resolve the same key (P6).
func (g *GraphStore) UpsertEntityNode(ctx context.Context, workspaceID, key string, entityType domain.EntityType, name string) error {
	return g.upsertNode(ctx, workspaceID, key, string(entityType), map[string]any{"name": name})
}

// UpsertMentionEdge records a document (and optionally chunk) mentioning an
// entity, carrying evidence text as edge props.
func (g *GraphStore) UpsertMentionEdge(ctx context.Context, workspaceID, documentID, chunkID, entityKey, evidence string) error {
	from := docNodeID(documentID)
	if chunkID != "" {
		from = chunkNodeID(chunkID)
	}
	return g.upsertEdge(ctx, workspaceID, from, relMentions, entityKey, map[string]any{"evidence": evidence})
}

// UpsertRelationEdge records a typed relation between two resolved entity
// keys. relType is stored as given; callers normalize it first (see
// pipeline.normalizeRelationType).
func (g *GraphStore) UpsertRelationEdge(ctx context.Context, workspaceID, fromKey, relType, toKey, evidence string, qualifiers map[string]any) error {
	props := map[string]any{"evidence": evidence}
	for k, v := range qualifiers {
		props[k] = v
	}
	return g.upsertEdge(ctx, workspaceID, fromKey, relType, toKey, props)
}

func (g *GraphStore) upsertNode(ctx context.Context, workspaceID, id, label string, props map[string]any) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = g.pool.Exec(ctx, `
INSERT INTO graph_nodes (workspace_id, id, label, props) VALUES ($1, $2, $3, $4)
ON CONFLICT (workspace_id, id) DO UPDATE SET label = EXCLUDED.label, props = graph_nodes.props || EXCLUDED.props`,
		workspaceID, id, label, raw,
	)
	return err
}

func (g *GraphStore) upsertEdge(ctx context.Context, workspaceID, sourceID, rel, targetID string, props map[string]any) error {
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = g.pool.Exec(ctx, `
INSERT INTO graph_edges (workspace_id, source_id, rel, target_id, props) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (workspace_id, source_id, rel, target_id) DO UPDATE SET props = graph_edges.props || EXCLUDED.props`,
		workspaceID, sourceID, rel, targetID, raw,
	)
	return err
}

// DeleteDocumentGraph removes a document's chunk nodes and mention edges
// before a re-chunk/re-extract, keeping entity nodes (shared across
// documents within the tenant) intact.
func (g *GraphStore) DeleteDocumentGraph(ctx context.Context, workspaceID, documentID string) error {
	_, err := g.pool.Exec(ctx, `
DELETE FROM graph_edges WHERE workspace_id = $1 AND (source_id = $2 OR source_id IN (
	SELECT id FROM graph_nodes WHERE workspace_id = $1 AND label = 'Chunk' AND props->>'document_id' = $3
))`, workspaceID, docNodeID(documentID), documentID)
	if err != nil {
		return err
	}
	_, err = g.pool.Exec(ctx, `DELETE FROM graph_nodes WHERE workspace_id = $1 AND label = 'Chunk' AND props->>'document_id' = $2`, workspaceID, documentID)
	return err
}

// Traverse performs a bounded breadth-first walk from seedKeys out to depth
// hops within workspaceID, capped at maxFacts total edges (§4.9 stage 6, §5
// "traversal is capped, not streamed").
func (g *GraphStore) Traverse(ctx context.Context, workspaceID string, seedKeys []string, depth, maxFacts int) ([]Fact, error) {
	if len(seedKeys) == 0 || depth <= 0 {
		return nil, nil
	}

	frontier := append([]string{}, seedKeys...)
	visited := make(map[string]bool, len(seedKeys))
	for _, k := range seedKeys {
		visited[k] = true
	}

	var facts []Fact
	for hop := 0; hop < depth && len(frontier) > 0 && len(facts) < maxFacts; hop++ {
		rows, err := g.pool.Query(ctx, `
SELECT e.source_id, sn.props->>'name', e.rel, e.target_id, tn.props->>'name', e.props->>'evidence'
FROM graph_edges e
JOIN graph_nodes sn ON sn.workspace_id = e.workspace_id AND sn.id = e.source_id
JOIN graph_nodes tn ON tn.workspace_id = e.workspace_id AND tn.id = e.target_id
WHERE e.workspace_id = $1 AND (e.source_id = ANY($2) OR e.target_id = ANY($2))
LIMIT $3`, workspaceID, frontier, maxFacts-len(facts))
		if err != nil {
			return nil, err
		}

		var next []string
		for rows.Next() {
			var f Fact
			if err := rows.Scan(&f.FromKey, &f.FromName, &f.RelType, &f.ToKey, &f.ToName, &f.Evidence); err != nil {
				rows.Close()
				return nil, err
			}
			facts = append(facts, f)
			for _, k := range []string{f.FromKey, f.ToKey} {
				if !visited[k] {
					visited[k] = true
					next = append(next, k)
				}
			}
			if len(facts) >= maxFacts {
				break
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		frontier = next
	}
	return facts, nil
}
