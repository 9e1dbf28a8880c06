// Package retrieve implements the retrieval engine (C11): the seven-stage
// query -> embedding -> pre-filtered vector search -> rerank -> seed
// entities -> graph traversal -> document enrichment pipeline (spec §4.9).
package retrieve

import (
	"context"
	"sort"

	"github.com/fenwick-labs/graphrag/internal/config"
	"github.com/fenwick-labs/graphrag/internal/embedclient"
	"github.com/fenwick-labs/graphrag/internal/pgs"
	"github.com/fenwick-labs/graphrag/internal/rerankclient"
	"github.com/fenwick-labs/graphrag/internal/rs"
)

// maxTraversalFacts is the §4.9 stage 6 hard cap.
const maxTraversalFacts = 100

// maxTraversalDepth is the per-stage 6 "min(depth,3)" bound.
const maxTraversalDepth = 3

// ScoredChunk is one retrieved chunk enriched with its parent document's
// display fields (stage 7).
type ScoredChunk struct {
	ChunkID       string
	DocumentID    string
	Text          string
	StartOffset   int
	EndOffset     int
	Score         float64
	DocTitle      string
	DocURL        string
	DocSourceType string
}

// SeedEntity is one entity reachable from the retrieved chunks' documents
// (stage 5).
type SeedEntity struct {
	Key  string
	Type string
	Name string
}

// Result is the RE output consumed by the answer composer.
type Result struct {
	Chunks       []ScoredChunk
	Facts        []pgs.Fact
	SeedEntities []SeedEntity
}

// Query is the RE input (spec §4.9 "Inputs").
type Query struct {
	WorkspaceID string
	Prompt      string
	VaultIDs    []string
	Depth       int
	TopK        int
}

// Engine wires together the stores and clients the seven stages need.
type Engine struct {
	rs     *rs.Store
	pgs    *pgs.Store
	embed  *embedclient.Client
	rerank *rerankclient.Client
	cfg    config.RetrievalConfig
}

// New builds an Engine. rerank may be nil, disabling stage 4's cross-encoder
// pass (§4.9 stage 4, "else take the first top_k by similarity").
func New(store *rs.Store, graph *pgs.Store, embed *embedclient.Client, rerank *rerankclient.Client, cfg config.RetrievalConfig) *Engine {
	return &Engine{rs: store, pgs: graph, embed: embed, rerank: rerank, cfg: cfg}
}

// Retrieve runs the full seven-stage pipeline.
func (e *Engine) Retrieve(ctx context.Context, q Query) (Result, error) {
	depth := q.Depth
	if depth <= 0 {
		depth = e.cfg.DefaultDepth
	}
	if depth > maxTraversalDepth {
		depth = maxTraversalDepth
	}
	topK := q.TopK
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}

	// Stage 1: query embedding.
	vec, err := e.embed.Embed(ctx, q.Prompt)
	if err != nil {
		return Result{}, err
	}

	// Stage 2: connection scope.
	var connIDs []string
	if len(q.VaultIDs) > 0 {
		connIDs, err = e.rs.ConnectionIDsForVaults(ctx, q.VaultIDs)
		if err != nil {
			return Result{}, err
		}
		if len(connIDs) == 0 {
			return Result{}, nil
		}
	}

	// Stage 3: pre-filtered vector search, widened by the rerank multiplier
	// so stage 4 has a real candidate pool to work with.
	multiplier := e.cfg.RerankMultiple
	if multiplier <= 0 {
		multiplier = 1
	}
	candidateK := topK * multiplier
	hits, err := e.pgs.Vectors.SimilaritySearch(ctx, q.WorkspaceID, connIDs, vec, candidateK)
	if err != nil {
		return Result{}, err
	}
	if len(hits) == 0 {
		return Result{}, nil
	}

	// Hydrate candidate text/offsets from RS before reranking or enrichment.
	candidates := make([]ScoredChunk, 0, len(hits))
	for _, h := range hits {
		chunks, err := e.rs.ChunksForDocument(ctx, h.DocumentID)
		if err != nil {
			return Result{}, err
		}
		for _, c := range chunks {
			if c.ID != h.ChunkID {
				continue
			}
			candidates = append(candidates, ScoredChunk{
				ChunkID: c.ID, DocumentID: c.DocumentID, Text: c.Text,
				StartOffset: c.StartOffset, EndOffset: c.EndOffset, Score: h.Score,
			})
			break
		}
	}

	// Stage 4: optional rerank.
	top := e.rerankOrTruncate(ctx, q.Prompt, candidates, topK)

	// Stage 7 (pulled forward ahead of stages 5-6): document enrichment.
	docCache := map[string]struct{ title, url, sourceType string }{}
	for i, ch := range top {
		info, ok := docCache[ch.DocumentID]
		if !ok {
			doc, err := e.rs.GetDocument(ctx, ch.DocumentID)
			if err != nil {
				continue
			}
			info = struct{ title, url, sourceType string }{doc.Title, doc.URL, doc.SourceType}
			docCache[ch.DocumentID] = info
		}
		top[i].DocTitle = info.title
		top[i].DocURL = info.url
		top[i].DocSourceType = info.sourceType
	}

	// Stage 5: seed entities, from the RS entity mentions of each distinct
	// document.
	seedKeys, seeds := e.seedEntities(ctx, top)

	// Stage 6: bounded graph traversal.
	var facts []pgs.Fact
	if len(seedKeys) > 0 {
		facts, err = e.pgs.Graph.Traverse(ctx, q.WorkspaceID, seedKeys, depth, maxTraversalFacts)
		if err != nil {
			return Result{}, err
		}
	}

	return Result{Chunks: top, Facts: facts, SeedEntities: seeds}, nil
}

func (e *Engine) rerankOrTruncate(ctx context.Context, prompt string, candidates []ScoredChunk, topK int) []ScoredChunk {
	if e.rerank == nil {
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
		if topK < len(candidates) {
			return candidates[:topK]
		}
		return candidates
	}

	rcCandidates := make([]rerankclient.Candidate, len(candidates))
	for i, c := range candidates {
		rcCandidates[i] = rerankclient.Candidate{ID: c.ChunkID, Text: c.Text}
	}
	scored, err := e.rerank.Rerank(ctx, prompt, rcCandidates, topK)
	if err != nil {
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
		if topK < len(candidates) {
			return candidates[:topK]
		}
		return candidates
	}

	byID := make(map[string]ScoredChunk, len(candidates))
	for _, c := range candidates {
		byID[c.ChunkID] = c
	}
	out := make([]ScoredChunk, 0, len(scored))
	for _, s := range scored {
		ch := byID[s.ID]
		ch.Score = s.Score
		out = append(out, ch)
	}
	return out
}

func (e *Engine) seedEntities(ctx context.Context, chunks []ScoredChunk) ([]string, []SeedEntity) {
	seen := map[string]bool{}
	docIDs := map[string]bool{}
	for _, c := range chunks {
		docIDs[c.DocumentID] = true
	}

	var keys []string
	var seeds []SeedEntity
	for docID := range docIDs {
		mentions, err := e.rs.MentionsForDocument(ctx, docID)
		if err != nil {
			continue
		}
		for _, m := range mentions {
			if seen[m.EntityKey] {
				continue
			}
			seen[m.EntityKey] = true
			keys = append(keys, m.EntityKey)
			seeds = append(seeds, SeedEntity{Key: m.EntityKey, Type: string(m.EntityType), Name: m.EntityName})
		}
	}
	return keys, seeds
}
