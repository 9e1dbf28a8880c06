// Package rerankclient is the optional cross-encoder reranker (C5), grounded
// on the teacher's reRankChunks (rerank.go): POST a {model, query, top_n,
// documents} payload, read back per-index relevance scores, and reorder.
// Disabled (nil Client) when RerankConfig.URL is empty, per spec §4.9
// stage 4: "else take the first top_k by similarity."
package rerankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/fenwick-labs/graphrag/internal/config"
	"github.com/fenwick-labs/graphrag/internal/logging"
	"github.com/fenwick-labs/graphrag/internal/observability"
)

const requestTimeout = 10 * time.Second

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	TopN      int      `json:"top_n"`
	Documents []string `json:"documents"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Model   string         `json:"model"`
	Object  string         `json:"object"`
	Results []rerankResult `json:"results"`
}

// Candidate is one item up for reranking, identified by its position in the
// input slice passed to Rerank.
type Candidate struct {
	ID   string
	Text string
}

// Scored pairs a Candidate with its cross-encoder relevance score.
type Scored struct {
	Candidate
	Score float64
}

// Client calls a remote reranker endpoint. New returns nil when the
// endpoint is unconfigured; callers must check for a nil *Client before use.
type Client struct {
	url   string
	model string
	http  *http.Client
}

// New returns nil when cfg.URL is empty, disabling reranking.
func New(cfg config.RerankConfig) *Client {
	if cfg.URL == "" {
		return nil
	}
	return &Client{url: cfg.URL, model: cfg.Model, http: observability.NewHTTPClient(nil)}
}

// Rerank scores each candidate against query and returns the top topK in
// descending score order.
func (c *Client) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Scored, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	documents := make([]string, len(candidates))
	for i, cand := range candidates {
		documents[i] = cand.Text
	}

	payload, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		TopN:      len(candidates),
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("rerankclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("rerankclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerankclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		logging.FromContext(ctx).Warn().Int("status", resp.StatusCode).RawJSON("body", observability.RedactJSON(body)).Msg("rerank request failed")
		return nil, fmt.Errorf("rerankclient: status %d", resp.StatusCode)
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("rerankclient: decode response: %w", err)
	}

	scores := make([]float64, len(candidates))
	for _, r := range out.Results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.RelevanceScore
		}
	}

	scored := make([]Scored, len(candidates))
	for i, cand := range candidates {
		scored[i] = Scored{Candidate: cand, Score: scores[i]}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}
