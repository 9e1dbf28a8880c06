// Package embedclient is the embedding client (C3): batched remote
// text->vector with a fixed dimension and a stable model identifier.
// Grounded on the pack's openai-go embeddings provider shape
// (MrWong99-glyphoxa/pkg/provider/embeddings/openai), adapted to the v2
// SDK import paths and to the spec's fixed-order batch contract (§4.5).
package embedclient

import (
	"context"
	"fmt"
	"time"

	oai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/fenwick-labs/graphrag/internal/config"
	"github.com/fenwick-labs/graphrag/internal/observability"
)

// requestTimeout is the per-request cap named in spec §5 ("embeddings 30s").
const requestTimeout = 30 * time.Second

// Client wraps the OpenAI embeddings endpoint.
type Client struct {
	client oai.Client
	model  string
	dim    int
}

// New builds a Client from EmbeddingConfig.
func New(cfg config.EmbeddingConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedclient: OPENAI_API_KEY is required")
	}
	client := oai.NewClient(option.WithAPIKey(cfg.APIKey), option.WithHTTPClient(observability.NewHTTPClient(nil)))
	return &Client{client: client, model: cfg.Model, dim: cfg.Dim}, nil
}

// Dim returns the fixed embedding dimension D.
func (c *Client) Dim() int { return c.dim }

// Embed embeds a single string, used by the retrieval engine's query
// embedding stage (§4.9 stage 1).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds up to EMBED_BATCH texts in one request. The response
// order is normalized back to the input order by the API's per-item
// index field; a short response is an error, never silently accepted
// (§4.5: "batch response order must match the input order exactly;
// otherwise the batch fails").
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: c.model,
		Input: oai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Dimensions: param.NewOpt(int64(c.dim)),
	})
	if err != nil {
		return nil, fmt.Errorf("embedclient: embed batch: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedclient: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) < 0 || int(e.Index) >= len(texts) {
			return nil, fmt.Errorf("embedclient: out-of-range embedding index %d", e.Index)
		}
		out[e.Index] = float64ToFloat32(e.Embedding)
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embedclient: missing embedding for input index %d", i)
		}
	}
	return out, nil
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
