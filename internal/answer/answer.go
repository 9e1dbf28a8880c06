// Package answer implements the answer composer (C12): formats retrieved
// context into a citation-constrained prompt, calls the extraction client's
// model as an answer model, and parses strict JSON with citation-id
// filtering (spec §4.10).
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/fenwick-labs/graphrag/internal/config"
	"github.com/fenwick-labs/graphrag/internal/logging"
	"github.com/fenwick-labs/graphrag/internal/retrieve"
)

const requestTimeout = 60 * time.Second

const quoteLen = 200

const systemPrompt = `You may only use the information provided in the context below. ` +
	`Attach a citation after every claim using the exact chunk id in square brackets, e.g. [chunk-id]. ` +
	`Do not use outside knowledge. If the context does not answer the question, say so.

Respond with ONLY valid JSON: {"answer": "...", "cited_chunk_ids": ["..."]}`

// Citation is one chunk cited by the answer, filtered to ids present in
// the retrieved set (spec §4.10, S6).
type Citation struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	Quote      string `json:"quote"`
}

// Answer is the composed response.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// noContextAnswer is the canned response used when retrieval found nothing,
// per spec §4.10 and §7's "deterministic 'no relevant context' answer".
const noContextAnswer = "I don't have any relevant documents to answer this question."

// Composer wraps the answer-model call.
type Composer struct {
	sdk   anthropic.Client
	model string
}

// New builds a Composer from ExtractionConfig, since §2's C12 reuses XC as
// the answer model.
func New(cfg config.ExtractionConfig) *Composer {
	return &Composer{
		sdk:   anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model: cfg.Model,
	}
}

// Compose builds the prompt from a retrieval result and parses the model's
// strict JSON response.
func (c *Composer) Compose(ctx context.Context, prompt string, result retrieve.Result) Answer {
	if len(result.Chunks) == 0 {
		return Answer{Text: noContextAnswer, Citations: []Citation{}}
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	userMsg := buildUserMessage(prompt, result)

	resp, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   2048,
		Temperature: param.NewOpt(0.0),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userMsg))},
	})
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("answer model call failed")
		return Answer{Text: noContextAnswer, Citations: []Citation{}}
	}

	raw := concatText(resp)
	return parseAndFilter(raw, result)
}

func buildUserMessage(prompt string, result retrieve.Result) string {
	var b strings.Builder
	b.WriteString("Question: " + prompt + "\n\n")
	b.WriteString("=== CHUNKS ===\n")
	for _, ch := range result.Chunks {
		fmt.Fprintf(&b, "[%s] (%s, %s)\n%s\n\n", ch.ChunkID, ch.DocSourceType, ch.DocTitle, ch.Text)
	}
	if len(result.Facts) > 0 {
		b.WriteString("=== KNOWLEDGE GRAPH FACTS ===\n")
		for _, f := range result.Facts {
			fmt.Fprintf(&b, "%s --[%s]--> %s (evidence: %s)\n", f.FromName, f.RelType, f.ToName, f.Evidence)
		}
	}
	return b.String()
}

func parseAndFilter(raw string, result retrieve.Result) Answer {
	var parsed struct {
		Answer        string   `json:"answer"`
		CitedChunkIDs []string `json:"cited_chunk_ids"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		// On parse failure the raw string becomes the answer with no
		// citations, per §4.10.
		return Answer{Text: raw, Citations: []Citation{}}
	}

	byID := make(map[string]retrieve.ScoredChunk, len(result.Chunks))
	for _, ch := range result.Chunks {
		byID[ch.ChunkID] = ch
	}

	citations := make([]Citation, 0, len(parsed.CitedChunkIDs))
	for _, id := range parsed.CitedChunkIDs {
		ch, ok := byID[id]
		if !ok {
			continue
		}
		citations = append(citations, Citation{
			DocumentID: ch.DocumentID,
			ChunkID:    ch.ChunkID,
			URL:        ch.DocURL,
			Title:      ch.DocTitle,
			Quote:      truncate(ch.Text, quoteLen),
		})
	}

	return Answer{Text: parsed.Answer, Citations: citations}
}

func concatText(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
