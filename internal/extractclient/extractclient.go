// Package extractclient is the extraction client (C4): an
// anthropics/anthropic-sdk-go Messages call returning strictly-shaped
// entity/relation JSON. Prompt and schema are ported from
// original_source/backend/app/processing/extraction.py's SYSTEM_PROMPT and
// USER_TEMPLATE; the SDK call pattern is grounded on the teacher's
// internal/llm/anthropic.Client (message construction, content-block walk).
package extractclient

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
	"github.com/fenwick-labs/graphrag/internal/observability"
)

// requestTimeout matches spec §5 ("LLM 60s").
const requestTimeout = 60 * time.Second

// maxContentChars is the §4.7 truncation bound.
const maxContentChars = 8000

const systemPrompt = `You are an entity extraction system. Given a document, extract entities and relations.

Return ONLY valid JSON matching this schema:
{
  "entities": [
    {"type": "Person|Company|Topic", "name": "...", "email": "...", "domain": "...", "evidence": "..."}
  ],
  "relations": [
    {"from_name": "...", "to_name": "...", "type": "...", "evidence": "...", "qualifiers": {"time": "...", "location": "...", "confidence": 0.0}}
  ]
}

Rules:
- type must be one of: Person, Company, Topic
- For Person include email if available; for Company include domain if available
- For Topic use a short normalized label (2-4 words max)
- evidence must be a short span from the text (max 120 chars)
- Only extract entities actually mentioned in the text; do not hallucinate
- If no entities found, return {"entities": [], "relations": []}`

// Entity is the raw LLM-extracted entity shape (pre key-resolution).
type Entity struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Evidence string `json:"evidence,omitempty"`
}

// Qualifiers carries the optional relation qualifiers.
type Qualifiers struct {
	Time       string  `json:"time,omitempty"`
	Location   string  `json:"location,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Relation is the raw LLM-extracted relation shape (pre key-resolution).
type Relation struct {
	FromName   string     `json:"from_name"`
	ToName     string     `json:"to_name"`
	Type       string     `json:"type"`
	Evidence   string     `json:"evidence,omitempty"`
	Qualifiers Qualifiers `json:"qualifiers,omitempty"`
}

// Result is the raw extraction payload before post-processing (§4.7).
type Result struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// DocumentInput is the (document_text, title, author_name, author_email,
// source_type) tuple the client contract names.
type DocumentInput struct {
	ContentText string
	Title       string
	AuthorName  string
	AuthorEmail string
	SourceType  string
}

// Client wraps the Anthropic Messages API for extraction calls.
type Client struct {
	sdk   anthropic.Client
	model string
}

// New builds a Client from ExtractionConfig.
func New(cfg config.ExtractionConfig) *Client {
	return &Client{
		sdk:   anthropic.NewClient(option.WithAPIKey(cfg.APIKey), option.WithHTTPClient(observability.NewHTTPClient(nil))),
		model: cfg.Model,
	}
}

// Extract calls the model at temperature 0 and parses strict JSON. A
// transient failure of the SDK call itself (network, timeout, 5xx) is
// wrapped and returned so the job runner requeues with backoff (§7); only a
// parse failure on an otherwise-successful response is swallowed to the
// empty {entities:[], relations:[]} value, with a warning logged (§4.7, §7
// "malformed model output").
func (c *Client) Extract(ctx context.Context, in DocumentInput) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	content := in.ContentText
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	userMsg := buildUserMessage(in, content)

	resp, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   4096,
		Temperature: param.NewOpt(0.0),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userMsg))},
	})
	if err != nil {
		return Result{}, fmt.Errorf("extractclient: extract: %w", err)
	}

	raw := concatText(resp)
	var out Result
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("raw_prefix", truncate(raw, 200)).Msg("failed to parse extraction JSON")
		return Result{}, nil
	}
	return out, nil
}

func buildUserMessage(in DocumentInput, content string) string {
	title := in.Title
	if title == "" {
		title = "(no title)"
	}
	author := in.AuthorName
	if author == "" {
		author = "unknown"
	}
	email := in.AuthorEmail
	if email == "" {
		email = "unknown"
	}
	source := in.SourceType
	if source == "" {
		source = "unknown"
	}

	var b strings.Builder
	b.WriteString("Extract entities and relations from this document.\n\n")
	b.WriteString("Title: " + title + "\n")
	b.WriteString("Author: " + author + " <" + email + ">\n")
	b.WriteString("Source: " + source + "\n\n")
	b.WriteString("Content:\n")
	b.WriteString(content)
	return b.String()
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
