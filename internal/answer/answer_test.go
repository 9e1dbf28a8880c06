package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-labs/graphrag/internal/pgs"
	"github.com/fenwick-labs/graphrag/internal/retrieve"
)

func TestParseAndFilterKeepsOnlyKnownChunkIDs(t *testing.T) {
	result := retrieve.Result{Chunks: []retrieve.ScoredChunk{
		{ChunkID: "c1", DocumentID: "d1", Text: "Alice works at Acme.", DocTitle: "Memo"},
	}}
	raw := `{"answer":"Alice works at Acme.","cited_chunk_ids":["c1","ghost"]}`

	out := parseAndFilter(raw, result)
	assert.Equal(t, "Alice works at Acme.", out.Text)
	require.Len(t, out.Citations, 1)
	assert.Equal(t, "c1", out.Citations[0].ChunkID)
	assert.Equal(t, "d1", out.Citations[0].DocumentID)
}

func TestParseAndFilterFallsBackToRawOnMalformedJSON(t *testing.T) {
	out := parseAndFilter("not json", retrieve.Result{})
	assert.Equal(t, "not json", out.Text)
	assert.Empty(t, out.Citations)
}

func TestTruncateShortensLongQuotes(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello world", 5))
	assert.Equal(t, "hi", truncate("hi", 5))
}

func TestBuildUserMessageIncludesChunksAndFacts(t *testing.T) {
	result := retrieve.Result{
		Chunks: []retrieve.ScoredChunk{{ChunkID: "c1", DocTitle: "Memo", DocSourceType: "email", Text: "body"}},
		Facts:  []pgs.Fact{{FromName: "Alice", RelType: "WORKS_AT", ToName: "Acme", Evidence: "Alice works at Acme."}},
	}
	msg := buildUserMessage("What happened?", result)
	assert.Contains(t, msg, "Question: What happened?")
	assert.Contains(t, msg, "[c1]")
	assert.Contains(t, msg, "body")
	assert.Contains(t, msg, "=== KNOWLEDGE GRAPH FACTS ===")
	assert.Contains(t, msg, "Alice --[WORKS_AT]--> Acme (evidence: Alice works at Acme.)")
}
