package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-labs/graphrag/internal/domain"
	"github.com/fenwick-labs/graphrag/internal/extractclient"
)

func TestParseDocumentIDExtractsField(t *testing.T) {
	id, err := parseDocumentID([]byte(`{"document_id":"doc-1"}`))
	assert.NoError(t, err)
	assert.Equal(t, "doc-1", id)
}

func TestParseDocumentIDRejectsMissingField(t *testing.T) {
	_, err := parseDocumentID([]byte(`{}`))
	assert.Error(t, err)
}

func TestParseDocumentIDRejectsMalformedPayload(t *testing.T) {
	_, err := parseDocumentID([]byte(`not json`))
	assert.Error(t, err)
}

func TestHeuristicEntitiesDerivesPersonAndCompany(t *testing.T) {
	out := heuristicEntities("Alice Smith", "alice@acme.com")
	assert.Len(t, out, 2)
	assert.Equal(t, string(domain.EntityPerson), out[0].Type)
	assert.Equal(t, "Alice Smith", out[0].Name)
	assert.Equal(t, string(domain.EntityCompany), out[1].Type)
	assert.Equal(t, "Acme", out[1].Name)
	assert.Equal(t, "acme.com", out[1].Domain)
}

func TestHeuristicEntitiesSkipsFreeMailDomain(t *testing.T) {
	out := heuristicEntities("", "bob@gmail.com")
	assert.Len(t, out, 1)
	assert.Equal(t, "bob", out[0].Name)
}

func TestHeuristicEntitiesNoEmailYieldsNothing(t *testing.T) {
	assert.Empty(t, heuristicEntities("Alice", ""))
}

func TestDedupeEntitiesDropsCaseInsensitiveDuplicate(t *testing.T) {
	existing := []extractclient.Entity{{Type: string(domain.EntityPerson), Name: "alice smith"}}
	heuristic := heuristicEntities("Alice Smith", "alice@acme.com")
	out := dedupeEntities(existing, heuristic)
	require.Len(t, out, 1)
	assert.Equal(t, string(domain.EntityCompany), out[0].Type)
	assert.Equal(t, "Acme", out[0].Name)
}

func TestDedupeEntitiesKeepsDistinctNames(t *testing.T) {
	existing := []extractclient.Entity{{Type: string(domain.EntityPerson), Name: "Someone Else"}}
	heuristic := heuristicEntities("Alice Smith", "alice@acme.com")
	out := dedupeEntities(existing, heuristic)
	assert.Len(t, out, 2)
}

func TestFindEvidenceChunkCaseInsensitiveMatch(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: "c1", Text: "Alice works at Acme."},
		{ID: "c2", Text: "Quarterly planning begins in March."},
	}
	assert.Equal(t, "c2", findEvidenceChunk(chunks, "QUARTERLY PLANNING"))
}

func TestFindEvidenceChunkNoMatchReturnsEmpty(t *testing.T) {
	chunks := []domain.Chunk{{ID: "c1", Text: "nothing relevant here"}}
	assert.Equal(t, "", findEvidenceChunk(chunks, "unrelated phrase"))
}

func TestFindEvidenceChunkEmptyEvidenceReturnsEmpty(t *testing.T) {
	chunks := []domain.Chunk{{ID: "c1", Text: "anything"}}
	assert.Equal(t, "", findEvidenceChunk(chunks, ""))
}
