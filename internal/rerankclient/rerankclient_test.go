package rerankclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-labs/graphrag/internal/config"
)

func TestNewReturnsNilWhenURLUnconfigured(t *testing.T) {
	assert.Nil(t, New(config.RerankConfig{}))
}

func TestRerankReordersByRelevanceScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Score index 2 highest, index 0 lowest, so the client must reorder.
		_ = json.NewEncoder(w).Encode(rerankResponse{Results: []rerankResult{
			{Index: 0, RelevanceScore: 0.1},
			{Index: 1, RelevanceScore: 0.5},
			{Index: 2, RelevanceScore: 0.9},
		}})
	}))
	defer srv.Close()

	c := New(config.RerankConfig{URL: srv.URL, Model: "rerank-test"})
	require.NotNil(t, c)

	out, err := c.Rerank(t.Context(), "query", []Candidate{
		{ID: "a", Text: "aaa"}, {ID: "b", Text: "bbb"}, {ID: "c", Text: "ccc"},
	}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestRerankEmptyCandidatesIsNoop(t *testing.T) {
	c := New(config.RerankConfig{URL: "http://unused"})
	out, err := c.Rerank(t.Context(), "query", nil, 5)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestRerankPropagatesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(config.RerankConfig{URL: srv.URL})
	_, err := c.Rerank(t.Context(), "query", []Candidate{{ID: "a", Text: "aaa"}}, 1)
	assert.Error(t, err)
}
