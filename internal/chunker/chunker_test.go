package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmpty(t *testing.T) {
	assert.Nil(t, Chunk("   \n\t ", DefaultSize, DefaultOverlap))
	assert.Nil(t, Chunk("", DefaultSize, DefaultOverlap))
}

func TestChunkSingleChunkWhenShort(t *testing.T) {
	out := Chunk("Alice works at Acme. Contact: alice@acme.com.", DefaultSize, DefaultOverlap)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].Idx)
	assert.Equal(t, "Alice works at Acme. Contact: alice@acme.com.", out[0].Text)
	assert.Equal(t, 0, out[0].StartOffset)
	assert.Equal(t, len(out[0].Text), out[0].EndOffset)
}

// TestChunkCoverage is spec property P2: concatenating chunk text over
// start/end offsets in idx order must cover the original text (possibly
// with overlap), every chunk is non-empty, and none exceeds size+overlap.
func TestChunkCoverage(t *testing.T) {
	sentence := "The quick brown fox jumps over the lazy dog. "
	text := strings.Repeat(sentence, 60)

	out := Chunk(text, DefaultSize, DefaultOverlap)
	require.NotEmpty(t, out)

	trimmed := strings.TrimSpace(text)
	for i, c := range out {
		assert.Equal(t, i, c.Idx)
		assert.NotEmpty(t, c.Text)
		assert.LessOrEqual(t, len(c.Text), DefaultSize+DefaultOverlap)
		assert.GreaterOrEqual(t, c.EndOffset, c.StartOffset)
		assert.LessOrEqual(t, c.EndOffset, len(trimmed))
	}

	// reconstructed coverage: every byte of the trimmed text appears inside
	// some chunk's [start,end) window once overlaps are accounted for.
	covered := make([]bool, len(trimmed))
	for _, c := range out {
		for i := c.StartOffset; i < c.EndOffset && i < len(trimmed); i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		assert.Truef(t, ok, "byte %d not covered by any chunk", i)
	}
}

func TestChunkMonotonicIdx(t *testing.T) {
	text := strings.Repeat("Sentence number that is reasonably long for testing purposes. ", 80)
	out := Chunk(text, DefaultSize, DefaultOverlap)
	for i, c := range out {
		assert.Equal(t, i, c.Idx)
	}
}
