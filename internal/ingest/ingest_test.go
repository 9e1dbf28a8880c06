package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashDeterministic(t *testing.T) {
	a := contentHash("hello world")
	b := contentHash("hello world")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex-encoded sha256
}

func TestContentHashDistinguishesContent(t *testing.T) {
	assert.NotEqual(t, contentHash("hello"), contentHash("world"))
}
