// Package chunker implements the deterministic, overlap-preserving text
// splitter (C7). It is a pure function: same input, same output, no I/O.
// Ported from the sentence-boundary walk in
// original_source/backend/app/processing/chunker.py, adapted to operate on
// rune-safe byte offsets.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultSize is CHUNK_SIZE from spec §4.4/§6.
	DefaultSize = 1200
	// DefaultOverlap is CHUNK_OVERLAP from spec §4.4/§6.
	DefaultOverlap = 150
)

var sentenceSplit = regexp.MustCompile(`(?:[.!?])\s+`)

// Chunk is one ordered, offset-tagged slice of a document's text.
type Chunk struct {
	Idx         int
	Text        string
	StartOffset int
	EndOffset   int
}

// Chunk splits text into ordered, overlapping chunks. Offsets are byte
// offsets into the post-strip text (leading/trailing whitespace removed).
//
// Sentences are found by splitting on end-of-sentence punctuation followed
// by whitespace; splitSentences keeps the punctuation and drops the
// whitespace, so sentence positions are recovered by searching below.
func Chunk(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) <= size {
		return []Chunk{{Idx: 0, Text: trimmed, StartOffset: 0, EndOffset: len(trimmed)}}
	}

	sentences := splitSentences(trimmed)

	var chunks []Chunk
	var current strings.Builder
	currentStart := 0
	searchPos := 0

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Idx:         len(chunks),
			Text:        text,
			StartOffset: currentStart,
			EndOffset:   currentStart + len(text),
		})
	}

	for _, sentence := range sentences {
		sentStart := strings.Index(trimmed[searchPos:], sentence)
		if sentStart == -1 {
			sentStart = 0
		} else {
			sentStart += searchPos
		}
		sentEnd := sentStart + len(sentence)

		if current.Len() > 0 && current.Len()+len(sentence)+1 > size {
			flush()

			buf := current.String()
			overlapText := buf
			if len(buf) > overlap {
				overlapText = buf[len(buf)-overlap:]
			}
			overlapText = strings.TrimLeft(overlapText, " \t\n\r")
			currentStart = currentStart + len(buf) - len(overlapText)

			current.Reset()
			current.WriteString(overlapText)
			current.WriteByte(' ')
			current.WriteString(sentence)
		} else if current.Len() == 0 {
			currentStart = sentStart
			current.WriteString(sentence)
		} else {
			current.WriteByte(' ')
			current.WriteString(sentence)
		}

		searchPos = sentEnd
	}

	flush()
	return chunks
}

// splitSentences splits on the sentence-boundary regex while preserving the
// terminal punctuation on each sentence it belongs to.
func splitSentences(text string) []string {
	idxs := sentenceSplit.FindAllStringIndex(text, -1)
	if idxs == nil {
		return []string{text}
	}

	var out []string
	prev := 0
	for _, m := range idxs {
		// include the punctuation, which sits just before the whitespace match
		out = append(out, text[prev:m[0]+1])
		prev = m[1]
	}
	if prev < len(text) {
		out = append(out, text[prev:])
	}
	return out
}
