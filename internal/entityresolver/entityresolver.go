// Package entityresolver implements the pure entity-key function (C6).
// Ported from original_source/backend/app/processing/entity_resolution.py;
// NFKD normalization uses golang.org/x/text/unicode/norm in place of
// Python's unicodedata, matching the same decompose-then-strip-combining
// algorithm.
package entityresolver

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/fenwick-labs/graphrag/internal/domain"
)

// Entity is the minimal attribute set the resolver needs; extraction and
// ingestion code populate this from whatever richer shape they hold.
type Entity struct {
	Type   domain.EntityType
	Name   string
	Email  string
	Domain string
}

// Normalize NFKD-decomposes s, strips combining marks, lowercases, collapses
// internal whitespace runs to a single space, and trims. Referentially
// transparent; never touches the network.
func Normalize(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	lowered := strings.ToLower(b.String())
	fields := strings.Fields(lowered)
	return strings.Join(fields, " ")
}

// ResolveKey computes the stable entity key per spec §4.6.
func ResolveKey(e Entity) string {
	etype := strings.ToLower(strings.TrimSpace(string(e.Type)))

	switch etype {
	case "person":
		if e.Email != "" {
			return fmt.Sprintf("person:email:%s", strings.ToLower(strings.TrimSpace(e.Email)))
		}
	case "company":
		if e.Domain != "" {
			return fmt.Sprintf("company:domain:%s", strings.ToLower(strings.TrimSpace(e.Domain)))
		}
	case "topic":
		return fmt.Sprintf("topic:%s", Normalize(e.Name))
	}

	if etype == "" {
		etype = "unknown"
	}
	return fmt.Sprintf("%s:name:%s", etype, Normalize(e.Name))
}
