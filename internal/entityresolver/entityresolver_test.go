package entityresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fenwick-labs/graphrag/internal/domain"
)

func TestResolveKeyPersonByEmail(t *testing.T) {
	key := ResolveKey(Entity{Type: domain.EntityPerson, Name: "Alice", Email: "Alice@Acme.com"})
	assert.Equal(t, "person:email:alice@acme.com", key)
}

func TestResolveKeyCompanyByDomain(t *testing.T) {
	key := ResolveKey(Entity{Type: domain.EntityCompany, Name: "Acme", Domain: "ACME.com"})
	assert.Equal(t, "company:domain:acme.com", key)
}

func TestResolveKeyTopic(t *testing.T) {
	key := ResolveKey(Entity{Type: domain.EntityTopic, Name: "  Quarterly   Planning  "})
	assert.Equal(t, "topic:quarterly planning", key)
}

func TestResolveKeyFallback(t *testing.T) {
	key := ResolveKey(Entity{Type: "widget", Name: "Gadget"})
	assert.Equal(t, "widget:name:gadget", key)
}

func TestResolveKeyPersonWithoutEmailFallsBackToName(t *testing.T) {
	key := ResolveKey(Entity{Type: domain.EntityPerson, Name: "Bob"})
	assert.Equal(t, "person:name:bob", key)
}

// TestResolveKeyUnicodeNFKDEquivalence is spec property P3: two spellings
// that NFKD-normalize to the same string must resolve to the same key.
// precomposed spells the 'e'-with-acute as a single rune (U+00E9);
// decomposed spells it as 'e' followed by U+0301 COMBINING ACUTE ACCENT.
func TestResolveKeyUnicodeNFKDEquivalence(t *testing.T) {
	precomposed := "Caf" + string(rune(0x00E9))
	decomposed := "Cafe" + string(rune(0x0301))

	a := ResolveKey(Entity{Type: domain.EntityTopic, Name: precomposed})
	b := ResolveKey(Entity{Type: domain.EntityTopic, Name: decomposed})
	assert.Equal(t, a, b)
	assert.Equal(t, "topic:cafe", a)
}
