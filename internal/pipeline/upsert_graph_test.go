package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fenwick-labs/graphrag/internal/domain"
)

func TestCoerceEntityTypeKnownTypes(t *testing.T) {
	assert.Equal(t, domain.EntityPerson, coerceEntityType("Person"))
	assert.Equal(t, domain.EntityCompany, coerceEntityType(" company "))
	assert.Equal(t, domain.EntityTopic, coerceEntityType("topic"))
}

func TestCoerceEntityTypeUnknownFallsBackToTopic(t *testing.T) {
	assert.Equal(t, domain.EntityTopic, coerceEntityType("widget"))
}

func TestNormalizeRelationType(t *testing.T) {
	assert.Equal(t, "WORKS_AT", normalizeRelationType("works at"))
	assert.Equal(t, "RELATED_TO", normalizeRelationType(""))
	assert.Equal(t, "RELATED_TO", normalizeRelationType("   "))
}

func TestTruncateShortensLongStrings(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello world", 5))
	assert.Equal(t, "hi", truncate("hi", 5))
}
