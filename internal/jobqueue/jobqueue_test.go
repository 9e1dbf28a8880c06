package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fenwick-labs/graphrag/internal/config"
)

// TestFailBackoffMonotonicity is spec property P8: successive run_after
// timestamps for a repeatedly failing job increase by at least BACKOFF_BASE.
func TestFailBackoffMonotonicity(t *testing.T) {
	cfg := config.JobQueueConfig{MaxAttempts: 5, BackoffBase: 30 * time.Second}
	q := &Queue{cfg: cfg}

	base := time.Now().UTC()
	var prev time.Time
	for attempt := 1; attempt < cfg.MaxAttempts; attempt++ {
		runAfter := q.nextRunAfter(base, attempt)
		if attempt > 1 {
			assert.GreaterOrEqual(t, runAfter.Sub(prev), cfg.BackoffBase)
		}
		prev = runAfter
	}
}

func TestDocumentIDFromPayload(t *testing.T) {
	assert.Equal(t, "doc-1", documentIDFromPayload([]byte(`{"document_id":"doc-1"}`)))
	assert.Equal(t, "", documentIDFromPayload([]byte(`not json`)))
}

func TestGuardKeyStable(t *testing.T) {
	a := guardKey("ws", "CHUNK_DOCUMENT", "doc-1")
	b := guardKey("ws", "CHUNK_DOCUMENT", "doc-1")
	assert.Equal(t, a, b)
}
