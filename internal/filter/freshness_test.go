package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedEvaluator(maxAgeDays int, now time.Time) *Evaluator {
	e := NewEvaluator(maxAgeDays)
	e.now = func() time.Time { return now }
	return e
}

func TestAgeOf(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	e := fixedEvaluator(3, now)

	assert.Equal(t, 2*time.Hour, e.AgeOf("2025-06-10T10:00:00Z"))
	assert.Equal(t, 2*time.Hour, e.AgeOf("2025-06-10T10:00:00+00:00"), "explicit offset and trailing Z must agree")
	assert.Equal(t, neverFresh, e.AgeOf(""))
	assert.Equal(t, neverFresh, e.AgeOf("not-a-timestamp"))
	assert.Equal(t, time.Duration(0), e.AgeOf("2025-06-10T13:00:00Z"), "clock skew clamps to zero")
}

func TestIsFreshBoundary(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	e := fixedEvaluator(3, now)

	assert.True(t, e.IsFresh("2025-06-09T12:00:00Z"), "inside window")
	assert.True(t, e.IsFresh("2025-06-07T12:00:00Z"), "exactly at boundary is fresh")
	assert.False(t, e.IsFresh("2025-06-07T11:59:59Z"), "one second past boundary is stale")
	assert.False(t, e.IsFresh(""), "missing timestamp is never fresh")
}

func TestLabel(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	e := fixedEvaluator(3, now)

	assert.Equal(t, "<1h", e.Label("2025-06-10T11:30:00Z"))
	assert.Equal(t, "today", e.Label("2025-06-10T01:00:00Z"))
	assert.Equal(t, "yesterday", e.Label("2025-06-09T10:00:00Z"))
	assert.Equal(t, "5 days ago", e.Label("2025-06-05T10:00:00Z"))
	assert.Equal(t, "unknown", e.Label(""))
}
