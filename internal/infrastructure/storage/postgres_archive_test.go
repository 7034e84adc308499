package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScoutRadar/internal/domain"
)

func TestUpsertQueryShape(t *testing.T) {
	t.Parallel()

	a := NewPostgresArchive(nil)

	query, args, err := a.builder.
		Insert("published_findings").
		Columns("external_id", "full_name", "description", "stars", "source", "report", "url").
		Values("42", "user/zapret-tool", "DPI bypass for RU", 10, "DPI Bypass", "report", "https://github.com/user/zapret-tool").
		Suffix("ON CONFLICT (external_id) DO UPDATE SET report = EXCLUDED.report").
		ToSql()

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "INSERT INTO published_findings"), query)
	assert.Contains(t, query, "$7", "dollar placeholders for lib/pq")
	assert.Len(t, args, 7)
}

func TestSavePublishedNilDBIsNoop(t *testing.T) {
	t.Parallel()

	a := NewPostgresArchive(nil)
	assert.NoError(t, a.SavePublished(t.Context(), domain.Finding{Repo: domain.Repo{ID: "42"}}))
}
