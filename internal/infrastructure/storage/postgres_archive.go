package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/ports"
)

// PostgresArchive keeps an audit trail of published findings. It is optional
// and off the publish critical path: an archive failure never blocks a run.
type PostgresArchive struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.FindingArchive = (*PostgresArchive)(nil)

// NewPostgresArchive wires a sql.DB implementation.
func NewPostgresArchive(db *sql.DB) *PostgresArchive {
	return &PostgresArchive{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// SavePublished upserts the published finding snapshot.
func (a *PostgresArchive) SavePublished(ctx context.Context, finding domain.Finding) error {
	if a.db == nil {
		return nil
	}

	query, args, err := a.builder.
		Insert("published_findings").
		Columns("external_id", "full_name", "description", "stars", "source", "report", "url").
		Values(
			finding.Repo.ID,
			finding.Repo.FullName,
			finding.Repo.Description,
			finding.Repo.Stars,
			finding.Source,
			finding.Report,
			finding.Repo.URL,
		).
		Suffix(`ON CONFLICT (external_id) DO UPDATE
		        SET report = EXCLUDED.report,
		            stars = EXCLUDED.stars,
		            published_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert published finding: %w", err)
	}

	return nil
}
