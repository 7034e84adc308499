package github

import (
	"context"
	"fmt"

	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/scanner"
)

// SearchScanner polls the repository search API for a tracked query.
type SearchScanner struct {
	client  *Client
	perPage int
}

var _ scanner.Scanner = (*SearchScanner)(nil)

// NewSearchScanner wires the API client; perPage defaults to 10.
func NewSearchScanner(client *Client, perPage int) *SearchScanner {
	if perPage <= 0 {
		perPage = 10
	}
	return &SearchScanner{client: client, perPage: perPage}
}

// Name identifies the strategy inside the registry.
func (s *SearchScanner) Name() domain.SourceStrategy {
	return domain.StrategySearch
}

// Scan runs the source's query and returns candidates, freshest first.
func (s *SearchScanner) Scan(ctx context.Context, source domain.TrackedSource) ([]domain.Repo, error) {
	if source.Query == "" {
		return nil, fmt.Errorf("source %s has no query", source.Name)
	}
	return s.client.Search(ctx, source.Query, s.perPage)
}
