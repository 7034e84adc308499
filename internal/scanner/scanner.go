package scanner

import (
	"context"
	"fmt"

	"ScoutRadar/internal/domain"
)

// Scanner captures a single polling strategy (search API, trending page,
// watched repository).
type Scanner interface {
	Name() domain.SourceStrategy
	Scan(ctx context.Context, source domain.TrackedSource) ([]domain.Repo, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	scanners map[domain.SourceStrategy]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[domain.SourceStrategy]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[domain.SourceStrategy]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by strategy or an error if it is absent.
func (r *Registry) Resolve(strategy domain.SourceStrategy) (Scanner, error) {
	if scanner, ok := r.scanners[strategy]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner strategy %s is not registered", strategy)
}
