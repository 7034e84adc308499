package ports

import (
	"context"
	"errors"
	"time"

	"ScoutRadar/internal/domain"
)

// ErrPermanentDelivery marks a publish rejection that must not be retried in
// this run or the next attempt loop (bad request, forbidden chat).
var ErrPermanentDelivery = errors.New("permanent delivery rejection")

// ErrUnsafeContent marks a payload stopped by the content gate before any
// send attempt; the item was not delivered but counts as seen.
var ErrUnsafeContent = errors.New("rendered payload failed content gate")

// Classifier batches candidate repos into one external model call and returns
// a 1-based batch-position -> accept verdict mapping. A non-nil error means
// the service could not produce verdicts; the caller decides the fallback.
type Classifier interface {
	Classify(ctx context.Context, batch []domain.Repo, sourceContext string) (map[int]bool, error)
}

// Publisher delivers one finding to the outbound channel. Implementations
// retry transient failures internally; permanent rejections are reported with
// a typed error so the caller does not retry.
type Publisher interface {
	Publish(ctx context.Context, finding domain.Finding) error
}

// HistoryStore loads and persists the cross-run ledger. Load must never fail
// hard: missing or corrupt state yields an empty ledger plus a diagnostic
// error for logging.
type HistoryStore interface {
	Load() (*domain.Ledger, error)
	Save(ledger *domain.Ledger) error
}

// RepoWatcher resolves the latest activity marker for a specifically tracked
// repository (commit SHA, falling back to release tag) and fetches its
// metadata as a candidate.
type RepoWatcher interface {
	LatestMarker(ctx context.Context, owner, repo string) (string, error)
	RepoInfo(ctx context.Context, owner, repo string) (domain.Repo, error)
}

// RateBudget reports how many upstream API calls remain before the source
// starts rejecting requests; the pipeline aborts bulk work when it runs low.
type RateBudget interface {
	Remaining(ctx context.Context) (int, error)
}

// FindingArchive persists published findings for audit; optional, never on
// the publish critical path.
type FindingArchive interface {
	SavePublished(ctx context.Context, finding domain.Finding) error
}

// Scheduler controls when pipeline runs execute in loop mode.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
