package domain

// Repo is a core entity describing one candidate repository fetched from a source.
// PushedAt keeps the raw ISO-8601 string from the API; an empty value means the
// source reported no activity timestamp and the repo is never considered fresh.
type Repo struct {
	ID          string
	FullName    string
	Description string
	Stars       int
	Language    string
	Topics      []string
	PushedAt    string
	URL         string
}

// SourceStrategy selects how a tracked source is polled.
type SourceStrategy string

const (
	StrategySearch   SourceStrategy = "search"
	StrategyTrending SourceStrategy = "trending"
	StrategyWatch    SourceStrategy = "watch"
)

// TrackedSource is a statically configured origin to poll: a search query,
// the trending page, or a specific repository watched for new commits/releases.
type TrackedSource struct {
	Name     string
	Strategy SourceStrategy
	Query    string
	Owner    string
	Repo     string
	Priority int
}

// Key identifies the source inside the history ledger's marker map.
func (s TrackedSource) Key() string {
	if s.Strategy == StrategyWatch {
		return s.Owner + "/" + s.Repo
	}
	return string(s.Strategy) + ":" + s.Name
}

// Finding is an accepted candidate ready to publish: the repo, the source it
// came from, and the rendered report text.
type Finding struct {
	Repo   Repo
	Source string
	Report string
}

// RunStats aggregates per-run counters; returned by the pipeline instead of
// being accumulated in ambient state.
type RunStats struct {
	Fetched      int
	FreshDropped int
	Deduped      int
	Filtered     int
	Classified   int
	Published    int
	Failed       int
}
