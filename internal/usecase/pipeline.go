package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/filter"
	"ScoutRadar/internal/ports"
	"ScoutRadar/internal/scanner"
)

// Deps wires all driven adapters into the orchestration pipeline.
type Deps struct {
	Registry   *scanner.Registry
	Watcher    ports.RepoWatcher
	Budget     ports.RateBudget
	Filter     *filter.Filter
	Freshness  *filter.Evaluator
	Classifier ports.Classifier
	Publisher  ports.Publisher
	History    ports.HistoryStore
	Archive    ports.FindingArchive
	Logger     *slog.Logger
}

// Params bounds one run's behavior; all values come from configuration.
type Params struct {
	PostCap          int
	PerSourceCap     int
	BatchSize        int
	PostDelay        time.Duration
	MinRateRemaining int
	FallbackAccept   bool
}

// Pipeline implements the discovery workflow: fetch candidates per tracked
// source, gate by freshness, dedup against history, filter, classify in
// batches, publish, and record. Strictly sequential per the rate-limit model.
type Pipeline struct {
	deps    Deps
	params  Params
	sources []domain.TrackedSource
	sleep   func(time.Duration)
}

// NewPipeline constructs the orchestration component. Sources are processed
// in ascending priority order for the whole lifetime of the pipeline.
func NewPipeline(deps Deps, params Params, sources []domain.TrackedSource) *Pipeline {
	ordered := append([]domain.TrackedSource(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	if params.BatchSize <= 0 {
		params.BatchSize = 4
	}

	return &Pipeline{
		deps:    deps,
		params:  params,
		sources: ordered,
		sleep:   time.Sleep,
	}
}

// Run executes one complete pass over all tracked sources and returns the
// run's statistics. The history ledger is loaded once at the start and saved
// once at the end, best effort, even when the run partially failed.
func (p *Pipeline) Run(ctx context.Context) (domain.RunStats, error) {
	var stats domain.RunStats

	led, err := p.deps.History.Load()
	if err != nil {
		p.warn("history load degraded to empty ledger", "error", err)
	}
	defer func() {
		if saveErr := p.deps.History.Save(led); saveErr != nil {
			p.warn("history save failed, this run's dedup state is lost", "error", saveErr)
		}
	}()

	for _, src := range p.sources {
		if p.budgetExhausted(ctx) {
			p.warn("rate budget critically low, skipping remaining sources")
			break
		}
		p.processSource(ctx, src, led, &stats)
	}

	p.info("run complete",
		"fetched", stats.Fetched,
		"fresh_dropped", stats.FreshDropped,
		"deduped", stats.Deduped,
		"filtered", stats.Filtered,
		"classified", stats.Classified,
		"published", stats.Published,
		"failed", stats.Failed,
	)

	return stats, nil
}

func (p *Pipeline) processSource(ctx context.Context, src domain.TrackedSource, led *domain.Ledger, stats *domain.RunStats) {
	repos, pendingMarker, err := p.fetch(ctx, src, led)
	if err != nil {
		// Fetch failure is never fatal to the run: this source contributes
		// zero items and the next source proceeds.
		p.warn("fetch failed, source skipped", "source", src.Name, "error", err)
		return
	}
	if len(repos) == 0 && pendingMarker == "" {
		return
	}
	stats.Fetched += len(repos)

	handledAll := p.selectCandidates(ctx, src, repos, led, stats)

	if pendingMarker != "" && handledAll {
		// The watched repo's new activity was fully handled (or stale);
		// advance the marker so it is not re-announced next run. A cap-skip
		// or publish failure leaves the marker alone for catch-up.
		led.SetMarker(src.Key(), pendingMarker)
	}
}

// fetch pulls raw items for a source. For watch sources it compares the
// latest activity marker against the ledger first; an unchanged marker means
// nothing new and no items.
func (p *Pipeline) fetch(ctx context.Context, src domain.TrackedSource, led *domain.Ledger) ([]domain.Repo, string, error) {
	if src.Strategy == domain.StrategyWatch {
		if p.deps.Watcher == nil {
			return nil, "", fmt.Errorf("no watcher configured for source %s", src.Name)
		}
		marker, err := p.deps.Watcher.LatestMarker(ctx, src.Owner, src.Repo)
		if err != nil {
			return nil, "", err
		}
		if last, ok := led.LastSeen(src.Key()); ok && last == marker {
			p.debug("watched repo unchanged", "source", src.Name, "marker", marker)
			return nil, "", nil
		}
		info, err := p.deps.Watcher.RepoInfo(ctx, src.Owner, src.Repo)
		if err != nil {
			return nil, "", err
		}
		return []domain.Repo{info}, marker, nil
	}

	sc, err := p.deps.Registry.Resolve(src.Strategy)
	if err != nil {
		return nil, "", err
	}
	repos, err := sc.Scan(ctx, src)
	if err != nil {
		return nil, "", err
	}
	return repos, "", nil
}

// selectCandidates drives one source's items through the freshness, dedup,
// filter, classify, and publish stages. It reports whether every item ended
// handled (recorded in history or dropped as stale) so watch-marker updates
// can respect the cap/failure ordering rules.
func (p *Pipeline) selectCandidates(ctx context.Context, src domain.TrackedSource, repos []domain.Repo, led *domain.Ledger, stats *domain.RunStats) bool {
	handledAll := true

	fresh := make([]domain.Repo, 0, len(repos))
	for _, repo := range repos {
		if !p.deps.Freshness.IsFresh(repo.PushedAt) {
			// Silent drop, re-evaluated next run; staleness is handled.
			stats.FreshDropped++
			continue
		}
		fresh = append(fresh, repo)
	}

	// Freshest first, so a per-source cap keeps the most recent activity.
	sort.SliceStable(fresh, func(i, j int) bool {
		return p.deps.Freshness.AgeOf(fresh[i].PushedAt) < p.deps.Freshness.AgeOf(fresh[j].PushedAt)
	})
	if p.params.PerSourceCap > 0 && len(fresh) > p.params.PerSourceCap {
		fresh = fresh[:p.params.PerSourceCap]
		handledAll = false
	}

	var batchQueue []domain.Repo
	seenThisBatch := map[string]struct{}{}
	for _, repo := range fresh {
		if led.Contains(repo.ID) {
			stats.Deduped++
			continue
		}
		if _, dup := seenThisBatch[repo.ID]; dup {
			// Same identifier fetched twice in one run is one logical item.
			stats.Deduped++
			continue
		}
		if !p.deps.Filter.Accept(repo) {
			// Junk is recorded as seen so it is not re-evaluated every run.
			stats.Filtered++
			led.Record(repo.ID)
			continue
		}
		seenThisBatch[repo.ID] = struct{}{}
		batchQueue = append(batchQueue, repo)
	}

	for start := 0; start < len(batchQueue); start += p.params.BatchSize {
		end := start + p.params.BatchSize
		if end > len(batchQueue) {
			end = len(batchQueue)
		}
		if !p.classifyAndPublish(ctx, src, batchQueue[start:end], led, stats) {
			handledAll = false
		}
	}

	return handledAll
}

// classifyAndPublish runs one classifier batch and publishes accepted items.
// Returns false when any item was left unhandled (cap, publish failure,
// classifier fallback).
func (p *Pipeline) classifyAndPublish(ctx context.Context, src domain.TrackedSource, batch []domain.Repo, led *domain.Ledger, stats *domain.RunStats) bool {
	verdicts, err := p.deps.Classifier.Classify(ctx, batch, src.Name)
	fallback := false
	if err != nil {
		// Service failure degrades to the configured fallback verdict for
		// every item in the batch, never a crash.
		fallback = true
		p.warn("classifier failed, applying fallback", "source", src.Name, "accept_all", p.params.FallbackAccept, "error", err)
		verdicts = map[int]bool{}
		for i := range batch {
			verdicts[i+1] = p.params.FallbackAccept
		}
	}
	stats.Classified += len(batch)

	handledAll := true
	for i, repo := range batch {
		accepted := verdicts[i+1]
		if !accepted {
			if fallback {
				// Fallback rejection is not a real verdict: leave the item
				// unrecorded so it is retried when the service recovers.
				handledAll = false
				continue
			}
			led.Record(repo.ID)
			continue
		}

		if p.params.PostCap > 0 && stats.Published >= p.params.PostCap {
			p.info("per-run post cap reached, item deferred", "source", src.Name, "repo", repo.FullName)
			handledAll = false
			continue
		}

		if !p.publish(ctx, src, repo, led, stats) {
			handledAll = false
		}
	}
	return handledAll
}

// publish delivers one accepted candidate. Only confirmed delivery records
// the identifier and counts toward the post cap; an unsafe payload is
// recorded as seen without counting as published.
func (p *Pipeline) publish(ctx context.Context, src domain.TrackedSource, repo domain.Repo, led *domain.Ledger, stats *domain.RunStats) bool {
	finding := domain.Finding{
		Repo:   repo,
		Source: src.Name,
		Report: p.renderReport(repo),
	}

	err := p.deps.Publisher.Publish(ctx, finding)
	switch {
	case err == nil:
		led.Record(repo.ID)
		stats.Published++
		p.info("published", "source", src.Name, "repo", repo.FullName)
		if p.deps.Archive != nil {
			if archErr := p.deps.Archive.SavePublished(ctx, finding); archErr != nil {
				p.warn("archive write failed", "repo", repo.FullName, "error", archErr)
			}
		}
		if p.params.PostDelay > 0 {
			p.sleep(p.params.PostDelay)
		}
		return true

	case errors.Is(err, ports.ErrUnsafeContent):
		led.Record(repo.ID)
		stats.Failed++
		p.warn("payload failed content gate, recorded as seen", "repo", repo.FullName)
		return true

	default:
		// Transient-exhausted or permanent: not recorded, eligible next run.
		stats.Failed++
		p.warn("publish failed", "repo", repo.FullName, "error", err)
		return false
	}
}

func (p *Pipeline) renderReport(repo domain.Repo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 <b>%s</b>\n", escapeHTML(repo.FullName))
	meta := []string{fmt.Sprintf("⭐ %d", repo.Stars)}
	if repo.Language != "" {
		meta = append(meta, escapeHTML(repo.Language))
	}
	meta = append(meta, "updated "+p.deps.Freshness.Label(repo.PushedAt))
	b.WriteString("🛠 " + strings.Join(meta, " · "))
	if repo.Description != "" {
		b.WriteString("\n💡 " + escapeHTML(repo.Description))
	}
	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func (p *Pipeline) budgetExhausted(ctx context.Context) bool {
	if p.deps.Budget == nil || p.params.MinRateRemaining <= 0 {
		return false
	}
	remaining, err := p.deps.Budget.Remaining(ctx)
	if err != nil {
		p.warn("rate budget check failed, continuing", "error", err)
		return false
	}
	return remaining < p.params.MinRateRemaining
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Warn(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Debug(msg, args...)
	}
}
