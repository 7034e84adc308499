package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ScoutRadar/internal/config"
	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/filter"
	"ScoutRadar/internal/infrastructure/github"
	"ScoutRadar/internal/infrastructure/ledger"
	"ScoutRadar/internal/infrastructure/llm"
	"ScoutRadar/internal/infrastructure/scheduler"
	"ScoutRadar/internal/infrastructure/storage"
	"ScoutRadar/internal/infrastructure/telegram"
	"ScoutRadar/internal/logging"
	"ScoutRadar/internal/ports"
	"ScoutRadar/internal/scanner"
	"ScoutRadar/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
// All clients are constructed once here and passed down by handle; nothing
// lives at package scope.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	runLogger := logging.ForRun(baseLogger, uuid.NewString())

	client := github.NewClient(cfg.GitHub, nil)

	registry := scanner.NewRegistry()
	registry.Register(github.NewSearchScanner(client, cfg.GitHub.PerPage))
	registry.Register(github.NewTrendingScanner(cfg.GitHub.TrendingURL, nil))

	freshness := filter.NewEvaluator(cfg.Freshness.MaxAgeDays)
	candidateFilter := filter.New(cfg.Filter)

	classifier := llm.NewClassifier(cfg.Classifier, freshness, runLogger.With("component", "classifier"))

	publisher := telegram.NewPublisher(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		candidateFilter.ContainsBlockedScript,
	)

	history := ledger.NewFileStore(cfg.Ledger.Path, cfg.Ledger.MaxEntries, runLogger.With("component", "ledger"))

	var archive ports.FindingArchive
	if cfg.Database.DSN != "" {
		db, err := storage.Open(ctx, cfg.Database.DSN)
		if err != nil {
			// The archive is an audit convenience, never a reason to skip a run.
			runLogger.Warn("finding archive unavailable", "error", err)
		} else {
			archive = storage.NewPostgresArchive(db)
		}
	}

	pipeline := usecase.NewPipeline(usecase.Deps{
		Registry:   registry,
		Watcher:    client,
		Budget:     client,
		Filter:     candidateFilter,
		Freshness:  freshness,
		Classifier: classifier,
		Publisher:  publisher,
		History:    history,
		Archive:    archive,
		Logger:     runLogger.With("component", "pipeline"),
	}, usecase.Params{
		PostCap:          cfg.Pipeline.PostCap,
		PerSourceCap:     cfg.Pipeline.PerSourceCap,
		BatchSize:        cfg.Classifier.BatchSize,
		PostDelay:        time.Duration(cfg.Pipeline.PostDelaySeconds) * time.Second,
		MinRateRemaining: cfg.GitHub.MinRateRemaining,
		FallbackAccept:   cfg.Classifier.Fallback == "accept",
	}, toTrackedSources(cfg.Sources))

	return &Application{cfg: cfg, logger: runLogger, pipeline: pipeline}, nil
}

// Run executes a single pipeline pass, or keeps running on the configured
// interval in loop mode.
func (a *Application) Run(ctx context.Context) error {
	if a.pipeline == nil {
		return nil
	}

	if !a.cfg.Scheduler.Loop {
		_, err := a.pipeline.Run(ctx)
		return err
	}

	driver := scheduler.NewTickerScheduler(time.Duration(a.cfg.Scheduler.IntervalHours) * time.Hour)
	sched := usecase.NewScheduler(driver, a.pipeline, a.logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return sched.Stop(context.Background())
}

func toTrackedSources(cfg []config.SourceConfig) []domain.TrackedSource {
	sources := make([]domain.TrackedSource, 0, len(cfg))
	for _, src := range cfg {
		sources = append(sources, domain.TrackedSource{
			Name:     src.Name,
			Strategy: domain.SourceStrategy(src.Strategy),
			Query:    src.Query,
			Owner:    src.Owner,
			Repo:     src.Repo,
			Priority: src.Priority,
		})
	}
	return sources
}
