package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"GrantRadar/internal/classify"
	"GrantRadar/internal/collect"
	"GrantRadar/internal/config"
	"GrantRadar/internal/infrastructure/collector"
	"GrantRadar/internal/infrastructure/slack"
	"GrantRadar/internal/infrastructure/storage"
	"GrantRadar/internal/logging"
	"GrantRadar/internal/usecase"
)

// Application wires configuration to the pipeline and owns the
// database handle.
type Application struct {
	cfg      config.Config
	db       *sql.DB
	store    *storage.PostgresStore
	pipeline *usecase.Pipeline
	logger   *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := storage.NewPostgresStore(db)

	fetcher := collector.NewFetcher(nil, collector.RetryConfig{
		MaxRetries: cfg.Collection.MaxRetries,
		BaseDelay:  cfg.Collection.BaseDelay(),
		MaxDelay:   cfg.Collection.MaxDelay(),
	})

	registry := collect.NewRegistry()
	registry.Register(collector.NewBoardCollector(fetcher))
	registry.Register(collector.NewOpenAPICollector(fetcher, baseLogger.With("component", "collector.openapi")))
	registry.Register(collector.NewGrantsDirCollector(fetcher))

	source := collector.NewStrategySource(registry, cfg, baseLogger.With("component", "source"))

	classifier := classify.New(vocabularyFromConfig(cfg.Filter))

	reporter := slack.NewReporter(
		cfg.Notifications.Slack.BotToken,
		cfg.Notifications.Slack.Channel,
	)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:           source,
		Store:            store,
		Classifier:       classifier,
		Reporter:         reporter,
		Logger:           baseLogger.With("component", "pipeline"),
		ExpiringSoonDays: cfg.Run.ExpiringSoonDays,
	})

	return &Application{cfg: cfg, db: db, store: store, pipeline: pipeline, logger: baseLogger}, nil
}

// Run performs a single pipeline execution; the external cron trigger
// decides when that happens.
func (a *Application) Run(ctx context.Context) error {
	if err := a.store.EnsureSchema(ctx); err != nil {
		return err
	}

	now := time.Now().In(a.cfg.Run.Location())
	report, err := a.pipeline.Run(ctx, now)
	if err != nil {
		return err
	}

	a.logger.Info("run finished",
		"state", string(report.State),
		"new", report.NewCount,
		"approved", report.Approved,
		"rejected", report.Rejected)
	return nil
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func vocabularyFromConfig(filter config.FilterConfig) classify.Vocabulary {
	return classify.Vocabulary{
		DomainTerms:        filter.DomainTerms,
		ExpansionTerms:     filter.ExpansionTerms,
		NationwideTerms:    filter.NationwideTerms,
		HomeRegions:        filter.HomeRegions,
		RestrictedRegions:  filter.RestrictedRegions,
		RestrictionPhrases: filter.RestrictionPhrases,
	}
}
