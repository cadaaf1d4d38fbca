package collector

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"GrantRadar/internal/collect"
	"GrantRadar/internal/config"
	"GrantRadar/internal/domain"
	"GrantRadar/internal/ports"
)

// StrategySource implements PostingSource via registered collector
// strategies. Sources run in a bounded pool; one failing source never
// aborts the run, it just contributes zero postings.
type StrategySource struct {
	registry    *collect.Registry
	sources     []config.SourceConfig
	limit       int
	parallelism int
	logger      *slog.Logger
}

var _ ports.PostingSource = (*StrategySource)(nil)

// NewStrategySource wires the collector registry with config-defined
// sources.
func NewStrategySource(reg *collect.Registry, cfg config.Config, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:    reg,
		sources:     cfg.Sources,
		limit:       cfg.Collection.Count,
		parallelism: cfg.Collection.Parallelism,
		logger:      log,
	}
}

// Collect runs every usable source and aggregates candidate postings.
// Invalid candidates (no title) are dropped here; missing ids are
// derived so dedup stays stable across runs.
func (s *StrategySource) Collect(ctx context.Context) ([]domain.Posting, error) {
	var (
		mu         sync.Mutex
		aggregated []domain.Posting
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if s.parallelism > 0 {
		group.SetLimit(s.parallelism)
	}

	for _, source := range s.sources {
		source := source
		if source.NeedsKey && source.ServiceKey == "" {
			s.log().Warn("service key missing, skipping source", "source", source.Name)
			continue
		}

		strategy, err := s.registry.Resolve(source.Collector)
		if err != nil {
			s.log().Error("unusable source", "source", source.Name, "error", err)
			continue
		}

		group.Go(func() error {
			req := collect.Request{
				SourceName: source.Name,
				ListURL:    source.ListURL,
				BaseURL:    source.BaseURL,
				ServiceKey: source.ServiceKey,
				Limit:      s.limit,
				Options:    source.Options,
			}

			results, err := strategy.Collect(groupCtx, req)
			if err != nil {
				s.log().Error("source failed", "source", source.Name, "error", err)
				return nil
			}

			kept := make([]domain.Posting, 0, len(results))
			for _, posting := range results {
				if !posting.Valid() {
					continue
				}
				if posting.Source == "" {
					posting.Source = source.Name
				}
				if posting.ID == "" {
					posting.ID = domain.DeriveID(posting.Title, posting.URL)
				}
				kept = append(kept, posting)
			}

			s.log().Debug("source produced postings", "source", source.Name, "count", len(kept))

			mu.Lock()
			aggregated = append(aggregated, kept...)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	s.log().Info("collection done", "total_postings", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
