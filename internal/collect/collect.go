package collect

import (
	"context"
	"fmt"

	"GrantRadar/internal/domain"
)

// Request carries all parameters required to run one source.
type Request struct {
	SourceName string
	ListURL    string
	BaseURL    string
	ServiceKey string
	Limit      int
	Options    map[string]string
}

// Collector captures a single source strategy (HTML board, open-data
// API, grants directory, ...).
type Collector interface {
	Name() string
	Collect(ctx context.Context, req Request) ([]domain.Posting, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	collectors map[string]Collector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[string]Collector{}}
}

// Register adds or replaces a collector strategy.
func (r *Registry) Register(collector Collector) {
	if r.collectors == nil {
		r.collectors = map[string]Collector{}
	}
	r.collectors[collector.Name()] = collector
}

// Resolve returns a collector by strategy name or an error if it is
// absent.
func (r *Registry) Resolve(name string) (Collector, error) {
	if collector, ok := r.collectors[name]; ok {
		return collector, nil
	}
	return nil, fmt.Errorf("collector %s is not registered", name)
}
