package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"GrantRadar/internal/classify"
	"GrantRadar/internal/domain"
	"GrantRadar/internal/ports"
)

// RunState names the orchestration phases of one pipeline run.
type RunState string

const (
	StateIdle        RunState = "idle"
	StateFetching    RunState = "fetching"
	StateClassifying RunState = "classifying"
	StateSending     RunState = "sending"
	StateDone        RunState = "done"
	StateSkipped     RunState = "skipped"
	StateFailed      RunState = "failed"
)

// RunReport summarizes what one run did.
type RunReport struct {
	State    RunState
	NewCount int
	Approved int
	Rejected int
}

// PipelineDeps wires all driven adapters into the orchestration
// pipeline.
type PipelineDeps struct {
	Source           ports.PostingSource
	Store            ports.PostingStore
	Classifier       *classify.Classifier
	Reporter         ports.Reporter
	Logger           *slog.Logger
	ExpiringSoonDays int
}

// Pipeline implements the daily ingestion workflow: collect, dedup,
// classify, deliver, mark. At most one batch goes out per calendar day.
type Pipeline struct {
	source       ports.PostingSource
	store        ports.PostingStore
	classifier   *classify.Classifier
	reporter     ports.Reporter
	logger       *slog.Logger
	expiringDays int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	expiringDays := deps.ExpiringSoonDays
	if expiringDays <= 0 {
		expiringDays = 3
	}
	return &Pipeline{
		source:       deps.Source,
		store:        deps.Store,
		classifier:   deps.Classifier,
		reporter:     deps.Reporter,
		logger:       deps.Logger,
		expiringDays: expiringDays,
	}
}

// Run executes one pipeline pass for the given wall-clock time. If a
// batch already went out today the run stops before any fetch: no
// adapter calls, no store writes.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (RunReport, error) {
	report := RunReport{State: StateIdle}
	today := domain.FormatDay(now)

	sent, err := p.store.HasSentToday(ctx, today)
	if err != nil {
		report.State = StateFailed
		return report, fmt.Errorf("check daily send: %w", err)
	}
	if sent {
		p.log().Info("daily report already sent, skipping run", "day", today)
		report.State = StateSkipped
		return report, nil
	}

	report.State = StateFetching
	candidates, err := p.source.Collect(ctx)
	if err != nil {
		report.State = StateFailed
		return report, fmt.Errorf("collect postings: %w", err)
	}

	// Insert is the single dedup gate: only first sightings survive.
	// Two adapters producing the same derived id in one run collapse
	// here as well.
	var fresh []domain.Posting
	for _, candidate := range candidates {
		isNew, err := p.store.Insert(ctx, candidate)
		if err != nil {
			report.State = StateFailed
			return report, fmt.Errorf("store posting: %w", err)
		}
		if isNew {
			fresh = append(fresh, candidate)
		}
	}
	report.NewCount = len(fresh)
	p.log().Info("collection finished", "candidates", len(candidates), "new", len(fresh))

	report.State = StateClassifying
	var approved []domain.Posting
	for _, posting := range fresh {
		result := p.classifier.Classify(posting, now)
		if result.Accepted {
			p.log().Debug("posting approved", "id", posting.ID, "evidence", result.Evidence)
			approved = append(approved, posting)
		} else {
			p.log().Debug("posting rejected", "id", posting.ID, "reason", result.Reason.String())
		}
	}
	report.Approved = len(approved)
	report.Rejected = len(fresh) - len(approved)

	report.State = StateSending
	if err := p.reporter.SendReport(ctx, approved); err != nil {
		// Nothing is marked: the next run re-discovers nothing (rows
		// exist) but the approved set stays pending for retry by a
		// fresh collection cycle.
		report.State = StateFailed
		return report, fmt.Errorf("send report: %w", err)
	}

	if err := p.store.RecordDailySend(ctx, today, len(approved)); err != nil {
		report.State = StateFailed
		return report, fmt.Errorf("record daily send: %w", err)
	}

	// Rejected-but-seen postings are marked too, so a future
	// re-discovery never re-classifies or re-sends them.
	if len(fresh) > 0 {
		ids := make([]string, len(fresh))
		for i, posting := range fresh {
			ids[i] = posting.ID
		}
		if err := p.store.MarkNotified(ctx, ids); err != nil {
			report.State = StateFailed
			return report, fmt.Errorf("mark notified: %w", err)
		}
	}

	report.State = StateDone
	p.logSummary(ctx)
	return report, nil
}

// logSummary prints store aggregates and imminent deadlines after a
// successful run. Failures here are logged, never fatal.
func (p *Pipeline) logSummary(ctx context.Context) {
	stats, err := p.store.Stats(ctx)
	if err != nil {
		p.log().Warn("stats unavailable", "error", err)
		return
	}
	p.log().Info("store stats",
		"total", stats.Total, "notified", stats.Notified, "pending", stats.Pending)
	for source, count := range stats.BySource {
		p.log().Info("source stats", "source", source, "count", count)
	}

	expiring, err := p.store.ExpiringSoon(ctx, p.expiringDays)
	if err != nil {
		p.log().Warn("expiring-soon lookup failed", "error", err)
		return
	}
	for _, posting := range expiring {
		p.log().Info("deadline approaching",
			"title", posting.Title, "end_date", posting.EndDate, "source", posting.Source)
	}
}

func (p *Pipeline) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}
