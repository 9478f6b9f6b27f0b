// Package tally runs the skill counting pipeline: load totals, scan notes,
// merge, save, and render the chart.
package tally

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/skilltally/internal/apperr"
	"github.com/starford/skilltally/internal/counter"
	"github.com/starford/skilltally/internal/models"
	"github.com/starford/skilltally/internal/report"
	"github.com/starford/skilltally/internal/scanner"
)

// DefaultTopN is the number of bars drawn when none is configured.
const DefaultTopN = 20

// History stores run summaries.
type History interface {
	RecordRun(ctx context.Context, r models.Run) (int64, error)
	Runs(ctx context.Context, limit int) ([]models.Run, error)
}

// Option configures a Service.
type Option func(*Service)

// WithChart sets where the chart is written and how many bars it shows.
func WithChart(path string, topN int) Option {
	return func(s *Service) {
		s.chartPath = path
		if topN > 0 {
			s.topN = topN
		}
	}
}

// WithHistory records every run.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRunListener registers a callback invoked after each successful run.
func WithRunListener(fn func(models.Run)) Option {
	return func(s *Service) { s.listeners = append(s.listeners, fn) }
}

// Service coordinates the count store, scanner, and renderer. Runs are
// serialized; concurrent processes on the same files are not supported.
type Service struct {
	mu        sync.Mutex
	counts    *counter.Store
	scanner   *scanner.Scanner
	renderer  *report.Renderer
	chartPath string
	topN      int
	history   History
	listeners []func(models.Run)
	logger    *slog.Logger
}

// NewService creates a new pipeline service.
func NewService(counts *counter.Store, sc *scanner.Scanner, renderer *report.Renderer, opts ...Option) *Service {
	s := &Service{
		counts:    counts,
		scanner:   sc,
		renderer:  renderer,
		chartPath: "skills_frequency.png",
		topN:      DefaultTopN,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TopN returns the configured number of chart bars.
func (s *Service) TopN() int { return s.topN }

// ChartPath returns where Run writes the chart.
func (s *Service) ChartPath() string { return s.chartPath }

// Run executes the whole pipeline once. A failure after notes were marked
// leaves them marked without their increments saved.
func (s *Service) Run(ctx context.Context) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := models.Run{UID: uuid.NewString(), StartedAt: time.Now()}

	totals, err := s.counts.Load()
	if err != nil {
		return nil, err
	}

	res, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	totals.Merge(res.Increments)
	if err := s.counts.Save(totals); err != nil {
		return nil, err
	}

	sorted := totals.Sorted()
	if err := s.renderer.Render(sorted, s.topN, s.chartPath); err != nil {
		return nil, err
	}

	run.FinishedAt = time.Now()
	run.Notes = res.Notes
	run.Counted = res.Count(models.OutcomeCounted)
	run.Filtered = res.Count(models.OutcomeFiltered)
	run.Skipped = res.Count(models.OutcomeSkippedIndex) + res.Count(models.OutcomeSkippedProcessed)
	run.Scanned = run.Counted + run.Filtered
	run.Marked = res.Marked()
	run.Increments = res.Increments.Total()
	run.Top = counter.Top(sorted, s.topN)

	if s.history != nil {
		id, err := s.history.RecordRun(ctx, run)
		if err != nil {
			return nil, err
		}
		run.ID = id
	}

	s.logger.Info("run completed",
		slog.String("run", run.UID),
		slog.Int("scanned", run.Scanned),
		slog.Int("counted", run.Counted),
		slog.Int("filtered", run.Filtered),
		slog.Int("skipped", run.Skipped),
		slog.Int("marked", run.Marked),
		slog.Int("increments", run.Increments),
		slog.Int("skills", totals.Len()),
		slog.Duration("took", run.FinishedAt.Sub(run.StartedAt)))

	for _, fn := range s.listeners {
		fn(run)
	}
	return &run, nil
}

// Counts returns the persisted totals sorted by count descending.
func (s *Service) Counts(limit int) ([]models.SkillCount, error) {
	totals, err := s.counts.Load()
	if err != nil {
		return nil, err
	}
	return counter.Top(totals.Sorted(), limit), nil
}

// Skill returns the persisted count for one skill.
func (s *Service) Skill(name string) (models.SkillCount, error) {
	totals, err := s.counts.Load()
	if err != nil {
		return models.SkillCount{}, err
	}
	if !totals.Has(name) {
		return models.SkillCount{}, fmt.Errorf("skill %q: %w", name, apperr.ErrNotFound)
	}
	return models.SkillCount{Name: name, Count: totals.Get(name)}, nil
}

// Chart streams a chart of the top n persisted skills (n <= 0 uses the
// configured top N).
func (s *Service) Chart(w io.Writer, n int, format string) error {
	if n <= 0 {
		n = s.topN
	}
	entries, err := s.Counts(0)
	if err != nil {
		return err
	}
	return s.renderer.WriteTo(w, entries, n, format)
}

// History returns recent runs, newest first. Without a run store it is empty.
func (s *Service) History(ctx context.Context, limit int) ([]models.Run, error) {
	if s.history == nil {
		return []models.Run{}, nil
	}
	runs, err := s.history.Runs(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []models.Run{}
	}
	return runs, nil
}

// Preview reports what the next run would count without marking notes or
// touching the count file.
func (s *Service) Preview(ctx context.Context) (*scanner.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanner.Preview(ctx)
}
