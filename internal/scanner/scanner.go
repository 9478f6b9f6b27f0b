// Package scanner walks the notes directory and turns eligible job notes
// into per-run skill increments.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/skilltally/internal/apperr"
	"github.com/starford/skilltally/internal/counter"
	"github.com/starford/skilltally/internal/models"
	"github.com/starford/skilltally/internal/parser"
	"github.com/starford/skilltally/internal/storage"
)

// Tracker remembers which notes have already been counted.
type Tracker interface {
	// Seen reports whether path was recorded as processed outside of its
	// header marker.
	Seen(ctx context.Context, path string) (bool, error)
	// Mark records path as processed. It returns false when the note could
	// not be marked (e.g. it has no header in marker mode).
	Mark(ctx context.Context, path string, content []byte, skills []string) (bool, error)
}

// Options controls eligibility and extraction.
type Options struct {
	IndexFile    string // file name of the index note, never scanned
	IgnoreSkills []string
	IncludeTag   string
	RejectTag    string
	ProcessedTag string
}

// Result is the outcome of one scan.
type Result struct {
	Increments *counter.Table
	Notes      []models.NoteResult
}

// Count returns how many notes ended with the given outcome.
func (r *Result) Count(o models.Outcome) int {
	n := 0
	for _, nr := range r.Notes {
		if nr.Outcome == o {
			n++
		}
	}
	return n
}

// Marked returns how many notes were marked during the scan.
func (r *Result) Marked() int {
	n := 0
	for _, nr := range r.Notes {
		if nr.Marked {
			n++
		}
	}
	return n
}

// Scanner extracts skills from note files.
type Scanner struct {
	store   storage.Provider
	tracker Tracker
	opts    Options
	ignore  map[string]struct{}
	logger  *slog.Logger
}

// New creates a scanner. A nil logger uses slog.Default().
func New(store storage.Provider, tracker Tracker, opts Options, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	ignore := make(map[string]struct{}, len(opts.IgnoreSkills))
	for _, s := range opts.IgnoreSkills {
		ignore[s] = struct{}{}
	}
	return &Scanner{store: store, tracker: tracker, opts: opts, ignore: ignore, logger: logger}
}

// Scan processes every note in listing order. Notes that are neither the
// index note nor already processed are read, counted when their tags
// allow it, and marked processed either way. I/O errors abort the scan.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	return s.scan(ctx, true)
}

// Preview classifies notes like Scan but marks nothing, so it reports what
// the next run would count.
func (s *Scanner) Preview(ctx context.Context) (*Result, error) {
	return s.scan(ctx, false)
}

func (s *Scanner) scan(ctx context.Context, mark bool) (*Result, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}

	res := &Result{Increments: counter.NewTable()}
	for _, m := range metas {
		nr, err := s.scanFile(ctx, m.Path, mark)
		if err != nil {
			return nil, err
		}
		res.Notes = append(res.Notes, nr)
		for _, skill := range nr.Skills {
			res.Increments.Add(skill, 1)
		}
	}
	return res, nil
}

func (s *Scanner) scanFile(ctx context.Context, p string, mark bool) (models.NoteResult, error) {
	nr := models.NoteResult{Path: p}
	if s.isIndex(p) {
		nr.Outcome = models.OutcomeSkippedIndex
		return nr, nil
	}

	data, err := s.store.Read(p)
	if err != nil {
		return nr, fmt.Errorf("scanner: %w", err)
	}
	doc := parser.Parse(data)

	processed, err := s.isProcessed(ctx, p, doc)
	if err != nil {
		return nr, err
	}
	if processed {
		nr.Outcome = models.OutcomeSkippedProcessed
		s.logger.Debug("scan: already processed", slog.String("path", p))
		return nr, nil
	}

	nr.Outcome = models.OutcomeFiltered
	if s.Accepts(doc) {
		nr.Outcome = models.OutcomeCounted
		nr.Skills = s.ExtractSkills(doc.Body)
	}
	if !mark {
		return nr, nil
	}

	marked, err := s.tracker.Mark(ctx, p, data, nr.Skills)
	switch {
	case errors.Is(err, apperr.ErrNotMarked):
		s.logger.Warn("scan: note left unmarked", slog.String("path", p), slog.String("error", err.Error()))
	case err != nil:
		return nr, fmt.Errorf("scanner: mark %s: %w", p, err)
	}
	nr.Marked = marked

	s.logger.Debug("scan: note processed",
		slog.String("path", p),
		slog.String("outcome", string(nr.Outcome)),
		slog.Int("skills", len(nr.Skills)),
		slog.Bool("marked", marked))
	return nr, nil
}

// IsEligible reports whether a note's skills should be counted: it is not
// the index note, not yet processed, and its tag list (when declared)
// includes the include tag and not the reject tag.
func (s *Scanner) IsEligible(ctx context.Context, p string, doc *parser.Result) (bool, error) {
	if s.isIndex(p) {
		return false, nil
	}
	processed, err := s.isProcessed(ctx, p, doc)
	if err != nil || processed {
		return false, err
	}
	return s.Accepts(doc), nil
}

// Accepts applies the tag filter. Notes without a declared tag list pass.
func (s *Scanner) Accepts(doc *parser.Result) bool {
	if doc.Header == nil || !doc.Header.HasTags {
		return true
	}
	if doc.HasTag(s.opts.RejectTag) {
		return false
	}
	return doc.HasTag(s.opts.IncludeTag)
}

// ExtractSkills returns the distinct skill references in body, in order of
// first occurrence, without the ignored names.
func (s *Scanner) ExtractSkills(body string) []string {
	var out []string
	for _, link := range parser.ExtractLinks(body) {
		if _, skip := s.ignore[link]; skip {
			continue
		}
		out = append(out, link)
	}
	return out
}

func (s *Scanner) isIndex(p string) bool {
	return s.opts.IndexFile != "" && path.Base(p) == s.opts.IndexFile
}

func (s *Scanner) isProcessed(ctx context.Context, p string, doc *parser.Result) (bool, error) {
	if doc.HasTag(s.opts.ProcessedTag) {
		return true, nil
	}
	seen, err := s.tracker.Seen(ctx, p)
	if err != nil {
		return false, fmt.Errorf("scanner: tracker lookup %s: %w", p, err)
	}
	return seen, nil
}
