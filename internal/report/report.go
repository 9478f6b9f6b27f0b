// Package report renders the skill frequency bar chart.
package report

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/starford/skilltally/internal/counter"
	"github.com/starford/skilltally/internal/models"
	"github.com/starford/skilltally/internal/storage"
)

// SkyBlue is the default bar colour.
var SkyBlue = color.RGBA{R: 135, G: 206, B: 235, A: 255}

// Options controls the chart appearance.
type Options struct {
	Width  vg.Length
	Height vg.Length
	Title  string // may contain one %d for the top N value
	XLabel string
	Color  color.Color
}

// DefaultOptions returns a 10x6 inch chart titled "Top N Skills Frequency".
func DefaultOptions() Options {
	return Options{
		Width:  10 * vg.Inch,
		Height: 6 * vg.Inch,
		Title:  "Top %d Skills Frequency",
		XLabel: "Points",
		Color:  SkyBlue,
	}
}

// Renderer draws horizontal bar charts of skill counts.
type Renderer struct {
	opts Options
}

// NewRenderer creates a renderer, filling zero options from DefaultOptions.
func NewRenderer(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Title == "" {
		opts.Title = def.Title
	}
	if opts.XLabel == "" {
		opts.XLabel = def.XLabel
	}
	if opts.Color == nil {
		opts.Color = def.Color
	}
	return &Renderer{opts: opts}
}

// Render writes a chart of the first topN entries to outputPath. The image
// format follows the file extension (png, jpg, svg, pdf, ...).
func (r *Renderer) Render(entries []models.SkillCount, topN int, outputPath string) error {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(outputPath), "."))
	if format == "" {
		return fmt.Errorf("report: no image format in %q", outputPath)
	}
	var buf bytes.Buffer
	if err := r.WriteTo(&buf, entries, topN, format); err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(outputPath, buf.Bytes()); err != nil {
		return fmt.Errorf("report: write %s: %w", outputPath, err)
	}
	return nil
}

// WriteTo streams the chart in the given format to w.
func (r *Renderer) WriteTo(w io.Writer, entries []models.SkillCount, topN int, format string) error {
	p, err := r.buildPlot(entries, topN)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(r.opts.Width, r.opts.Height, format)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("report: encode %s: %w", format, err)
	}
	return nil
}

// buildPlot lays out one bar per entry with the largest count on top and
// a "<n> pts" label at the end of each bar.
func (r *Renderer) buildPlot(entries []models.SkillCount, topN int) (*plot.Plot, error) {
	top := counter.Top(entries, topN)

	p := plot.New()
	p.Title.Text = r.title(topN)
	p.X.Label.Text = r.opts.XLabel
	p.X.Min = 0

	if len(top) == 0 {
		p.X.Max = 1
		p.Y.Min, p.Y.Max = 0, 1
		return p, nil
	}

	n := len(top)
	values := make(plotter.Values, n)
	names := make([]string, n)
	xys := make(plotter.XYs, n)
	labels := make([]string, n)
	maxCount := 0
	for i, e := range top {
		// NominalY puts index 0 at the bottom; reverse so the first entry is on top.
		j := n - 1 - i
		values[j] = float64(e.Count)
		names[j] = e.Name
		xys[j] = plotter.XY{X: float64(e.Count), Y: float64(j)}
		labels[j] = fmt.Sprintf("%d pts", e.Count)
		if e.Count > maxCount {
			maxCount = e.Count
		}
	}

	bars, err := plotter.NewBarChart(values, r.barWidth(n))
	if err != nil {
		return nil, fmt.Errorf("report: bars: %w", err)
	}
	bars.Horizontal = true
	bars.Color = r.opts.Color
	bars.LineStyle.Width = 0

	annotations, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, fmt.Errorf("report: labels: %w", err)
	}
	for i := range annotations.TextStyle {
		annotations.TextStyle[i].YAlign = text.YCenter
	}
	annotations.Offset = vg.Point{X: vg.Points(3)}

	p.Add(bars, annotations)
	p.NominalY(names...)
	if maxCount == 0 {
		p.X.Max = 1
	}
	return p, nil
}

func (r *Renderer) title(topN int) string {
	if strings.Contains(r.opts.Title, "%d") {
		return fmt.Sprintf(r.opts.Title, topN)
	}
	return r.opts.Title
}

// barWidth fills about 60% of each category row, capped for short charts.
func (r *Renderer) barWidth(n int) vg.Length {
	w := r.opts.Height * 0.6 / vg.Length(n)
	if limit := vg.Points(28); w > limit {
		w = limit
	}
	return w
}
