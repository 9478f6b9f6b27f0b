package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/skilltally/internal/counter"
	"github.com/starford/skilltally/internal/models"
)

// TextChart draws the skill ranking as a terminal bar chart. Colours are
// dropped automatically when the output is not a terminal.
type TextChart struct {
	width      int
	titleStyle lipgloss.Style
	nameStyle  lipgloss.Style
	barStyle   lipgloss.Style
	valueStyle lipgloss.Style
	title      string
}

// NewTextChart creates a chart whose longest bar spans width cells.
func NewTextChart(width int, title string) *TextChart {
	if width <= 0 {
		width = 40
	}
	if title == "" {
		title = DefaultOptions().Title
	}
	return &TextChart{
		width:      width,
		title:      title,
		titleStyle: lipgloss.NewStyle().Bold(true),
		nameStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("#cdd6f4")),
		barStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#87ceeb")),
		valueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086")),
	}
}

// Render returns the first topN entries, largest first, one bar per line.
func (c *TextChart) Render(entries []models.SkillCount, topN int) string {
	top := counter.Top(entries, topN)

	var b strings.Builder
	title := c.title
	if strings.Contains(title, "%d") {
		n := topN
		if n <= 0 {
			n = len(top)
		}
		title = fmt.Sprintf(title, n)
	}
	b.WriteString(c.titleStyle.Render(title))
	b.WriteByte('\n')
	if len(top) == 0 {
		b.WriteString(c.valueStyle.Render("no skills counted yet"))
		b.WriteByte('\n')
		return b.String()
	}

	nameWidth, maxCount := 0, 0
	for _, e := range top {
		nameWidth = max(nameWidth, lipgloss.Width(e.Name))
		maxCount = max(maxCount, e.Count)
	}
	name := c.nameStyle.Width(nameWidth)

	for _, e := range top {
		cells := 0
		if maxCount > 0 {
			cells = max(1, e.Count*c.width/maxCount)
		}
		b.WriteString(name.Render(e.Name))
		b.WriteByte(' ')
		b.WriteString(c.barStyle.Render(strings.Repeat("█", cells)))
		b.WriteByte(' ')
		b.WriteString(c.valueStyle.Render(fmt.Sprintf("%d pts", e.Count)))
		b.WriteByte('\n')
	}
	return b.String()
}
