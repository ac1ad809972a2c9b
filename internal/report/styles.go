// Package report renders classified permits for the terminal and exports
// them as CSV, XLSX or JSON.
package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/sells-group/middle-housing/internal/model"
)

var (
	primaryColor  = lipgloss.Color("#4ECDC4")
	middleColor   = lipgloss.Color("#95E1D3")
	newSFRColor   = lipgloss.Color("#FFE66D")
	excludedColor = lipgloss.Color("#666666")
	borderColor   = lipgloss.Color("#333")
)

// styles are bound to the output writer so color is only emitted to terminals.
type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	subtle   lipgloss.Style
	box      lipgloss.Style
	category map[bool]lipgloss.Style
	newSFR   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(primaryColor),
		header: r.NewStyle().Bold(true).Foreground(primaryColor),
		subtle: r.NewStyle().Foreground(excludedColor),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1),
		category: map[bool]lipgloss.Style{
			true:  r.NewStyle().Bold(true).Foreground(middleColor),
			false: r.NewStyle().Foreground(excludedColor),
		},
		newSFR: r.NewStyle().Foreground(newSFRColor),
	}
}

func (s styles) categoryStyle(c model.Classification) lipgloss.Style {
	if c.Category == model.CategoryNewSFR {
		return s.newSFR
	}
	return s.category[c.IsMiddleHousing]
}
