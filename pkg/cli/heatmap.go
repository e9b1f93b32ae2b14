package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
)

// Theme is the terminal colour scheme.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	// Ramp runs from the coldest to the hottest heatmap cell.
	Ramp []lipgloss.Color
}

// DefaultTheme is green on dark grey.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Ramp: []lipgloss.Color{
		"#0d1117", "#0e4429", "#006d32", "#26a641", "#39d353", "#b4f5a0", "#ffffff",
	},
}

// Styles derived from a Theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
	cells  []lipgloss.Style
}

// NewStyles builds Styles for t.
func NewStyles(t Theme) Styles {
	s := Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Value:  lipgloss.NewStyle(),
		Border: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 1),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
	for _, c := range t.Ramp {
		s.cells = append(s.cells, lipgloss.NewStyle().Foreground(c))
	}
	return s
}

var pitchNames = [chroma.NumPitchClasses]string{
	"A", "A#", "B", "C", "C#", "D", "D#", "E", "F", "F#", "G", "G#",
}

// Heatmap renders a feature image with time running left to right and one
// line per feature. Images wider than maxCols frames are averaged down.
type Heatmap struct {
	Styles  Styles
	Title   string
	MaxCols int
}

// Render draws img.
func (h Heatmap) Render(img *chroma.FeatureImage) string {
	width := img.Width()
	cols := downsample(img, max(h.MaxCols, 1))

	hi := 0.0
	for _, col := range cols {
		hi = max(hi, slices.Max(col))
	}

	labels := make([]string, width)
	labelWidth := 0
	for f := range width {
		if width == chroma.NumPitchClasses {
			labels[f] = pitchNames[f]
		} else {
			labels[f] = fmt.Sprint(f)
		}
		labelWidth = max(labelWidth, len(labels[f]))
	}

	var b strings.Builder
	if h.Title != "" {
		b.WriteString(h.Styles.Title.Render(h.Title))
		b.WriteByte('\n')
	}
	// Highest feature on top.
	for f := width - 1; f >= 0; f-- {
		b.WriteString(h.Styles.Label.Render(fmt.Sprintf("%*s ", labelWidth, labels[f])))
		for _, col := range cols {
			b.WriteString(h.cell(col[f], hi))
		}
		if f > 0 {
			b.WriteByte('\n')
		}
	}
	return h.Styles.Border.Render(b.String()) + "\n" +
		h.Styles.Help.Render(fmt.Sprintf("%d frames × %d features", img.NumRows(), width))
}

func (h Heatmap) cell(v, hi float64) string {
	if len(h.Styles.cells) == 0 {
		return "█"
	}
	idx := 0
	if hi > 0 {
		idx = int(v / hi * float64(len(h.Styles.cells)-1))
	}
	idx = min(max(idx, 0), len(h.Styles.cells)-1)
	return h.Styles.cells[idx].Render("█")
}

// downsample averages consecutive rows so at most n columns remain.
func downsample(img *chroma.FeatureImage, n int) [][]float64 {
	rows := img.Rows()
	if len(rows) <= n {
		return rows
	}
	out := make([][]float64, n)
	for c := range n {
		lo, hi := c*len(rows)/n, (c+1)*len(rows)/n
		col := make([]float64, img.Width())
		for _, r := range rows[lo:hi] {
			for j, v := range r {
				col[j] += v
			}
		}
		for j := range col {
			col[j] /= float64(hi - lo)
		}
		out[c] = col
	}
	return out
}

// KeyValues renders aligned "key: value" lines inside a border.
func KeyValues(s Styles, title string, pairs ...[2]string) string {
	w := 0
	for _, p := range pairs {
		w = max(w, len(p[0]))
	}
	lines := make([]string, 0, len(pairs)+1)
	if title != "" {
		lines = append(lines, s.Title.Render(title))
	}
	for _, p := range pairs {
		lines = append(lines, s.Label.Render(fmt.Sprintf("%-*s", w, p[0]))+"  "+s.Value.Render(p[1]))
	}
	return s.Border.Render(strings.Join(lines, "\n"))
}
