// Package meter draws a single-line console level meter for the live input.
package meter

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// DefaultWidth is the bar width in cells
const DefaultWidth = 60

// Zone boundaries as a fraction of full scale
const (
	yellowFrom = 0.33
	redFrom    = 0.66
)

// Theme defines the meter colors.
type Theme struct {
	Low  lipgloss.Color
	Mid  lipgloss.Color
	High lipgloss.Color
	Dim  lipgloss.Color
}

// DefaultTheme is green, yellow, red over a grey track.
var DefaultTheme = Theme{
	Low:  lipgloss.Color("#00ff9f"),
	Mid:  lipgloss.Color("#ffd700"),
	High: lipgloss.Color("#ff4040"),
	Dim:  lipgloss.Color("#6e7681"),
}

type styles struct {
	low, mid, high, track lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		low:   lipgloss.NewStyle().Foreground(t.Low),
		mid:   lipgloss.NewStyle().Foreground(t.Mid),
		high:  lipgloss.NewStyle().Foreground(t.High),
		track: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Meter redraws a bar on the current terminal line each time a level is
// observed. It satisfies dsp.IntensityObserver.
type Meter struct {
	w      io.Writer
	width  int
	styles styles

	mu   sync.Mutex
	last int
}

// New creates a meter writing to w. A width below 1 uses DefaultWidth.
func New(w io.Writer, width int) *Meter {
	if width < 1 {
		width = DefaultWidth
	}
	return &Meter{w: w, width: width, styles: newStyles(DefaultTheme), last: -1}
}

// ObserveIntensity draws level, a value in [0, 1]. Unchanged bars are not redrawn.
func (m *Meter) ObserveIntensity(level float64) {
	n := filled(level, m.width)

	m.mu.Lock()
	defer m.mu.Unlock()
	if n == m.last {
		return
	}
	m.last = n
	_, _ = io.WriteString(m.w, "\r"+m.render(n))
}

// Render returns the bar for level without drawing it.
func (m *Meter) Render(level float64) string {
	return m.render(filled(level, m.width))
}

func (m *Meter) render(n int) string {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < m.width; i++ {
		if i >= n {
			b.WriteString(m.styles.track.Render(strings.Repeat("·", m.width-n)))
			break
		}
		b.WriteString(m.zone(i).Render("█"))
	}
	b.WriteString("]")
	return b.String()
}

func (m *Meter) zone(cell int) lipgloss.Style {
	pos := float64(cell) / float64(m.width)
	switch {
	case pos >= redFrom:
		return m.styles.high
	case pos >= yellowFrom:
		return m.styles.mid
	default:
		return m.styles.low
	}
}

// Clear erases the meter line so other output starts on a clean line.
func (m *Meter) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = -1
	_, _ = io.WriteString(m.w, "\r"+strings.Repeat(" ", m.width+2)+"\r")
}

// filled returns the number of lit cells for level, clamped to [0, width].
func filled(level float64, width int) int {
	if level <= 0 || level != level {
		return 0
	}
	if level >= 1 {
		return width
	}
	return int(level*float64(width) + 0.5)
}
