// Package display renders catalog views on a terminal and opens tool URLs.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jonwraymond/toolshelf/catalog"
)

const (
	starOn  = "★"
	starOff = "☆"
)

// DefaultViewportRows is the viewport height used for reveal decisions.
const DefaultViewportRows = 24

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithViewportRows sets the number of rows treated as visible.
func WithViewportRows(rows int) TerminalOption {
	return func(t *Terminal) {
		if rows > 0 {
			t.rows = rows
		}
	}
}

// WithURLs toggles printing each card's URL. Default: on.
func WithURLs(on bool) TerminalOption {
	return func(t *Terminal) { t.urls = on }
}

// Terminal is a catalog.Surface that writes plain text. Card positions are
// measured in output lines.
type Terminal struct {
	out  io.Writer
	rows int
	urls bool

	mu       sync.Mutex
	search   string
	tops     []float64
	revealed map[int]bool
}

// NewTerminal creates a Terminal writing to out.
func NewTerminal(out io.Writer, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		out:      out,
		rows:     DefaultViewportRows,
		urls:     true,
		revealed: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetSearch replaces the search text the controller reads.
func (t *Terminal) SetSearch(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.search = s
}

func (t *Terminal) SearchText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.search
}

func (t *Terminal) Render(v catalog.View) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tops = t.tops[:0]
	t.revealed = make(map[int]bool)

	if v.Message != nil {
		fmt.Fprintf(t.out, "%s\n  %s\n", v.Message.Title, v.Message.Body)
		return
	}

	line := 0
	for _, c := range v.Cards {
		t.tops = append(t.tops, float64(line))
		line += t.writeCard(c)
	}
}

func (t *Terminal) writeCard(c catalog.Card) int {
	star := starOff
	if c.Favorited {
		star = starOn
	}
	lines := 1
	fmt.Fprintf(t.out, "%s %s\n", star, c.Name)
	if c.Description != "" {
		fmt.Fprintf(t.out, "  %s\n", c.Description)
		lines++
	}
	if t.urls && c.URL != "" {
		fmt.Fprintf(t.out, "  %s\n", c.URL)
		lines++
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(t.out, "  [%s]\n", strings.Join(c.Tags, "] ["))
		lines++
	}
	return lines
}

func (t *Terminal) SetFavoritesToggle(s catalog.ToggleState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	star := starOff
	if s.Icon == catalog.StarSolid {
		star = starOn
	}
	fmt.Fprintf(t.out, "[%s%s]\n", star, s.Label)
}

func (t *Terminal) CardTops() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]float64(nil), t.tops...)
}

func (t *Terminal) ViewportHeight() float64 { return float64(t.rows) }

func (t *Terminal) Reveal(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revealed[i] = true
}

// Revealed returns how many cards of the current render are revealed.
func (t *Terminal) Revealed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.revealed)
}

var _ catalog.Surface = (*Terminal)(nil)
