// Package ui renders command output for the terminal.
package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
)

// Color palette
var (
	colorGreen  = lipgloss.Color("42")
	colorYellow = lipgloss.Color("214")
	colorRed    = lipgloss.Color("196")
	colorBlue   = lipgloss.Color("39")
	colorGray   = lipgloss.Color("245")
	colorWhite  = lipgloss.Color("255")
)

// Styles holds the text styles used by Printer.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Normal  lipgloss.Style
	Muted   lipgloss.Style
	Created lipgloss.Style
	Updated lipgloss.Style
	Failed  lipgloss.Style
	Warning lipgloss.Style

	IndicatorCreated string
	IndicatorUpdated string
	IndicatorFailed  string
	IndicatorWarning string
	IndicatorOrphan  string
}

// DefaultStyles returns styles bound to renderer r.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(colorWhite),
		Header:  r.NewStyle().Bold(true).Foreground(colorGray),
		Normal:  r.NewStyle(),
		Muted:   r.NewStyle().Foreground(colorGray),
		Created: r.NewStyle().Foreground(colorGreen),
		Updated: r.NewStyle().Foreground(colorBlue),
		Failed:  r.NewStyle().Foreground(colorRed),
		Warning: r.NewStyle().Foreground(colorYellow),

		IndicatorCreated: "+",
		IndicatorUpdated: "~",
		IndicatorFailed:  "✗",
		IndicatorWarning: "!",
		IndicatorOrphan:  "?",
	}
}

// NewRenderer returns a lipgloss renderer for w. Color is dropped when
// noColor is set, NO_COLOR is present or w is not a terminal.
func NewRenderer(w io.Writer, noColor bool) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if noColor || termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}

// Truncate shortens s to width display cells, ending in "…" when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// Pad truncates or right-pads s to exactly width display cells.
func Pad(s string, width int) string {
	return runewidth.FillRight(Truncate(s, width), width)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	if strings.HasSuffix(word, "y") {
		return strings.TrimSuffix(word, "y") + "ies"
	}
	return word + "s"
}
