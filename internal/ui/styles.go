package ui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette. One lime accent carries the whole display; the rest
// is grays plus the two alert colors.
const (
	ColorLime     = "154" // accent (#AFFF00)
	ColorLimeDim  = "106" // muted accent for inactive elements
	ColorWhite    = "255" // headers
	ColorGray     = "245" // labels and secondary text
	ColorDarkGray = "238" // borders and separators
	ColorRed      = "196" // errors
	ColorYellow   = "220" // warnings
)

// Styles bundles every lipgloss style the renderers draw with.
type Styles struct {
	// Text
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Active  lipgloss.Style

	// Panels and layout
	Border    lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style
}

// DefaultStyles is the colored set used by the TUI.
func DefaultStyles() Styles {
	fg := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}
	accent := fg(ColorLime)

	return Styles{
		Header:    accent.Bold(true),
		Success:   accent,
		Warning:   fg(ColorYellow),
		Error:     fg(ColorRed),
		Dim:       fg(ColorDarkGray),
		Active:    accent.Bold(true),
		Border:    fg(ColorDarkGray),
		Sparkline: accent,
		Speed:     fg(ColorGray),
		Label:     fg(ColorGray),
	}
}

// NoColorStyles leaves every style blank for NO_COLOR and dumb terminals.
func NoColorStyles() Styles {
	blank := lipgloss.NewStyle()
	return Styles{
		Header: blank, Success: blank, Warning: blank, Error: blank,
		Dim: blank, Active: blank, Border: blank, Sparkline: blank,
		Speed: blank, Label: blank,
	}
}

// GetStyles picks between the colored and blank sets.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
