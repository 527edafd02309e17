// Package ui renders mealsync CLI output: colors, status marks and tables.
// Colors follow the Ayu palette and adapt to light and dark terminals.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Tone is the meaning a piece of output carries. Each tone has one color
// and one status mark.
type Tone int

const (
	ToneMuted Tone = iota
	TonePass
	ToneWarn
	ToneFail
	ToneAccent
)

var (
	tonePalette = map[Tone]lipgloss.AdaptiveColor{
		ToneMuted:  {Light: "#828c99", Dark: "#6c7680"},
		TonePass:   {Light: "#86b300", Dark: "#c2d94c"},
		ToneWarn:   {Light: "#f2ae49", Dark: "#ffb454"},
		ToneFail:   {Light: "#f07171", Dark: "#f07178"},
		ToneAccent: {Light: "#399ee6", Dark: "#59c2ff"},
	}
	toneMarks = map[Tone]string{
		ToneMuted:  "-",
		TonePass:   "✓",
		ToneWarn:   "⚠",
		ToneFail:   "✗",
		ToneAccent: "ℹ",
	}
	// asciiMarks stand in when emoji are off.
	asciiMarks = map[Tone]string{
		ToneMuted:  "-",
		TonePass:   "ok",
		ToneWarn:   "!",
		ToneFail:   "x",
		ToneAccent: "i",
	}
)

// Style returns the foreground style of t.
func (t Tone) Style() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(tonePalette[t])
}

// Paint colors s with the tone's color.
func Paint(t Tone, s string) string {
	return t.Style().Render(s)
}

// Mark returns the colored status mark for t.
func Mark(t Tone) string {
	marks := toneMarks
	if !emojiEnabled {
		marks = asciiMarks
	}
	return Paint(t, marks[t])
}

// Heading renders a section header, bold and upper-cased.
func Heading(s string) string {
	return ToneAccent.Style().Bold(true).Render(strings.ToUpper(s))
}

// PointsTone picks the tone of a balance: muted at or below zero, warn under
// low, pass otherwise.
func PointsTone(v, low float64) Tone {
	switch {
	case v <= 0:
		return ToneMuted
	case v < low:
		return ToneWarn
	default:
		return TonePass
	}
}

// RenderPoints formats and colors a balance.
func RenderPoints(v, low float64) string {
	return Paint(PointsTone(v, low), FormatPoints(v))
}
