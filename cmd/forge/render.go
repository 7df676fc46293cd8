package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"testforge/internal/synth"
)

// Semantic colors shared across all forge output.
var (
	colorSuccess     = lipgloss.Color("#8BC34A") // Lime Green
	colorWarning     = lipgloss.Color("#FFC107") // Yellow
	colorDestructive = lipgloss.Color("#e53935") // Red
	colorInfo        = lipgloss.Color("#2196F3") // Blue
	colorMuted       = lipgloss.Color("#6c7a89")
)

var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(colorDestructive).
			Bold(true)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	styleInfo = lipgloss.NewStyle().
			Foreground(colorInfo)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)
)

// renderMarkdown renders a markdown document for the terminal. When the
// renderer cannot be built the raw markdown is returned, which is still
// readable.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// statusBadge renders a synthesis status with its semantic color.
func statusBadge(s synth.Status) string {
	switch s {
	case synth.StatusValid:
		return styleSuccess.Render(string(s))
	case synth.StatusValidWithWarnings:
		return styleWarning.Render(string(s))
	case synth.StatusInvalid:
		return styleError.Render(string(s))
	default:
		return styleMuted.Render(string(s))
	}
}

// similarityBar renders a 10-cell bar for a 0..1 similarity score.
func similarityBar(score float64) string {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	filled := int(score*10 + 0.5)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	style := styleError
	switch {
	case score >= 0.7:
		style = styleSuccess
	case score >= 0.4:
		style = styleWarning
	}
	return fmt.Sprintf("%s %.2f", style.Render(bar), score)
}
