// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/raincoat-go/raincoat/internal/config"
)

// Color palette shared by all CLI output, chosen for dark terminal backgrounds.
const (
	// ColorPrimary is purple, used for titles.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray, used for secondary text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is green, used for added lines and positive outcomes.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is red, used for removed lines and errors.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber, used for warnings and finding headers.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is blue, used for keys and hunk headers.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

// styles holds the lipgloss styles bound to one output stream.
type styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Key      lipgloss.Style

	// Finding rendering.
	header  lipgloss.Style
	plain   lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	hunk    lipgloss.Style
}

// newStyles binds the palette to w. The color mode decides whether w
// gets escape sequences: auto asks the terminal.
func newStyles(w io.Writer, mode config.ColorMode) styles {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case config.ColorAlways:
		r.SetColorProfile(termenv.TrueColor)
	case config.ColorNever:
		r.SetColorProfile(termenv.Ascii)
	}

	return styles{
		Title:    r.NewStyle().Bold(true).Foreground(ColorPrimary),
		Subtitle: r.NewStyle().Foreground(ColorMuted),
		Success:  r.NewStyle().Foreground(ColorSuccess),
		Error:    r.NewStyle().Bold(true).Foreground(ColorError),
		Warning:  r.NewStyle().Foreground(ColorWarning),
		Key:      r.NewStyle().Foreground(ColorHighlight),

		header:  r.NewStyle().Bold(true).Foreground(ColorWarning),
		plain:   r.NewStyle(),
		added:   r.NewStyle().Foreground(ColorSuccess),
		removed: r.NewStyle().Foreground(ColorError),
		hunk:    r.NewStyle().Foreground(ColorHighlight),
	}
}
