package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/phobologic/update-etags/internal/engine"
)

// Color palette shared by all CLI output.
const (
	ColorPrimary = lipgloss.Color("#7C3AED")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorSuccess = lipgloss.Color("#10B981")
	ColorError   = lipgloss.Color("#EF4444")
	ColorWarning = lipgloss.Color("#F59E0B")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	nameStyle = lipgloss.NewStyle().Bold(true)
)

// printSummary writes one line per tags file.
func printSummary(w io.Writer, results []engine.Result) {
	if len(results) == 0 {
		return
	}
	width := 0
	for _, res := range results {
		width = max(width, len(res.Project))
	}

	for _, res := range results {
		name := nameStyle.Render(res.Project + strings.Repeat(" ", width-len(res.Project)))
		var line string
		switch res.Status {
		case engine.StatusUpdated:
			line = fmt.Sprintf("%s %s  %s", SuccessStyle.Render("✓"), name,
				SubtitleStyle.Render(fmt.Sprintf("%s (%s)", res.TagsPath, res.Duration.Round(time.Millisecond))))
		case engine.StatusFailed:
			line = fmt.Sprintf("%s %s  %s", ErrorStyle.Render("✗"), name, ErrorStyle.Render(res.Err.Error()))
		case engine.StatusSkipped:
			line = fmt.Sprintf("%s %s  %s", WarningStyle.Render("-"), name, WarningStyle.Render("skipped"))
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
