package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", l10n.T("Session Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", l10n.T("Generated"), s.GeneratedAt.Format(time.RFC3339))

	source := s.Session.Source
	if source == "" {
		source = l10n.T("None")
	}
	section(&b, l10n.T("Session"), [][2]string{
		{l10n.T("State"), s.Session.State},
		{l10n.T("Source"), source},
		{l10n.T("Last Seek Position"), fmt.Sprintf("%d", s.Session.LastSeek)},
		{l10n.T("Uptime"), s.Uptime.Round(time.Second).String()},
	})

	section(&b, l10n.T("Score Region"), [][2]string{
		{l10n.T("Position"), fmt.Sprintf("%.0f, %.0f", s.Region.X, s.Region.Y)},
		{l10n.T("Size"), fmt.Sprintf("%.0fx%.0f", s.Region.Width, s.Region.Height)},
	})

	section(&b, l10n.T("Frames"), [][2]string{
		{l10n.T("Received"), fmt.Sprintf("%d", s.Frames.Received)},
		{l10n.T("Dropped"), fmt.Sprintf("%d (%.1f%%)", s.Frames.Dropped, s.Frames.DropRate()*100)},
		{l10n.T("Malformed"), fmt.Sprintf("%d", s.Frames.Malformed)},
		{l10n.T("Last Frame"), fmt.Sprintf("#%d", s.Frames.LastSeq)},
	})

	section(&b, l10n.T("Splits"), [][2]string{
		{l10n.T("Triggered"), fmt.Sprintf("%d / %d", s.Splits.Triggered, s.Splits.Count)},
	})

	section(&b, l10n.T("Settings"), [][2]string{
		{l10n.T("Backend"), s.Settings.Backend},
		{l10n.T("Canvas Size"), fmt.Sprintf("%dx%d", s.Settings.CanvasWidth, s.Settings.CanvasHeight)},
		{l10n.T("Frame Interval"), fmt.Sprintf("%d ms", s.Settings.FrameIntervalMs)},
	})

	return b.String()
}

func section(b *strings.Builder, title string, rows [][2]string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", l10n.T("Item"), l10n.T("Value"))
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", r[0], r[1])
	}
	b.WriteString("\n")
}

// Ensure MarkdownFormatter implements Formatter
var _ Formatter = (*MarkdownFormatter)(nil)
