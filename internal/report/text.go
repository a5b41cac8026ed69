package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hugo-lorenzo-mato/camshot/internal/resolver"
)

// Color palette
var (
	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorMuted   = lipgloss.Color("#9CA3AF") // Muted gray
	ColorPrimary = lipgloss.Color("#7C3AED") // Purple
)

const keyWidth = 14

// TextRenderer renders reports as styled text. Colors are dropped when the
// writer is not a terminal.
type TextRenderer struct {
	ok     lipgloss.Style
	failed lipgloss.Style
	warn   lipgloss.Style
	header lipgloss.Style
	key    lipgloss.Style
	muted  lipgloss.Style
}

// NewTextRenderer creates a renderer for w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	r := lipgloss.NewRenderer(w)
	return &TextRenderer{
		ok:     r.NewStyle().Foreground(ColorSuccess).Bold(true),
		failed: r.NewStyle().Foreground(ColorError).Bold(true),
		warn:   r.NewStyle().Foreground(ColorWarning),
		header: r.NewStyle().Foreground(ColorPrimary).Bold(true),
		key:    r.NewStyle().Width(keyWidth).PaddingLeft(2),
		muted:  r.NewStyle().Foreground(ColorMuted),
	}
}

// Render returns the text form of rep.
func (t *TextRenderer) Render(rep Report) string {
	var b strings.Builder

	status := t.failed.Render("✗ " + string(rep.Outcome))
	if rep.OK() {
		status = t.ok.Render("✓ " + string(rep.Outcome))
	}
	fmt.Fprintf(&b, "%s %s\n", status, t.muted.Render(fmt.Sprintf("(exit %d)", rep.ExitCode)))
	fmt.Fprintf(&b, "  %s\n", rep.Message)

	b.WriteString("\n" + t.header.Render("Run") + "\n")
	t.row(&b, "run id", rep.RunID)
	t.row(&b, "started", rep.Started.Format(time.RFC3339))
	t.row(&b, "duration", rep.Duration)
	t.row(&b, "output dir", rep.OutputDir)
	t.row(&b, "device", rep.Device)
	t.row(&b, "frame grabber", dependencyLine(rep.Dependency))
	t.row(&b, "image", rep.SavedPath)
	t.row(&b, "metadata", rep.MetadataPath)
	t.row(&b, "run log", rep.RunLogPath)
	for _, a := range rep.Dependency.Attempts {
		b.WriteString(t.key.Render("") + t.muted.Render("install: "+a) + "\n")
	}

	if len(rep.Diagnostics) > 0 {
		b.WriteString("\n" + t.header.Render("Diagnostics") + "\n")
		for _, f := range rep.Diagnostics {
			v := f.Value
			if f.Fallback {
				v += " " + t.muted.Render("(fallback)")
			}
			t.row(&b, f.Key, v)
		}
	}

	if rep.Hint != "" {
		b.WriteString("\n" + t.warn.Render("hint: "+rep.Hint) + "\n")
	}
	return b.String()
}

func (t *TextRenderer) row(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString(t.key.Render(key))
	b.WriteString(value)
	b.WriteByte('\n')
}

func dependencyLine(res resolver.Resolution) string {
	switch {
	case res.Capability == "":
		return ""
	case res.Resolved():
		return fmt.Sprintf("%s (%s)", res.Path, res.Method)
	default:
		return "missing: " + res.Reason
	}
}
