package review

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tendly/social-pipeline/internal/model"
	"github.com/tendly/social-pipeline/internal/platform"
)

var (
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	fieldStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true).Width(14)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	okPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(0, 1)
	overPanelStyle = okPanelStyle.BorderForeground(lipgloss.Color("9"))
)

// renderDraft prints one draft with its tender context for review.
func renderDraft(w io.Writer, d model.Draft, index, total int) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, ruleStyle.Render(fmt.Sprintf("── Draft %d/%d ──", index, total)))

	rows := []struct{ label, value string }{
		{"Title", orNA(d.TenderTitle)},
		{"Ref Nr", orNA(d.TenderRef)},
		{"Platform", platformLabel(d.Platform)},
		{"Generated", d.GeneratedAt.Format("2006-01-02 15:04")},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %s %s\n", fieldStyle.Render(row.label), row.value)
	}

	maxChars := 0
	if p, err := platform.Parse(d.Platform); err == nil {
		maxChars = p.MaxChars()
	}

	panel := okPanelStyle
	if maxChars > 0 && d.CharCount > maxChars {
		panel = overPanelStyle
	}
	header := fmt.Sprintf("%s [%d/%d chars]", platformLabel(d.Platform), d.CharCount, maxChars)
	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render(header))
	fmt.Fprintln(w, panel.Render(d.Content))

	if len(d.Hashtags) > 0 {
		fmt.Fprintf(w, "  Hashtags: %s\n", strings.Join(d.Hashtags, " "))
	}
	if d.DocumentURL != "" {
		fmt.Fprintf(w, "  URL: %s\n", d.DocumentURL)
	}
}

func platformLabel(key string) string {
	if p, err := platform.Parse(key); err == nil {
		return p.Label()
	}
	return key
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
