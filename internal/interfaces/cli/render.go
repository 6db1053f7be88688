package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"symbion.dev/harness/internal/core/report"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headStyle  = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// renderStyled renders the report for a terminal.
func renderStyled(r report.Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("CONTRACT TESTING REPORT  (run %s)", r.RunID)) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Total messages collected: %d", r.TotalMessages)) + "\n")

	if len(r.Topics) > 0 {
		b.WriteString("\n" + headStyle.Render("Messages by topic") + "\n")
		for _, tc := range r.Topics {
			fmt.Fprintf(&b, "  %s: %d\n", tc.Topic, tc.Count)
		}
	}

	if len(r.Results) > 0 {
		b.WriteString("\n" + headStyle.Render("Contract compliance") + "\n")
		for _, res := range r.Results {
			line := fmt.Sprintf("  %s / %s: %d message(s)", res.Plugin, res.Contract, res.MatchedCount)
			switch {
			case !res.Passed():
				b.WriteString(failStyle.Render(fmt.Sprintf("%s, %d schema failure(s)", line, len(res.Failures))) + "\n")
				for _, f := range res.Failures {
					b.WriteString(dimStyle.Render("    - "+f.SchemaError) + "\n")
				}
			case res.MatchedCount == 0:
				b.WriteString(warnStyle.Render(line+", unobserved") + "\n")
			default:
				b.WriteString(okStyle.Render(line+", ok") + "\n")
			}
		}
	}

	if len(r.Diagnostics) > 0 {
		b.WriteString("\n" + headStyle.Render("Diagnostics") + "\n")
		for _, d := range r.Diagnostics {
			b.WriteString(warnStyle.Render(fmt.Sprintf("  [%s] %s", d.Kind, d.Message)) + "\n")
		}
	}

	return b.String()
}
