package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// MaxSummaryResults is how many failing expectations a summary lists.
const MaxSummaryResults = 10

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// WriteSummary renders a human-readable summary of r. With styled false the
// output is plain text suitable for logs and pipes.
func WriteSummary(w io.Writer, r *Report, styled bool) error {
	render := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	verdict := render(passStyle, "true")
	if !r.Success {
		verdict = render(failStyle, "false")
	}

	var b strings.Builder
	b.WriteString("\n" + render(titleStyle, "Validation summary:") + "\n")
	fmt.Fprintf(&b, "  %s %s\n", render(labelStyle, "success:"), verdict)
	fmt.Fprintf(&b, "  %s %d\n", render(labelStyle, "evaluated_expectations:"), r.Statistics.EvaluatedExpectations)
	fmt.Fprintf(&b, "  %s %d\n", render(labelStyle, "successful_expectations:"), r.Statistics.SuccessfulExpectations)
	fmt.Fprintf(&b, "  %s %d\n", render(labelStyle, "unsuccessful_expectations:"), r.Statistics.UnsuccessfulExpectations)
	fmt.Fprintf(&b, "  %s %d\n", render(labelStyle, "rows:"), r.Statistics.Rows)

	failing := r.Failing(MaxSummaryResults)
	if len(failing) == 0 {
		b.WriteString(render(noteStyle, "No failing expectations.") + "\n")
	} else {
		fmt.Fprintf(&b, "\n%s\n", render(titleStyle, fmt.Sprintf("Failing expectations (up to %d):", MaxSummaryResults)))
		for _, res := range failing {
			fmt.Fprintf(&b, " - %s on %s: %s\n",
				render(failStyle, res.Expectation), res.Column, describe(res))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func describe(res Result) string {
	if res.Reason != "" {
		return res.Reason
	}
	data, err := json.Marshal(res.Result)
	if err != nil {
		return fmt.Sprintf("%v", res.Result)
	}
	return string(data)
}
