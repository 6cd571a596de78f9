package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/script"
	"github.com/muesli/termenv"
)

// ReportMarkdown formats a script report as markdown.
func ReportMarkdown(rep *script.Report) string {
	var b strings.Builder
	title := rep.Name
	if title == "" {
		title = "Script run"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString("| # | Action | Target | Progress | Click | Mode | History | Error |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, st := range rep.Steps {
		target := st.Target
		if st.Outcome != "" {
			target = strings.TrimSpace(target + " " + st.Outcome)
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %d | %s |\n",
			st.Index, st.Action, cell(target), cell(st.Progress), cell(st.Click), st.Mode, st.History, cell(st.Err))
	}
	b.WriteString("\n")
	b.WriteString(StatusMarkdown(rep.Final))
	fmt.Fprintf(&b, "\n_%d steps in %s_\n", len(rep.Steps), rep.Elapsed.Round(time.Millisecond))
	return b.String()
}

// StatusMarkdown formats a session status as markdown.
func StatusMarkdown(st tapestry.Status) string {
	var b strings.Builder
	b.WriteString("## Session\n\n")
	fmt.Fprintf(&b, "- **Model:** %s (%s)\n", st.Model, st.Kind)
	fmt.Fprintf(&b, "- **Mode:** %s\n", st.Mode)
	if st.Flow != "" {
		fmt.Fprintf(&b, "- **Flow:** %s at `%s`\n", st.Flow, st.Step)
	}
	if st.Job != nil {
		fmt.Fprintf(&b, "- **Job:** %s %.0f%%\n", st.Job.Name, st.Job.Progress*100)
	}
	if len(st.Selected) > 0 {
		fmt.Fprintf(&b, "- **Selected:** %s\n", strings.Join(st.Selected, ", "))
	}
	if len(st.History) > 0 {
		b.WriteString("\n### History\n\n")
		for i, e := range st.History {
			fmt.Fprintf(&b, "%d. %s (%d changes)\n", i+1, e.Label, len(e.Changes))
		}
	}
	return b.String()
}

// Verdict returns a coloured one-line summary of rep.
func Verdict(rep *script.Report) string {
	p := termenv.ColorProfile()
	if rep.Failed {
		return termenv.String("FAILED").Foreground(p.Color("#fb7185")).Bold().String()
	}
	return termenv.String("PASSED").Foreground(p.Color("#34d399")).Bold().String()
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}
