package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"webqa/internal/result"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	statusStyles = map[result.Status]lipgloss.Style{
		result.StatusPass:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		result.StatusWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		result.StatusFail:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		result.StatusError: lipgloss.NewStyle().Foreground(lipgloss.Color("201")),
	}
)

func statusText(s result.Status) string {
	return statusStyles[s].Render(s.String())
}

// printSummary writes the per-target table and totals for a finished run.
func printSummary(w io.Writer, s result.RunSummary) {
	var b strings.Builder

	fmt.Fprintln(&b, titleStyle.Render(fmt.Sprintf("webqa %s: %s", s.Mode, s.URL)))
	if s.Flow != "" {
		fmt.Fprintln(&b, mutedStyle.Render("flow: "+s.Flow))
	}
	fmt.Fprintln(&b, mutedStyle.Render("run: "+s.RunID))
	for _, warning := range s.Warnings {
		fmt.Fprintln(&b, statusStyles[result.StatusWarn].Render("warning: "+warning))
	}
	fmt.Fprintln(&b)

	headers, rows := summaryRows(s)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(&b, t.Render())

	if s.Mode == result.ModeMatrix {
		writeMatrixDetails(&b, s.Browsers)
	}

	fmt.Fprintf(&b, "\nPassed: %d  Warnings: %d  Failed: %d  Errors: %d  Total: %d\n",
		s.Passed, s.Warned, s.Failed, s.Errored, s.Total)
	fmt.Fprintf(&b, "Overall: %s\n", statusText(s.Overall))

	_, _ = io.WriteString(w, b.String())
}

func summaryRows(s result.RunSummary) ([]string, [][]string) {
	switch s.Mode {
	case result.ModeCompare:
		rows := make([][]string, 0, len(s.Comparisons))
		for _, r := range s.Comparisons {
			diff, details := "-", r.Error
			if r.Status != result.StatusError {
				diff = fmt.Sprintf("%.2f%%", r.DiffRatio*100)
				details = r.DiffImageRef
				if r.Resized {
					details += " (resized)"
				}
			}
			rows = append(rows, []string{r.Target.String(), diff, statusText(r.Status), details})
		}
		return []string{"Viewport", "Diff", "Status", "Details"}, rows

	case result.ModeMatrix:
		rows := make([][]string, 0, len(s.Browsers))
		for _, r := range s.Browsers {
			rows = append(rows, []string{strings.ToUpper(r.Target.Name), statusText(r.Status), r.Details()})
		}
		return []string{"Browser", "Status", "Details"}, rows
	}

	rows := make([][]string, 0, len(s.Captures))
	for _, r := range s.Captures {
		details := r.Path
		if r.Error != "" {
			details = r.Error
		}
		rows = append(rows, []string{r.Target.String(), statusText(r.Status), details})
	}
	return []string{"Viewport", "Status", "Details"}, rows
}

func writeMatrixDetails(b *strings.Builder, runs []result.BrowserRunResult) {
	fmt.Fprintln(b, "\nDetailed results:")
	for _, r := range runs {
		fmt.Fprintf(b, "\n%s (%.0fms)\n", strings.ToUpper(r.Target.Name), r.ElapsedMs)
		if len(r.Steps) == 0 {
			fmt.Fprintf(b, "  [%s] %s\n", statusText(r.Status), r.Error)
			continue
		}
		for _, st := range r.Steps {
			fmt.Fprintf(b, "  [%s] %s: %s\n", statusText(st.Status), st.Name, st.Message)
		}
	}
}
