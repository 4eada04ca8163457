// Package report turns a RunSummary into a render-agnostic document: an
// ordered list of titled sections carrying stats, tables, fields and image
// references. HTML or Markdown rendering happens elsewhere.
package report

import (
	"fmt"
	"time"

	"webqa/internal/result"
)

// Severity classifies a section for renderers.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
)

// SeverityFor maps a target status onto a section severity.
func SeverityFor(s result.Status) Severity {
	switch s {
	case result.StatusPass:
		return SeveritySuccess
	case result.StatusWarn:
		return SeverityWarning
	case result.StatusFail:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// Document is an assembled report.
type Document struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Metadata    []Field   `json:"metadata,omitempty"`
	Sections    []Section `json:"sections"`
}

// Section is one block of the report. Only the populated parts are rendered.
type Section struct {
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
	Stats    []Stat   `json:"stats,omitempty"`
	Fields   []Field  `json:"fields,omitempty"`
	Table    *Table   `json:"table,omitempty"`
	Images   []Image  `json:"images,omitempty"`
}

// Stat is a labelled count.
type Stat struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Field is a labelled value.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Table is a header row plus body rows; every row has len(Headers) cells.
type Table struct {
	Headers []string `json:"headers"`
	Rows    [][]Cell `json:"rows"`
}

// Cell is one table cell. Status is empty for label cells.
type Cell struct {
	Text   string `json:"text"`
	Detail string `json:"detail,omitempty"`
	Status string `json:"status,omitempty"`
}

// Image references an artifact on disk.
type Image struct {
	Caption string `json:"caption"`
	Path    string `json:"path"`
}

// NotApplicable fills matrix cells for steps a browser never reached.
const NotApplicable = "N/A"

// Assemble builds the document for summary. The first section is always the
// summary; matrix runs add a test matrix; then one section per target in run
// order.
func Assemble(s result.RunSummary) Document {
	doc := Document{
		Title:       titleFor(s.Mode),
		Description: descriptionFor(s),
		GeneratedAt: s.FinishedAt,
		Metadata:    metadata(s),
	}
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now()
	}

	doc.Sections = append(doc.Sections, summarySection(s))
	if s.Mode == result.ModeMatrix && len(s.Browsers) > 0 {
		doc.Sections = append(doc.Sections, matrixSection(s.Browsers))
	}
	for _, r := range s.Captures {
		doc.Sections = append(doc.Sections, captureSection(r))
	}
	for _, r := range s.Comparisons {
		doc.Sections = append(doc.Sections, diffSection(r))
	}
	for _, r := range s.Browsers {
		doc.Sections = append(doc.Sections, browserSection(r))
	}
	return doc
}

func titleFor(m result.Mode) string {
	switch m {
	case result.ModeBaseline:
		return "Visual Baseline Report"
	case result.ModeCompare:
		return "Visual Regression Report"
	case result.ModeMatrix:
		return "Cross-Browser Test Report"
	}
	return "QA Report"
}

func descriptionFor(s result.RunSummary) string {
	switch s.Mode {
	case result.ModeMatrix:
		return "Multi-browser compatibility testing results for " + s.URL
	case result.ModeCompare:
		return "Screenshot comparison against baseline for " + s.URL
	}
	return "Baseline screenshots for " + s.URL
}

func metadata(s result.RunSummary) []Field {
	fields := []Field{
		{Label: "URL", Value: s.URL},
		{Label: "Run ID", Value: s.RunID},
	}
	if !s.StartedAt.IsZero() {
		fields = append(fields, Field{Label: "Test Date", Value: s.StartedAt.Format("2006-01-02 15:04:05")})
	}
	if s.Flow != "" {
		fields = append(fields, Field{Label: "Flow", Value: s.Flow})
	}
	if s.Mode == result.ModeCompare {
		fields = append(fields, Field{Label: "Threshold", Value: percent(s.Threshold)})
	}
	return fields
}

func summarySection(s result.RunSummary) Section {
	total := "Total Targets"
	if s.Mode == result.ModeMatrix {
		total = "Total Browsers"
	}
	sec := Section{
		Title:    "Summary",
		Severity: SeverityInfo,
		Stats: []Stat{
			{Label: "Passed", Value: s.Passed},
			{Label: "Warnings", Value: s.Warned},
			{Label: "Failed", Value: s.Failed},
			{Label: "Errors", Value: s.Errored},
			{Label: total, Value: s.Total},
		},
		Fields: []Field{{Label: "Overall", Value: s.Overall.String()}},
	}
	for _, w := range s.Warnings {
		sec.Fields = append(sec.Fields, Field{Label: "Warning", Value: w})
	}
	return sec
}

// matrixSection lays steps out as rows and browsers as columns. Rows follow
// the order in which step names are first seen across browsers.
func matrixSection(runs []result.BrowserRunResult) Section {
	var steps []string
	seen := make(map[string]bool)
	for _, r := range runs {
		for _, st := range r.Steps {
			if !seen[st.Name] {
				seen[st.Name] = true
				steps = append(steps, st.Name)
			}
		}
	}

	headers := []string{"Test Step"}
	for _, r := range runs {
		headers = append(headers, r.Target.Name)
	}

	table := &Table{Headers: headers}
	for _, name := range steps {
		row := []Cell{{Text: name}}
		for _, r := range runs {
			row = append(row, stepCell(r, name))
		}
		table.Rows = append(table.Rows, row)
	}

	worst := make([]result.Status, 0, len(runs))
	for _, r := range runs {
		worst = append(worst, r.Status)
	}
	return Section{
		Title:    "Test Matrix",
		Severity: SeverityFor(result.Worst(worst...)),
		Table:    table,
	}
}

func stepCell(r result.BrowserRunResult, name string) Cell {
	for _, st := range r.Steps {
		if st.Name == name {
			return Cell{Text: st.Status.String(), Detail: st.Message, Status: st.Status.String()}
		}
	}
	return Cell{Text: NotApplicable, Status: result.StatusError.String()}
}

func captureSection(r result.CaptureResult) Section {
	sec := Section{
		Title:    r.Target.String(),
		Severity: SeverityFor(r.Status),
		Fields:   []Field{{Label: "Status", Value: r.Status.String()}},
	}
	if r.Error != "" {
		sec.Fields = append(sec.Fields, Field{Label: "Error", Value: r.Error})
		return sec
	}
	sec.Fields = append(sec.Fields, Field{Label: "Size", Value: fmt.Sprintf("%dx%d", r.Width, r.Height)})
	sec.Images = []Image{{Caption: "Baseline", Path: r.Path}}
	return sec
}

func diffSection(r result.DiffResult) Section {
	sec := Section{
		Title:    r.Target.String(),
		Severity: SeverityFor(r.Status),
		Fields:   []Field{{Label: "Status", Value: r.Status.String()}},
	}
	if r.Error != "" {
		sec.Fields = append(sec.Fields, Field{Label: "Error", Value: r.Error})
		return sec
	}
	sec.Fields = append(sec.Fields,
		Field{Label: "Difference", Value: percent(r.DiffRatio)},
		Field{Label: "Threshold", Value: percent(r.Threshold)},
		Field{Label: "Changed Pixels", Value: fmt.Sprintf("%d / %d", r.ChangedPixels, r.TotalPixels)},
	)
	if r.Resized {
		sec.Fields = append(sec.Fields, Field{Label: "Resized", Value: "current resized to baseline dimensions"})
	}
	sec.Images = []Image{
		{Caption: "Baseline", Path: r.BaselineRef},
		{Caption: "Current", Path: r.CurrentRef},
		{Caption: "Diff", Path: r.DiffImageRef},
	}
	if r.ComparisonImageRef != "" {
		sec.Images = append(sec.Images, Image{Caption: "Comparison", Path: r.ComparisonImageRef})
	}
	return sec
}

func browserSection(r result.BrowserRunResult) Section {
	sec := Section{
		Title:    r.Target.Name,
		Severity: SeverityFor(r.Status),
		Fields: []Field{
			{Label: "Status", Value: r.Status.String()},
			{Label: "Elapsed", Value: fmt.Sprintf("%.0fms", r.ElapsedMs)},
			{Label: "Details", Value: r.Details()},
		},
	}
	if len(r.Steps) == 0 {
		return sec
	}
	table := &Table{Headers: []string{"Step", "Status", "Message"}}
	for _, st := range r.Steps {
		table.Rows = append(table.Rows, []Cell{
			{Text: st.Name},
			{Text: st.Status.String(), Status: st.Status.String()},
			{Text: st.Message},
		})
	}
	sec.Table = table
	return sec
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}
