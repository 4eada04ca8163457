package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webqa/internal/result"
	"webqa/internal/target"
)

func engine(t *testing.T, name string) target.Target {
	t.Helper()
	tg, ok := target.NewEngine(name)
	require.True(t, ok)
	return tg
}

func viewport(t *testing.T, name string) target.Target {
	t.Helper()
	tg, ok := target.NewViewport(name)
	require.True(t, ok)
	return tg
}

func matrixSummary(t *testing.T) result.RunSummary {
	chromium := result.BrowserRunResult{
		Target: engine(t, "chromium"),
		Steps: []result.StepResult{
			{Name: "Load page", Status: result.StatusPass, Message: "Loaded in 0.4s"},
			{Name: "Basic interactions", Status: result.StatusPass, Message: "Found 1 buttons, 2 links, 0 inputs"},
			{Name: "Console errors", Status: result.StatusPass, Message: "No obvious console errors"},
		},
	}
	chromium.Rollup()
	firefox := result.BrowserRunResult{
		Target: engine(t, "firefox"),
		Steps:  []result.StepResult{{Name: "Load page", Status: result.StatusFail, Message: "HTTP 500"}},
	}
	firefox.Rollup()
	webkit := result.BrowserRunResult{Target: engine(t, "webkit"), Status: result.StatusError, Error: "webkit not installed"}

	meta := result.Meta{
		RunID:      "run-1",
		Mode:       result.ModeMatrix,
		URL:        "http://app",
		Flow:       "checkout",
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 4, 9, 0, time.UTC),
	}
	return result.Aggregate(meta, []result.Outcome{chromium, firefox, webkit}, result.DefaultPolicy())
}

func TestAssemble_Matrix(t *testing.T) {
	doc := Assemble(matrixSummary(t))

	assert.Equal(t, "Cross-Browser Test Report", doc.Title)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 9, 0, time.UTC), doc.GeneratedAt)
	assert.Contains(t, doc.Metadata, Field{Label: "Flow", Value: "checkout"})
	assert.Contains(t, doc.Metadata, Field{Label: "Test Date", Value: "2026-01-02 03:04:05"})

	var titles []string
	for _, s := range doc.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Summary", "Test Matrix", "chromium", "firefox", "webkit"}, titles)

	summary := doc.Sections[0]
	assert.Equal(t, SeverityInfo, summary.Severity)
	assert.Contains(t, summary.Stats, Stat{Label: "Total Browsers", Value: 3})
	assert.Contains(t, summary.Stats, Stat{Label: "Errors", Value: 1})

	severities := []Severity{doc.Sections[2].Severity, doc.Sections[3].Severity, doc.Sections[4].Severity}
	assert.Equal(t, []Severity{SeveritySuccess, SeverityCritical, SeverityError}, severities)
}

func TestAssemble_MatrixTable(t *testing.T) {
	doc := Assemble(matrixSummary(t))
	table := doc.Sections[1].Table
	require.NotNil(t, table)

	assert.Equal(t, []string{"Test Step", "chromium", "firefox", "webkit"}, table.Headers)
	require.Len(t, table.Rows, 3)

	var stepOrder []string
	for _, row := range table.Rows {
		require.Len(t, row, len(table.Headers))
		stepOrder = append(stepOrder, row[0].Text)
	}
	assert.Equal(t, []string{"Load page", "Basic interactions", "Console errors"}, stepOrder)

	load := table.Rows[0]
	assert.Equal(t, Cell{Text: "FAIL", Detail: "HTTP 500", Status: "FAIL"}, load[2])
	assert.Equal(t, NotApplicable, load[3].Text)
	assert.Equal(t, NotApplicable, table.Rows[1][2].Text, "firefox never reached interactions")
	assert.Equal(t, SeverityError, doc.Sections[1].Severity)
}

func TestAssemble_BrowserSectionDetails(t *testing.T) {
	doc := Assemble(matrixSummary(t))

	chromium := doc.Sections[2]
	assert.Contains(t, chromium.Fields, Field{Label: "Details", Value: "All tests passed"})
	require.NotNil(t, chromium.Table)
	assert.Len(t, chromium.Table.Rows, 3)

	webkit := doc.Sections[4]
	assert.Nil(t, webkit.Table)
	assert.Contains(t, webkit.Fields, Field{Label: "Details", Value: "webkit not installed"})
}

func TestAssemble_Compare(t *testing.T) {
	desktop := viewport(t, "desktop")
	mobile := viewport(t, "mobile")

	pass := result.NewDiffResult(desktop, 0.01, 0.05)
	pass.BaselineRef, pass.CurrentRef = "base/desktop_1920x1080.png", "out/current/desktop_1920x1080.png"
	pass.DiffImageRef, pass.ComparisonImageRef = "out/desktop_diff.png", "out/desktop_comparison.png"
	pass.ChangedPixels, pass.TotalPixels = 20736, 2073600
	pass.Resized = true

	missing := result.DiffResult{Target: mobile, Threshold: 0.05, Status: result.StatusError, Error: "baseline not found"}

	s := result.Aggregate(result.Meta{Mode: result.ModeCompare, URL: "http://app", Threshold: 0.05},
		[]result.Outcome{pass, missing}, result.DefaultPolicy())
	doc := Assemble(s)

	assert.Equal(t, "Visual Regression Report", doc.Title)
	assert.Contains(t, doc.Metadata, Field{Label: "Threshold", Value: "5.00%"})
	require.Len(t, doc.Sections, 3)

	desk := doc.Sections[1]
	assert.Equal(t, SeveritySuccess, desk.Severity)
	assert.Contains(t, desk.Fields, Field{Label: "Difference", Value: "1.00%"})
	assert.Contains(t, desk.Fields, Field{Label: "Changed Pixels", Value: "20736 / 2073600"})
	want := []Image{
		{Caption: "Baseline", Path: "base/desktop_1920x1080.png"},
		{Caption: "Current", Path: "out/current/desktop_1920x1080.png"},
		{Caption: "Diff", Path: "out/desktop_diff.png"},
		{Caption: "Comparison", Path: "out/desktop_comparison.png"},
	}
	if diff := cmp.Diff(want, desk.Images); diff != "" {
		t.Errorf("images mismatch (-want +got):\n%s", diff)
	}

	mob := doc.Sections[2]
	assert.Equal(t, SeverityError, mob.Severity)
	assert.Empty(t, mob.Images)
	assert.Contains(t, mob.Fields, Field{Label: "Error", Value: "baseline not found"})
}

func TestAssemble_BaselineAndWarnings(t *testing.T) {
	ok := result.CaptureResult{Target: viewport(t, "tablet"), Path: "out/tablet_768x1024.png", Width: 768, Height: 1024}
	s := result.Aggregate(result.Meta{Mode: result.ModeBaseline, URL: "http://app", Warnings: []string{`unknown viewport "watch"`}},
		[]result.Outcome{ok}, result.DefaultPolicy())
	doc := Assemble(s)

	assert.Equal(t, "Visual Baseline Report", doc.Title)
	assert.Contains(t, doc.Sections[0].Fields, Field{Label: "Warning", Value: `unknown viewport "watch"`})
	assert.Contains(t, doc.Sections[0].Stats, Stat{Label: "Total Targets", Value: 1})
	assert.Equal(t, []Image{{Caption: "Baseline", Path: "out/tablet_768x1024.png"}}, doc.Sections[1].Images)
	assert.Contains(t, doc.Sections[1].Fields, Field{Label: "Size", Value: "768x1024"})
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeveritySuccess, SeverityFor(result.StatusPass))
	assert.Equal(t, SeverityWarning, SeverityFor(result.StatusWarn))
	assert.Equal(t, SeverityCritical, SeverityFor(result.StatusFail))
	assert.Equal(t, SeverityError, SeverityFor(result.StatusError))
}

func TestWriteSummaryJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s := matrixSummary(t)

	path, err := WriteSummaryJSON(dir, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "matrix_report.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded result.RunSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, result.StatusFail, decoded.Overall)
	require.Len(t, decoded.Browsers, 3)
	assert.Equal(t, "Load page", decoded.Browsers[1].Steps[0].Name)
	assert.Contains(t, string(data), `"test": "Load page"`)
}

func TestWriteDocumentJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDocumentJSON(dir, Assemble(matrixSummary(t)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DocumentFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.Sections, 5)
	assert.Equal(t, "Test Matrix", doc.Sections[1].Title)
}

func TestSummaryFile(t *testing.T) {
	assert.Equal(t, "comparison_report.json", SummaryFile(result.ModeCompare))
	assert.Equal(t, "matrix_report.json", SummaryFile(result.ModeMatrix))
	assert.Equal(t, "baseline_report.json", SummaryFile(result.ModeBaseline))
}
