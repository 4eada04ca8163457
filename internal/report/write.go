package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"webqa/internal/result"
)

// DocumentFile is the name WriteDocumentJSON writes.
const DocumentFile = "report.json"

// SummaryFile returns the summary file name for a run mode.
func SummaryFile(m result.Mode) string {
	switch m {
	case result.ModeCompare:
		return "comparison_report.json"
	case result.ModeMatrix:
		return "matrix_report.json"
	}
	return "baseline_report.json"
}

// WriteSummaryJSON writes the raw summary into dir and returns the path.
func WriteSummaryJSON(dir string, s result.RunSummary) (string, error) {
	return writeJSON(filepath.Join(dir, SummaryFile(s.Mode)), s)
}

// WriteDocumentJSON writes the assembled document into dir as report.json.
func WriteDocumentJSON(dir string, doc Document) (string, error) {
	return writeJSON(filepath.Join(dir, DocumentFile), doc)
}

func writeJSON(path string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
