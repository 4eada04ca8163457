package result

import (
	"strings"
	"time"

	"webqa/internal/target"
)

// Mode names the kind of run that produced a summary.
type Mode string

const (
	ModeBaseline Mode = "baseline"
	ModeCompare  Mode = "compare"
	ModeMatrix   Mode = "matrix"
)

// Outcome is implemented by every per-target result record.
type Outcome interface {
	TargetOf() target.Target
	StatusOf() Status
}

// CaptureResult records one baseline capture.
type CaptureResult struct {
	Target target.Target `json:"target"`
	Path   string        `json:"path,omitempty"`
	Width  int           `json:"width,omitempty"`
	Height int           `json:"height,omitempty"`
	Status Status        `json:"status"`
	Error  string        `json:"error,omitempty"`
}

func (r CaptureResult) TargetOf() target.Target { return r.Target }
func (r CaptureResult) StatusOf() Status        { return r.Status }

// DiffResult records one visual comparison. When the comparison could not be
// made (missing baseline, capture failure, corrupt image) Status is Error and
// the ratio fields are zero.
type DiffResult struct {
	Target             target.Target `json:"target"`
	BaselineRef        string        `json:"baseline"`
	CurrentRef         string        `json:"current,omitempty"`
	DiffRatio          float64       `json:"diff_percentage"`
	Threshold          float64       `json:"threshold"`
	Passed             bool          `json:"passed"`
	DiffImageRef       string        `json:"diff,omitempty"`
	ComparisonImageRef string        `json:"comparison,omitempty"`
	ChangedPixels      int           `json:"changed_pixels"`
	TotalPixels        int           `json:"total_pixels"`
	Resized            bool          `json:"resized,omitempty"`
	Status             Status        `json:"status"`
	Error              string        `json:"error,omitempty"`
}

func (r DiffResult) TargetOf() target.Target { return r.Target }
func (r DiffResult) StatusOf() Status        { return r.Status }

// NewDiffResult builds a computed comparison record; Passed and Status are
// derived from the ratio so the invariant passed == (ratio <= threshold) holds.
func NewDiffResult(t target.Target, ratio, threshold float64) DiffResult {
	passed := ratio <= threshold
	status := StatusPass
	if !passed {
		status = StatusFail
	}
	return DiffResult{
		Target:    t,
		DiffRatio: ratio,
		Threshold: threshold,
		Passed:    passed,
		Status:    status,
	}
}

// StepResult is one step of the smoke-test protocol.
type StepResult struct {
	Name      string  `json:"test"`
	Status    Status  `json:"status"`
	Message   string  `json:"message"`
	ElapsedMs float64 `json:"elapsed_ms"`
}

// BrowserRunResult is the smoke-test outcome for one browser engine.
type BrowserRunResult struct {
	Target    target.Target `json:"target"`
	Status    Status        `json:"status"`
	Steps     []StepResult  `json:"tests"`
	ElapsedMs float64       `json:"elapsed_ms"`
	Error     string        `json:"error,omitempty"`
}

func (r BrowserRunResult) TargetOf() target.Target { return r.Target }
func (r BrowserRunResult) StatusOf() Status        { return r.Status }

// Rollup sets Status to the worst step status. It leaves an Error status
// (a run that never reached its steps) untouched.
func (r *BrowserRunResult) Rollup() {
	if r.Status == StatusError && len(r.Steps) == 0 {
		return
	}
	statuses := make([]Status, 0, len(r.Steps))
	for _, s := range r.Steps {
		statuses = append(statuses, s.Status)
	}
	r.Status = Worst(statuses...)
}

// Details summarises the non-passing steps, mirroring the console table.
func (r BrowserRunResult) Details() string {
	if r.Status == StatusError {
		return r.Error
	}
	var names []string
	for _, s := range r.Steps {
		if s.Status == StatusFail || s.Status == StatusWarn {
			names = append(names, s.Name)
		}
	}
	if len(names) == 0 {
		return "All tests passed"
	}
	return strings.Join(names, ", ")
}

// RunSummary is the aggregate of one invocation. It is built once by
// Aggregate and only read afterwards.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Mode       Mode      `json:"mode"`
	URL        string    `json:"url"`
	Flow       string    `json:"flow,omitempty"`
	Threshold  float64   `json:"threshold,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Warned  int `json:"warned"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`

	Overall  Status `json:"overall"`
	ExitCode int    `json:"exit_code"`

	Captures    []CaptureResult    `json:"captures,omitempty"`
	Comparisons []DiffResult       `json:"comparisons,omitempty"`
	Browsers    []BrowserRunResult `json:"browsers,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// Outcomes returns the per-target records in run order regardless of mode.
func (s *RunSummary) Outcomes() []Outcome {
	out := make([]Outcome, 0, s.Total)
	for _, r := range s.Captures {
		out = append(out, r)
	}
	for _, r := range s.Comparisons {
		out = append(out, r)
	}
	for _, r := range s.Browsers {
		out = append(out, r)
	}
	return out
}
