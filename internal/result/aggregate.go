package result

import "time"

// Policy controls how target statuses map onto the run's overall status.
type Policy struct {
	// FailOnError makes an errored target fail the run.
	FailOnError bool `yaml:"fail_on_error" json:"fail_on_error"`
	// FailOnWarn makes a warning fail the run (strict mode).
	FailOnWarn bool `yaml:"fail_on_warn" json:"fail_on_warn"`
}

// DefaultPolicy fails the run on any Fail or Error.
func DefaultPolicy() Policy {
	return Policy{FailOnError: true}
}

// Meta carries the run-level fields that are not derived from outcomes.
type Meta struct {
	RunID      string
	Mode       Mode
	URL        string
	Flow       string
	Threshold  float64
	StartedAt  time.Time
	FinishedAt time.Time
	Warnings   []string
}

// Aggregate folds per-target outcomes into a RunSummary. It has no side
// effects; the outcome order is preserved in the summary.
func Aggregate(meta Meta, outcomes []Outcome, policy Policy) RunSummary {
	s := RunSummary{
		RunID:      meta.RunID,
		Mode:       meta.Mode,
		URL:        meta.URL,
		Flow:       meta.Flow,
		Threshold:  meta.Threshold,
		StartedAt:  meta.StartedAt,
		FinishedAt: meta.FinishedAt,
		Warnings:   meta.Warnings,
	}

	for _, o := range outcomes {
		switch r := o.(type) {
		case CaptureResult:
			s.Captures = append(s.Captures, r)
		case DiffResult:
			s.Comparisons = append(s.Comparisons, r)
		case BrowserRunResult:
			s.Browsers = append(s.Browsers, r)
		}

		s.Total++
		switch o.StatusOf() {
		case StatusPass:
			s.Passed++
		case StatusWarn:
			s.Passed++
			s.Warned++
		case StatusFail:
			s.Failed++
		case StatusError:
			s.Errored++
		}
	}

	s.Overall = policy.overall(s)
	s.ExitCode = ExitCode(s.Overall)
	return s
}

func (p Policy) overall(s RunSummary) Status {
	switch {
	case s.Failed > 0:
		return StatusFail
	case s.Errored > 0 && p.FailOnError:
		return StatusFail
	case s.Warned > 0 && p.FailOnWarn:
		return StatusFail
	}
	return StatusPass
}

// ExitCode maps an overall status onto the process exit status.
func ExitCode(overall Status) int {
	if overall == StatusPass || overall == StatusWarn {
		return 0
	}
	return 1
}
