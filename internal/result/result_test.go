package result

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webqa/internal/target"
)

func engine(t *testing.T, name string) target.Target {
	t.Helper()
	tg, ok := target.NewEngine(name)
	require.True(t, ok)
	return tg
}

func TestWorst_Precedence(t *testing.T) {
	assert.Equal(t, StatusPass, Worst())
	assert.Equal(t, StatusPass, Worst(StatusPass, StatusPass))
	assert.Equal(t, StatusWarn, Worst(StatusPass, StatusWarn, StatusPass))
	assert.Equal(t, StatusFail, Worst(StatusWarn, StatusFail, StatusPass))
	assert.Equal(t, StatusError, Worst(StatusFail, StatusError))
}

func TestStatus_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(StatusWarn)
	require.NoError(t, err)
	assert.Equal(t, `"WARN"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"fail"`), &s))
	assert.Equal(t, StatusFail, s)

	assert.Error(t, json.Unmarshal([]byte(`"MAYBE"`), &s))
}

func TestNewDiffResult_Boundary(t *testing.T) {
	tg, _ := target.NewViewport("desktop")

	at := NewDiffResult(tg, 0.05, 0.05)
	assert.True(t, at.Passed, "ratio equal to threshold must pass")
	assert.Equal(t, StatusPass, at.Status)

	above := NewDiffResult(tg, 0.0500001, 0.05)
	assert.False(t, above.Passed)
	assert.Equal(t, StatusFail, above.Status)
}

func TestRollup(t *testing.T) {
	r := BrowserRunResult{Steps: []StepResult{
		{Name: "Load page", Status: StatusPass},
		{Name: "Basic interactions", Status: StatusWarn},
		{Name: "Console errors", Status: StatusPass},
	}}
	r.Rollup()
	assert.Equal(t, StatusWarn, r.Status)
	assert.Equal(t, "Basic interactions", r.Details())

	errored := BrowserRunResult{Status: StatusError, Error: "launch failed"}
	errored.Rollup()
	assert.Equal(t, StatusError, errored.Status)
	assert.Equal(t, "launch failed", errored.Details())
}

func TestAggregate_Counts(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	outcomes := []Outcome{
		BrowserRunResult{Target: engine(t, "chromium"), Status: StatusPass},
		BrowserRunResult{Target: engine(t, "firefox"), Status: StatusWarn},
		BrowserRunResult{Target: engine(t, "webkit"), Status: StatusError, Error: "boom"},
	}

	s := Aggregate(Meta{Mode: ModeMatrix, URL: "http://x", StartedAt: start}, outcomes, DefaultPolicy())
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Warned)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 1, s.Errored)
	assert.Equal(t, s.Total, s.Passed+s.Failed+s.Errored)
	assert.Equal(t, StatusFail, s.Overall)
	assert.Equal(t, 1, s.ExitCode)

	require.Len(t, s.Browsers, 3)
	assert.Equal(t, "chromium", s.Browsers[0].Target.Name)
	assert.Equal(t, "webkit", s.Browsers[2].Target.Name)
	assert.Equal(t, start, s.StartedAt)
}

func TestAggregate_Policy(t *testing.T) {
	errOnly := []Outcome{BrowserRunResult{Target: engine(t, "chromium"), Status: StatusError}}
	lenient := Aggregate(Meta{Mode: ModeMatrix}, errOnly, Policy{FailOnError: false})
	assert.Equal(t, StatusPass, lenient.Overall)
	assert.Equal(t, 0, lenient.ExitCode)

	warnOnly := []Outcome{BrowserRunResult{Target: engine(t, "chromium"), Status: StatusWarn}}
	assert.Equal(t, 0, Aggregate(Meta{}, warnOnly, DefaultPolicy()).ExitCode)
	strict := Aggregate(Meta{}, warnOnly, Policy{FailOnError: true, FailOnWarn: true})
	assert.Equal(t, 1, strict.ExitCode)
}

func TestAggregate_EmptyPasses(t *testing.T) {
	s := Aggregate(Meta{Mode: ModeCompare}, nil, DefaultPolicy())
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, StatusPass, s.Overall)
	assert.Equal(t, 0, s.ExitCode)
	assert.Empty(t, s.Outcomes())
}

func TestAggregate_Comparisons(t *testing.T) {
	desk, _ := target.NewViewport("desktop")
	mob, _ := target.NewViewport("mobile")
	outcomes := []Outcome{
		NewDiffResult(desk, 0.01, 0.05),
		NewDiffResult(mob, 0.5, 0.05),
	}
	s := Aggregate(Meta{Mode: ModeCompare, Threshold: 0.05}, outcomes, DefaultPolicy())
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Failed)
	require.Len(t, s.Outcomes(), 2)
	assert.Equal(t, "mobile", s.Outcomes()[1].TargetOf().Name)
}
