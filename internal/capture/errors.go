package capture

import (
	"errors"
	"fmt"

	"webqa/internal/target"
)

// Reason names the capture stage that failed.
type Reason string

const (
	ReasonLaunch     Reason = "launch"
	ReasonNavigation Reason = "navigation"
	ReasonScreenshot Reason = "screenshot"
	ReasonClose      Reason = "close"
)

// ErrArtifactExists is returned when a path is written twice in one run.
var ErrArtifactExists = errors.New("artifact already written in this run")

// CaptureError reports a failed capture for one target.
type CaptureError struct {
	Target target.Target
	Reason Reason
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %s: %v", e.Target.Name, e.Reason, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
