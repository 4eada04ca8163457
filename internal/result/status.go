// Package result holds the per-target result records of a QA run and folds
// them into a RunSummary.
package result

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the outcome of a step, a target, or a whole run.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
	StatusError
)

// String returns the report spelling of the status.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus is the inverse of String. Matching is case-insensitive.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS":
		return StatusPass, nil
	case "WARN":
		return StatusWarn, nil
	case "FAIL":
		return StatusFail, nil
	case "ERROR":
		return StatusError, nil
	}
	return StatusPass, fmt.Errorf("unknown status %q", s)
}

// MarshalJSON encodes the status as its report string.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a report string.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Worst returns the highest-precedence status among steps: Fail > Warn > Pass.
// Error outranks everything. An empty list is Pass.
func Worst(statuses ...Status) Status {
	worst := StatusPass
	for _, s := range statuses {
		if s > worst {
			worst = s
		}
	}
	return worst
}
