package uiverify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a single check.
type Status int

const (
	// StatusPass indicates the check held.
	StatusPass Status = iota
	// StatusFail indicates the check was violated.
	StatusFail
	// StatusWarn flags a condition that needs confirming against the
	// application's contract but does not fail the run.
	StatusWarn
	// StatusInfo records a fact without judging it.
	StatusInfo
)

// String returns the console label for the status.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	case StatusWarn:
		return "WARN"
	case StatusInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status as its lowercase label.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s {
	case StatusPass:
		return []byte(`"pass"`), nil
	case StatusFail:
		return []byte(`"fail"`), nil
	case StatusWarn:
		return []byte(`"warn"`), nil
	case StatusInfo:
		return []byte(`"info"`), nil
	}
	return nil, fmt.Errorf("unknown status %d", int(s))
}

// Check is one reported fact of a run.
type Check struct {
	Name     string `json:"name"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Err      error  `json:"-"`
}

// Result aggregates the checks, artifacts and terminal error of one run.
// It is safe for concurrent use.
type Result struct {
	mu        sync.Mutex
	RunID     uuid.UUID
	Flow      string
	Started   time.Time
	Finished  time.Time
	checks    []Check
	artifacts []string
	Err       error
}

// NewResult creates an empty Result for the named flow.
func NewResult(flow string) *Result {
	return &Result{
		RunID:   uuid.New(),
		Flow:    flow,
		Started: time.Now(),
	}
}

// Add appends a check.
func (r *Result) Add(c Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, c)
}

// Pass records a passing check.
func (r *Result) Pass(name, expected, actual string) {
	r.Add(Check{Name: name, Expected: expected, Actual: actual, Status: StatusPass})
}

// Fail records a failing check caused by err.
func (r *Result) Fail(name, expected, actual string, err error) {
	c := Check{Name: name, Expected: expected, Actual: actual, Status: StatusFail, Err: err}
	if err != nil {
		c.Message = err.Error()
	}
	r.Add(c)
}

// Warn records a warning.
func (r *Result) Warn(name, message string) {
	r.Add(Check{Name: name, Status: StatusWarn, Message: message})
}

// Info records an informational fact.
func (r *Result) Info(name, message string) {
	r.Add(Check{Name: name, Status: StatusInfo, Message: message})
}

// AddArtifact records a written artifact path.
func (r *Result) AddArtifact(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, path)
}

// Checks returns a copy of the recorded checks in order.
func (r *Result) Checks() []Check {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Check, len(r.checks))
	copy(out, r.checks)
	return out
}

// Artifacts returns a copy of the recorded artifact paths.
func (r *Result) Artifacts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.artifacts))
	copy(out, r.artifacts)
	return out
}

// Failures returns the failing checks.
func (r *Result) Failures() []Check {
	return r.filter(StatusFail)
}

// Warnings returns the warning checks.
func (r *Result) Warnings() []Check {
	return r.filter(StatusWarn)
}

func (r *Result) filter(s Status) []Check {
	var out []Check
	for _, c := range r.Checks() {
		if c.Status == s {
			out = append(out, c)
		}
	}
	return out
}

// Passed reports whether the run finished without error and without
// failing checks.
func (r *Result) Passed() bool {
	return r.Err == nil && len(r.Failures()) == 0
}

// MarshalJSON encodes the result for automation consumers.
func (r *Result) MarshalJSON() ([]byte, error) {
	var errMsg string
	if r.Err != nil {
		errMsg = r.Err.Error()
	}
	return json.Marshal(struct {
		RunID     string    `json:"run_id"`
		Flow      string    `json:"flow"`
		Started   time.Time `json:"started"`
		Finished  time.Time `json:"finished"`
		Passed    bool      `json:"passed"`
		Checks    []Check   `json:"checks"`
		Artifacts []string  `json:"artifacts"`
		Error     string    `json:"error,omitempty"`
	}{
		RunID:     r.RunID.String(),
		Flow:      r.Flow,
		Started:   r.Started,
		Finished:  r.Finished,
		Passed:    r.Passed(),
		Checks:    r.Checks(),
		Artifacts: r.Artifacts(),
		Error:     errMsg,
	})
}
