// pkg/automation/result.go
package automation

import "time"

// Status is the recorded outcome of a step execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the stored record of one step execution. Live control flow uses
// ordinary error returns; Result is what lands in the context's step results
// and in workflow reports.
type Result struct {
	StepID    string         `json:"step_id"`
	StepName  string         `json:"step_name"`
	Status    Status         `json:"status"`
	Error     error          `json:"-"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Attempts  int            `json:"attempts,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Succeeded reports whether the step completed cleanly.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// ErrorMessage returns the failure text, empty on success.
func (r Result) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

// finishResult stamps a result record. A nil err marks success.
func finishResult(stepID, stepName string, startedAt, finishedAt time.Time, attempts int, err error) Result {
	r := Result{
		StepID:    stepID,
		StepName:  stepName,
		Status:    StatusSuccess,
		StartedAt: startedAt,
		Duration:  finishedAt.Sub(startedAt),
		Attempts:  attempts,
	}
	if err != nil {
		r.Status = StatusFailure
		r.Error = err
	}
	return r
}
