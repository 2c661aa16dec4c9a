// pkg/automation/controller.go
package automation

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/state"
	"github.com/varkai/screenpilot/pkg/types"
)

// uuidNewString is swapped out in tests for deterministic run ids.
var uuidNewString = uuid.NewString

// WorkflowReport summarizes one RunWorkflow invocation.
type WorkflowReport struct {
	WorkflowID string        `json:"workflow_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Results    []Result      `json:"results"`
	Succeeded  bool          `json:"succeeded"`
}

// Controller drives workflows: it owns the blackboard context, the state
// detector, the capture and click collaborators and a registry of steps by
// id. One controller serves one target application; run several independent
// controllers for parallelism.
type Controller struct {
	detector *state.Detector
	frames   FrameProvider
	clicker  Clicker

	steps     map[string]Step
	stepOrder []string

	actx   *Context
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// NewController constructs a controller with an empty step registry and a
// fresh context.
func NewController(detector *state.Detector, frames FrameProvider, clicker Clicker, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		detector: detector,
		frames:   frames,
		clicker:  clicker,
		steps:    make(map[string]Step),
		actx:     NewContext(),
		logger:   logger.Named("controller"),
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// Context returns the controller's current blackboard.
func (c *Controller) Context() *Context { return c.actx }

// Frames returns the capture collaborator, for wiring steps that re-probe.
func (c *Controller) Frames() FrameProvider { return c.frames }

// Clicker returns the interaction collaborator.
func (c *Controller) Clicker() Clicker { return c.clicker }

// RegisterStep adds a step to the registry. Ids must be unique and
// non-empty.
func (c *Controller) RegisterStep(s Step) error {
	if s.ID() == "" {
		return types.NewError(types.CodeConfiguration, "step %q has no id", s.Name())
	}
	if _, exists := c.steps[s.ID()]; exists {
		return types.NewError(types.CodeConfiguration, "duplicate step id %q", s.ID())
	}
	c.steps[s.ID()] = s
	c.stepOrder = append(c.stepOrder, s.ID())
	return nil
}

// Step returns a registered step.
func (c *Controller) Step(stepID string) (Step, bool) {
	s, ok := c.steps[stepID]
	return s, ok
}

// StepIDs returns every registered step id in registration order.
func (c *Controller) StepIDs() []string {
	return slices.Clone(c.stepOrder)
}

// DetectState captures a frame, scans the registered states and writes the
// winning tag into the context. A scan that finds no active state clears
// the context's state and is not an error.
func (c *Controller) DetectState(ctx context.Context) (state.Detection, error) {
	frame, err := c.frames.CaptureFrame(ctx)
	if err != nil {
		return state.Detection{}, types.WrapError(types.CodeDetection, err, "capturing frame")
	}
	det, err := c.detector.DetectState(ctx, frame)
	if err != nil {
		return state.Detection{}, err
	}
	if det.Found {
		c.actx.SetCurrentState(det.State)
	} else {
		c.actx.ClearCurrentState()
	}
	return det, nil
}

// RefreshState re-captures and re-detects without running any step.
func (c *Controller) RefreshState(ctx context.Context) error {
	_, err := c.DetectState(ctx)
	return err
}

// ExecuteStep runs one registered step against a freshly captured frame and
// records its result in the context. The error return covers unknown ids
// and capture failures; a step's own failure lives in the Result.
func (c *Controller) ExecuteStep(ctx context.Context, stepID string) (Result, error) {
	step, ok := c.steps[stepID]
	if !ok {
		return Result{}, types.NewError(types.CodeConfiguration, "unknown step id %q", stepID)
	}
	frame, err := c.frames.CaptureFrame(ctx)
	if err != nil {
		return Result{}, types.WrapError(types.CodeStep, err, "step %q: capturing frame", stepID)
	}

	c.logger.Info("executing step", zap.String("id", stepID), zap.String("step", step.Name()))
	r := step.Execute(ctx, c.actx, frame)
	c.actx.recordResult(r)
	if r.Succeeded() {
		c.logger.Info("step succeeded",
			zap.String("step", step.Name()),
			zap.Duration("duration", r.Duration))
	} else {
		c.logger.Warn("step failed",
			zap.String("step", step.Name()),
			zap.Error(r.Error))
	}
	return r, nil
}

// ExecuteSteps runs steps in order. With stopOnFailure the first failed
// result ends the run; already-recorded results are returned either way.
func (c *Controller) ExecuteSteps(ctx context.Context, stepIDs []string, stopOnFailure bool) ([]Result, error) {
	results := make([]Result, 0, len(stepIDs))
	for _, id := range stepIDs {
		r, err := c.ExecuteStep(ctx, id)
		if err != nil {
			return results, err
		}
		results = append(results, r)
		if stopOnFailure && !r.Succeeded() {
			c.logger.Warn("workflow stopped on failure", zap.String("step", id))
			break
		}
	}
	return results, nil
}

// WaitForState polls DetectState until the current state is one of the
// wanted tags or the timeout elapses.
func (c *Controller) WaitForState(ctx context.Context, states []string, timeout, checkInterval time.Duration) (string, error) {
	deadline := c.now().Add(timeout)
	for {
		det, err := c.DetectState(ctx)
		if err != nil {
			return "", err
		}
		if det.Found && slices.Contains(states, det.State) {
			return det.State, nil
		}

		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			return "", types.NewError(types.CodeStep, "none of states %v reached within %s", states, timeout)
		}
		if err := c.sleep(ctx, minDuration(checkInterval, remaining)); err != nil {
			return "", types.WrapError(types.CodeStep, err, "waiting for states %v", states)
		}
	}
}

// RunWorkflow executes the steps against a brand-new context, so a workflow
// never inherits earlier state, and reports the run.
func (c *Controller) RunWorkflow(ctx context.Context, stepIDs []string) (WorkflowReport, error) {
	c.actx = NewContext()
	report := WorkflowReport{
		WorkflowID: uuidNewString(),
		StartedAt:  c.now(),
	}
	c.logger.Info("workflow started",
		zap.String("workflow_id", report.WorkflowID),
		zap.Int("steps", len(stepIDs)))

	results, err := c.ExecuteSteps(ctx, stepIDs, true)
	report.Results = results
	report.Duration = c.now().Sub(report.StartedAt)
	report.Succeeded = err == nil && len(results) == len(stepIDs) && allSucceeded(results)

	c.logger.Info("workflow finished",
		zap.String("workflow_id", report.WorkflowID),
		zap.Bool("succeeded", report.Succeeded),
		zap.Duration("duration", report.Duration))
	return report, err
}

func allSucceeded(results []Result) bool {
	for _, r := range results {
		if !r.Succeeded() {
			return false
		}
	}
	return true
}
