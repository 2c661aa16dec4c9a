// pkg/automation/wait_step.go
package automation

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/condition"
	"github.com/varkai/screenpilot/pkg/types"
)

// WaitStep polls a set of conditions until they are satisfied or a timeout
// elapses. allRequired selects AND over OR. The first poll runs against the
// step's initial frame; later polls re-capture.
type WaitStep struct {
	id   string
	name string

	conditions    *condition.MultiCondition
	description   string
	timeout       time.Duration
	checkInterval time.Duration
	frames        FrameProvider

	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

var _ Step = (*WaitStep)(nil)

// NewWaitStep constructs a polling step over conditions.
func NewWaitStep(id, name string, conditions []condition.Condition, timeout, checkInterval time.Duration, allRequired bool, frames FrameProvider, logger *zap.Logger) *WaitStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	multi := condition.NewMultiCondition(conditions, allRequired)
	return &WaitStep{
		id:            id,
		name:          name,
		conditions:    multi,
		description:   multi.Describe(),
		timeout:       timeout,
		checkInterval: checkInterval,
		frames:        frames,
		logger:        logger.Named("wait_step"),
		sleep:         sleepContext,
		now:           time.Now,
	}
}

// ID implements Step.
func (s *WaitStep) ID() string { return s.id }

// Name implements Step.
func (s *WaitStep) Name() string { return s.name }

// Execute implements Step.
func (s *WaitStep) Execute(ctx context.Context, actx *Context, frame image.Image) Result {
	start := s.now()
	deadline := start.Add(s.timeout)
	polls := 0
	current := frame

	for {
		polls++
		ok, err := s.conditions.Check(ctx, actx, current)
		if err != nil {
			return finishResult(s.id, s.name, start, s.now(), polls,
				types.WrapError(types.CodeStep, err, "wait %q", s.name))
		}
		if ok {
			s.logger.Debug("wait satisfied",
				zap.String("step", s.name),
				zap.Int("polls", polls))
			return finishResult(s.id, s.name, start, s.now(), polls, nil)
		}

		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			return finishResult(s.id, s.name, start, s.now(), polls,
				types.NewError(types.CodeStep, "wait %q timed out after %s: conditions not met: %s",
					s.name, s.timeout, s.description))
		}
		if err := s.sleep(ctx, minDuration(s.checkInterval, remaining)); err != nil {
			return finishResult(s.id, s.name, start, s.now(), polls,
				types.WrapError(types.CodeStep, err, "wait %q", s.name))
		}

		fresh, err := s.frames.CaptureFrame(ctx)
		if err != nil {
			return finishResult(s.id, s.name, start, s.now(), polls,
				types.WrapError(types.CodeStep, err, "wait %q: capturing frame", s.name))
		}
		current = fresh
	}
}
