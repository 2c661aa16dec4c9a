// pkg/automation/loop_step.go
package automation

import (
	"context"
	"image"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/condition"
	"github.com/varkai/screenpilot/pkg/types"
)

// StepFactory builds the step for one loop iteration. Iterations are
// zero-indexed.
type StepFactory func(iteration int, actx *Context) (Step, error)

// LoopStep repeats factory-built steps until maxIterations is reached
// (0 means unbounded), the continue condition turns false, or an iteration
// fails. The condition is checked before every iteration after the first.
// The completed-iteration count and every per-iteration result are recorded
// into collected data under "<id>_iterations" and "<id>_results", even when
// the loop fails partway.
type LoopStep struct {
	id   string
	name string

	factory           StepFactory
	maxIterations     int
	continueCondition condition.Condition
	frames            FrameProvider

	logger *zap.Logger
	now    func() time.Time
}

var _ Step = (*LoopStep)(nil)

// NewLoopStep constructs an iteration step. continueCondition may be nil,
// in which case only maxIterations and iteration failures bound the loop.
func NewLoopStep(id, name string, factory StepFactory, maxIterations int, continueCondition condition.Condition, frames FrameProvider, logger *zap.Logger) *LoopStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoopStep{
		id:                id,
		name:              name,
		factory:           factory,
		maxIterations:     maxIterations,
		continueCondition: continueCondition,
		frames:            frames,
		logger:            logger.Named("loop_step"),
		now:               time.Now,
	}
}

// ID implements Step.
func (s *LoopStep) ID() string { return s.id }

// Name implements Step.
func (s *LoopStep) Name() string { return s.name }

// Execute implements Step.
func (s *LoopStep) Execute(ctx context.Context, actx *Context, frame image.Image) Result {
	start := s.now()
	completed := 0
	var iterations []Result
	defer func() {
		actx.AddData(s.id+"_iterations", completed)
		actx.AddData(s.id+"_results", slices.Clone(iterations))
	}()

	current := frame
	for i := 0; s.maxIterations == 0 || i < s.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return finishResult(s.id, s.name, start, s.now(), completed,
				types.WrapError(types.CodeStep, err, "loop %q", s.name))
		}

		if i > 0 {
			fresh, err := s.frames.CaptureFrame(ctx)
			if err != nil {
				return finishResult(s.id, s.name, start, s.now(), completed,
					types.WrapError(types.CodeStep, err, "loop %q: capturing frame", s.name))
			}
			current = fresh

			if s.continueCondition != nil {
				ok, err := s.continueCondition.Check(ctx, actx, current)
				if err != nil {
					return finishResult(s.id, s.name, start, s.now(), completed,
						types.WrapError(types.CodeCondition, err, "loop %q continue condition", s.name))
				}
				if !ok {
					s.logger.Debug("continue condition ended the loop",
						zap.String("step", s.name),
						zap.Int("iterations", completed))
					break
				}
			}
		}

		step, err := s.factory(i, actx)
		if err != nil {
			return finishResult(s.id, s.name, start, s.now(), completed,
				types.WrapError(types.CodeStep, err, "loop %q: building iteration %d", s.name, i))
		}

		r := step.Execute(ctx, actx, current)
		iterations = append(iterations, r)
		if !r.Succeeded() {
			return finishResult(s.id, s.name, start, s.now(), completed,
				types.WrapError(types.CodeStep, r.Error, "loop %q: iteration %d failed", s.name, i))
		}
		completed = i + 1
	}

	result := finishResult(s.id, s.name, start, s.now(), completed, nil)
	result.Data = map[string]any{"iterations": completed}
	return result
}
