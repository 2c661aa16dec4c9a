// pkg/automation/conditional_step.go
package automation

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/condition"
	"github.com/varkai/screenpilot/pkg/types"
)

// ConditionalBranch pairs a guard with the step it selects.
type ConditionalBranch struct {
	Condition condition.Condition
	Step      Step
}

// ConditionalStep executes the first branch whose guard holds, the default
// step when no guard holds, or succeeds trivially with neither. The chosen
// step's own result is recorded into the context alongside this step's.
type ConditionalStep struct {
	id   string
	name string

	branches    []ConditionalBranch
	defaultStep Step

	logger *zap.Logger
	now    func() time.Time
}

var _ Step = (*ConditionalStep)(nil)

// NewConditionalStep constructs a branching step. defaultStep may be nil.
func NewConditionalStep(id, name string, branches []ConditionalBranch, defaultStep Step, logger *zap.Logger) *ConditionalStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConditionalStep{
		id:          id,
		name:        name,
		branches:    branches,
		defaultStep: defaultStep,
		logger:      logger.Named("conditional_step"),
		now:         time.Now,
	}
}

// ID implements Step.
func (s *ConditionalStep) ID() string { return s.id }

// Name implements Step.
func (s *ConditionalStep) Name() string { return s.name }

// Execute implements Step.
func (s *ConditionalStep) Execute(ctx context.Context, actx *Context, frame image.Image) Result {
	start := s.now()

	var chosen Step
	for _, branch := range s.branches {
		ok, err := branch.Condition.Check(ctx, actx, frame)
		if err != nil {
			return finishResult(s.id, s.name, start, s.now(), 0,
				types.WrapError(types.CodeCondition, err, "conditional %q guard %s", s.name, branch.Condition.Describe()))
		}
		if ok {
			chosen = branch.Step
			s.logger.Debug("guard matched",
				zap.String("step", s.name),
				zap.String("guard", branch.Condition.Describe()),
				zap.String("chosen", branch.Step.Name()))
			break
		}
	}
	if chosen == nil {
		chosen = s.defaultStep
	}
	if chosen == nil {
		return finishResult(s.id, s.name, start, s.now(), 0, nil)
	}

	inner := chosen.Execute(ctx, actx, frame)
	actx.recordResult(inner)

	result := finishResult(s.id, s.name, start, s.now(), 0, inner.Error)
	result.Status = inner.Status
	result.Data = map[string]any{"executed": chosen.ID()}
	return result
}
