// pkg/automation/collection_step.go
package automation

import (
	"context"
	"errors"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/condition"
	"github.com/varkai/screenpilot/pkg/types"
)

// Collector extracts one named value from a frame.
type Collector interface {
	Key() string
	Collect(ctx context.Context, actx *Context, frame image.Image) (any, error)
}

// CollectionStep runs every collector against the step's frame. Collector
// failures do not stop the remaining collectors; succeeded values always
// land in the context's collected data, and the step fails only afterwards,
// naming which keys succeeded and which failed.
type CollectionStep struct {
	id   string
	name string

	collectors    []Collector
	preConditions []condition.Condition

	logger *zap.Logger
	now    func() time.Time
}

var _ Step = (*CollectionStep)(nil)

// NewCollectionStep constructs a data-extraction step.
func NewCollectionStep(id, name string, collectors []Collector, preConditions []condition.Condition, logger *zap.Logger) *CollectionStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionStep{
		id:            id,
		name:          name,
		collectors:    collectors,
		preConditions: preConditions,
		logger:        logger.Named("collection_step"),
		now:           time.Now,
	}
}

// ID implements Step.
func (s *CollectionStep) ID() string { return s.id }

// Name implements Step.
func (s *CollectionStep) Name() string { return s.name }

// Execute implements Step.
func (s *CollectionStep) Execute(ctx context.Context, actx *Context, frame image.Image) Result {
	start := s.now()

	for _, cond := range s.preConditions {
		ok, err := cond.Check(ctx, actx, frame)
		if err != nil {
			return finishResult(s.id, s.name, start, s.now(), 0,
				types.WrapError(types.CodeStep, err, "step %q precondition %s", s.name, cond.Describe()))
		}
		if !ok {
			return finishResult(s.id, s.name, start, s.now(), 0,
				types.NewError(types.CodeStep, "step %q precondition not met: %s", s.name, cond.Describe()))
		}
	}

	collected := make(map[string]any, len(s.collectors))
	var succeeded, failed []string
	var collectErrs []error
	for _, c := range s.collectors {
		value, err := c.Collect(ctx, actx, frame)
		if err != nil {
			failed = append(failed, c.Key())
			collectErrs = append(collectErrs, types.WrapError(types.CodeStep, err, "collector %q", c.Key()))
			s.logger.Warn("collector failed",
				zap.String("step", s.name),
				zap.String("key", c.Key()),
				zap.Error(err))
			continue
		}
		succeeded = append(succeeded, c.Key())
		collected[c.Key()] = value
		actx.AddData(c.Key(), value)
	}

	result := finishResult(s.id, s.name, start, s.now(), 1, nil)
	result.Data = collected
	if len(failed) > 0 {
		result.Status = StatusFailure
		result.Error = types.WrapError(types.CodeStep, errors.Join(collectErrs...),
			"collection %q failed for keys %v (collected %v)", s.name, failed, succeeded)
	}
	return result
}
