// pkg/automation/interaction_step.go
package automation

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/condition"
	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/types"
)

const (
	defaultRetryDelay  = 500 * time.Millisecond
	defaultSettleDelay = 250 * time.Millisecond
)

// InteractionStep clicks one element, with retry on invisibility or click
// failure and optional pre/post condition gates. Preconditions are checked
// once against the step's initial frame; every retry attempt re-captures.
type InteractionStep struct {
	id   string
	name string

	element element.Element
	clicker Clicker
	frames  FrameProvider

	preConditions  []condition.Condition
	postConditions []condition.Condition
	maxRetries     int
	retryDelay     time.Duration
	settleDelay    time.Duration

	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

var _ Step = (*InteractionStep)(nil)

// InteractionOption customizes an InteractionStep.
type InteractionOption func(*InteractionStep)

// WithPreConditions gates execution: any unmet precondition fails the step
// immediately, without retries.
func WithPreConditions(conds ...condition.Condition) InteractionOption {
	return func(s *InteractionStep) {
		s.preConditions = append(s.preConditions, conds...)
	}
}

// WithPostConditions requires the conditions to hold after the click, once
// the settle delay has passed. An unmet postcondition retries the whole
// attempt.
func WithPostConditions(conds ...condition.Condition) InteractionOption {
	return func(s *InteractionStep) {
		s.postConditions = append(s.postConditions, conds...)
	}
}

// WithRetries sets how many times a failed attempt is retried and the fixed
// delay between attempts.
func WithRetries(maxRetries int, delay time.Duration) InteractionOption {
	return func(s *InteractionStep) {
		if maxRetries >= 0 {
			s.maxRetries = maxRetries
		}
		if delay >= 0 {
			s.retryDelay = delay
		}
	}
}

// WithSettleDelay sets how long the step waits after a click before
// checking postconditions.
func WithSettleDelay(d time.Duration) InteractionOption {
	return func(s *InteractionStep) {
		if d >= 0 {
			s.settleDelay = d
		}
	}
}

// NewInteractionStep constructs a click step for one element.
func NewInteractionStep(id, name string, el element.Element, clicker Clicker, frames FrameProvider, logger *zap.Logger, opts ...InteractionOption) *InteractionStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InteractionStep{
		id:          id,
		name:        name,
		element:     el,
		clicker:     clicker,
		frames:      frames,
		retryDelay:  defaultRetryDelay,
		settleDelay: defaultSettleDelay,
		logger:      logger.Named("interaction_step"),
		sleep:       sleepContext,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID implements Step.
func (s *InteractionStep) ID() string { return s.id }

// Name implements Step.
func (s *InteractionStep) Name() string { return s.name }

// Execute implements Step.
func (s *InteractionStep) Execute(ctx context.Context, actx *Context, frame image.Image) Result {
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

	attempts := s.maxRetries + 1
	var lastErr error
	current := frame
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.retryDelay); err != nil {
				return finishResult(s.id, s.name, start, s.now(), attempt-1,
					types.WrapError(types.CodeStep, err, "step %q", s.name))
			}
			fresh, err := s.frames.CaptureFrame(ctx)
			if err != nil {
				return finishResult(s.id, s.name, start, s.now(), attempt-1,
					types.WrapError(types.CodeStep, err, "step %q: capturing retry frame", s.name))
			}
			current = fresh
		}

		err := s.attempt(ctx, actx, current)
		if err == nil {
			s.logger.Info("interaction succeeded",
				zap.String("step", s.name),
				zap.String("element", s.element.Name()),
				zap.Int("attempt", attempt))
			return finishResult(s.id, s.name, start, s.now(), attempt, nil)
		}
		lastErr = err
		s.logger.Debug("interaction attempt failed",
			zap.String("step", s.name),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return finishResult(s.id, s.name, start, s.now(), attempts,
		types.WrapError(types.CodeStep, lastErr, "interaction %q on element %q failed after %d attempts in %s",
			s.name, s.element.Name(), attempts, s.now().Sub(start)))
}

func (s *InteractionStep) attempt(ctx context.Context, actx *Context, frame image.Image) error {
	seen := s.element.Detect(ctx, frame)
	if !seen.Found {
		return types.NewError(types.CodeStep, "element %q not visible", s.element.Name())
	}
	if err := s.clicker.Click(ctx, s.element, seen); err != nil {
		return types.WrapError(types.CodeStep, err, "clicking %q", s.element.Name())
	}
	if len(s.postConditions) == 0 {
		return nil
	}

	if err := s.sleep(ctx, s.settleDelay); err != nil {
		return types.WrapError(types.CodeStep, err, "settling after click")
	}
	fresh, err := s.frames.CaptureFrame(ctx)
	if err != nil {
		return types.WrapError(types.CodeStep, err, "capturing frame for postconditions")
	}
	for _, cond := range s.postConditions {
		ok, err := cond.Check(ctx, actx, fresh)
		if err != nil {
			return types.WrapError(types.CodeStep, err, "postcondition %s", cond.Describe())
		}
		if !ok {
			return types.NewError(types.CodeStep, "postcondition not met: %s", cond.Describe())
		}
	}
	return nil
}
