// pkg/condition/condition.go

// Package condition implements the guard predicates steps and navigation
// poll against: elapsed-time latches, element visibility, current-state
// membership and AND/OR composition.
package condition

import (
	"context"
	"fmt"
	"image"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/types"
)

// StateReader exposes the slice of workflow context that conditions consult.
// The automation context implements it.
type StateReader interface {
	// CurrentState returns the detected state tag, if any.
	CurrentState() (string, bool)
}

// Condition is a guard evaluated against the current frame and context.
// Check returns (satisfied, nil) on a clean evaluation; an error means the
// evaluation itself failed and aborts the enclosing check.
type Condition interface {
	Check(ctx context.Context, state StateReader, frame image.Image) (bool, error)
	// Describe names the condition for failure messages.
	Describe() string
}

// -- WaitCondition --

// WaitCondition becomes true once a duration has elapsed. The clock starts
// at the first Check call, not at construction, so a condition built ahead
// of time still waits the full duration.
type WaitCondition struct {
	duration   time.Duration
	firstCheck time.Time
	now        func() time.Time
}

var _ Condition = (*WaitCondition)(nil)

// NewWaitCondition constructs an elapsed-time condition.
func NewWaitCondition(duration time.Duration) *WaitCondition {
	return &WaitCondition{duration: duration, now: time.Now}
}

// Check implements Condition. It never fails.
func (c *WaitCondition) Check(_ context.Context, _ StateReader, _ image.Image) (bool, error) {
	if c.firstCheck.IsZero() {
		c.firstCheck = c.now()
	}
	return c.now().Sub(c.firstCheck) >= c.duration, nil
}

// Describe implements Condition.
func (c *WaitCondition) Describe() string {
	return fmt.Sprintf("wait(%s)", c.duration)
}

// -- ElementCondition --

// ElementCondition compares element visibility against an expectation.
// shouldExist=false inverts the test, so the condition can require elements
// to be gone. allMustMatch selects AND over OR across the element list.
type ElementCondition struct {
	elements     []element.Element
	allMustMatch bool
	shouldExist  bool
	logger       *zap.Logger
}

var _ Condition = (*ElementCondition)(nil)

// NewElementCondition constructs a visibility condition over elements.
func NewElementCondition(elements []element.Element, allMustMatch, shouldExist bool, logger *zap.Logger) *ElementCondition {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElementCondition{
		elements:     elements,
		allMustMatch: allMustMatch,
		shouldExist:  shouldExist,
		logger:       logger.Named("element_condition"),
	}
}

// Check implements Condition. Detection failures inside elements degrade to
// "not visible" at the element layer, so the only error path here is
// context cancellation.
func (c *ElementCondition) Check(ctx context.Context, _ StateReader, frame image.Image) (bool, error) {
	for _, el := range c.elements {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		matches := el.IsVisible(ctx, frame) == c.shouldExist
		if c.allMustMatch && !matches {
			c.logger.Debug("element broke the all-must-match run", zap.String("element", el.Name()))
			return false, nil
		}
		if !c.allMustMatch && matches {
			return true, nil
		}
	}
	return c.allMustMatch, nil
}

// Describe implements Condition.
func (c *ElementCondition) Describe() string {
	names := make([]string, 0, len(c.elements))
	for _, el := range c.elements {
		names = append(names, el.Name())
	}
	return fmt.Sprintf("elements([%s] all=%t exist=%t)", strings.Join(names, ","), c.allMustMatch, c.shouldExist)
}

// -- StateCondition --

// StateCondition is true while the context's current state is one of a set
// of tags.
type StateCondition struct {
	states []string
}

var _ Condition = (*StateCondition)(nil)

// NewStateCondition constructs a state-membership condition.
func NewStateCondition(states []string) *StateCondition {
	return &StateCondition{states: states}
}

// Check implements Condition. With no detected state yet it is simply
// false, not an error.
func (c *StateCondition) Check(_ context.Context, state StateReader, _ image.Image) (bool, error) {
	if state == nil {
		return false, nil
	}
	current, ok := state.CurrentState()
	if !ok {
		return false, nil
	}
	return slices.Contains(c.states, current), nil
}

// Describe implements Condition.
func (c *StateCondition) Describe() string {
	return fmt.Sprintf("state(%s)", strings.Join(c.states, "|"))
}

// -- MultiCondition --

// MultiCondition composes conditions with AND (requireAll) or OR
// semantics, short-circuiting the same way the element condition does. A
// sub-condition's evaluation failure immediately fails the composite.
type MultiCondition struct {
	conditions []Condition
	requireAll bool
}

var _ Condition = (*MultiCondition)(nil)

// NewMultiCondition composes the given conditions.
func NewMultiCondition(conditions []Condition, requireAll bool) *MultiCondition {
	return &MultiCondition{conditions: conditions, requireAll: requireAll}
}

// Check implements Condition.
func (c *MultiCondition) Check(ctx context.Context, state StateReader, frame image.Image) (bool, error) {
	for _, sub := range c.conditions {
		ok, err := sub.Check(ctx, state, frame)
		if err != nil {
			return false, types.WrapError(types.CodeCondition, err, "evaluating %s", sub.Describe())
		}
		if c.requireAll && !ok {
			return false, nil
		}
		if !c.requireAll && ok {
			return true, nil
		}
	}
	return c.requireAll, nil
}

// Describe implements Condition.
func (c *MultiCondition) Describe() string {
	parts := make([]string, 0, len(c.conditions))
	for _, sub := range c.conditions {
		parts = append(parts, sub.Describe())
	}
	op := " OR "
	if c.requireAll {
		op = " AND "
	}
	return "(" + strings.Join(parts, op) + ")"
}
