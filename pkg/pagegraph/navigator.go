// pkg/pagegraph/navigator.go
package pagegraph

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/types"
)

// ClickFunc performs the click on a resolved element. The detection result
// carries the region the element was just seen at.
type ClickFunc func(ctx context.Context, el element.Element, at element.DetectionResult) error

// FrameFunc captures a fresh frame of the target application.
type FrameFunc func(ctx context.Context) (image.Image, error)

// Navigator moves the application between pages by clicking transition
// elements and polling for the destination's confirmation elements.
type Navigator struct {
	manager *Manager
	logger  *zap.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewNavigator constructs a navigator over the manager's graph.
func NewNavigator(manager *Manager, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{
		manager: manager,
		logger:  logger.Named("navigator"),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// NavigateToPage performs one direct transition. Navigating to the current
// page succeeds immediately. It fails when no direct edge exists, when the
// edge's click target is not visible, or when the destination's
// confirmation elements (the target's identifiers if the edge declares
// none) do not all appear within maxWait.
func (n *Navigator) NavigateToPage(ctx context.Context, from, to string, click ClickFunc, frames FrameFunc, maxWait, interval time.Duration) error {
	if from == to {
		n.logger.Debug("already on target page", zap.String("page", to))
		return nil
	}

	transition, ok := n.manager.Transition(from, to)
	if !ok {
		return types.NewError(types.CodeNavigation, "no direct transition %s->%s", from, to)
	}
	target, err := n.manager.Element(transition.ElementID)
	if err != nil {
		return types.WrapError(types.CodeNavigation, err, "transition %s->%s", from, to)
	}

	frame, err := frames(ctx)
	if err != nil {
		return types.WrapError(types.CodeNavigation, err, "capturing frame before transition %s->%s", from, to)
	}
	seen := target.Detect(ctx, frame)
	if !seen.Found {
		return types.NewError(types.CodeNavigation, "transition element %q not visible on page %q", target.Name(), from)
	}

	n.logger.Info("navigating",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("element", target.Name()))
	if err := click(ctx, target, seen); err != nil {
		return types.WrapError(types.CodeNavigation, err, "clicking %q", target.Name())
	}

	confirmations := transition.ConfirmationElementIDs
	if len(confirmations) == 0 {
		if page, ok := n.manager.Page(to); ok {
			confirmations = page.IdentifierElementIDs
		}
	}

	deadline := n.now().Add(maxWait)
	for {
		frame, err := frames(ctx)
		if err != nil {
			return types.WrapError(types.CodeNavigation, err, "capturing frame while confirming %s->%s", from, to)
		}
		visible, err := n.allVisible(ctx, confirmations, frame)
		if err != nil {
			return types.WrapError(types.CodeNavigation, err, "confirming %s->%s", from, to)
		}
		if visible {
			n.logger.Debug("transition confirmed", zap.String("page", to))
			return nil
		}

		remaining := deadline.Sub(n.now())
		if remaining <= 0 {
			return types.NewError(types.CodeNavigation, "transition %s->%s not confirmed within %s", from, to, maxWait)
		}
		if err := n.sleep(ctx, minDuration(interval, remaining)); err != nil {
			return types.WrapError(types.CodeNavigation, err, "confirming %s->%s", from, to)
		}
	}
}

// NavigateToPageVia finds the shortest path and performs every hop in turn.
// maxWait and interval apply per hop.
func (n *Navigator) NavigateToPageVia(ctx context.Context, from, to string, click ClickFunc, frames FrameFunc, maxWait, interval time.Duration) error {
	path := n.manager.FindPath(from, to)
	if path == nil {
		return types.NewError(types.CodeNavigation, "no path %s->%s", from, to)
	}
	for i := 0; i+1 < len(path); i++ {
		if err := n.NavigateToPage(ctx, path[i], path[i+1], click, frames, maxWait, interval); err != nil {
			return err
		}
	}
	return nil
}

func (n *Navigator) allVisible(ctx context.Context, elementIDs []string, frame image.Image) (bool, error) {
	for _, id := range elementIDs {
		el, err := n.manager.Element(id)
		if err != nil {
			return false, err
		}
		if !el.IsVisible(ctx, frame) {
			return false, nil
		}
	}
	return true, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
