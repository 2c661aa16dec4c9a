// pkg/automation/step.go

// Package automation sequences detection-driven steps into workflows: it
// owns the per-run context, the step variants (interaction, wait,
// collection, conditional, loop) and the controller that captures frames,
// tracks the current screen state and records every step's result.
package automation

import (
	"context"
	"image"
	"time"

	"github.com/varkai/screenpilot/pkg/element"
)

// FrameProvider captures the current frame of the target application.
type FrameProvider interface {
	CaptureFrame(ctx context.Context) (image.Image, error)
}

// Clicker performs the interaction on a detected element. The detection
// result carries the region that locates the click point.
type Clicker interface {
	Click(ctx context.Context, el element.Element, at element.DetectionResult) error
}

// Step is one unit of a workflow. Execute runs against the frame the
// controller captured for it; steps that poll or retry re-capture through
// their own FrameProvider. Execute reports its outcome as a Result, never
// by panicking.
type Step interface {
	ID() string
	Name() string
	Execute(ctx context.Context, actx *Context, frame image.Image) Result
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
