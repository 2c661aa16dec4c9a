// pkg/automation/mocks_test.go
package automation

import (
	"context"
	"image"
	"time"

	"github.com/varkai/screenpilot/pkg/condition"
	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/geometry"
)

// Test doubles are centralized here so every test in the package can reuse
// them.

// frameFeed serves scripted frames in order, repeating the last one forever.
type frameFeed struct {
	frames     []image.Image
	calls      int
	returnErr  error
	failOnCall int // 1-based capture that fails; 0 fails every capture when returnErr is set
}

func (f *frameFeed) CaptureFrame(ctx context.Context) (image.Image, error) {
	f.calls++
	if f.returnErr != nil && (f.failOnCall == 0 || f.calls == f.failOnCall) {
		return nil, f.returnErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.frames) == 0 {
		return blankFrame(), nil
	}
	i := f.calls - 1
	if i >= len(f.frames) {
		i = len(f.frames) - 1
	}
	return f.frames[i], nil
}

// countClicker records the name of every element it is asked to click.
type countClicker struct {
	clicked   []string
	returnErr error
}

func (c *countClicker) Click(_ context.Context, el element.Element, _ element.DetectionResult) error {
	c.clicked = append(c.clicked, el.Name())
	return c.returnErr
}

// stubElement becomes visible from a given Detect call on, so tests can
// script an element appearing after a few probes.
type stubElement struct {
	name        string
	visibleFrom int // 1-based Detect call from which the element is found; 0 means never
	calls       int
}

func (e *stubElement) Name() string { return e.name }

func (e *stubElement) Detect(_ context.Context, _ image.Image) element.DetectionResult {
	e.calls++
	if e.visibleFrom == 0 || e.calls < e.visibleFrom {
		return element.DetectionResult{}
	}
	region := geometry.NewRegion(40, 40, 20, 20, 100, 100, e.name)
	return element.DetectionResult{Found: true, Region: &region, Confidence: 1}
}

func (e *stubElement) IsVisible(ctx context.Context, frame image.Image) bool {
	return e.Detect(ctx, frame).Found
}

// scriptCondition plays a scripted sequence of answers, repeating the last.
type scriptCondition struct {
	desc      string
	answers   []bool
	returnErr error
	calls     int
}

func (c *scriptCondition) Check(_ context.Context, _ condition.StateReader, _ image.Image) (bool, error) {
	c.calls++
	if c.returnErr != nil {
		return false, c.returnErr
	}
	if len(c.answers) == 0 {
		return false, nil
	}
	i := c.calls - 1
	if i >= len(c.answers) {
		i = len(c.answers) - 1
	}
	return c.answers[i], nil
}

func (c *scriptCondition) Describe() string { return c.desc }

// fakeStep returns a canned outcome and can mutate the context when run.
type fakeStep struct {
	id, name  string
	returnErr error
	runs      int
	onRun     func(actx *Context)
}

func (s *fakeStep) ID() string   { return s.id }
func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Execute(_ context.Context, actx *Context, _ image.Image) Result {
	s.runs++
	if s.onRun != nil {
		s.onRun(actx)
	}
	at := time.Now()
	return finishResult(s.id, s.name, at, at, 1, s.returnErr)
}

// fakeOCR returns canned text lines.
type fakeOCR struct {
	lines     []element.TextLine
	returnErr error
}

func (o *fakeOCR) Recognize(_ context.Context, _ image.Image) ([]element.TextLine, error) {
	if o.returnErr != nil {
		return nil, o.returnErr
	}
	return o.lines, nil
}

// testClock drives the injectable now/sleep pair without real waiting.
type testClock struct {
	base    time.Time
	elapsed time.Duration
	slept   []time.Duration
}

func newTestClock() *testClock {
	return &testClock{base: time.Unix(1700000000, 0)}
}

func (c *testClock) now() time.Time { return c.base.Add(c.elapsed) }

func (c *testClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.elapsed += d
	return nil
}

func blankFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 100, 100))
}
