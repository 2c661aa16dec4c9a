// pkg/element/element.go

// Package element implements the detectable UI probes the rest of the engine
// is built on: image templates, pixel-color signatures and OCR-backed text.
// Probes never return errors from detection; any probing failure degrades to
// a not-found result so a flaky frame can never abort a workflow.
package element

import (
	"context"
	"image"

	"github.com/varkai/screenpilot/pkg/geometry"
	"github.com/varkai/screenpilot/pkg/vision"
)

// Element is a named, detectable UI probe.
type Element interface {
	// Name identifies the probe in logs and failure messages.
	Name() string
	// Detect probes the frame. Probing failures are absorbed into a result
	// with Found=false; Detect never panics on odd frames.
	Detect(ctx context.Context, frame image.Image) DetectionResult
	// IsVisible is a convenience over Detect.
	IsVisible(ctx context.Context, frame image.Image) bool
}

// DetectionResult reports the outcome of one probe of one frame.
type DetectionResult struct {
	Found      bool
	Region     *geometry.Region
	Confidence float64
	Text       string
}

// TemplateMatcher locates a template inside a frame. Implementations come
// from pkg/vision or the embedding application.
type TemplateMatcher interface {
	FindTemplate(ctx context.Context, frame, template image.Image, within image.Rectangle, threshold float64) (vision.Match, bool, error)
}

// TextLine is one recognized line of text and where it was seen.
type TextLine struct {
	Text       string
	Region     geometry.Region
	Confidence float64
}

// OCRProvider recognizes text in a frame. The engine treats it as optional:
// probes that need it report not-found when none is wired in.
type OCRProvider interface {
	Recognize(ctx context.Context, frame image.Image) ([]TextLine, error)
}

func frameSize(frame image.Image) (int, int) {
	if frame == nil {
		return 0, 0
	}
	b := frame.Bounds()
	return b.Dx(), b.Dy()
}
