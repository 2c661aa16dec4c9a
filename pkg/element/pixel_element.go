// pkg/element/pixel_element.go
package element

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/geometry"
)

// PointColor pairs an expected color with the point it should appear at.
// Tolerance is the maximum per-channel deviation that still counts as a
// match.
type PointColor struct {
	Point     geometry.Point
	Color     geometry.Color
	Tolerance int
}

// PixelColorElement probes a frame by sampling individual pixels. With
// MatchAll set, every declared point must match and sampling stops at the
// first mismatch or out-of-bounds point. Without it, the first matching
// point wins and its coordinates alone scope the result region; the full
// bounding box would claim pixels the probe never verified.
type PixelColorElement struct {
	name     string
	pairs    []PointColor
	matchAll bool
	logger   *zap.Logger
}

var _ Element = (*PixelColorElement)(nil)

// NewPixelColorElement constructs a pixel-signature probe over the given
// point/color pairs.
func NewPixelColorElement(name string, pairs []PointColor, matchAll bool, logger *zap.Logger) *PixelColorElement {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PixelColorElement{
		name:     name,
		pairs:    pairs,
		matchAll: matchAll,
		logger:   logger.Named("pixel_element").With(zap.String("element", name)),
	}
}

// Name implements Element.
func (e *PixelColorElement) Name() string { return e.name }

// Pairs returns the declared point/color pairs.
func (e *PixelColorElement) Pairs() []PointColor { return e.pairs }

// MatchAll reports whether every pair must match.
func (e *PixelColorElement) MatchAll() bool { return e.matchAll }

// Detect implements Element.
func (e *PixelColorElement) Detect(ctx context.Context, frame image.Image) DetectionResult {
	if frame == nil {
		return DetectionResult{}
	}
	fw, fh := frameSize(frame)
	bounds := frame.Bounds()

	if e.matchAll {
		scaled := make([]geometry.Point, 0, len(e.pairs))
		for _, pair := range e.pairs {
			p := pair.Point.ScaleTo(fw, fh)
			if !inFrame(p, bounds) {
				e.logger.Debug("point outside frame", zap.Int("x", p.X), zap.Int("y", p.Y))
				return DetectionResult{}
			}
			got := geometry.ColorAt(frame.At(bounds.Min.X+p.X, bounds.Min.Y+p.Y))
			if !pair.Color.MatchesWithTolerance(got, pair.Tolerance) {
				return DetectionResult{}
			}
			scaled = append(scaled, p)
		}
		result := DetectionResult{Found: true, Confidence: 1.0}
		if len(scaled) > 0 {
			box := geometry.BoundingBox(scaled, e.name)
			result.Region = &box
		}
		return result
	}

	for _, pair := range e.pairs {
		p := pair.Point.ScaleTo(fw, fh)
		if !inFrame(p, bounds) {
			continue
		}
		got := geometry.ColorAt(frame.At(bounds.Min.X+p.X, bounds.Min.Y+p.Y))
		if pair.Color.MatchesWithTolerance(got, pair.Tolerance) {
			where := geometry.NewRegion(p.X, p.Y, 1, 1, fw, fh, e.name)
			return DetectionResult{Found: true, Region: &where, Confidence: 1.0}
		}
	}
	return DetectionResult{}
}

// IsVisible implements Element.
func (e *PixelColorElement) IsVisible(ctx context.Context, frame image.Image) bool {
	return e.Detect(ctx, frame).Found
}

func inFrame(p geometry.Point, bounds image.Rectangle) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < bounds.Dx() && p.Y < bounds.Dy()
}
