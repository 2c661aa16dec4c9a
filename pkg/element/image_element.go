// pkg/element/image_element.go
package element

import (
	"context"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/geometry"
	"github.com/varkai/screenpilot/pkg/vision"
)

// minTemplateSide is the smallest rescaled template dimension worth matching.
// Below it the unscaled template is used instead.
const minTemplateSide = 5

// scaleTolerance is the relative deviation from 1.0 under which rescaling is
// skipped outright.
const scaleTolerance = 0.01

// ImageElement locates a stored template image inside the declared region of
// a frame. The template is rescaled to the frame's resolution before
// matching, so probes authored at one capture size keep working at another.
type ImageElement struct {
	name      string
	region    geometry.Region
	template  image.Image
	threshold float64
	matcher   TemplateMatcher
	logger    *zap.Logger
}

var _ Element = (*ImageElement)(nil)

// ImageOption customizes an ImageElement.
type ImageOption func(*ImageElement)

// WithMatcher replaces the default template matcher.
func WithMatcher(m TemplateMatcher) ImageOption {
	return func(e *ImageElement) {
		if m != nil {
			e.matcher = m
		}
	}
}

// NewImageElement constructs an image probe. The region carries the frame
// size the template was captured at; threshold bounds the minimum acceptable
// match score.
func NewImageElement(name string, region geometry.Region, template image.Image, threshold float64, logger *zap.Logger, opts ...ImageOption) *ImageElement {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &ImageElement{
		name:      name,
		region:    region,
		template:  template,
		threshold: threshold,
		logger:    logger.Named("image_element").With(zap.String("element", name)),
	}
	e.matcher = vision.NewMatcher(e.logger)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Element.
func (e *ImageElement) Name() string { return e.name }

// Region returns the declared search region.
func (e *ImageElement) Region() geometry.Region { return e.region }

// Template returns the stored template image.
func (e *ImageElement) Template() image.Image { return e.template }

// Threshold returns the minimum acceptable match score.
func (e *ImageElement) Threshold() float64 { return e.threshold }

// Detect implements Element. The template is rescaled proportionally to the
// ratio between the frame and the region's reference dimensions; when the
// rescaled template would fall under 5px in either dimension the original
// template is used instead, which is a recoverable condition rather than an
// error.
func (e *ImageElement) Detect(ctx context.Context, frame image.Image) DetectionResult {
	if frame == nil || e.template == nil {
		e.logger.Debug("probe skipped", zap.Bool("have_frame", frame != nil), zap.Bool("have_template", e.template != nil))
		return DetectionResult{}
	}

	fw, fh := frameSize(frame)
	search := e.region.ScaleTo(fw, fh)
	template := e.scaledTemplate(fw, fh)

	match, found, err := e.matcher.FindTemplate(ctx, frame, template, search.Bounds(), e.threshold)
	if err != nil {
		// Matching failures degrade to not-found.
		e.logger.Debug("template matching failed", zap.Error(err))
		return DetectionResult{}
	}
	if !found {
		return DetectionResult{}
	}

	where := geometry.NewRegion(
		match.Rect.Min.X, match.Rect.Min.Y,
		match.Rect.Dx(), match.Rect.Dy(),
		fw, fh, e.name,
	)
	return DetectionResult{Found: true, Region: &where, Confidence: match.Score}
}

// IsVisible implements Element.
func (e *ImageElement) IsVisible(ctx context.Context, frame image.Image) bool {
	return e.Detect(ctx, frame).Found
}

// scaledTemplate resamples the template for a frame of the given size.
func (e *ImageElement) scaledTemplate(frameW, frameH int) image.Image {
	if e.region.TotalWidth <= 0 || e.region.TotalHeight <= 0 {
		return e.template
	}
	ratioW := float64(frameW) / float64(e.region.TotalWidth)
	ratioH := float64(frameH) / float64(e.region.TotalHeight)
	if math.Abs(ratioW-1) < scaleTolerance && math.Abs(ratioH-1) < scaleTolerance {
		return e.template
	}

	tb := e.template.Bounds()
	w := int(math.Round(float64(tb.Dx()) * ratioW))
	h := int(math.Round(float64(tb.Dy()) * ratioH))
	if w < minTemplateSide || h < minTemplateSide {
		e.logger.Debug("rescaled template too small, using original",
			zap.Int("scaled_w", w), zap.Int("scaled_h", h))
		return e.template
	}
	return vision.ScaleImage(e.template, w, h)
}
