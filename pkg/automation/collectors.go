// pkg/automation/collectors.go
package automation

import (
	"context"
	"image"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/geometry"
	"github.com/varkai/screenpilot/pkg/types"
	"github.com/varkai/screenpilot/pkg/vision"
)

// TextCollector reads the OCR text inside a region. A missing OCR provider
// is a collection failure, not a panic.
type TextCollector struct {
	key    string
	region geometry.Region
	ocr    element.OCRProvider
	logger *zap.Logger
}

var _ Collector = (*TextCollector)(nil)

// NewTextCollector constructs an OCR text collector.
func NewTextCollector(key string, region geometry.Region, ocr element.OCRProvider, logger *zap.Logger) *TextCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextCollector{key: key, region: region, ocr: ocr, logger: logger.Named("text_collector")}
}

// Key implements Collector.
func (c *TextCollector) Key() string { return c.key }

// Collect implements Collector.
func (c *TextCollector) Collect(ctx context.Context, _ *Context, frame image.Image) (any, error) {
	if c.ocr == nil {
		return nil, types.NewError(types.CodeStep, "text collector %q has no OCR provider", c.key)
	}
	sub, err := cropRegion(frame, c.region)
	if err != nil {
		return nil, types.WrapError(types.CodeStep, err, "text collector %q", c.key)
	}

	lines, err := c.ocr.Recognize(ctx, sub)
	if err != nil {
		return nil, types.WrapError(types.CodeStep, err, "text collector %q: recognizing", c.key)
	}
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.Text)
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	c.logger.Debug("text collected", zap.String("key", c.key), zap.String("text", text))
	return text, nil
}

// NumberCollector reads a region's OCR text as an integer, treating dots,
// commas and spaces as thousands separators.
type NumberCollector struct {
	text *TextCollector
}

var _ Collector = (*NumberCollector)(nil)

// NewNumberCollector constructs an integer collector over OCR text.
func NewNumberCollector(key string, region geometry.Region, ocr element.OCRProvider, logger *zap.Logger) *NumberCollector {
	return &NumberCollector{text: NewTextCollector(key, region, ocr, logger)}
}

// Key implements Collector.
func (c *NumberCollector) Key() string { return c.text.key }

// Collect implements Collector.
func (c *NumberCollector) Collect(ctx context.Context, actx *Context, frame image.Image) (any, error) {
	raw, err := c.text.Collect(ctx, actx, frame)
	if err != nil {
		return nil, err
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', ' ':
			return -1
		}
		return r
	}, raw.(string))
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return nil, types.NewError(types.CodeStep, "number collector %q: no integer in %q", c.text.key, raw)
	}
	return n, nil
}

// ImageCollector crops a region out of the frame and stores the sub-image
// as a captured artifact under its key.
type ImageCollector struct {
	key    string
	region geometry.Region
	logger *zap.Logger
}

var _ Collector = (*ImageCollector)(nil)

// NewImageCollector constructs a region-cropping collector.
func NewImageCollector(key string, region geometry.Region, logger *zap.Logger) *ImageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageCollector{key: key, region: region, logger: logger.Named("image_collector")}
}

// Key implements Collector.
func (c *ImageCollector) Key() string { return c.key }

// Collect implements Collector.
func (c *ImageCollector) Collect(_ context.Context, actx *Context, frame image.Image) (any, error) {
	sub, err := cropRegion(frame, c.region)
	if err != nil {
		return nil, types.WrapError(types.CodeStep, err, "image collector %q", c.key)
	}
	actx.AddArtifact(c.key, sub)
	c.logger.Debug("artifact captured",
		zap.String("key", c.key),
		zap.Int("width", sub.Bounds().Dx()),
		zap.Int("height", sub.Bounds().Dy()))
	return sub, nil
}

// cropRegion scales a declared region into the frame's coordinate space and
// cuts it out. An area that ends up empty is an error.
func cropRegion(frame image.Image, region geometry.Region) (image.Image, error) {
	if frame == nil {
		return nil, types.NewError(types.CodeStep, "no frame")
	}
	bounds := frame.Bounds()
	rect := region.ScaleTo(bounds.Dx(), bounds.Dy()).Bounds().Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, types.NewError(types.CodeStep, "region %q falls outside the frame", region.Name)
	}
	return vision.Crop(frame, rect), nil
}
