// pkg/element/text_element.go
package element

import (
	"context"
	"image"
	"strings"

	"go.uber.org/zap"
)

// TextElement probes a frame for a piece of text via an OCR provider. The
// provider is optional wiring; without one every probe reports not-found,
// never a silent success.
type TextElement struct {
	name          string
	text          string
	caseSensitive bool
	exactMatch    bool
	ocr           OCRProvider
	logger        *zap.Logger
}

var _ Element = (*TextElement)(nil)

// TextOption customizes a TextElement.
type TextOption func(*TextElement)

// WithOCR wires in the OCR provider the probe recognizes text with.
func WithOCR(p OCRProvider) TextOption {
	return func(e *TextElement) {
		e.ocr = p
	}
}

// NewTextElement constructs a text probe. exactMatch compares whole
// recognized lines, otherwise substring containment is enough.
func NewTextElement(name, text string, caseSensitive, exactMatch bool, logger *zap.Logger, opts ...TextOption) *TextElement {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &TextElement{
		name:          name,
		text:          text,
		caseSensitive: caseSensitive,
		exactMatch:    exactMatch,
		logger:        logger.Named("text_element").With(zap.String("element", name)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Element.
func (e *TextElement) Name() string { return e.name }

// OCRAvailable reports whether an OCR provider is wired in.
func (e *TextElement) OCRAvailable() bool { return e.ocr != nil }

// Detect implements Element.
func (e *TextElement) Detect(ctx context.Context, frame image.Image) DetectionResult {
	if e.ocr == nil {
		e.logger.Debug("no ocr provider wired, reporting not found")
		return DetectionResult{}
	}
	if frame == nil {
		return DetectionResult{}
	}

	lines, err := e.ocr.Recognize(ctx, frame)
	if err != nil {
		e.logger.Debug("ocr recognition failed", zap.Error(err))
		return DetectionResult{}
	}

	for _, line := range lines {
		if !e.matches(line.Text) {
			continue
		}
		result := DetectionResult{Found: true, Text: line.Text, Confidence: line.Confidence}
		if result.Confidence == 0 {
			result.Confidence = 1.0
		}
		if !line.Region.Empty() {
			region := line.Region
			region.Name = e.name
			result.Region = &region
		}
		return result
	}
	return DetectionResult{}
}

// IsVisible implements Element.
func (e *TextElement) IsVisible(ctx context.Context, frame image.Image) bool {
	return e.Detect(ctx, frame).Found
}

func (e *TextElement) matches(candidate string) bool {
	want, got := e.text, candidate
	if !e.caseSensitive {
		want = strings.ToLower(want)
		got = strings.ToLower(got)
	}
	if e.exactMatch {
		return got == want
	}
	return strings.Contains(got, want)
}
