// pkg/state/state.go

// Package state models named screen states of the target application and
// detects which one a frame shows, scored by the fraction of expected
// signals actually observed.
package state

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/element"
)

var errNilFrame = errors.New("state: nil frame")

// ScreenState describes one screen by the elements that must be present and
// the elements that must be absent while it is showing.
type ScreenState struct {
	tag       string
	required  []element.Element
	excluded  []element.Element
	threshold float64
	logger    *zap.Logger
}

// NewScreenState constructs a screen state. threshold is the minimum overall
// confidence at which the state counts as active.
func NewScreenState(tag string, required, excluded []element.Element, threshold float64, logger *zap.Logger) *ScreenState {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScreenState{
		tag:       tag,
		required:  required,
		excluded:  excluded,
		threshold: threshold,
		logger:    logger.Named("screen_state").With(zap.String("state", tag)),
	}
}

// Tag returns the state's identifier.
func (s *ScreenState) Tag() string { return s.tag }

// IsActive probes the frame and reports whether the state is showing,
// together with the overall confidence. Required confidence is the fraction
// of required elements seen, excluded confidence the fraction of excluded
// elements confirmed absent; an empty set contributes 1.0. The overall score
// is their average.
func (s *ScreenState) IsActive(ctx context.Context, frame image.Image) (bool, float64, error) {
	if frame == nil {
		return false, 0, errNilFrame
	}
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	requiredConfidence := 1.0
	if len(s.required) > 0 {
		seen := 0
		for _, el := range s.required {
			if el.IsVisible(ctx, frame) {
				seen++
			}
		}
		requiredConfidence = float64(seen) / float64(len(s.required))
	}

	excludedConfidence := 1.0
	if len(s.excluded) > 0 {
		absent := 0
		for _, el := range s.excluded {
			if !el.IsVisible(ctx, frame) {
				absent++
			}
		}
		excludedConfidence = float64(absent) / float64(len(s.excluded))
	}

	overall := (requiredConfidence + excludedConfidence) / 2
	active := overall >= s.threshold
	s.logger.Debug("state probe",
		zap.Float64("required_confidence", requiredConfidence),
		zap.Float64("excluded_confidence", excludedConfidence),
		zap.Float64("overall", overall),
		zap.Bool("active", active))
	return active, overall, nil
}

// Detection is the outcome of one detector scan. Found is false when no
// registered state was active; that is a regular outcome, not an error.
// Errors collects per-state evaluation problems that did not abort the scan.
type Detection struct {
	State      string
	Confidence float64
	Found      bool
	Errors     []error
}

// Detector scans every registered state and picks the most confident active
// one. Registration order breaks confidence ties.
type Detector struct {
	states []*ScreenState
	logger *zap.Logger
}

// NewDetector constructs an empty detector.
func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{logger: logger.Named("state_detector")}
}

// Register appends states in evaluation order.
func (d *Detector) Register(states ...*ScreenState) {
	d.states = append(d.states, states...)
}

// States returns the registered tags in evaluation order.
func (d *Detector) States() []string {
	tags := make([]string, 0, len(d.states))
	for _, s := range d.states {
		tags = append(tags, s.tag)
	}
	return tags
}

// DetectState evaluates every registered state against the frame. A state
// whose evaluation fails is recorded in the result and skipped; only context
// cancellation aborts the scan early.
func (d *Detector) DetectState(ctx context.Context, frame image.Image) (Detection, error) {
	var result Detection
	best := -1.0

	for _, s := range d.states {
		active, confidence, err := s.IsActive(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return Detection{}, ctx.Err()
			}
			d.logger.Warn("state evaluation failed", zap.String("state", s.tag), zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}
		if active && confidence > best {
			best = confidence
			result.State = s.tag
			result.Confidence = confidence
			result.Found = true
		}
	}

	if result.Found {
		d.logger.Debug("state detected",
			zap.String("state", result.State),
			zap.Float64("confidence", result.Confidence))
	}
	return result, nil
}
