package element

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/geometry"
	"github.com/varkai/screenpilot/pkg/vision"
)

// --- Test Doubles ---

// mockMatcher records what it was asked to match and answers via an
// injectable func.
type mockMatcher struct {
	findFunc     func(within image.Rectangle, threshold float64) (vision.Match, bool, error)
	calls        int
	lastTemplate image.Image
	lastWithin   image.Rectangle
}

func (m *mockMatcher) FindTemplate(_ context.Context, _, template image.Image, within image.Rectangle, threshold float64) (vision.Match, bool, error) {
	m.calls++
	m.lastTemplate = template
	m.lastWithin = within
	if m.findFunc != nil {
		return m.findFunc(within, threshold)
	}
	return vision.Match{}, false, nil
}

// countingFrame counts pixel samples so short-circuit behavior is
// observable.
type countingFrame struct {
	*image.RGBA
	atCalls int
}

func (f *countingFrame) At(x, y int) color.Color {
	f.atCalls++
	return f.RGBA.At(x, y)
}

// mockOCR answers recognition requests from a canned list.
type mockOCR struct {
	lines []TextLine
	err   error
	calls int
}

func (m *mockOCR) Recognize(context.Context, image.Image) ([]TextLine, error) {
	m.calls++
	return m.lines, m.err
}

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			frame.Set(x, y, c)
		}
	}
	return frame
}

// --- ImageElement ---

func TestImageElementDetectsTemplateInRegion(t *testing.T) {
	frame := solidFrame(64, 64, color.RGBA{R: 40, G: 40, B: 40, A: 255})
	for y := 20; y < 28; y++ {
		for x := 12; x < 20; x++ {
			frame.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}
	template := vision.Crop(frame, image.Rect(12, 20, 20, 28))
	region := geometry.NewRegion(8, 16, 20, 20, 64, 64, "")

	el := NewImageElement("start_button", region, template, 0.9, zap.NewNop())
	res := el.Detect(context.Background(), frame)

	require.True(t, res.Found)
	require.NotNil(t, res.Region)
	assert.Equal(t, 12, res.Region.StartX)
	assert.Equal(t, 20, res.Region.StartY)
	assert.Equal(t, "start_button", res.Region.Name)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
	assert.True(t, el.IsVisible(context.Background(), frame))
}

func TestImageElementScalesTemplateToFrame(t *testing.T) {
	matcher := &mockMatcher{}
	template := solidFrame(10, 10, color.RGBA{A: 255})
	region := geometry.NewRegion(0, 0, 50, 50, 100, 100, "")

	el := NewImageElement("icon", region, template, 0.8, zap.NewNop(), WithMatcher(matcher))
	el.Detect(context.Background(), solidFrame(200, 200, color.RGBA{A: 255}))

	require.Equal(t, 1, matcher.calls)
	// Frame is 2x the declared reference frame, so the template doubles.
	assert.Equal(t, 20, matcher.lastTemplate.Bounds().Dx())
	assert.Equal(t, 20, matcher.lastTemplate.Bounds().Dy())
	// The search window scales with the region.
	assert.Equal(t, image.Rect(0, 0, 100, 100), matcher.lastWithin)
}

func TestImageElementUndersizedRescaleFallsBackToOriginal(t *testing.T) {
	matcher := &mockMatcher{}
	template := solidFrame(10, 10, color.RGBA{A: 255})
	region := geometry.NewRegion(0, 0, 50, 50, 100, 100, "")

	el := NewImageElement("icon", region, template, 0.8, zap.NewNop(), WithMatcher(matcher))
	// Ratio 0.3 would shrink the template to 3x3, under the 5px floor.
	el.Detect(context.Background(), solidFrame(30, 30, color.RGBA{A: 255}))

	require.Equal(t, 1, matcher.calls)
	assert.Same(t, image.Image(template), matcher.lastTemplate)
}

func TestImageElementNearUnityRatioSkipsRescale(t *testing.T) {
	matcher := &mockMatcher{}
	template := solidFrame(10, 10, color.RGBA{A: 255})
	region := geometry.NewRegion(0, 0, 50, 50, 100, 100, "")

	el := NewImageElement("icon", region, template, 0.8, zap.NewNop(), WithMatcher(matcher))
	el.Detect(context.Background(), solidFrame(100, 100, color.RGBA{A: 255}))

	assert.Same(t, image.Image(template), matcher.lastTemplate)
}

func TestImageElementAbsorbsMatcherFailure(t *testing.T) {
	matcher := &mockMatcher{
		findFunc: func(image.Rectangle, float64) (vision.Match, bool, error) {
			return vision.Match{}, false, errors.New("matcher exploded")
		},
	}
	el := NewImageElement("icon", geometry.NewRegion(0, 0, 10, 10, 100, 100, ""),
		solidFrame(10, 10, color.RGBA{A: 255}), 0.8, zap.NewNop(), WithMatcher(matcher))

	res := el.Detect(context.Background(), solidFrame(100, 100, color.RGBA{A: 255}))
	assert.False(t, res.Found)
	assert.Nil(t, res.Region)
}

func TestImageElementWithoutTemplate(t *testing.T) {
	el := NewImageElement("ghost", geometry.NewRegion(0, 0, 10, 10, 100, 100, ""), nil, 0.8, zap.NewNop())
	assert.False(t, el.Detect(context.Background(), solidFrame(100, 100, color.RGBA{A: 255})).Found)
}

// --- PixelColorElement ---

func TestPixelColorMatchAllStopsAtFirstMismatch(t *testing.T) {
	frame := &countingFrame{RGBA: solidFrame(100, 100, color.RGBA{R: 10, G: 10, B: 10, A: 255})}
	frame.RGBA.Set(5, 5, color.RGBA{R: 200, G: 200, B: 200, A: 255})

	pairs := []PointColor{
		{Point: geometry.NewPoint(5, 5, 100, 100), Color: geometry.NewColor(200, 200, 200)},
		{Point: geometry.NewPoint(6, 6, 100, 100), Color: geometry.NewColor(200, 200, 200)}, // mismatch
		{Point: geometry.NewPoint(7, 7, 100, 100), Color: geometry.NewColor(10, 10, 10)},    // never sampled
	}
	el := NewPixelColorElement("sig", pairs, true, zap.NewNop())

	res := el.Detect(context.Background(), frame)
	assert.False(t, res.Found)
	assert.Equal(t, 2, frame.atCalls)
}

func TestPixelColorMatchAllOutOfBoundsShortCircuits(t *testing.T) {
	frame := &countingFrame{RGBA: solidFrame(50, 50, color.RGBA{A: 255})}
	pairs := []PointColor{
		{Point: geometry.NewPoint(80, 80, 50, 50), Color: geometry.NewColor(0, 0, 0)},
		{Point: geometry.NewPoint(1, 1, 50, 50), Color: geometry.NewColor(0, 0, 0)},
	}
	el := NewPixelColorElement("sig", pairs, true, zap.NewNop())

	res := el.Detect(context.Background(), frame)
	assert.False(t, res.Found)
	assert.Zero(t, frame.atCalls)
}

func TestPixelColorMatchAllRegionSpansAllPoints(t *testing.T) {
	frame := solidFrame(100, 100, color.RGBA{R: 30, G: 60, B: 90, A: 255})
	pairs := []PointColor{
		{Point: geometry.NewPoint(10, 40, 100, 100), Color: geometry.NewColor(30, 60, 90)},
		{Point: geometry.NewPoint(30, 10, 100, 100), Color: geometry.NewColor(30, 60, 90)},
	}
	el := NewPixelColorElement("sig", pairs, true, zap.NewNop())

	res := el.Detect(context.Background(), frame)
	require.True(t, res.Found)
	require.NotNil(t, res.Region)
	assert.Equal(t, 10, res.Region.StartX)
	assert.Equal(t, 10, res.Region.StartY)
	assert.Equal(t, 21, res.Region.Width)
	assert.Equal(t, 31, res.Region.Height)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestPixelColorAnyMatchScopesRegionToMatchingPoint(t *testing.T) {
	frame := solidFrame(100, 100, color.RGBA{R: 5, G: 5, B: 5, A: 255})
	frame.Set(60, 70, color.RGBA{R: 222, G: 111, B: 0, A: 255})

	pairs := []PointColor{
		{Point: geometry.NewPoint(10, 10, 100, 100), Color: geometry.NewColor(222, 111, 0)}, // miss
		{Point: geometry.NewPoint(60, 70, 100, 100), Color: geometry.NewColor(222, 111, 0)}, // hit
	}
	el := NewPixelColorElement("sig", pairs, false, zap.NewNop())

	res := el.Detect(context.Background(), frame)
	require.True(t, res.Found)
	require.NotNil(t, res.Region)
	assert.Equal(t, 60, res.Region.StartX)
	assert.Equal(t, 70, res.Region.StartY)
	assert.Equal(t, 1, res.Region.Width)
	assert.Equal(t, 1, res.Region.Height)
}

func TestPixelColorAnyMatchSkipsOutOfBounds(t *testing.T) {
	frame := solidFrame(50, 50, color.RGBA{R: 9, G: 9, B: 9, A: 255})
	pairs := []PointColor{
		{Point: geometry.NewPoint(200, 200, 50, 50), Color: geometry.NewColor(9, 9, 9)},
		{Point: geometry.NewPoint(3, 3, 50, 50), Color: geometry.NewColor(9, 9, 9)},
	}
	el := NewPixelColorElement("sig", pairs, false, zap.NewNop())
	assert.True(t, el.Detect(context.Background(), frame).Found)
}

func TestPixelColorScalesPointsToFrame(t *testing.T) {
	// Declared against a 200x200 reference, probed on a 100x100 frame.
	frame := solidFrame(100, 100, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	frame.Set(40, 40, color.RGBA{R: 77, G: 88, B: 99, A: 255})

	pairs := []PointColor{
		{Point: geometry.NewPoint(80, 80, 200, 200), Color: geometry.NewColor(77, 88, 99)},
	}
	el := NewPixelColorElement("sig", pairs, true, zap.NewNop())
	assert.True(t, el.Detect(context.Background(), frame).Found)
}

func TestPixelColorToleranceBoundary(t *testing.T) {
	frame := solidFrame(10, 10, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	at := geometry.NewPoint(5, 5, 10, 10)

	within := NewPixelColorElement("sig",
		[]PointColor{{Point: at, Color: geometry.NewColor(105, 95, 100), Tolerance: 5}}, true, zap.NewNop())
	assert.True(t, within.Detect(context.Background(), frame).Found)

	past := NewPixelColorElement("sig",
		[]PointColor{{Point: at, Color: geometry.NewColor(106, 100, 100), Tolerance: 5}}, true, zap.NewNop())
	assert.False(t, past.Detect(context.Background(), frame).Found)
}

func TestPixelColorEmptyPairs(t *testing.T) {
	frame := solidFrame(10, 10, color.RGBA{A: 255})

	all := NewPixelColorElement("sig", nil, true, zap.NewNop())
	res := all.Detect(context.Background(), frame)
	assert.True(t, res.Found)
	assert.Nil(t, res.Region)

	anyOf := NewPixelColorElement("sig", nil, false, zap.NewNop())
	assert.False(t, anyOf.Detect(context.Background(), frame).Found)
}

// --- TextElement ---

func TestTextElementWithoutOCRReportsNotFound(t *testing.T) {
	el := NewTextElement("greeting", "Welcome", false, false, zap.NewNop())
	frame := solidFrame(10, 10, color.RGBA{A: 255})

	res := el.Detect(context.Background(), frame)
	assert.False(t, res.Found)
	assert.False(t, el.OCRAvailable())
}

func TestTextElementMatchingModes(t *testing.T) {
	frame := solidFrame(10, 10, color.RGBA{A: 255})
	ocr := &mockOCR{lines: []TextLine{
		{Text: "Daily Rewards Available", Region: geometry.NewRegion(2, 2, 6, 2, 10, 10, ""), Confidence: 0.93},
	}}

	testCases := []struct {
		name          string
		needle        string
		caseSensitive bool
		exactMatch    bool
		want          bool
	}{
		{"substring insensitive", "daily rewards", false, false, true},
		{"substring sensitive miss", "daily rewards", true, false, false},
		{"substring sensitive hit", "Daily Rewards", true, false, true},
		{"exact insensitive", "daily rewards available", false, true, true},
		{"exact miss on partial", "Daily Rewards", false, true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			el := NewTextElement("banner", tc.needle, tc.caseSensitive, tc.exactMatch, zap.NewNop(), WithOCR(ocr))
			res := el.Detect(context.Background(), frame)
			assert.Equal(t, tc.want, res.Found)
			if tc.want {
				assert.Equal(t, "Daily Rewards Available", res.Text)
				require.NotNil(t, res.Region)
				assert.Equal(t, "banner", res.Region.Name)
				assert.Equal(t, 0.93, res.Confidence)
			}
		})
	}
}

func TestTextElementAbsorbsOCRFailure(t *testing.T) {
	ocr := &mockOCR{err: errors.New("ocr backend down")}
	el := NewTextElement("banner", "hello", false, false, zap.NewNop(), WithOCR(ocr))

	res := el.Detect(context.Background(), solidFrame(10, 10, color.RGBA{A: 255}))
	assert.False(t, res.Found)
	assert.Equal(t, 1, ocr.calls)
}
