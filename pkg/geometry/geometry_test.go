package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointScaleTo(t *testing.T) {
	testCases := []struct {
		name   string
		point  Point
		width  int
		height int
		wantX  int
		wantY  int
	}{
		{
			name:   "downscale by half",
			point:  NewPoint(100, 50, 1920, 1080),
			width:  960,
			height: 540,
			wantX:  50,
			wantY:  25,
		},
		{
			name:   "upscale with rounding",
			point:  NewPoint(33, 67, 100, 100),
			width:  300,
			height: 300,
			wantX:  99,
			wantY:  201,
		},
		{
			name:   "identity",
			point:  NewPoint(10, 20, 640, 480),
			width:  640,
			height: 480,
			wantX:  10,
			wantY:  20,
		},
		{
			name:   "unknown reference frame passes through",
			point:  Point{X: 12, Y: 34},
			width:  800,
			height: 600,
			wantX:  12,
			wantY:  34,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.point.ScaleTo(tc.width, tc.height)
			assert.Equal(t, tc.wantX, got.X)
			assert.Equal(t, tc.wantY, got.Y)
			assert.Equal(t, tc.width, got.TotalWidth)
			assert.Equal(t, tc.height, got.TotalHeight)
		})
	}
}

func TestColorMatchesWithTolerance(t *testing.T) {
	base := NewColor(100, 150, 200)

	assert.True(t, base.MatchesWithTolerance(NewColor(100, 150, 200), 0))
	assert.True(t, base.MatchesWithTolerance(NewColor(105, 145, 205), 5))
	// One channel past the budget fails the whole comparison.
	assert.False(t, base.MatchesWithTolerance(NewColor(106, 150, 200), 5))
	assert.False(t, base.MatchesWithTolerance(NewColor(100, 150, 194), 5))
	// Negative tolerance behaves like zero.
	assert.False(t, base.MatchesWithTolerance(NewColor(101, 150, 200), -3))
}

func TestRegionScaleTo(t *testing.T) {
	r := NewRegion(100, 200, 300, 400, 1000, 1000, "inventory")
	got := r.ScaleTo(500, 500)

	assert.Equal(t, 50, got.StartX)
	assert.Equal(t, 100, got.StartY)
	assert.Equal(t, 150, got.Width)
	assert.Equal(t, 200, got.Height)
	assert.Equal(t, "inventory", got.Name)
}

func TestRegionContainsAcrossScales(t *testing.T) {
	r := NewRegion(100, 100, 50, 50, 1000, 1000, "")

	// A point measured on a half-size frame scales up before the check.
	inside := NewPoint(60, 60, 500, 500)
	outside := NewPoint(10, 10, 500, 500)

	assert.True(t, r.Contains(inside))
	assert.False(t, r.Contains(outside))
}

func TestRegionBoundsClipsToFrame(t *testing.T) {
	r := NewRegion(950, 950, 200, 200, 1000, 1000, "")
	assert.Equal(t, image.Rect(950, 950, 1000, 1000), r.Bounds())

	unbounded := NewRegion(10, 10, 20, 20, 0, 0, "")
	assert.Equal(t, image.Rect(10, 10, 30, 30), unbounded.Bounds())
}

func TestBoundingBox(t *testing.T) {
	points := []Point{
		NewPoint(10, 40, 640, 480),
		NewPoint(30, 5, 640, 480),
		NewPoint(22, 18, 640, 480),
	}
	box := BoundingBox(points, "signature")

	assert.Equal(t, 10, box.StartX)
	assert.Equal(t, 5, box.StartY)
	assert.Equal(t, 21, box.Width)
	assert.Equal(t, 36, box.Height)
	assert.Equal(t, 640, box.TotalWidth)
	assert.Equal(t, "signature", box.Name)

	assert.True(t, BoundingBox(nil, "").Empty())
}
