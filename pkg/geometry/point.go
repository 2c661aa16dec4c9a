// pkg/geometry/point.go

// Package geometry holds the pixel-space primitives the detection layer works
// in. Every coordinate carries the frame dimensions it was measured against,
// so values remain comparable when the observed application is captured at a
// different resolution than the one the probes were authored at.
package geometry

import "math"

// Point is a pixel coordinate plus the reference frame size it was measured
// in. TotalWidth/TotalHeight of zero mean "unknown frame", in which case the
// point is treated as already being in the target space.
type Point struct {
	X           int
	Y           int
	TotalWidth  int
	TotalHeight int
}

// NewPoint constructs a point measured against the given frame size.
func NewPoint(x, y, totalWidth, totalHeight int) Point {
	return Point{X: x, Y: y, TotalWidth: totalWidth, TotalHeight: totalHeight}
}

// ScaleTo returns the equivalent point in a frame of the given size. The
// conversion is proportional and rounded to the nearest pixel.
func (p Point) ScaleTo(width, height int) Point {
	if p.TotalWidth <= 0 || p.TotalHeight <= 0 || width <= 0 || height <= 0 {
		return Point{X: p.X, Y: p.Y, TotalWidth: width, TotalHeight: height}
	}
	return Point{
		X:           scaleRound(p.X, width, p.TotalWidth),
		Y:           scaleRound(p.Y, height, p.TotalHeight),
		TotalWidth:  width,
		TotalHeight: height,
	}
}

func scaleRound(v, target, reference int) int {
	return int(math.Round(float64(v) * float64(target) / float64(reference)))
}
