// pkg/geometry/region.go
package geometry

import "image"

// Region is a named rectangle plus the reference frame size it was measured
// in. StartX/StartY are the top-left corner.
type Region struct {
	StartX      int
	StartY      int
	Width       int
	Height      int
	TotalWidth  int
	TotalHeight int
	Name        string
}

// NewRegion constructs a region measured against the given frame size.
func NewRegion(startX, startY, width, height, totalWidth, totalHeight int, name string) Region {
	return Region{
		StartX:      startX,
		StartY:      startY,
		Width:       width,
		Height:      height,
		TotalWidth:  totalWidth,
		TotalHeight: totalHeight,
		Name:        name,
	}
}

// ScaleTo returns the equivalent region in a frame of the given size,
// scaling both the origin and the extent proportionally.
func (r Region) ScaleTo(width, height int) Region {
	if r.TotalWidth <= 0 || r.TotalHeight <= 0 || width <= 0 || height <= 0 {
		out := r
		out.TotalWidth = width
		out.TotalHeight = height
		return out
	}
	return Region{
		StartX:      scaleRound(r.StartX, width, r.TotalWidth),
		StartY:      scaleRound(r.StartY, height, r.TotalHeight),
		Width:       scaleRound(r.Width, width, r.TotalWidth),
		Height:      scaleRound(r.Height, height, r.TotalHeight),
		TotalWidth:  width,
		TotalHeight: height,
		Name:        r.Name,
	}
}

// Center returns the midpoint of the region, measured in the same frame.
func (r Region) Center() Point {
	return Point{
		X:           r.StartX + r.Width/2,
		Y:           r.StartY + r.Height/2,
		TotalWidth:  r.TotalWidth,
		TotalHeight: r.TotalHeight,
	}
}

// Contains reports whether p falls inside the region. The point is scaled
// into the region's reference frame first, so the two may originate from
// frames of different sizes.
func (r Region) Contains(p Point) bool {
	if r.TotalWidth > 0 && r.TotalHeight > 0 {
		p = p.ScaleTo(r.TotalWidth, r.TotalHeight)
	}
	return p.X >= r.StartX && p.X < r.StartX+r.Width &&
		p.Y >= r.StartY && p.Y < r.StartY+r.Height
}

// Bounds returns the region as an image.Rectangle, clipped to its reference
// frame when one is known. Sampling code can range over the result directly.
func (r Region) Bounds() image.Rectangle {
	rect := image.Rect(r.StartX, r.StartY, r.StartX+r.Width, r.StartY+r.Height)
	if r.TotalWidth > 0 && r.TotalHeight > 0 {
		rect = rect.Intersect(image.Rect(0, 0, r.TotalWidth, r.TotalHeight))
	}
	return rect
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// BoundingBox returns the smallest region covering every given point, all of
// which must be measured against the same reference frame as the first. A
// nil or empty slice yields the zero region.
func BoundingBox(points []Point, name string) Region {
	if len(points) == 0 {
		return Region{Name: name}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Region{
		StartX:      minX,
		StartY:      minY,
		Width:       maxX - minX + 1,
		Height:      maxY - minY + 1,
		TotalWidth:  points[0].TotalWidth,
		TotalHeight: points[0].TotalHeight,
		Name:        name,
	}
}
