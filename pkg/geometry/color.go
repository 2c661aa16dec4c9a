// pkg/geometry/color.go
package geometry

import "image/color"

// Color is an 8-bit RGB value sampled from a frame.
type Color struct {
	R uint8
	G uint8
	B uint8
}

// NewColor constructs a color from 8-bit channels.
func NewColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// ColorAt samples c into the package's Color type, discarding alpha. The
// color.Color interface reports 16-bit premultiplied channels, so each is
// shifted back down to 8 bits.
func ColorAt(c color.Color) Color {
	r, g, b, _ := c.RGBA()
	return Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

// MatchesWithTolerance reports whether every channel of other differs from
// the receiver by at most tolerance.
func (c Color) MatchesWithTolerance(other Color, tolerance int) bool {
	if tolerance < 0 {
		tolerance = 0
	}
	return channelDelta(c.R, other.R) <= tolerance &&
		channelDelta(c.G, other.G) <= tolerance &&
		channelDelta(c.B, other.B) <= tolerance
}

func channelDelta(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}
