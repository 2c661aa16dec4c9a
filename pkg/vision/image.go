// pkg/vision/image.go
package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/nfnt/resize"
)

// ScaleImage resamples img to the given size using Lanczos interpolation.
// Non-positive dimensions return the image unchanged.
func ScaleImage(img image.Image, width, height int) image.Image {
	if img == nil || width <= 0 || height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// Crop copies the part of img covered by rect into a fresh RGBA image. The
// rectangle is clipped to the image bounds; an empty intersection yields a
// 0x0 image.
func Crop(img image.Image, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

// DecodePNG decodes template bytes as produced by EncodePNG.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png template: %w", err)
	}
	return img, nil
}

// EncodePNG renders img to PNG bytes for persistence.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png template: %w", err)
	}
	return buf.Bytes(), nil
}
