// pkg/vision/match.go

// Package vision implements the pixel-level support the element layer
// delegates to: locating a template inside a frame and resampling images
// between reference frame sizes.
package vision

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"
)

// Match describes where a template was located and how well it fit.
type Match struct {
	Rect  image.Rectangle
	Score float64
}

var errEmptyInput = errors.New("vision: empty frame or template")

// Matcher locates templates by scanning grayscale pixel differences. Scores
// are normalized to [0,1], 1.0 meaning a pixel-perfect fit.
type Matcher struct {
	logger *zap.Logger
}

// NewMatcher returns a matcher logging through the given logger. A nil
// logger is replaced with a nop logger.
func NewMatcher(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger.Named("matcher")}
}

// FindTemplate scans for template inside the within rectangle of frame and
// returns the best-scoring position. found is false when no position reaches
// threshold; that includes the degenerate case of a search area smaller than
// the template. The scan aborts with the context's error on cancellation.
func (m *Matcher) FindTemplate(ctx context.Context, frame, template image.Image, within image.Rectangle, threshold float64) (Match, bool, error) {
	if frame == nil || template == nil {
		return Match{}, false, errEmptyInput
	}

	tpl := grayPlane(template)
	if tpl.w == 0 || tpl.h == 0 {
		return Match{}, false, errEmptyInput
	}

	search := within.Intersect(frame.Bounds())
	if search.Dx() < tpl.w || search.Dy() < tpl.h {
		m.logger.Debug("search area smaller than template",
			zap.Int("search_w", search.Dx()), zap.Int("search_h", search.Dy()),
			zap.Int("template_w", tpl.w), zap.Int("template_h", tpl.h))
		return Match{}, false, nil
	}

	src := grayPlane(frame)
	pixels := tpl.w * tpl.h
	maxDiff := float64(pixels) * 255.0

	best := Match{Score: -1}
	// Any position whose accumulated difference crosses this budget can no
	// longer beat the current best, so the inner loop bails out early.
	budget := maxDiff

	for y := search.Min.Y; y <= search.Max.Y-tpl.h; y++ {
		if err := ctx.Err(); err != nil {
			return Match{}, false, err
		}
		for x := search.Min.X; x <= search.Max.X-tpl.w; x++ {
			diff := src.diffAt(x-frame.Bounds().Min.X, y-frame.Bounds().Min.Y, tpl, budget)
			if diff < 0 {
				continue
			}
			score := 1.0 - diff/maxDiff
			if score > best.Score {
				best = Match{
					Rect:  image.Rect(x, y, x+tpl.w, y+tpl.h),
					Score: score,
				}
				budget = (1.0 - best.Score) * maxDiff
			}
		}
	}

	if best.Score < threshold {
		return Match{}, false, nil
	}
	return best, true, nil
}

// grayImage is a flat luma plane extracted once per image so the scan loop
// avoids interface calls per pixel.
type grayImage struct {
	pix []float64
	w   int
	h   int
}

func grayPlane(img image.Image) grayImage {
	b := img.Bounds()
	g := grayImage{w: b.Dx(), h: b.Dy()}
	if g.w <= 0 || g.h <= 0 {
		return grayImage{}
	}
	g.pix = make([]float64, g.w*g.h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gr, bl, _ := img.At(x, y).RGBA()
			g.pix[i] = 0.299*float64(r>>8) + 0.587*float64(gr>>8) + 0.114*float64(bl>>8)
			i++
		}
	}
	return g
}

// diffAt accumulates the absolute luma difference of tpl laid over (ox, oy).
// It returns -1 once the running total exceeds budget.
func (g grayImage) diffAt(ox, oy int, tpl grayImage, budget float64) float64 {
	var total float64
	for ty := 0; ty < tpl.h; ty++ {
		row := (oy+ty)*g.w + ox
		trow := ty * tpl.w
		for tx := 0; tx < tpl.w; tx++ {
			d := g.pix[row+tx] - tpl.pix[trow+tx]
			if d < 0 {
				d = -d
			}
			total += d
		}
		if total > budget {
			return -1
		}
	}
	return total
}
