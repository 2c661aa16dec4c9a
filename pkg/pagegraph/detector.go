// pkg/pagegraph/detector.go
package pagegraph

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"
)

// ErrNoPage is returned by DetectPage when no page scores above zero.
var ErrNoPage = errors.New("pagegraph: no page detected")

// PageDetectionResult reports which page a frame most likely shows.
// Confidence is the fraction of the page's identifier elements that were
// visible; ElementsFound lists their ids.
type PageDetectionResult struct {
	PageID        string
	Confidence    float64
	ElementsFound []string
}

// PageDetector scores every page of a graph against a frame.
type PageDetector struct {
	manager *Manager
	logger  *zap.Logger
}

// NewPageDetector constructs a detector over the manager's graph.
func NewPageDetector(manager *Manager, logger *zap.Logger) *PageDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageDetector{manager: manager, logger: logger.Named("page_detector")}
}

// DetectPage probes every page's identifier elements and returns the
// highest-scoring page, registration order breaking ties. Pages without
// identifiers are never selectable. When every page scores zero the result
// is ErrNoPage.
func (d *PageDetector) DetectPage(ctx context.Context, frame image.Image) (PageDetectionResult, error) {
	var best PageDetectionResult

	for _, pageID := range d.manager.pageOrder {
		if err := ctx.Err(); err != nil {
			return PageDetectionResult{}, err
		}
		page := d.manager.pages[pageID]
		if len(page.IdentifierElementIDs) == 0 {
			continue
		}

		var found []string
		for _, elementID := range page.IdentifierElementIDs {
			el, err := d.manager.Element(elementID)
			if err != nil {
				// A dangling or undecodable identifier config cannot make
				// the page more likely; treat it as not visible.
				d.logger.Warn("identifier element unavailable",
					zap.String("page", pageID),
					zap.String("element", elementID),
					zap.Error(err))
				continue
			}
			if el.IsVisible(ctx, frame) {
				found = append(found, elementID)
			}
		}

		confidence := float64(len(found)) / float64(len(page.IdentifierElementIDs))
		if confidence > best.Confidence {
			best = PageDetectionResult{PageID: pageID, Confidence: confidence, ElementsFound: found}
		}
	}

	if best.Confidence == 0 {
		return PageDetectionResult{}, ErrNoPage
	}
	d.logger.Debug("page detected",
		zap.String("page", best.PageID),
		zap.Float64("confidence", best.Confidence),
		zap.Int("identifiers_found", len(best.ElementsFound)))
	return best, nil
}
