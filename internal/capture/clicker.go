// internal/capture/clicker.go
package capture

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/automation"
	"github.com/varkai/screenpilot/pkg/element"
)

// ClickRecord is one click a LogClicker absorbed.
type ClickRecord struct {
	Element string
	X       int
	Y       int
}

// LogClicker records clicks instead of dispatching them. It backs dry runs
// and replay sessions, where there is no live surface to click.
type LogClicker struct {
	logger *zap.Logger

	mu     sync.Mutex
	clicks []ClickRecord
}

var _ automation.Clicker = (*LogClicker)(nil)

// NewLogClicker returns an empty recorder.
func NewLogClicker(logger *zap.Logger) *LogClicker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogClicker{logger: logger.Named("capture")}
}

// Click records the element name and the click point without touching
// anything.
func (c *LogClicker) Click(ctx context.Context, el element.Element, at element.DetectionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := ClickRecord{Element: el.Name()}
	if at.Region != nil {
		center := at.Region.Center()
		rec.X, rec.Y = center.X, center.Y
	}

	c.mu.Lock()
	c.clicks = append(c.clicks, rec)
	c.mu.Unlock()

	c.logger.Info("dry-run click",
		zap.String("element", el.Name()),
		zap.Int("x", rec.X),
		zap.Int("y", rec.Y))
	return nil
}

// Clicks returns the recorded clicks in dispatch order.
func (c *LogClicker) Clicks() []ClickRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.clicks)
}
