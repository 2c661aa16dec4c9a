// internal/capture/cdp.go

// Package capture provides the frame sources and click executors the
// automation controller drives: a live Chrome DevTools session, a replay
// directory of recorded frames, and a dry-run clicker.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/varkai/screenpilot/internal/config"
	"github.com/varkai/screenpilot/pkg/automation"
	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/geometry"
	"github.com/varkai/screenpilot/pkg/types"
)

// CDPProvider captures frames from and dispatches clicks into a Chrome
// instance over the DevTools protocol.
type CDPProvider struct {
	browserCtx context.Context
	cancels    []context.CancelFunc
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var (
	_ automation.FrameProvider = (*CDPProvider)(nil)
	_ automation.Clicker       = (*CDPProvider)(nil)
)

// NewCDPProvider attaches to the DevTools endpoint named in cfg, or
// prepares a locally launched browser when no endpoint is configured. The
// browser itself starts on the first captured frame. Callers must Close the
// provider to release it.
func NewCDPProvider(ctx context.Context, cfg config.CaptureConfig, logger *zap.Logger) (*CDPProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("capture")

	var cancels []context.CancelFunc
	var allocCtx context.Context
	if cfg.CDPURL != "" {
		var cancel context.CancelFunc
		allocCtx, cancel = chromedp.NewRemoteAllocator(ctx, cfg.CDPURL)
		cancels = append(cancels, cancel)
	} else {
		opts := []chromedp.ExecAllocatorOption{
			chromedp.NoSandbox,
			chromedp.DisableGPU,
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
		}
		if cfg.Headless {
			opts = append(opts, chromedp.Headless)
		}
		var cancel context.CancelFunc
		allocCtx, cancel = chromedp.NewExecAllocator(ctx, opts...)
		cancels = append(cancels, cancel)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))
	cancels = append(cancels, cancel)

	p := &CDPProvider{
		browserCtx: browserCtx,
		cancels:    cancels,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:     logger,
	}

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		err := p.run(ctx, chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("emulating %dx%d viewport: %w", cfg.ViewportWidth, cfg.ViewportHeight, err)
		}
	}
	return p, nil
}

// run executes actions against the browser target while honoring the
// caller's cancellation. The operational context must derive from
// browserCtx because that is where chromedp keeps the target.
func (p *CDPProvider) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(p.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate opens url in the captured tab and waits for the load to settle.
func (p *CDPProvider) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	p.logger.Info("navigated", zap.String("url", url))
	return nil
}

// CaptureFrame screenshots the current viewport. The configured rate limit
// is applied here, so polling loops can call this as fast as they like.
func (p *CDPProvider) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return img, nil
}

// Click dispatches a left mouse press and release at the center of the
// detection result's region. The region is measured against the captured
// frame, which may be larger than the CSS viewport on scaled displays, so
// the point is rescaled against the live viewport first.
func (p *CDPProvider) Click(ctx context.Context, el element.Element, at element.DetectionResult) error {
	if at.Region == nil {
		return types.NewError(types.CodeNavigation, "element %q has no click region", el.Name())
	}

	var viewport []int
	if err := p.run(ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &viewport)); err != nil {
		return fmt.Errorf("reading viewport size: %w", err)
	}
	if len(viewport) != 2 || viewport[0] <= 0 || viewport[1] <= 0 {
		return fmt.Errorf("unusable viewport size %v", viewport)
	}

	center := clickPoint(*at.Region, viewport[0], viewport[1])
	x, y := float64(center.X), float64(center.Y)

	press := chromedp.MouseEvent(input.MousePressed, x, y, chromedp.Button("left"), chromedp.ClickCount(1))
	release := chromedp.MouseEvent(input.MouseReleased, x, y, chromedp.Button("left"), chromedp.ClickCount(1))
	if err := p.run(ctx, press, release); err != nil {
		return fmt.Errorf("clicking %q at (%d,%d): %w", el.Name(), center.X, center.Y, err)
	}

	p.logger.Debug("dispatched click",
		zap.String("element", el.Name()),
		zap.Int("x", center.X),
		zap.Int("y", center.Y))
	return nil
}

// Close tears down the browser contexts in reverse creation order.
func (p *CDPProvider) Close() {
	for i := len(p.cancels) - 1; i >= 0; i-- {
		p.cancels[i]()
	}
}

// clickPoint rescales the region into the viewport's coordinate space and
// returns its midpoint.
func clickPoint(r geometry.Region, viewportWidth, viewportHeight int) geometry.Point {
	return r.ScaleTo(viewportWidth, viewportHeight).Center()
}
