// internal/capture/replay.go
package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/automation"
	"github.com/varkai/screenpilot/pkg/types"
)

// ReplayProvider serves a recorded session: a directory of PNG or JPEG
// frames played back in filename order. Once the recording is exhausted it
// keeps returning the last frame, so polling loops see a stable final
// screen instead of an error.
type ReplayProvider struct {
	paths  []string
	logger *zap.Logger

	mu   sync.Mutex
	next int
}

var _ automation.FrameProvider = (*ReplayProvider)(nil)

// NewReplayProvider indexes the frame files under dir. Files with other
// extensions are ignored; an empty recording is a configuration error.
func NewReplayProvider(dir string, logger *zap.Logger) (*ReplayProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "reading frames directory %s", dir)
	}

	// os.ReadDir yields entries sorted by name, which is the playback order.
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, types.NewError(types.CodeConfiguration, "no png or jpeg frames in %s", dir)
	}

	return &ReplayProvider{
		paths:  paths,
		logger: logger.Named("capture"),
	}, nil
}

// CaptureFrame decodes and returns the next recorded frame.
func (p *ReplayProvider) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	idx := p.next
	if p.next < len(p.paths)-1 {
		p.next++
	}
	p.mu.Unlock()

	path := p.paths[idx]
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", path, err)
	}

	p.logger.Debug("replayed frame", zap.String("path", path), zap.Int("index", idx))
	return img, nil
}

// Rewind restarts playback from the first frame.
func (p *ReplayProvider) Rewind() {
	p.mu.Lock()
	p.next = 0
	p.mu.Unlock()
}

// Len reports how many frames the recording holds.
func (p *ReplayProvider) Len() int {
	return len(p.paths)
}
