// Package preview draws the small debug view of the tracked hand: the
// camera frame (or a dark placeholder) with the landmark skeleton on top.
package preview

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
)

// Default surface size.
const (
	DefaultWidth  = 160
	DefaultHeight = 120
)

// lostDim is the brightness kept when no hand is in view.
const lostDim = 0.4

var (
	// ErrNoFrame is returned by JPEG before the first Render.
	ErrNoFrame = errors.New("no preview frame rendered yet")

	placeholder = gocv.NewScalar(0x1a, 0x1a, 0x1a, 0)
	boneColor   = color.RGBA{R: 0x4c, G: 0xd9, B: 0x64, A: 0xff}
	jointColor  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Config sizes the preview surface.
type Config struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DefaultConfig returns the 160x120 preview surface.
func DefaultConfig() Config {
	return Config{Width: DefaultWidth, Height: DefaultHeight}
}

// Renderer owns a fixed-size BGR surface. It is safe for concurrent use: the
// capture pipeline renders while HTTP clients read snapshots.
type Renderer struct {
	log *zap.Logger

	mu       sync.Mutex
	width    int
	height   int
	surface  gocv.Mat
	rendered uint64
	closed   bool
}

// NewRenderer allocates the preview surface, filled with the placeholder.
func NewRenderer(cfg Config, log *zap.Logger) *Renderer {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{
		log:     log.Named("preview"),
		width:   cfg.Width,
		height:  cfg.Height,
		surface: gocv.NewMatWithSizeFromScalar(placeholder, cfg.Height, cfg.Width, gocv.MatTypeCV8UC3),
	}
}

// Render redraws the surface. With showCamera set and a usable src the
// frame is scaled onto the surface, otherwise the surface is cleared to the
// placeholder. Without a hand the background is dimmed and no skeleton is
// drawn.
func (r *Renderer) Render(src *gocv.Mat, hand *detector.HandLandmarks, showCamera bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	if showCamera && usable(src) {
		gocv.Resize(*src, &r.surface, image.Pt(r.width, r.height), 0, 0, gocv.InterpolationArea)
	} else {
		r.surface.SetTo(placeholder)
	}

	if hand == nil {
		gocv.AddWeighted(r.surface, lostDim, r.surface, 0, 0, &r.surface)
	} else {
		r.drawSkeleton(hand)
	}
	r.rendered++
}

func usable(src *gocv.Mat) bool {
	return src != nil && !src.Empty() && src.Channels() == 3
}

func (r *Renderer) drawSkeleton(hand *detector.HandLandmarks) {
	for _, c := range detector.Connections {
		gocv.Line(&r.surface, r.project(hand.Points[c.From]), r.project(hand.Points[c.To]), boneColor, 1)
	}
	for _, p := range hand.Points {
		gocv.Circle(&r.surface, r.project(p), 2, jointColor, -1)
	}
}

// project maps an image-relative landmark to surface pixels.
func (r *Renderer) project(p detector.Point3D) image.Point {
	return image.Pt(int(p.X*float64(r.width-1)+0.5), int(p.Y*float64(r.height-1)+0.5))
}

// Size returns the surface dimensions.
func (r *Renderer) Size() (width, height int) {
	return r.width, r.height
}

// Rendered returns how many frames have been drawn.
func (r *Renderer) Rendered() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered
}

// Snapshot returns a copy of the current surface. The caller closes it.
func (r *Renderer) Snapshot() gocv.Mat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surface.Clone()
}

// JPEG encodes the current surface.
func (r *Renderer) JPEG() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.rendered == 0 {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, r.surface)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close frees the surface. Later renders are ignored.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.log.Debug("preview closed", zap.Uint64("rendered", r.rendered))
	return r.surface.Close()
}
