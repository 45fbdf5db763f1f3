// Package screen grabs, annotates and streams screenshots.
package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/room4-2/livedesk/config"
	"github.com/room4-2/livedesk/shell"
)

// MIMEType of every encoded frame
const MIMEType = "image/jpeg"

const minImageBytes = 50

// ErrEmptyImage is returned when the grab produced nothing usable
var ErrEmptyImage = errors.New("captured image empty")

// Frame is one annotated JPEG screenshot
type Frame struct {
	Data   []byte
	Width  int
	Height int
	// Scale is screen pixels per frame pixel
	Scale float64
}

// ToScreen maps frame coordinates back to screen coordinates
func (f *Frame) ToScreen(x, y int) (int, int) {
	if f == nil || f.Scale <= 0 || f.Scale == 1 {
		return x, y
	}
	return int(math.Round(float64(x) * f.Scale)), int(math.Round(float64(y) * f.Scale))
}

// Capturer runs the configured grab command and prepares frames for the model
type Capturer struct {
	runner  shell.Runner
	command shell.Command
	cfg     config.ScreenConfig

	mu   sync.Mutex
	last *Frame
}

// NewCapturer creates a capturer. cfg.Command must write an image to stdout.
func NewCapturer(runner shell.Runner, cfg config.ScreenConfig) *Capturer {
	c := &Capturer{runner: runner, cfg: cfg}
	if len(cfg.Command) > 0 {
		c.command = shell.Cmd(cfg.Command[0], cfg.Command[1:]...)
	}
	return c
}

// Grab captures the raw screen image
func (c *Capturer) Grab(ctx context.Context) (image.Image, error) {
	if c.command.Name == "" {
		return nil, fmt.Errorf("no screenshot command configured")
	}
	raw, err := c.runner.Run(ctx, c.command)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	if len(raw) < minImageBytes {
		return nil, ErrEmptyImage
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

// Shot grabs the screen, fits it, draws the grid and encodes it
func (c *Capturer) Shot(ctx context.Context) (*Frame, error) {
	img, err := c.Grab(ctx)
	if err != nil {
		return nil, err
	}

	fitted, scale := Fit(img, c.cfg.MaxDimension)
	annotated := Grid(fitted, c.cfg.GridStep)

	data, err := EncodeJPEG(annotated, c.cfg.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	if len(data) < minImageBytes {
		return nil, ErrEmptyImage
	}

	frame := &Frame{
		Data:   data,
		Width:  annotated.Bounds().Dx(),
		Height: annotated.Bounds().Dy(),
		Scale:  scale,
	}
	c.mu.Lock()
	c.last = frame
	c.mu.Unlock()
	return frame, nil
}

// Last returns the most recent frame, or nil before the first Shot
func (c *Capturer) Last() *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// ToScreen maps coordinates read off the last frame's grid onto the screen
func (c *Capturer) ToScreen(x, y int) (int, int) {
	return c.Last().ToScreen(x, y)
}
