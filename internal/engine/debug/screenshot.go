// Package debug provides frame capture for the viewer.
package debug

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// ErrPixelCount is returned when a readback does not match its dimensions.
var ErrPixelCount = errors.New("pixel count does not match size")

const stampLayout = "20060102-150405.000"

// Capture names and writes screenshots as PNG files in Dir.
type Capture struct {
	Dir    string
	Prefix string

	now func() time.Time
}

// NewCapture returns a capture writing dir/prefix-<timestamp>.png files.
func NewCapture(dir, prefix string) *Capture {
	return &Capture{Dir: dir, Prefix: prefix, now: time.Now}
}

// FromPixels wraps a bottom-up RGBA readback, as returned by glReadPixels,
// in a top-down image.
func FromPixels(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrPixelCount, len(pixels), width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := pixels[(height-1-y)*row:]
		copy(img.Pix[y*img.Stride:y*img.Stride+row], src[:row])
	}
	return img, nil
}

// Path returns where a capture taken now would be written.
func (c *Capture) Path() string {
	return filepath.Join(c.Dir, c.Prefix+"-"+c.now().Format(stampLayout)+".png")
}

// Save writes img and returns the file path.
func (c *Capture) Save(img image.Image) (string, error) {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", c.Dir, err)
	}

	path := c.Path()
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}
	return path, f.Close()
}
