// Package sampler reduces a camera frame to a bounded set of color samples.
package sampler

import (
	"image"
	"image/draw"

	"github.com/GriffinCanCode/stripscan/internal/colorspace"
	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
)

// PixelBuffer is a row-major grid of 8-bit RGB or RGBA pixels.
// The classifier only reads it.
type PixelBuffer struct {
	Width    int
	Height   int
	Channels int // 3 (RGB) or 4 (RGBA)
	Pix      []uint8
}

// NewRGBA wraps RGBA bytes without copying.
func NewRGBA(width, height int, pix []uint8) PixelBuffer {
	return PixelBuffer{Width: width, Height: height, Channels: 4, Pix: pix}
}

// FromImage copies img into an RGBA PixelBuffer.
func FromImage(img image.Image) PixelBuffer {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return NewRGBA(b.Dx(), b.Dy(), rgba.Pix)
}

// Len returns the number of pixels in the buffer.
func (p PixelBuffer) Len() int {
	return p.Width * p.Height
}

// Validate reports InvalidInput for empty or malformed buffers.
func (p PixelBuffer) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return apperrors.Newf(apperrors.CodeInvalidInput, "pixel buffer has no pixels (%dx%d)", p.Width, p.Height)
	case p.Channels != 3 && p.Channels != 4:
		return apperrors.Newf(apperrors.CodeInvalidInput, "unsupported channel count %d", p.Channels)
	case len(p.Pix) < p.Len()*p.Channels:
		return apperrors.Newf(apperrors.CodeInvalidInput, "pixel data too short: %d bytes for %dx%dx%d", len(p.Pix), p.Width, p.Height, p.Channels)
	}
	return nil
}

// At returns the color of the i-th pixel in scan order, alpha dropped.
func (p PixelBuffer) At(i int) colorspace.RGB {
	o := i * p.Channels
	return colorspace.RGB{R: p.Pix[o], G: p.Pix[o+1], B: p.Pix[o+2]}
}

// Sample strides evenly through the buffer and returns at most n colors in scan order.
// stride = max(1, total/n). A non-empty buffer always yields at least one sample.
func Sample(p PixelBuffer, n int) []colorspace.RGB {
	total := p.Len()
	if total <= 0 || n <= 0 {
		return nil
	}
	step := max(1, total/n)
	out := make([]colorspace.RGB, 0, min(n, total))
	for i := 0; i < total && len(out) < n; i += step {
		out = append(out, p.At(i))
	}
	return out
}

// CenterCrop returns the centered floor(w*fraction) x floor(h*fraction) region as a new buffer.
// Each side is at least one pixel. A fraction outside (0,1) returns p unchanged.
func CenterCrop(p PixelBuffer, fraction float64) PixelBuffer {
	if fraction <= 0 || fraction >= 1 || p.Validate() != nil {
		return p
	}
	cw := max(1, int(float64(p.Width)*fraction))
	ch := max(1, int(float64(p.Height)*fraction))
	sx := (p.Width - cw) / 2
	sy := (p.Height - ch) / 2

	out := PixelBuffer{Width: cw, Height: ch, Channels: p.Channels, Pix: make([]uint8, cw*ch*p.Channels)}
	rowBytes := cw * p.Channels
	for y := 0; y < ch; y++ {
		src := ((sy+y)*p.Width + sx) * p.Channels
		copy(out.Pix[y*rowBytes:(y+1)*rowBytes], p.Pix[src:src+rowBytes])
	}
	return out
}
