// Package imagebuf holds decoded rasters in memory and converts them to and
// from encoded bytes.
//
// A Buffer always has its origin at (0,0) and stores non-premultiplied 8-bit
// RGBA samples, so pixel reads and writes never need bounds translation or
// alpha correction.
package imagebuf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrDecode is returned when bytes are not a supported raster format.
var ErrDecode = errors.New("unsupported or corrupt image")

// Format is an output encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// MaxPixels bounds the raster size Decode will allocate. Headers declaring
// more are rejected before any pixel data is read.
const MaxPixels = 40_000_000

// JPEGQuality is used whenever a buffer is re-encoded as JPEG.
const JPEGQuality = 85

// Buffer is an in-memory decoded raster.
type Buffer struct {
	img *image.NRGBA
}

// New returns a w x h buffer filled with fill.
func New(w, h int, fill color.Color) *Buffer {
	return &Buffer{img: imaging.New(w, h, fill)}
}

// FromImage copies img into a new buffer.
func FromImage(img image.Image) *Buffer {
	return &Buffer{img: imaging.Clone(img)}
}

// Decode parses PNG or JPEG (and the other formats registered with the image
// package) into a buffer. EXIF orientation is applied so the buffer matches
// what a viewer would display.
func Decode(data []byte) (*Buffer, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return FromImage(img), nil
}

// Encode serializes the buffer.
func Encode(b *Buffer, format Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case PNG:
		err = imaging.Encode(&buf, b.img, imaging.PNG)
	case JPEG:
		err = imaging.Encode(&buf, b.img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Resize shrinks b so that neither side exceeds maxDimension, keeping the
// aspect ratio. Buffers already within bounds are returned unchanged.
func Resize(b *Buffer, maxDimension int) *Buffer {
	if maxDimension <= 0 || (b.Width() <= maxDimension && b.Height() <= maxDimension) {
		return b
	}
	return &Buffer{img: imaging.Fit(b.img, maxDimension, maxDimension, imaging.Lanczos)}
}

// Scale resamples b to exactly w x h.
func Scale(b *Buffer, w, h int) *Buffer {
	if w == b.Width() && h == b.Height() {
		return FromImage(b.img)
	}
	return &Buffer{img: imaging.Resize(b.img, w, h, imaging.Lanczos)}
}

func (b *Buffer) Width() int  { return b.img.Bounds().Dx() }
func (b *Buffer) Height() int { return b.img.Bounds().Dy() }

// Image exposes the backing raster. Callers that mutate it own the buffer.
func (b *Buffer) Image() *image.NRGBA { return b.img }

func (b *Buffer) At(x, y int) color.NRGBA { return b.img.NRGBAAt(x, y) }

func (b *Buffer) Set(x, y int, c color.NRGBA) { b.img.SetNRGBA(x, y, c) }

// Gray is the unweighted mean of the RGB channels at (x, y).
func (b *Buffer) Gray(x, y int) uint8 {
	return Intensity(b.img.NRGBAAt(x, y))
}

// Intensity is the unweighted mean of the RGB channels.
func Intensity(c color.NRGBA) uint8 {
	return uint8((int(c.R) + int(c.G) + int(c.B)) / 3)
}
