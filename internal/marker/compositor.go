package marker

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"

	"ar-asset-backend/internal/imagebuf"
)

// ErrCanvasUnavailable is returned when no drawing surface can be produced
// for the requested geometry or source.
var ErrCanvasUnavailable = errors.New("marker canvas unavailable")

const (
	DefaultSize   = 512
	DefaultBorder = 50
	MinBorder     = 48

	// MaxSourceDimension bounds the source before it is laid out.
	MaxSourceDimension = 1024
)

var (
	black = color.NRGBA{0, 0, 0, 255}
	white = color.NRGBA{255, 255, 255, 255}
)

// Corner identifies a corner of the marker frame.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomRight
	BottomLeft
)

// Mark is one white orientation square stamped into the frame.
type Mark struct {
	Corner Corner
	Rect   image.Rectangle
}

// Compositor renders markers with a fixed geometry. It holds no mutable state
// and is safe for concurrent use.
type Compositor struct {
	size   int
	border int
}

// NewCompositor validates the geometry: the frame must be at least MinBorder
// wide and leave a non-empty interior.
func NewCompositor(size, border int) (*Compositor, error) {
	if border < MinBorder {
		return nil, fmt.Errorf("%w: border %d below minimum %d", ErrCanvasUnavailable, border, MinBorder)
	}
	if size-2*border <= 0 {
		return nil, fmt.Errorf("%w: size %d leaves no interior for border %d", ErrCanvasUnavailable, size, border)
	}
	return &Compositor{size: size, border: border}, nil
}

// Default returns the 512px compositor with a 50px frame.
func Default() *Compositor {
	return &Compositor{size: DefaultSize, border: DefaultBorder}
}

func (c *Compositor) Size() int     { return c.size }
func (c *Compositor) Border() int   { return c.border }
func (c *Compositor) Interior() int { return c.size - 2*c.border }

// Marks returns the orientation squares: a large one top-left and two
// smaller ones top-right and bottom-left, each centered in its corner of the
// frame. Bottom-right stays black.
func (c *Compositor) Marks() []Mark {
	large := c.border * 3 / 5
	small := c.border * 2 / 5
	at := func(corner Corner, side int) Mark {
		off := (c.border - side) / 2
		var x, y int
		switch corner {
		case TopLeft:
			x, y = off, off
		case TopRight:
			x, y = c.size-c.border+off, off
		case BottomRight:
			x, y = c.size-c.border+off, c.size-c.border+off
		case BottomLeft:
			x, y = off, c.size-c.border+off
		}
		return Mark{Corner: corner, Rect: image.Rect(x, y, x+side, y+side)}
	}
	return []Mark{
		at(TopLeft, large),
		at(TopRight, small),
		at(BottomLeft, small),
	}
}

// Compose lays out src inside the frame, binarizes the interior and stamps
// the orientation marks. src is not modified.
func (c *Compositor) Compose(src *imagebuf.Buffer) (*imagebuf.Buffer, error) {
	if src == nil || src.Width() == 0 || src.Height() == 0 {
		return nil, fmt.Errorf("%w: empty source", ErrCanvasUnavailable)
	}

	interior := c.Interior()
	scale := math.Min(float64(interior)/float64(src.Width()), float64(interior)/float64(src.Height()))
	w := clamp(int(math.Round(float64(src.Width())*scale)), 1, interior)
	h := clamp(int(math.Round(float64(src.Height())*scale)), 1, interior)
	scaled := imagebuf.Scale(src, w, h)

	inner := imaging.New(interior, interior, white)
	inner = imaging.Overlay(inner, scaled.Image(), image.Pt((interior-w)/2, (interior-h)/2), 1.0)

	t := OtsuThreshold(GrayHistogram(inner, inner.Bounds()))
	inner = Binarize(inner, t)

	canvas := imaging.New(c.size, c.size, black)
	canvas = imaging.Paste(canvas, inner, image.Pt(c.border, c.border))
	for _, m := range c.Marks() {
		canvas = imaging.Paste(canvas, imaging.New(m.Rect.Dx(), m.Rect.Dy(), white), m.Rect.Min)
	}
	return imagebuf.FromImage(canvas), nil
}

// ComposeBytes decodes an image, normalizes its size, composes the marker
// and encodes it as PNG.
func (c *Compositor) ComposeBytes(data []byte) ([]byte, error) {
	src, err := imagebuf.Decode(data)
	if err != nil {
		return nil, err
	}
	out, err := c.Compose(imagebuf.Resize(src, MaxSourceDimension))
	if err != nil {
		return nil, err
	}
	encoded, err := imagebuf.Encode(out, imagebuf.PNG)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanvasUnavailable, err)
	}
	return encoded, nil
}

// Binarize returns a copy of img with every pixel set to pure black or white:
// white when its intensity exceeds t. Alpha is preserved. Rows are processed
// in parallel; img itself is never written.
func Binarize(img *image.NRGBA, t uint8) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	parallel.Line(b.Dy(), func(start, end int) {
		for y := start; y < end; y++ {
			row := out.Pix[y*out.Stride : y*out.Stride+b.Dx()*4]
			for i := 0; i < len(row); i += 4 {
				v := uint8(0)
				if (int(row[i])+int(row[i+1])+int(row[i+2]))/3 > int(t) {
					v = 255
				}
				row[i], row[i+1], row[i+2] = v, v, v
			}
		}
	})
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
