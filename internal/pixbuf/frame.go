package pixbuf

import (
	"errors"
	"fmt"
	"image"
)

// ErrOutOfBounds is returned when a sub-rectangle does not fit in the frame.
var ErrOutOfBounds = errors.New("pixbuf: rectangle outside frame")

// Frame addresses a byte region as a full frame of width x height pixels with
// a row stride of width pixels.
//
// Unlike Buffer it has no cursor: any number of disjoint sub-rectangles can be
// written before the frame is transmitted.
type Frame struct {
	mem    []byte
	width  int
	height int
	bpp    int
}

// NewFrame returns a Frame over mem. mem must hold at least
// width*height*bytesPerPixel bytes.
func NewFrame(mem []byte, width, height, bytesPerPixel int) (*Frame, error) {
	if width <= 0 || height <= 0 || bytesPerPixel <= 0 {
		return nil, fmt.Errorf("pixbuf: invalid frame %dx%d at %d bytes per pixel", width, height, bytesPerPixel)
	}
	if size := width * height * bytesPerPixel; len(mem) < size {
		return nil, fmt.Errorf("pixbuf: %d byte region cannot hold a %dx%d frame (%d bytes)", len(mem), width, height, size)
	}
	return &Frame{mem: mem, width: width, height: height, bpp: bytesPerPixel}, nil
}

// Bounds returns the frame rectangle, always anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// Stride returns the number of bytes per frame row.
func (f *Frame) Stride() int { return f.width * f.bpp }

// BytesPerPixel returns the pixel width of the frame.
func (f *Frame) BytesPerPixel() int { return f.bpp }

// Bytes returns the whole frame.
func (f *Frame) Bytes() []byte { return f.mem[:f.width*f.height*f.bpp] }

// FillRect writes px into every pixel of r.
//
// r must lie inside Bounds; nothing is written otherwise. An empty r is a
// no-op.
func (f *Frame) FillRect(px []byte, r image.Rectangle) error {
	if len(px) != f.bpp {
		panic(fmt.Sprintf("pixbuf: %d-byte pixel written to a %d-byte pixel frame", len(px), f.bpp))
	}
	if r.Empty() {
		return nil
	}
	if !r.In(f.Bounds()) {
		return fmt.Errorf("%w: %v not in %v", ErrOutOfBounds, r, f.Bounds())
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		fillRepeated(f.Row(y, r.Min.X, r.Max.X), px)
	}
	return nil
}

// Row returns the bytes of row y for columns [x0, x1). The caller guarantees
// the range lies in the frame.
func (f *Frame) Row(y, x0, x1 int) []byte {
	start := (y*f.width + x0) * f.bpp
	return f.mem[start : start+(x1-x0)*f.bpp]
}

// Span returns the bytes of r as one slice when they are contiguous in the
// frame, that is when r covers whole rows or a single row.
func (f *Frame) Span(r image.Rectangle) ([]byte, bool) {
	if r.Empty() || !r.In(f.Bounds()) {
		return nil, false
	}
	if r.Dy() != 1 && (r.Min.X != 0 || r.Max.X != f.width) {
		return nil, false
	}
	start := (r.Min.Y*f.width + r.Min.X) * f.bpp
	end := ((r.Max.Y-1)*f.width + r.Max.X) * f.bpp
	return f.mem[start:end], true
}
