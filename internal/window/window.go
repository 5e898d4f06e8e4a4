// Package window computes controller address windows for rectangular writes.
//
// A controller address window is the inclusive region of panel RAM that
// subsequent memory-write data is streamed into, row-major, left to right
// then top to bottom. Every window produced here lies inside the bounds it
// was clipped against.
package window

import (
	"fmt"
	"image"
)

// Window is an inclusive column/row range in controller coordinates.
type Window struct {
	X0, Y0 uint16 // top-left, inclusive
	X1, Y1 uint16 // bottom-right, inclusive
}

// Clip intersects r with bounds and returns the resulting address window.
//
// ok is false when the intersection is empty; that is not an error, there is
// simply nothing to draw. bounds must not have negative coordinates.
func Clip(r, bounds image.Rectangle) (w Window, ok bool) {
	area := r.Intersect(bounds)
	if area.Empty() {
		return Window{}, false
	}
	return Window{
		X0: uint16(area.Min.X),
		Y0: uint16(area.Min.Y),
		X1: uint16(area.Max.X - 1),
		Y1: uint16(area.Max.Y - 1),
	}, true
}

// Rect returns w as a half-open image.Rectangle.
func (w Window) Rect() image.Rectangle {
	return image.Rect(int(w.X0), int(w.Y0), int(w.X1)+1, int(w.Y1)+1)
}

// Dx returns the window width in pixels.
func (w Window) Dx() int { return int(w.X1) - int(w.X0) + 1 }

// Dy returns the window height in pixels.
func (w Window) Dy() int { return int(w.Y1) - int(w.Y0) + 1 }

// Len returns the number of pixels covered by w.
func (w Window) Len() int { return w.Dx() * w.Dy() }

// Offset returns w translated by the panel RAM offsets.
func (w Window) Offset(col, row int16) Window {
	return Window{
		X0: uint16(int(w.X0) + int(col)),
		Y0: uint16(int(w.Y0) + int(row)),
		X1: uint16(int(w.X1) + int(col)),
		Y1: uint16(int(w.Y1) + int(row)),
	}
}

// Columns encodes the column range as the 4 big-endian argument bytes of a
// column address set command.
func (w Window) Columns(buf []byte) []byte {
	return appendRange(buf[:0], w.X0, w.X1)
}

// Rows encodes the row range as the 4 big-endian argument bytes of a row
// address set command.
func (w Window) Rows(buf []byte) []byte {
	return appendRange(buf[:0], w.Y0, w.Y1)
}

func (w Window) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", w.X0, w.Y0, w.X1, w.Y1)
}

func appendRange(b []byte, start, end uint16) []byte {
	return append(b, byte(start>>8), byte(start), byte(end>>8), byte(end))
}
