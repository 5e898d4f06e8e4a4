// Package pixbuf packs encoded pixels into fixed-capacity transmission
// buffers.
//
// Two views are provided over a caller-owned byte region, typically a DMA
// capable one:
//
//   - Buffer fills the region sequentially through a write cursor and is
//     drained by flushing it to the bus.
//   - Frame treats the region as a whole frame with a fixed row stride and
//     writes sub-rectangles directly by row and column.
//
// Pixels are opaque byte strings of a fixed width (bytes per pixel). All
// packing happens in whole pixels: the cursor of a Buffer is always a
// multiple of the pixel width and packing never writes past the region.
package pixbuf

import (
	"fmt"
)

// State is the fill state of a Buffer.
type State uint8

const (
	Empty   State = iota // cursor at 0
	Filling              // some pixels packed, room for more
	Full                 // no room for another whole pixel
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Filling:
		return "filling"
	case Full:
		return "full"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Buffer is a fixed-capacity byte region with a write cursor.
//
// Packing operations only ever advance the cursor; Reset, called once the
// packed bytes have been flushed, is the only way back to Empty.
type Buffer struct {
	mem   []byte
	bpp   int // bytes per pixel
	index int
}

// New returns a Buffer packing bytesPerPixel-wide pixels into mem.
//
// mem is borrowed, not copied. The usable capacity is len(mem) rounded down to
// a whole number of pixels.
func New(mem []byte, bytesPerPixel int) *Buffer {
	if bytesPerPixel <= 0 {
		panic("pixbuf: bytes per pixel must be positive")
	}
	return &Buffer{mem: mem, bpp: bytesPerPixel}
}

// Cap returns the capacity of the region in bytes.
func (b *Buffer) Cap() int { return len(b.mem) }

// Len returns the cursor, the number of bytes packed since the last Reset.
func (b *Buffer) Len() int { return b.index }

// BytesPerPixel returns the pixel width the buffer packs.
func (b *Buffer) BytesPerPixel() int { return b.bpp }

// Free returns how many more whole pixels fit before the buffer is full.
func (b *Buffer) Free() int { return (len(b.mem) - b.index) / b.bpp }

// Capacity returns how many whole pixels fit in an empty buffer.
func (b *Buffer) Capacity() int { return len(b.mem) / b.bpp }

// State reports where the buffer is in its fill cycle.
func (b *Buffer) State() State {
	switch {
	case b.Free() == 0:
		return Full
	case b.index == 0:
		return Empty
	}
	return Filling
}

// Bytes returns the packed prefix of the region. It aliases the region and is
// only valid until the next packing call.
func (b *Buffer) Bytes() []byte { return b.mem[:b.index] }

// Reset rewinds the cursor to 0. Call it after the packed bytes were flushed.
func (b *Buffer) Reset() { b.index = 0 }

// PackRepeated writes up to count copies of px after the cursor and returns
// how many were written.
//
// The count is silently truncated to what fits; callers flush and call again
// for the remainder.
func (b *Buffer) PackRepeated(px []byte, count int) int {
	b.checkPixel(px)
	n := min(count, b.Free())
	if n <= 0 {
		return 0
	}
	dst := b.mem[b.index : b.index+n*b.bpp]
	fillRepeated(dst, px)
	b.index += len(dst)
	return n
}

// PackStream pulls pixels from next while there is room for them and returns
// how many were packed. done reports whether next ran dry.
//
// next is never called when the buffer is full, so no pixel is dropped between
// two rounds.
func (b *Buffer) PackStream(next func() ([]byte, bool)) (n int, done bool) {
	for b.Free() > 0 {
		px, ok := next()
		if !ok {
			return n, true
		}
		b.checkPixel(px)
		b.index += copy(b.mem[b.index:], px)
		n++
	}
	return n, false
}

// PackBytes copies as many whole pixels from p as fit and returns the number
// of pixels copied. len(p) must be a multiple of the pixel width.
func (b *Buffer) PackBytes(p []byte) int {
	if len(p)%b.bpp != 0 {
		panic(fmt.Sprintf("pixbuf: %d bytes is not a whole number of %d-byte pixels", len(p), b.bpp))
	}
	n := min(len(p)/b.bpp, b.Free())
	b.index += copy(b.mem[b.index:], p[:n*b.bpp])
	return n
}

func (b *Buffer) checkPixel(px []byte) {
	if len(px) != b.bpp {
		panic(fmt.Sprintf("pixbuf: %d-byte pixel packed into a %d-byte pixel buffer", len(px), b.bpp))
	}
}

// fillRepeated tiles px over dst. len(dst) is a multiple of len(px).
func fillRepeated(dst, px []byte) {
	if len(dst) == 0 {
		return
	}
	n := copy(dst, px)
	for n < len(dst) {
		n += copy(dst[n:], dst[:n])
	}
}
