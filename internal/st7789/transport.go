package st7789

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/AlCutter/tftbus/internal/window"
	"tinygo.org/x/drivers/pixel"
)

// contextWindow is the pending context. primed is set once the controller
// window was sent; empty marks a BeginContext that clipped to nothing.
type contextWindow struct {
	win    window.Window
	primed bool
	empty  bool
	fills  int
}

// setWindow selects the controller RAM region for the following pixel data
// and starts a memory write.
func (d *DeviceOf[T]) setWindow(win window.Window) error {
	ram := win.Offset(d.columnOffset, d.rowOffset)
	Logger().Debug("address window", slog.String("window", win.String()), slog.String("ram", ram.String()))
	if err := d.bus.SendCommand(CASET, ram.Columns(d.args[:0])); err != nil {
		return err
	}
	if err := d.bus.SendCommand(RASET, ram.Rows(d.args[:0])); err != nil {
		return err
	}
	return d.bus.SendCommand(RAMWR, nil)
}

// flush sends what is packed in the transmission buffer. The cursor only goes
// back to the start once the bus accepted the data.
func (d *DeviceOf[T]) flush() error {
	n := d.buf.Len()
	if n == 0 {
		return nil
	}
	if err := d.bus.Flush(d.buf.Bytes()); err != nil {
		return err
	}
	d.buf.Reset()
	Logger().Debug("flush", slog.Int("bytes", n))
	return nil
}

// acquire checks that the transmission buffer can be used sequentially.
func (d *DeviceOf[T]) acquire() error {
	if d.buf == nil {
		return ErrNotConfigured
	}
	if d.ctx != nil {
		return ErrContextPending
	}
	if n := d.buf.Len(); n > 0 {
		// Left over by a failed flush; the controller window it belonged to
		// is gone.
		Logger().Warn("dropping unsent pixel data", slog.Int("bytes", n))
		d.buf.Reset()
	}
	return nil
}

// FillSolid fills r with c and returns once every pixel was sent.
//
// r is clipped to the display. Nothing is sent when the clipped rectangle is
// empty. Fills larger than the transmission buffer are sent in several
// rounds.
func (d *DeviceOf[T]) FillSolid(r image.Rectangle, c T) error {
	if err := d.acquire(); err != nil {
		return err
	}
	win, ok := window.Clip(r, d.Bounds())
	if !ok {
		return nil
	}
	if err := d.setWindow(win); err != nil {
		return err
	}
	px := d.enc.encode(c)
	for remaining := win.Len(); remaining > 0; {
		remaining -= d.buf.PackRepeated(px, remaining)
		if err := d.flush(); err != nil {
			return err
		}
	}
	return nil
}

// BeginContext primes the controller with the window of r, clipped to the
// display, without sending pixel data. Fill it with FillSolidInContext and
// send it with FlushContext.
//
// Context mode needs a transmission buffer holding a whole frame. Immediate
// operations share that buffer and fail with ErrContextPending until the
// context is flushed. When r misses the display nothing is sent, and the
// matching FlushContext sends nothing either.
func (d *DeviceOf[T]) BeginContext(r image.Rectangle) error {
	if d.frame == nil {
		return ErrNoFrame
	}
	win, ok := window.Clip(r, d.Bounds())
	if !ok {
		d.ctx = &contextWindow{empty: true}
		return nil
	}
	if err := d.setWindow(win); err != nil {
		return err
	}
	d.ctx = &contextWindow{win: win, primed: true}
	return nil
}

// FillSolidInContext writes c over r in the frame buffer and restarts the
// memory write. Nothing is flushed. Without BeginContext the whole display
// becomes the context window.
func (d *DeviceOf[T]) FillSolidInContext(r image.Rectangle, c T) error {
	if d.frame == nil {
		return ErrNoFrame
	}
	win, ok := window.Clip(r, d.Bounds())
	if !ok {
		return nil
	}
	if err := d.frame.FillRect(d.enc.encode(c), win.Rect()); err != nil {
		return err
	}
	if d.ctx == nil {
		full, _ := window.Clip(d.Bounds(), d.Bounds())
		d.ctx = &contextWindow{win: full}
	}
	d.ctx.fills++
	return d.bus.SendCommand(RAMWR, nil)
}

// FlushContext sends the frame buffer content of the context window. Without
// a pending context the whole display is sent.
func (d *DeviceOf[T]) FlushContext() error {
	if d.frame == nil {
		return ErrNoFrame
	}
	ctx := d.ctx
	if ctx == nil {
		full, _ := window.Clip(d.Bounds(), d.Bounds())
		ctx = &contextWindow{win: full}
	}
	if ctx.empty {
		d.ctx = nil
		return nil
	}
	if !ctx.primed {
		if err := d.setWindow(ctx.win); err != nil {
			return err
		}
	} else if err := d.bus.SendCommand(RAMWR, nil); err != nil {
		return err
	}

	r := ctx.win.Rect()
	if span, ok := d.frame.Span(r); ok {
		if err := d.bus.Flush(span); err != nil {
			return err
		}
	} else {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			if err := d.bus.Flush(d.frame.Row(y, r.Min.X, r.Max.X)); err != nil {
				return err
			}
		}
	}
	Logger().Debug("context flushed", slog.String("window", ctx.win.String()), slog.Int("fills", ctx.fills))
	d.ctx = nil
	d.buf.Reset()
	return nil
}

// DrawPixels sends one pixel per cell of r, in row-major order, as returned
// by next. Cells outside the display still consume a pixel but are not sent.
//
// ErrPixelCount is returned if next runs dry before the visible part of r is
// covered.
func (d *DeviceOf[T]) DrawPixels(r image.Rectangle, next func() (T, bool)) error {
	if err := d.acquire(); err != nil {
		return err
	}
	win, ok := window.Clip(r, d.Bounds())
	if !ok {
		return nil
	}
	if err := d.setWindow(win); err != nil {
		return err
	}

	visible := win.Rect()
	p := r.Min
	src := func() ([]byte, bool) {
		for p.Y < r.Max.Y {
			c, ok := next()
			if !ok {
				return nil, false
			}
			cell := p
			if p.X++; p.X == r.Max.X {
				p.X = r.Min.X
				p.Y++
			}
			if cell.In(visible) {
				return d.enc.encode(c), true
			}
		}
		return nil, false
	}

	for remaining := win.Len(); remaining > 0; {
		n, done := d.buf.PackStream(src)
		remaining -= n
		if err := d.flush(); err != nil {
			return err
		}
		if done && remaining > 0 {
			return fmt.Errorf("%w: %d of %d pixels missing", ErrPixelCount, remaining, win.Len())
		}
	}
	return nil
}

// DrawRGBBitmap8 copies raw pixel data, already in the device pixel format,
// to the w x h rectangle at x, y. Rows are cut to the visible part of the
// display.
func (d *DeviceOf[T]) DrawRGBBitmap8(x, y int16, data []uint8, w, h int16) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	bpp := bytesPerPixel[T]()
	stride := int(w) * bpp
	if len(data) != stride*int(h) {
		return fmt.Errorf("%w: %d bytes for a %dx%d bitmap", ErrPixelCount, len(data), w, h)
	}
	if err := d.acquire(); err != nil {
		return err
	}
	src := rect(x, y, w, h)
	win, ok := window.Clip(src, d.Bounds())
	if !ok {
		return nil
	}
	if err := d.setWindow(win); err != nil {
		return err
	}

	visible := win.Rect()
	for row := visible.Min.Y; row < visible.Max.Y; row++ {
		off := (row-src.Min.Y)*stride + (visible.Min.X-src.Min.X)*bpp
		line := data[off : off+visible.Dx()*bpp]
		for len(line) > 0 {
			n := d.buf.PackBytes(line)
			line = line[n*bpp:]
			if d.buf.Free() == 0 {
				if err := d.flush(); err != nil {
					return err
				}
			}
		}
	}
	return d.flush()
}

// DrawBitmap copies the bitmap to the internal buffer on the screen at the
// given coordinates. It returns once the image data has been sent completely.
func (d *DeviceOf[T]) DrawBitmap(x, y int16, bitmap pixel.Image[T]) error {
	width, height := bitmap.Size()
	return d.DrawRGBBitmap8(x, y, bitmap.RawBuffer(), int16(width), int16(height))
}

// FillRectangleWithBuffer fills buffer with a rectangle at a given coordinates.
func (d *DeviceOf[T]) FillRectangleWithBuffer(x, y, width, height int16, buffer []color.RGBA) error {
	if int(width)*int(height) != len(buffer) {
		return fmt.Errorf("%w: %d colors for a %dx%d rectangle", ErrPixelCount, len(buffer), width, height)
	}
	i := 0
	return d.DrawPixels(rect(x, y, width, height), func() (T, bool) {
		if i == len(buffer) {
			var zero T
			return zero, false
		}
		c := buffer[i]
		i++
		return pixel.NewColor[T](c.R, c.G, c.B), true
	})
}
