package st7789

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"periph.io/x/conn/v3/display"
)

var _ display.Drawer = (*Device)(nil)

// ColorModel returns the color model of the display.
func (d *DeviceOf[T]) ColorModel() color.Model {
	return colorModel[T]()
}

// Bounds returns the image bounds of the display, after rotation.
func (d *DeviceOf[T]) Bounds() image.Rectangle {
	w, h := d.Size()
	return image.Rect(0, 0, int(w), int(h))
}

// Draw draws src onto the dst rectangle of the display, src point sp mapping
// to dst.Min. The image is converted and streamed pixel by pixel.
func (d *DeviceOf[T]) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	clipped := dst.Intersect(d.Bounds())
	if clipped.Empty() {
		return nil
	}
	sp = sp.Add(clipped.Min.Sub(dst.Min))
	x, y := 0, 0
	return d.DrawPixels(clipped, func() (T, bool) {
		if y == clipped.Dy() {
			var zero T
			return zero, false
		}
		c := toColor[T](src.At(sp.X+x, sp.Y+y))
		if x++; x == clipped.Dx() {
			x = 0
			y++
		}
		return c, true
	})
}

// Write writes a whole frame of raw pixel data in the device pixel format.
func (d *DeviceOf[T]) Write(pixels []byte) (int, error) {
	w, h := d.Size()
	if err := d.DrawRGBBitmap8(0, 0, pixels, w, h); err != nil {
		if errors.Is(err, ErrPixelCount) {
			return 0, errors.New("st7789: invalid buffer size")
		}
		return 0, err
	}
	return len(pixels), nil
}

// Halt puts the panel to sleep and turns the backlight off.
func (d *DeviceOf[T]) Halt() error {
	if err := d.Sleep(true); err != nil {
		return err
	}
	return d.EnableBacklight(false)
}

// String returns a string representation of the device.
func (d *DeviceOf[T]) String() string {
	w, h := d.Size()
	return fmt.Sprintf("st7789.Dev{%dx%d}", w, h)
}
