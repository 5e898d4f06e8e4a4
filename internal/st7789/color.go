package st7789

import (
	"image/color"

	"tinygo.org/x/drivers/pixel"
)

// Color is a pixel format the transport can pack. Both formats are a whole
// number of bytes wide, which the packer requires.
type Color interface {
	pixel.RGB565BE | pixel.RGB888

	pixel.BaseColor
}

func bytesPerPixel[T Color]() int {
	var zeroColor T
	return zeroColor.BitsPerPixel() / 8
}

func colorFormat[T Color]() ColorFormat {
	var zeroColor T
	if _, ok := any(zeroColor).(pixel.RGB888); ok {
		return ColorRGB666
	}
	return ColorRGB565
}

// encoder turns colors into their wire bytes. It keeps a one pixel image so
// the layout always matches what pixel.Image produces for bitmaps.
type encoder[T Color] struct {
	img pixel.Image[T]
}

func newEncoder[T Color]() encoder[T] {
	return encoder[T]{img: pixel.NewImage[T](1, 1)}
}

// encode returns the bytes of c. The slice is reused by the next call.
func (e encoder[T]) encode(c T) []byte {
	e.img.Set(0, 0, c)
	return e.img.RawBuffer()
}

// colorModel quantizes colors to what T can represent.
func colorModel[T Color]() color.Model {
	return color.ModelFunc(func(c color.Color) color.Color {
		return toColor[T](c).RGBA()
	})
}

func toColor[T Color](c color.Color) T {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	return pixel.NewColor[T](rgba.R, rgba.G, rgba.B)
}
