package main

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/AlCutter/tftbus/internal/st7789"
	"gocv.io/x/gocv"
	"tinygo.org/x/drivers/pixel"
)

var palette = []pixel.RGB565BE{
	pixel.NewColor[pixel.RGB565BE](0xFF, 0x00, 0x00),
	pixel.NewColor[pixel.RGB565BE](0x00, 0xFF, 0x00),
	pixel.NewColor[pixel.RGB565BE](0x00, 0x00, 0xFF),
	pixel.NewColor[pixel.RGB565BE](0xFF, 0xFF, 0x00),
	pixel.NewColor[pixel.RGB565BE](0xFF, 0xFF, 0xFF),
}

// runFillDemo paints horizontal bands, each sent immediately.
func runFillDemo(dsp *st7789.Device) error {
	b := dsp.Bounds()
	band := b.Dy() / len(palette)
	for i, c := range palette {
		r := image.Rect(0, i*band, b.Dx(), (i+1)*band)
		if err := dsp.FillSolid(r, c); err != nil {
			return err
		}
	}
	return nil
}

// runContextDemo builds a checkerboard in the frame buffer and sends it in
// one go.
func runContextDemo(dsp *st7789.Device) error {
	b := dsp.Bounds()
	if err := dsp.BeginContext(b); err != nil {
		return err
	}
	const cell = 20
	for y := 0; y < b.Dy(); y += cell {
		for x := 0; x < b.Dx(); x += cell {
			c := palette[((x+y)/cell)%len(palette)]
			if err := dsp.FillSolidInContext(image.Rect(x, y, x+cell, y+cell), c); err != nil {
				return err
			}
		}
	}
	start := time.Now()
	if err := dsp.FlushContext(); err != nil {
		return err
	}
	fmt.Printf("frame sent in %v\n", time.Since(start))
	return nil
}

// runGradientDemo draws an image.Image through the display.Drawer interface.
func runGradientDemo(dsp *st7789.Device) error {
	b := dsp.Bounds()
	img := image.NewRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / b.Dx()), G: uint8(y * 255 / b.Dy()), B: 0x80, A: 0xFF})
		}
	}
	return dsp.Draw(b, img, image.Point{})
}

// runCameraDemo streams webcam frames to the display.
func runCameraDemo(dsp *st7789.Device, frames int) error {
	camID := 0
	webcam, err := gocv.OpenVideoCapture(camID)
	if err != nil {
		return fmt.Errorf("opening video capture device %v: %w", camID, err)
	}
	defer webcam.Close()
	fmt.Printf("codec: %v\n", webcam.CodecString())

	w, h := dsp.Size()
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(h))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(w))
	webcam.Set(gocv.VideoCaptureConvertRGB, 1)

	buf := gocv.NewMat()
	defer buf.Close()
	img := pixel.NewImage[pixel.RGB565BE](int(w), int(h))

	for i := 0; i < frames; i++ {
		webcam.Grab(1)
		if ok := webcam.Retrieve(&buf); !ok {
			return fmt.Errorf("device %v closed", camID)
		}
		if buf.Empty() {
			continue
		}
		gocv.Resize(buf, &buf, image.Point{X: int(w), Y: int(h)}, 0, 0, gocv.InterpolationDefault)
		gocv.CvtColor(buf, &buf, gocv.ColorRGBAToBGR565)

		d, err := buf.DataPtrUint8()
		if err != nil {
			return err
		}
		copy(img.RawBuffer(), d)
		if err := dsp.DrawBitmap(0, 0, img); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}
