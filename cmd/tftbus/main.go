// Command tftbus drives an ST7789 240x320 TFT panel over SPI.
//
// Wiring on a Raspberry Pi:
//
//	Display    Raspberry Pi
//	GND        GND
//	VCC        3.3V
//	SCL        GPIO11 (SPI0 CLK)
//	SDA        GPIO10 (SPI0 MOSI)
//	DC         GPIO9 (configurable)
//	BL         GPIO13 (configurable, optional)
//	CS         GPIO7 (SPI0 CE1)
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/AlCutter/tftbus/internal/spibus"
	"github.com/AlCutter/tftbus/internal/st7789"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers/pixel"
)

var (
	spiPort  = flag.String("spi", "SPI0.1", "SPI port name")
	dcPin    = flag.String("dc", "GPIO9", "Data/Command pin name")
	blPin    = flag.String("bl", "", "Backlight pin name, empty for none")
	spiHz    = flag.Int64("hz", int64(spibus.DefaultFrequency/physic.Hertz), "SPI clock in Hz")
	width    = flag.Int("width", 240, "Display width in pixels")
	height   = flag.Int("height", 320, "Display height in pixels")
	rotation = flag.Int("rotation", 0, "Rotation, in quarter turns clockwise")
	bufSize  = flag.Int("buf", 240*320*2, "Transmission buffer size in bytes, a full frame enables context mode")
	bgr      = flag.Bool("bgr", false, "Panel uses BGR subpixel order")
	invert   = flag.Bool("invert", false, "Invert colors")
	demoMode = flag.String("demo", "fill", "Demo to run: fill, context, gradient, camera")
	frames   = flag.Int("frames", 100, "Frames to show in the camera demo")
	verbose  = flag.Bool("v", false, "Log at debug level")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Done.")
}

// run sets up the display and runs the selected demo. Resources are released
// on every path.
func run() (err error) {
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	st7789.SetLogger(logger)

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph.io: %w", err)
	}

	p, err := spireg.Open(*spiPort)
	if err != nil {
		return fmt.Errorf("failed to open SPI port: %w", err)
	}
	defer p.Close()

	dc := gpioreg.ByName(*dcPin)
	if dc == nil {
		return fmt.Errorf("GPIO pin %s not found", *dcPin)
	}
	var bl gpio.PinOut
	if *blPin != "" {
		if bl = gpioreg.ByName(*blPin); bl == nil {
			return fmt.Errorf("GPIO pin %s not found", *blPin)
		}
	}

	bus, err := spibus.New(p, dc, physic.Frequency(*spiHz)*physic.Hertz)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	logger.Info("connected", "bus", bus.String(), "maxTx", bus.MaxTxSize())

	dsp := st7789.NewBus[pixel.RGB565BE](bus, make([]byte, *bufSize))
	dsp.IsBGR(*bgr)
	if err := dsp.Configure(st7789.Config{
		Width:     int16(*width),
		Height:    int16(*height),
		Rotation:  st7789.Rotation(*rotation),
		FrameRate: st7789.FRAMERATE_60,
		Backlight: bl,
	}); err != nil {
		return fmt.Errorf("failed to configure display: %w", err)
	}
	defer func() {
		if herr := dsp.Halt(); herr != nil && err == nil {
			err = herr
		}
	}()
	if err := dsp.InvertColors(*invert); err != nil {
		return fmt.Errorf("failed to set inversion: %w", err)
	}

	fmt.Printf("Display initialized: %v\n", dsp)
	return runDemo(dsp, *demoMode, *frames)
}

func runDemo(dsp *st7789.Device, name string, frames int) error {
	switch name {
	case "fill":
		return runFillDemo(dsp)
	case "context":
		return runContextDemo(dsp)
	case "gradient":
		return runGradientDemo(dsp)
	case "camera":
		return runCameraDemo(dsp, frames)
	default:
		return fmt.Errorf("unknown demo: %s", name)
	}
}
