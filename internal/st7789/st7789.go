// Package st7789 implements a driver for the ST7789 TFT displays, it comes in various screen sizes.
//
// Pixel data goes through a caller-provided transmission buffer, normally a
// DMA capable region. Fills either flush that buffer immediately
// (FillSolid, DrawPixels, DrawBitmap) or, in context mode, accumulate into the
// same region laid out as a whole frame and go out in one batched transfer
// (BeginContext, FillSolidInContext, FlushContext).
//
// Datasheets: https://cdn-shop.adafruit.com/product-files/3787/3787_tft_QT154H2201__________20190228182902.pdf
//
//	http://www.newhavendisplay.com/appnotes/datasheets/LCDs/ST7789V.pdf
package st7789

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"time"

	"github.com/AlCutter/tftbus/internal/pixbuf"
	"github.com/AlCutter/tftbus/internal/spibus"
	"tinygo.org/x/drivers/pixel"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// The color format used on the display, like RGB565, RGB666, and RGB444.
type ColorFormat uint8

// FrameRate controls the frame rate used by the display.
type FrameRate uint8

var (
	// ErrNoFrame is returned by context operations when the transmission
	// buffer cannot hold a whole frame.
	ErrNoFrame = errors.New("st7789: transmission buffer smaller than a frame")
	// ErrContextPending is returned by immediate operations while a context
	// started with BeginContext has not been flushed, since both share the
	// transmission buffer.
	ErrContextPending = errors.New("st7789: context pending, call FlushContext first")
	// ErrPixelCount is returned when a pixel source does not cover its
	// rectangle.
	ErrPixelCount = errors.New("st7789: pixel count does not match rectangle")
	// ErrNotConfigured is returned when drawing before Configure.
	ErrNotConfigured = errors.New("st7789: not configured")
)

// Bus carries commands and pixel data to the controller.
//
// *spibus.Bus implements it.
type Bus interface {
	// SendCommand sends an opcode followed by its argument bytes.
	SendCommand(cmd byte, args []byte) error
	// Flush sends data as pixel data.
	Flush(data []byte) error
	// Read sends an opcode and reads len(r) bytes back.
	Read(cmd byte, r []byte) error
}

// Device wraps an SPI connection.
type Device = DeviceOf[pixel.RGB565BE]

// DeviceOf is a generic version of Device. It supports multiple different pixel
// formats.
type DeviceOf[T Color] struct {
	// Communication
	bus       Bus
	backlight gpio.PinOut

	width           int16
	height          int16
	columnOffsetCfg int16
	rowOffsetCfg    int16
	columnOffset    int16
	rowOffset       int16
	rotation        Rotation
	frameRate       FrameRate
	isBGR           bool
	vSyncLines      int16

	// Transmission buffer, viewed sequentially (buf) and as a frame (frame).
	// frame is nil when mem cannot hold a whole frame.
	mem   []byte
	buf   *pixbuf.Buffer
	frame *pixbuf.Frame
	ctx   *contextWindow

	enc   encoder[T]
	sleep func(time.Duration)
	args  [6]byte
}

// Config is the configuration for the display
type Config struct {
	Width        int16
	Height       int16
	Rotation     Rotation
	RowOffset    int16
	ColumnOffset int16
	FrameRate    FrameRate
	VSyncLines   int16

	// Backlight pin, optional.
	Backlight gpio.PinOut

	// Gamma control. Look in the LCD panel datasheet or provided example code
	// to find these values. If not set, the defaults will be used.
	PVGAMCTRL []uint8 // Positive voltage gamma control (14 bytes)
	NVGAMCTRL []uint8 // Negative voltage gamma control (14 bytes)
}

// Validate reports configurations the controller cannot address. Zero
// values are allowed and replaced by defaults in Configure.
func (cfg Config) Validate() error {
	if cfg.Width < 0 || cfg.Width > 240 {
		return errors.New("st7789: width must be at most 240 (0 for default)")
	}
	if cfg.Height < 0 || cfg.Height > 320 {
		return errors.New("st7789: height must be at most 320 (0 for default)")
	}
	if cfg.Rotation > ROTATION_270 {
		return fmt.Errorf("st7789: invalid rotation %d", cfg.Rotation)
	}
	if len(cfg.PVGAMCTRL) != 0 && len(cfg.PVGAMCTRL) != 14 {
		return errors.New("st7789: PVGAMCTRL must be 14 bytes")
	}
	if len(cfg.NVGAMCTRL) != 0 && len(cfg.NVGAMCTRL) != 14 {
		return errors.New("st7789: NVGAMCTRL must be 14 bytes")
	}
	return nil
}

// New creates a new RGB565 ST7789 connection. See NewOf.
func New(p spi.Port, dc gpio.PinOut, mem []byte) (*Device, error) {
	return NewOf[pixel.RGB565BE](p, dc, mem)
}

// NewOf creates a new ST7789 connection with a particular pixel format.
//
// mem is the transmission buffer. It is borrowed for the lifetime of the
// device; nil allocates a buffer of one panel line. Context mode is only
// available when mem holds a whole frame.
func NewOf[T Color](p spi.Port, dc gpio.PinOut, mem []byte) (*DeviceOf[T], error) {
	bus, err := spibus.New(p, dc, 0)
	if err != nil {
		return nil, err
	}
	return NewBus[T](bus, mem), nil
}

// NewBus creates a device on an existing transport.
func NewBus[T Color](bus Bus, mem []byte) *DeviceOf[T] {
	return &DeviceOf[T]{
		bus:   bus,
		mem:   mem,
		enc:   newEncoder[T](),
		sleep: time.Sleep,
	}
}

// Configure initializes the display with default configuration
func (d *DeviceOf[T]) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := d.setup(cfg); err != nil {
		return err
	}

	// Common initialization
	if err := d.bus.SendCommand(SWRESET, nil); err != nil { // Soft reset
		return err
	}
	d.sleep(150 * time.Millisecond)

	if err := d.bus.SendCommand(SLPOUT, nil); err != nil { // Exit sleep mode
		return err
	}

	// Memory initialization
	if err := d.setColorFormat(colorFormat[T]()); err != nil {
		return err
	}
	d.sleep(10 * time.Millisecond)

	if err := d.setRotation(d.rotation); err != nil { // Memory orientation
		return err
	}
	if err := d.FillScreen(color.RGBA{0, 0, 0, 255}); err != nil { // Clear screen
		return err
	}

	// Framerate
	if err := d.bus.SendCommand(FRCTRL2, []byte{byte(d.frameRate)}); err != nil {
		return err
	}

	// Frame vertical sync and "porch"
	//
	// Front and back porch controls vertical scanline sync time before and after
	// a frame, where memory can be safely written without tearing.
	fp := uint8(d.vSyncLines / 2)         // Split the desired pause half and half
	bp := uint8(d.vSyncLines - int16(fp)) // between front and back porch.

	seq := []initStep{
		{PORCTRL, []byte{
			bp,   // Back porch 5bit     (0x7F max 0x08 default)
			fp,   // Front porch 5bit    (0x7F max 0x08 default)
			0x00, // Separate porch control off
			0x22, // Idle mode porch     (4bit-back 4bit-front 0x22 default)
			0x22, // Partial mode porch  (4bit-back 4bit-front 0x22 default)
		}, 0},
		{INVON, nil, 10 * time.Millisecond},
	}
	// Set gamma tables, if configured.
	if len(cfg.PVGAMCTRL) == 14 {
		seq = append(seq, initStep{GMCTRP1, cfg.PVGAMCTRL, 0})
	}
	if len(cfg.NVGAMCTRL) == 14 {
		seq = append(seq, initStep{GMCTRN1, cfg.NVGAMCTRL, 0})
	}
	seq = append(seq, []initStep{
		{NORON, nil, 10 * time.Millisecond},
		{RAMCTRL, []byte{0x00, 0xE8}, 0},
		{DISPON, nil, 10 * time.Millisecond},
	}...)
	for _, s := range seq {
		if err := d.bus.SendCommand(s.cmd, s.args); err != nil {
			return err
		}
		if s.wait > 0 {
			d.sleep(s.wait)
		}
	}

	Logger().Info("st7789 configured",
		slog.Int("width", int(d.width)), slog.Int("height", int(d.height)),
		slog.Int("rotation", int(d.rotation)), slog.Int("buffer", len(d.mem)),
		slog.Bool("context", d.frame != nil))
	return d.EnableBacklight(true)
}

// initStep is a command of the power-on sequence, followed by a settle delay.
type initStep struct {
	cmd  byte
	args []byte
	wait time.Duration
}

// setup applies cfg and lays out the transmission buffer. It does no I/O.
func (d *DeviceOf[T]) setup(cfg Config) error {
	if cfg.Width != 0 {
		d.width = cfg.Width
	} else {
		d.width = 240
	}
	if cfg.Height != 0 {
		d.height = cfg.Height
	} else {
		d.height = 320
	}

	d.rotation = cfg.Rotation
	d.rowOffsetCfg = cfg.RowOffset
	d.columnOffsetCfg = cfg.ColumnOffset
	d.backlight = cfg.Backlight

	if cfg.FrameRate != 0 {
		d.frameRate = cfg.FrameRate
	} else {
		d.frameRate = FRAMERATE_60
	}

	if cfg.VSyncLines >= 2 && cfg.VSyncLines <= MAX_VSYNC_SCANLINES {
		d.vSyncLines = cfg.VSyncLines
	} else {
		d.vSyncLines = 16
	}

	bpp := bytesPerPixel[T]()
	if d.mem == nil {
		line := int(max(d.width, d.height))
		d.mem = make([]byte, line*bpp)
	}
	if len(d.mem) < bpp {
		return fmt.Errorf("st7789: %d byte transmission buffer cannot hold a pixel", len(d.mem))
	}
	d.buf = pixbuf.New(d.mem, bpp)
	d.ctx = nil
	d.layoutFrame()
	return nil
}

// layoutFrame views the transmission buffer as a frame of the current
// logical size, if it is large enough.
func (d *DeviceOf[T]) layoutFrame() {
	w, h := d.Size()
	f, err := pixbuf.NewFrame(d.mem, int(w), int(h), bytesPerPixel[T]())
	if err != nil {
		Logger().Warn("context mode unavailable", slog.String("reason", err.Error()))
		d.frame = nil
		return
	}
	d.frame = f
}

// Sync waits for the display to hit the next VSYNC pause
func (d *DeviceOf[T]) Sync() error {
	return d.SyncToScanLine(0)
}

// SyncToScanLine waits for the display to hit a specific scanline
//
// A scanline value of 0 will forward to the beginning of the next VSYNC,
// even if the display is currently in a VSYNC pause.
//
// Syncline values appear to increment once for every two vertical
// lines on the display.
//
// NOTE: Use GetHighestScanLine and GetLowestScanLine to obtain the highest
// and lowest useful values. Values are affected by front and back porch
// vsync settings (derived from VSyncLines configuration option).
func (d *DeviceOf[T]) SyncToScanLine(scanline uint16) error {
	scan, err := d.GetScanLine()
	if err != nil {
		return err
	}

	// Sometimes GetScanLine returns erroneous 0 on first call after draw, so double check
	if scan == 0 {
		if scan, err = d.GetScanLine(); err != nil {
			return err
		}
	}

	next := func(pause bool) error {
		if pause {
			d.sleep(time.Millisecond)
		}
		scan, err = d.GetScanLine()
		return err
	}
	if scanline == 0 {
		// we dont know where we are in an ongoing vsync so go around
		for scan < 1 {
			if err := next(true); err != nil {
				return err
			}
		}
		for scan > 0 {
			if err := next(false); err != nil {
				return err
			}
		}
		return nil
	}
	// go around unless we're very close to the target
	for scan > scanline+4 {
		if err := next(true); err != nil {
			return err
		}
	}
	for scan < scanline {
		if err := next(false); err != nil {
			return err
		}
	}
	return nil
}

// GetScanLine reads the current scanline value from the display
func (d *DeviceOf[T]) GetScanLine() (uint16, error) {
	var r [4]byte
	if err := d.bus.Read(GSCAN, r[:]); err != nil {
		return 0, fmt.Errorf("st7789: GSCAN: %w", err)
	}
	return uint16(r[0])<<8 + uint16(r[1]), nil
}

// GetHighestScanLine calculates the last scanline id in the frame before VSYNC pause
func (d *DeviceOf[T]) GetHighestScanLine() uint16 {
	// Last scanline id appears to be backporch/2 + 320/2
	return uint16(math.Ceil(float64(d.vSyncLines)/2)/2) + 160
}

// GetLowestScanLine calculate the first scanline id to appear after VSYNC pause
func (d *DeviceOf[T]) GetLowestScanLine() uint16 {
	// First scanline id appears to be backporch/2 + 1
	return uint16(math.Ceil(float64(d.vSyncLines)/2)/2) + 1
}

// Display sends the accumulated context frame, see FlushContext.
func (d *DeviceOf[T]) Display() error {
	return d.FlushContext()
}

// SetPixel sets a pixel in the screen
func (d *DeviceOf[T]) SetPixel(x int16, y int16, c color.RGBA) error {
	return d.FillRectangle(x, y, 1, 1, c)
}

// FillRectangle fills a rectangle at a given coordinates with a color. Parts
// outside the display are clipped.
func (d *DeviceOf[T]) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	return d.FillSolid(rect(x, y, width, height), pixel.NewColor[T](c.R, c.G, c.B))
}

// DrawFastVLine draws a vertical line faster than using SetPixel
func (d *DeviceOf[T]) DrawFastVLine(x, y0, y1 int16, c color.RGBA) error {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return d.FillRectangle(x, y0, 1, y1-y0+1, c)
}

// DrawFastHLine draws a horizontal line faster than using SetPixel
func (d *DeviceOf[T]) DrawFastHLine(x0, x1, y int16, c color.RGBA) error {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	return d.FillRectangle(x0, y, x1-x0+1, 1, c)
}

// FillScreen fills the screen with a given color
func (d *DeviceOf[T]) FillScreen(c color.RGBA) error {
	w, h := d.Size()
	return d.FillRectangle(0, 0, w, h, c)
}

// Control the color format that is used when writing to the screen.
// The driver sets the format matching T in Configure; setting any other value
// will break functions like SetPixel, FillRectangle, etc. Instead, you can
// write color data in the specified color format using DrawRGBBitmap8.
func (d *DeviceOf[T]) SetColorFormat(format ColorFormat) error {
	return d.setColorFormat(format)
}

func (d *DeviceOf[T]) setColorFormat(format ColorFormat) error {
	// Lower 4 bits set the color format used in SPI.
	// Upper 4 bits set the color format used in the direct RGB interface.
	// The RGB interface is not currently supported, so it is left at a
	// reasonable default. Also, the RGB interface doesn't support RGB444.
	colmod := byte(format) | 0x50
	return d.bus.SendCommand(COLMOD, []byte{colmod})
}

// Rotation returns the current rotation of the device.
func (d *DeviceOf[T]) Rotation() Rotation {
	return d.rotation
}

// SetRotation changes the rotation of the device (clock-wise). The context
// frame is re-laid out for the new size, so a pending context is dropped.
func (d *DeviceOf[T]) SetRotation(rotation Rotation) error {
	d.rotation = rotation
	if err := d.setRotation(rotation); err != nil {
		return err
	}
	if d.buf != nil {
		d.ctx = nil
		d.layoutFrame()
	}
	return nil
}

func (d *DeviceOf[T]) setRotation(rotation Rotation) error {
	madctl := uint8(0)
	switch rotation % 4 {
	case NO_ROTATION:
		d.rowOffset = 0
		d.columnOffset = 0
	case ROTATION_90:
		madctl = MADCTL_MX | MADCTL_MV
		d.rowOffset = 0
		d.columnOffset = 0
	case ROTATION_180:
		madctl = MADCTL_MX | MADCTL_MY
		d.rowOffset = d.rowOffsetCfg
		d.columnOffset = d.columnOffsetCfg
	case ROTATION_270:
		madctl = MADCTL_MY | MADCTL_MV
		d.rowOffset = d.columnOffsetCfg
		d.columnOffset = d.rowOffsetCfg
	}
	if d.isBGR {
		madctl |= MADCTL_BGR
	}
	return d.bus.SendCommand(MADCTL, []byte{madctl})
}

// Size returns the current size of the display.
func (d *DeviceOf[T]) Size() (w, h int16) {
	if d.rotation == NO_ROTATION || d.rotation == ROTATION_180 {
		return d.width, d.height
	}
	return d.height, d.width
}

// EnableBacklight enables or disables the backlight, if one was configured.
func (d *DeviceOf[T]) EnableBacklight(enable bool) error {
	if d.backlight == nil {
		return nil
	}
	return d.backlight.Out(gpio.Level(enable))
}

// Set the sleep mode for this LCD panel. When sleeping, the panel uses a lot
// less power. The LCD won't display an image anymore, but the memory contents
// will be kept.
func (d *DeviceOf[T]) Sleep(sleepEnabled bool) error {
	if sleepEnabled {
		if err := d.bus.SendCommand(SLPIN, nil); err != nil {
			return err
		}
		d.sleep(5 * time.Millisecond) // 5ms required by the datasheet
		return nil
	}
	// Turn the LCD panel back on.
	// Note: the st7789 documentation says that it is needed to wait at
	// least 120ms before going to sleep again. Sleeping here would not be
	// practical (delays turning on the screen too much), so just hope the
	// screen won't need to sleep again for at least 120ms.
	return d.bus.SendCommand(SLPOUT, nil)
}

// InvertColors inverts the colors of the screen
func (d *DeviceOf[T]) InvertColors(invert bool) error {
	if invert {
		return d.bus.SendCommand(INVON, nil)
	}
	return d.bus.SendCommand(INVOFF, nil)
}

// IsBGR changes the color mode (RGB/BGR). It takes effect on the next
// rotation change or Configure.
func (d *DeviceOf[T]) IsBGR(bgr bool) {
	d.isBGR = bgr
}

// SetScrollArea sets an area to scroll with fixed top and bottom parts of the display.
func (d *DeviceOf[T]) SetScrollArea(topFixedArea, bottomFixedArea int16) error {
	if d.height < 320 {
		// The screen doesn't use the full 320 pixel height.
		// Enlarge the bottom fixed area to fill the 320 pixel height, so that
		// bottomFixedArea starts from the visible bottom of the screen.
		topFixedArea += d.rowOffset
		bottomFixedArea += (320 - d.height) - d.rowOffset
	}
	if d.rotation == ROTATION_180 {
		// The screen is rotated by 180°, so we have to switch the top and
		// bottom fixed area.
		topFixedArea, bottomFixedArea = bottomFixedArea, topFixedArea
	}
	verticalScrollArea := 320 - topFixedArea - bottomFixedArea
	copy(d.args[:6], []uint8{
		uint8(topFixedArea >> 8), uint8(topFixedArea),
		uint8(verticalScrollArea >> 8), uint8(verticalScrollArea),
		uint8(bottomFixedArea >> 8), uint8(bottomFixedArea)})
	return d.bus.SendCommand(VSCRDEF, d.args[:6])
}

// SetScroll sets the vertical scroll address of the display.
func (d *DeviceOf[T]) SetScroll(line int16) error {
	if d.rotation == ROTATION_180 {
		// The screen is rotated by 180°, so we have to invert the scroll line
		// (taking care of the RowOffset).
		line = (319 - d.rowOffset) - line
	}
	d.args[0] = uint8(line >> 8)
	d.args[1] = uint8(line)
	return d.bus.SendCommand(VSCRSADD, d.args[:2])
}

// StopScroll returns the display to its normal state.
func (d *DeviceOf[T]) StopScroll() error {
	return d.bus.SendCommand(NORON, nil)
}

func rect(x, y, width, height int16) image.Rectangle {
	return image.Rect(int(x), int(y), int(x)+int(width), int(y)+int(height))
}
