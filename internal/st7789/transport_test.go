package st7789

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/AlCutter/tftbus/internal/pixbuf"
	"github.com/AlCutter/tftbus/internal/spibus"
	"tinygo.org/x/drivers/pixel"
)

func checkWindow(t *testing.T, bus *fakeBus, cols, rows []byte) {
	t.Helper()
	if len(bus.ops) < 3 {
		t.Fatalf("%d bus operations, want at least 3", len(bus.ops))
	}
	want := []busOp{{cmd: CASET, args: cols}, {cmd: RASET, args: rows}, {cmd: RAMWR}}
	for i, w := range want {
		got := bus.ops[i]
		if got.data != nil || got.cmd != w.cmd || !bytes.Equal(got.args, w.args) {
			t.Errorf("operation %d = %#02x % X, want %#02x % X", i, got.cmd, got.args, w.cmd, w.args)
		}
	}
}

func TestFillSolidFullScreen(t *testing.T) {
	d, bus := newDevice(t, make([]byte, 1024), Config{})

	if err := d.FillSolid(image.Rect(0, 0, 240, 320), red); err != nil {
		t.Fatal(err)
	}

	checkWindow(t, bus, []byte{0x00, 0x00, 0x00, 0xEF}, []byte{0x00, 0x00, 0x01, 0x3F})
	sizes := bus.flushes()
	if len(sizes) != 150 {
		t.Fatalf("%d flushes, want 150", len(sizes))
	}
	for i, n := range sizes {
		if n != 1024 {
			t.Fatalf("flush %d is %d bytes, want 1024", i, n)
		}
	}
	if len(bus.ops) != 153 {
		t.Errorf("%d bus operations, want 153", len(bus.ops))
	}
	if !bytes.Equal(bus.data(), repeat(redBytes, 240*320)) {
		t.Error("flushed data is not the fill color")
	}
	if d.buf.State() != pixbuf.Empty {
		t.Errorf("buffer state = %v after fill, want %v", d.buf.State(), pixbuf.Empty)
	}
}

func TestFillSolidNothingToDraw(t *testing.T) {
	tests := []struct {
		name string
		r    image.Rectangle
	}{
		{"right of display", image.Rect(250, 0, 260, 10)},
		{"below display", image.Rect(0, 320, 10, 330)},
		{"negative", image.Rect(-20, -20, -10, -10)},
		{"zero width", image.Rect(10, 10, 10, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bus := newDevice(t, nil, Config{})
			if err := d.FillSolid(tt.r, red); err != nil {
				t.Fatalf("FillSolid() = %v, want nil", err)
			}
			if len(bus.ops) != 0 {
				t.Errorf("%d bus operations, want none", len(bus.ops))
			}
		})
	}
}

func TestFillSolidClipped(t *testing.T) {
	d, bus := newDevice(t, nil, Config{})

	if err := d.FillSolid(image.Rect(230, 310, 250, 330), blue); err != nil {
		t.Fatal(err)
	}
	checkWindow(t, bus, []byte{0x00, 0xE6, 0x00, 0xEF}, []byte{0x01, 0x36, 0x01, 0x3F})
	if !bytes.Equal(bus.data(), repeat(blueBytes, 100)) {
		t.Errorf("flushed %d bytes, want 100 blue pixels", len(bus.data()))
	}
}

func TestFillSolidRounds(t *testing.T) {
	tests := []struct {
		name  string
		mem   int
		r     image.Rectangle
		sizes []int
	}{
		{"single round", 640, image.Rect(0, 0, 10, 10), []int{200}},
		{"exact multiple", 40, image.Rect(0, 0, 10, 4), []int{40, 40}},
		{"partial last round", 100, image.Rect(0, 0, 10, 12), []int{100, 100, 40}},
		{"one pixel buffer", 2, image.Rect(0, 0, 3, 1), []int{2, 2, 2}},
		{"odd sized buffer", 5, image.Rect(0, 0, 5, 1), []int{4, 4, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bus := newDevice(t, make([]byte, tt.mem), Config{})
			if err := d.FillSolid(tt.r, red); err != nil {
				t.Fatal(err)
			}
			got := bus.flushes()
			if len(got) != len(tt.sizes) {
				t.Fatalf("flushes = %v, want %v", got, tt.sizes)
			}
			for i := range got {
				if got[i] != tt.sizes[i] {
					t.Errorf("flushes = %v, want %v", got, tt.sizes)
					break
				}
			}
		})
	}
}

func TestFillSolidOffsets(t *testing.T) {
	d, bus := newDevice(t, nil, Config{Width: 240, Height: 240, Rotation: ROTATION_180, RowOffset: 80})

	if err := d.FillSolid(image.Rect(0, 0, 1, 1), red); err != nil {
		t.Fatal(err)
	}
	checkWindow(t, bus, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x50, 0x00, 0x50})
}

func TestFillSolidBusError(t *testing.T) {
	t.Run("command", func(t *testing.T) {
		d, bus := newDevice(t, nil, Config{})
		bus.failOn = 2
		err := d.FillSolid(image.Rect(0, 0, 10, 10), red)
		if !errors.Is(err, spibus.ErrBus) {
			t.Fatalf("FillSolid() = %v, want ErrBus", err)
		}
		if cmds := bus.commands(); !bytes.Equal(cmds, []byte{CASET}) {
			t.Errorf("commands = % X, want only CASET", cmds)
		}
		if len(bus.flushes()) != 0 {
			t.Error("pixel data sent after a failed command")
		}
	})

	t.Run("flush", func(t *testing.T) {
		d, bus := newDevice(t, nil, Config{})
		bus.failOn = 4
		err := d.FillSolid(image.Rect(0, 0, 10, 10), red)
		if !errors.Is(err, spibus.ErrBus) || !errors.Is(err, errTransfer) {
			t.Fatalf("FillSolid() = %v, want the wrapped transfer error", err)
		}
		if d.buf.Len() == 0 {
			t.Fatal("cursor reset although the flush failed")
		}

		// Unsent bytes are dropped by the next operation.
		bus.reset()
		if err := d.FillSolid(image.Rect(0, 0, 1, 1), blue); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(bus.data(), blueBytes) {
			t.Errorf("flushed % X, want % X", bus.data(), blueBytes)
		}
	})
}

func TestFillRectangle(t *testing.T) {
	d, bus := newDevice(t, nil, Config{})
	if err := d.FillRectangle(1, 2, 3, 4, color.RGBA{R: 0xFF, A: 0xFF}); err != nil {
		t.Fatal(err)
	}
	checkWindow(t, bus, []byte{0, 1, 0, 3}, []byte{0, 2, 0, 5})
	if !bytes.Equal(bus.data(), repeat(redBytes, 12)) {
		t.Errorf("flushed % X", bus.data())
	}

	bus.reset()
	if err := d.DrawFastHLine(5, 2, 7, color.RGBA{B: 0xFF, A: 0xFF}); err != nil {
		t.Fatal(err)
	}
	checkWindow(t, bus, []byte{0, 2, 0, 5}, []byte{0, 7, 0, 7})

	bus.reset()
	if err := d.DrawFastVLine(9, 3, 1, color.RGBA{B: 0xFF, A: 0xFF}); err != nil {
		t.Fatal(err)
	}
	checkWindow(t, bus, []byte{0, 9, 0, 9}, []byte{0, 1, 0, 3})
}

func frameSize() []byte { return make([]byte, 240*320*2) }

func TestContextNoFrame(t *testing.T) {
	d, bus := newDevice(t, nil, Config{})
	r := image.Rect(0, 0, 10, 10)
	if err := d.BeginContext(r); !errors.Is(err, ErrNoFrame) {
		t.Errorf("BeginContext() = %v, want ErrNoFrame", err)
	}
	if err := d.FillSolidInContext(r, red); !errors.Is(err, ErrNoFrame) {
		t.Errorf("FillSolidInContext() = %v, want ErrNoFrame", err)
	}
	if err := d.FlushContext(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("FlushContext() = %v, want ErrNoFrame", err)
	}
	if len(bus.ops) != 0 {
		t.Errorf("%d bus operations, want none", len(bus.ops))
	}
}

func TestContextFullRows(t *testing.T) {
	d, bus := newDevice(t, frameSize(), Config{})
	r := image.Rect(0, 10, 240, 12)

	if err := d.BeginContext(r); err != nil {
		t.Fatal(err)
	}
	if err := d.FillSolidInContext(r, red); err != nil {
		t.Fatal(err)
	}
	if len(bus.flushes()) != 0 {
		t.Fatal("context fill flushed pixel data")
	}
	if err := d.FlushContext(); err != nil {
		t.Fatal(err)
	}

	checkWindow(t, bus, []byte{0x00, 0x00, 0x00, 0xEF}, []byte{0x00, 0x0A, 0x00, 0x0B})
	if cmds := bus.commands(); !bytes.Equal(cmds, []byte{CASET, RASET, RAMWR, RAMWR, RAMWR}) {
		t.Errorf("commands = % X", cmds)
	}
	if sizes := bus.flushes(); len(sizes) != 1 || sizes[0] != 960 {
		t.Errorf("flushes = %v, want one of 960 bytes", sizes)
	}
	if !bytes.Equal(bus.data(), repeat(redBytes, 480)) {
		t.Error("flushed data is not the fill color")
	}
}

func TestContextPerRow(t *testing.T) {
	d, bus := newDevice(t, frameSize(), Config{})
	r := image.Rect(10, 5, 30, 8)

	if err := d.BeginContext(r); err != nil {
		t.Fatal(err)
	}
	if err := d.FillSolidInContext(r, red); err != nil {
		t.Fatal(err)
	}
	if err := d.FillSolidInContext(image.Rect(15, 6, 20, 7), blue); err != nil {
		t.Fatal(err)
	}

	// Rows land at the frame stride.
	for y := 5; y < 8; y++ {
		off := (y*240 + 10) * 2
		if row := d.mem[off : off+40]; row[0] != 0xF8 {
			t.Errorf("row %d not written at offset %d", y, off)
		}
	}

	if err := d.FlushContext(); err != nil {
		t.Fatal(err)
	}
	sizes := bus.flushes()
	if len(sizes) != 3 {
		t.Fatalf("flushes = %v, want 3 rows", sizes)
	}
	var want []byte
	want = append(want, repeat(redBytes, 20)...)
	want = append(want, repeat(redBytes, 5)...)
	want = append(want, repeat(blueBytes, 5)...)
	want = append(want, repeat(redBytes, 10)...)
	want = append(want, repeat(redBytes, 20)...)
	if !bytes.Equal(bus.data(), want) {
		t.Errorf("flushed\n% X\nwant\n% X", bus.data(), want)
	}
}

func TestContextBlocksImmediate(t *testing.T) {
	d, _ := newDevice(t, frameSize(), Config{})
	if err := d.BeginContext(image.Rect(0, 0, 10, 10)); err != nil {
		t.Fatal(err)
	}
	if err := d.FillSolid(image.Rect(0, 0, 1, 1), red); !errors.Is(err, ErrContextPending) {
		t.Errorf("FillSolid() = %v, want ErrContextPending", err)
	}
	if err := d.FlushContext(); err != nil {
		t.Fatal(err)
	}
	if err := d.FillSolid(image.Rect(0, 0, 1, 1), red); err != nil {
		t.Errorf("FillSolid() after FlushContext = %v", err)
	}
}

func TestFillSolidInContextClips(t *testing.T) {
	d, bus := newDevice(t, frameSize(), Config{})

	if err := d.FillSolidInContext(image.Rect(250, 0, 260, 10), red); err != nil {
		t.Fatalf("FillSolidInContext() outside = %v, want nil", err)
	}
	if len(bus.ops) != 0 {
		t.Errorf("%d bus operations for an empty fill, want none", len(bus.ops))
	}

	if err := d.FillSolidInContext(image.Rect(230, 0, 250, 2), blue); err != nil {
		t.Fatal(err)
	}
	if got := d.mem[239*2 : 240*2]; !bytes.Equal(got, blueBytes) {
		t.Errorf("last column = % X, want % X", got, blueBytes)
	}
	if got := d.mem[240*2 : 241*2]; bytes.Equal(got, blueBytes) {
		t.Error("fill wrapped into the next row")
	}
	if cmds := bus.commands(); !bytes.Equal(cmds, []byte{RAMWR}) {
		t.Errorf("commands = % X, want RAMWR", cmds)
	}
}

func TestFlushContextWithoutBegin(t *testing.T) {
	d, bus := newDevice(t, frameSize(), Config{})
	if err := d.FillSolidInContext(image.Rect(0, 0, 240, 320), blue); err != nil {
		t.Fatal(err)
	}
	if err := d.Display(); err != nil {
		t.Fatal(err)
	}
	if cmds := bus.commands(); !bytes.Equal(cmds, []byte{RAMWR, CASET, RASET, RAMWR}) {
		t.Errorf("commands = % X", cmds)
	}
	if sizes := bus.flushes(); len(sizes) != 1 || sizes[0] != 240*320*2 {
		t.Errorf("flushes = %v, want the whole frame at once", sizes)
	}
}

func TestContextFillsSurviveImmediateOps(t *testing.T) {
	d, bus := newDevice(t, frameSize(), Config{})
	if err := d.FillSolidInContext(image.Rect(0, 0, 240, 320), blue); err != nil {
		t.Fatal(err)
	}
	if err := d.FillSolid(image.Rect(100, 100, 101, 101), red); !errors.Is(err, ErrContextPending) {
		t.Fatalf("FillSolid() = %v, want ErrContextPending", err)
	}
	if err := d.DrawRGBBitmap8(0, 0, redBytes, 1, 1); !errors.Is(err, ErrContextPending) {
		t.Fatalf("DrawRGBBitmap8() = %v, want ErrContextPending", err)
	}
	if err := d.FlushContext(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bus.data(), repeat(blueBytes, 240*320)) {
		t.Error("frame changed by an immediate operation before FlushContext")
	}
	if err := d.FillSolid(image.Rect(100, 100, 101, 101), red); err != nil {
		t.Errorf("FillSolid() after FlushContext = %v", err)
	}
}

func TestBeginContextEmpty(t *testing.T) {
	d, bus := newDevice(t, frameSize(), Config{})
	if err := d.BeginContext(image.Rect(250, 0, 260, 10)); err != nil {
		t.Fatal(err)
	}
	if err := d.FlushContext(); err != nil {
		t.Fatal(err)
	}
	if len(bus.ops) != 0 {
		t.Errorf("%d bus operations for an empty context, want none", len(bus.ops))
	}
	if err := d.FillSolid(image.Rect(0, 0, 1, 1), red); err != nil {
		t.Errorf("FillSolid() after the empty context = %v", err)
	}
}

func TestRotationFrameLayout(t *testing.T) {
	d, _ := newDevice(t, frameSize(), Config{})
	if err := d.SetRotation(ROTATION_90); err != nil {
		t.Fatal(err)
	}
	if got := d.frame.Stride(); got != 640 {
		t.Errorf("frame stride = %d, want 640", got)
	}
	if err := d.FillSolidInContext(image.Rect(300, 0, 320, 1), red); err != nil {
		t.Errorf("FillSolidInContext() in landscape = %v", err)
	}
}

func TestDrawPixelsClipped(t *testing.T) {
	d, bus := newDevice(t, nil, Config{})

	i := 0
	err := d.DrawPixels(image.Rect(238, 0, 242, 2), func() (pixel.RGB565BE, bool) {
		if i == 8 {
			return 0, false
		}
		c := pixel.NewColor[pixel.RGB565BE](uint8(8*i), 0, 0)
		i++
		return c, true
	})
	if err != nil {
		t.Fatal(err)
	}
	checkWindow(t, bus, []byte{0x00, 0xEE, 0x00, 0xEF}, []byte{0x00, 0x00, 0x00, 0x01})
	want := []byte{0, 0, 8, 0, 32, 0, 40, 0}
	if !bytes.Equal(bus.data(), want) {
		t.Errorf("flushed % X, want % X", bus.data(), want)
	}
}

func TestDrawPixelsRounds(t *testing.T) {
	d, bus := newDevice(t, make([]byte, 8), Config{})

	i := 0
	err := d.DrawPixels(image.Rect(0, 0, 3, 3), func() (pixel.RGB565BE, bool) {
		c := pixel.NewColor[pixel.RGB565BE](uint8(8*i), 0, 0)
		i++
		return c, true
	})
	if err != nil {
		t.Fatal(err)
	}
	if i != 9 {
		t.Errorf("source read %d times, want 9", i)
	}
	sizes := bus.flushes()
	if len(sizes) != 3 || sizes[0] != 8 || sizes[1] != 8 || sizes[2] != 2 {
		t.Errorf("flushes = %v, want [8 8 2]", sizes)
	}
	data := bus.data()
	for p := 0; p < 9; p++ {
		if data[2*p] != byte(8*p) {
			t.Errorf("pixel %d = %#02x, want %#02x", p, data[2*p], 8*p)
		}
	}
}

func TestDrawPixelsShortSource(t *testing.T) {
	d, bus := newDevice(t, nil, Config{})

	n := 0
	err := d.DrawPixels(image.Rect(0, 0, 10, 10), func() (pixel.RGB565BE, bool) {
		if n == 50 {
			return 0, false
		}
		n++
		return red, true
	})
	if !errors.Is(err, ErrPixelCount) {
		t.Fatalf("DrawPixels() = %v, want ErrPixelCount", err)
	}
	if got := len(bus.data()); got != 100 {
		t.Errorf("flushed %d bytes, want the 100 provided", got)
	}
}

func TestDrawRGBBitmap8(t *testing.T) {
	// 4x3 bitmap, pixel (col, row) is {row*4+col, 0xAA}.
	bitmap := make([]byte, 4*3*2)
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			bitmap[(row*4+col)*2] = byte(row*4 + col)
			bitmap[(row*4+col)*2+1] = 0xAA
		}
	}
	want := []byte{1, 0xAA, 2, 0xAA, 3, 0xAA, 5, 0xAA, 6, 0xAA, 7, 0xAA}

	tests := []struct {
		name  string
		mem   []byte
		sizes []int
	}{
		{"one round", nil, []int{12}},
		{"split rows", make([]byte, 4), []int{4, 4, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bus := newDevice(t, tt.mem, Config{})
			// Left column and bottom row fall off the display.
			if err := d.DrawRGBBitmap8(-1, 318, bitmap, 4, 3); err != nil {
				t.Fatal(err)
			}
			checkWindow(t, bus, []byte{0x00, 0x00, 0x00, 0x02}, []byte{0x01, 0x3E, 0x01, 0x3F})
			if !bytes.Equal(bus.data(), want) {
				t.Errorf("flushed % X, want % X", bus.data(), want)
			}
			sizes := bus.flushes()
			if len(sizes) != len(tt.sizes) {
				t.Fatalf("flushes = %v, want %v", sizes, tt.sizes)
			}
			for i := range sizes {
				if sizes[i] != tt.sizes[i] {
					t.Errorf("flushes = %v, want %v", sizes, tt.sizes)
					break
				}
			}
		})
	}
}

func TestDrawRGBBitmap8SizeMismatch(t *testing.T) {
	d, bus := newDevice(t, nil, Config{})
	if err := d.DrawRGBBitmap8(0, 0, make([]byte, 7), 2, 2); !errors.Is(err, ErrPixelCount) {
		t.Errorf("DrawRGBBitmap8() = %v, want ErrPixelCount", err)
	}
	if len(bus.ops) != 0 {
		t.Errorf("%d bus operations, want none", len(bus.ops))
	}
}

func TestDrawBitmap(t *testing.T) {
	d, bus := newDevice(t, nil, Config{})
	img := pixel.NewImage[pixel.RGB565BE](2, 2)
	img.Set(0, 0, red)
	img.Set(1, 1, blue)

	if err := d.DrawBitmap(5, 5, img); err != nil {
		t.Fatal(err)
	}
	checkWindow(t, bus, []byte{0, 5, 0, 6}, []byte{0, 5, 0, 6})
	if !bytes.Equal(bus.data(), img.RawBuffer()) {
		t.Errorf("flushed % X, want % X", bus.data(), img.RawBuffer())
	}
}

func TestFillRectangleWithBuffer(t *testing.T) {
	d, bus := newDevice(t, nil, Config{})
	colors := []color.RGBA{{R: 0xFF, A: 0xFF}, {B: 0xFF, A: 0xFF}}

	if err := d.FillRectangleWithBuffer(0, 0, 2, 1, colors); err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{}, redBytes...), blueBytes...)
	if !bytes.Equal(bus.data(), want) {
		t.Errorf("flushed % X, want % X", bus.data(), want)
	}

	if err := d.FillRectangleWithBuffer(0, 0, 2, 2, colors); !errors.Is(err, ErrPixelCount) {
		t.Errorf("FillRectangleWithBuffer() = %v, want ErrPixelCount", err)
	}
}

func TestRGB888Device(t *testing.T) {
	bus := &fakeBus{}
	d := NewBus[pixel.RGB888](bus, nil)
	d.sleep = func(time.Duration) {}
	if err := d.Configure(Config{}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(bus.commands(), []byte{COLMOD}) {
		t.Fatal("no COLMOD sent")
	}
	for _, op := range bus.ops {
		if op.cmd == COLMOD && op.data == nil && !bytes.Equal(op.args, []byte{0x56}) {
			t.Errorf("COLMOD % X, want 56", op.args)
		}
	}

	bus.reset()
	if err := d.FillSolid(image.Rect(0, 0, 2, 1), pixel.NewColor[pixel.RGB888](1, 2, 3)); err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 2, 3, 1, 2, 3}; !bytes.Equal(bus.data(), want) {
		t.Errorf("flushed % X, want % X", bus.data(), want)
	}
}
