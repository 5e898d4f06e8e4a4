package st7789

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AlCutter/tftbus/internal/spibus"
	"tinygo.org/x/drivers/pixel"
)

// busOp is one recorded call on fakeBus. data is non-nil for flushes.
type busOp struct {
	cmd  byte
	args []byte
	data []byte
}

var errTransfer = errors.New("fake: transfer failed")

// fakeBus records every command and flush in order.
type fakeBus struct {
	ops    []busOp
	failOn int // 1-based call that fails, 0 for never
	calls  int
	scan   []uint16
	reads  int
}

func (b *fakeBus) fail() error {
	b.calls++
	if b.failOn != 0 && b.calls == b.failOn {
		return fmt.Errorf("spibus: %w: %w", spibus.ErrBus, errTransfer)
	}
	return nil
}

func (b *fakeBus) SendCommand(cmd byte, args []byte) error {
	if err := b.fail(); err != nil {
		return err
	}
	b.ops = append(b.ops, busOp{cmd: cmd, args: bytes.Clone(args)})
	return nil
}

func (b *fakeBus) Flush(data []byte) error {
	if err := b.fail(); err != nil {
		return err
	}
	b.ops = append(b.ops, busOp{data: bytes.Clone(data)})
	return nil
}

func (b *fakeBus) Read(cmd byte, r []byte) error {
	if err := b.fail(); err != nil {
		return err
	}
	b.reads++
	var v uint16
	if len(b.scan) > 0 {
		v, b.scan = b.scan[0], b.scan[1:]
	}
	clear(r)
	r[0], r[1] = byte(v>>8), byte(v)
	return nil
}

func (b *fakeBus) reset() {
	b.ops = nil
	b.calls = 0
	b.failOn = 0
}

// commands returns the recorded opcodes, skipping flushes.
func (b *fakeBus) commands() []byte {
	var cmds []byte
	for _, op := range b.ops {
		if op.data == nil {
			cmds = append(cmds, op.cmd)
		}
	}
	return cmds
}

// flushes returns the size of every recorded flush.
func (b *fakeBus) flushes() []int {
	var sizes []int
	for _, op := range b.ops {
		if op.data != nil {
			sizes = append(sizes, len(op.data))
		}
	}
	return sizes
}

// data returns every flushed byte, concatenated.
func (b *fakeBus) data() []byte {
	var all []byte
	for _, op := range b.ops {
		all = append(all, op.data...)
	}
	return all
}

// newDevice returns a configured RGB565 device with the configuration
// traffic already discarded.
func newDevice(t *testing.T, mem []byte, cfg Config) (*Device, *fakeBus) {
	t.Helper()
	bus := &fakeBus{}
	d := NewBus[pixel.RGB565BE](bus, mem)
	d.sleep = func(time.Duration) {}
	if err := d.Configure(cfg); err != nil {
		t.Fatalf("Configure() = %v", err)
	}
	bus.reset()
	return d, bus
}

func repeat(px []byte, n int) []byte {
	return bytes.Repeat(px, n)
}

var (
	red  = pixel.NewColor[pixel.RGB565BE](0xFF, 0, 0)
	blue = pixel.NewColor[pixel.RGB565BE](0, 0, 0xFF)

	redBytes  = []byte{0xF8, 0x00}
	blueBytes = []byte{0x00, 0x1F}
)
