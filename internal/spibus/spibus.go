// Package spibus is a 4-line serial transport for display controllers.
//
// Each command is sent with the data/command select line low for the opcode
// byte and high for the argument bytes. Pixel data is sent with the line high.
// Transfers are synchronous: every call returns once the bus completed it.
//
// A Bus is not safe for concurrent use; the controller on the other end is
// stateful and interleaved commands would corrupt the addressed write.
package spibus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var (
	// ErrBus wraps a failed SPI transfer.
	ErrBus = errors.New("bus transfer failed")
	// ErrControlSignal wraps a failure to drive the data/command line.
	ErrControlSignal = errors.New("data/command select failed")
)

// DefaultFrequency is the clock used by New when none is given.
const DefaultFrequency = 80 * physic.MegaHertz

// Bus sends commands and pixel data to a controller over SPI.
type Bus struct {
	c     spi.Conn
	dc    gpio.PinOut
	maxTx int // 0 means unlimited
	cmd   [1]byte
}

// New connects to p in mode 0 with 8-bit words. f == 0 selects
// DefaultFrequency. dc is the data/command select pin and is required.
func New(p spi.Port, dc gpio.PinOut, f physic.Frequency) (*Bus, error) {
	if dc == nil || dc == gpio.INVALID {
		return nil, errors.New("spibus: a data/command pin is required for 4-line mode")
	}
	if f == 0 {
		f = DefaultFrequency
	}
	if err := dc.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("spibus: %w: %w", ErrControlSignal, err)
	}
	c, err := p.Connect(f, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spibus: connect %s: %w", p, err)
	}
	return NewConn(c, dc), nil
}

// NewConn wraps an already connected SPI connection.
func NewConn(c spi.Conn, dc gpio.PinOut) *Bus {
	b := &Bus{c: c, dc: dc}
	if l, ok := c.(conn.Limits); ok {
		b.maxTx = l.MaxTxSize()
	}
	return b
}

func (b *Bus) String() string {
	return fmt.Sprintf("spibus{%s}", b.c)
}

// MaxTxSize returns the largest single transfer the connection accepts, or 0
// when it has no limit.
func (b *Bus) MaxTxSize() int { return b.maxTx }

// SendCommand sends the opcode cmd followed by args. The data/command line is
// left high, so pixel data can follow directly.
func (b *Bus) SendCommand(cmd byte, args []byte) error {
	b.cmd[0] = cmd
	if err := b.setDC(gpio.Low); err != nil {
		return err
	}
	if err := b.tx(b.cmd[:], nil); err != nil {
		return err
	}
	if err := b.setDC(gpio.High); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return b.write(args)
}

// Flush sends data as pixel data, split at the connection's transfer limit.
func (b *Bus) Flush(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := b.setDC(gpio.High); err != nil {
		return err
	}
	return b.write(data)
}

// Read sends the opcode cmd and then clocks len(r) bytes back into r.
func (b *Bus) Read(cmd byte, r []byte) error {
	if err := b.SendCommand(cmd, nil); err != nil {
		return err
	}
	return b.tx(nil, r)
}

func (b *Bus) write(data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if b.maxTx > 0 && n > b.maxTx {
			n = b.maxTx
		}
		if err := b.tx(data[:n], nil); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (b *Bus) tx(w, r []byte) error {
	if err := b.c.Tx(w, r); err != nil {
		return fmt.Errorf("spibus: %w: %w", ErrBus, err)
	}
	return nil
}

func (b *Bus) setDC(l gpio.Level) error {
	if err := b.dc.Out(l); err != nil {
		return fmt.Errorf("spibus: %w: %w", ErrControlSignal, err)
	}
	return nil
}
