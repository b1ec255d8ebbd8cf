// Package spi implements the ES-WiFi word transport over an SPI bus with a
// chip select line, a reset line and a data-ready line.
//
// The module exchanges 16-bit words. The low byte of a word is the first
// byte of the stream. Odd outbound messages are padded with a line feed;
// odd inbound messages end with the 0x15 stuffing byte while the ready line
// drops.
package spi

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-eswifi/eswifi"
	"github.com/arloliu/go-eswifi/logger"
)

const (
	// stuffByte pads the last word of an odd inbound message.
	stuffByte = 0x15
	// padByte pads the last word of an odd outbound message.
	padByte = '\n'
	// dummyWord clocks inbound data out of the module.
	dummyWord = 0x0A0A
)

// prompt is the bring-up banner the module sends after reset.
var prompt = [6]byte{stuffByte, stuffByte, '\r', '\n', '>', ' '}

// Conn exchanges one 16-bit word with the module.
type Conn interface {
	Tx16(w uint16) (uint16, error)
}

// InputPin is a digital input.
type InputPin interface {
	Read() bool
}

// OutputPin is a digital output.
type OutputPin interface {
	Out(high bool) error
}

// Pins are the control lines of the module.
type Pins struct {
	// Select is the active-low chip select.
	Select OutputPin
	// Reset is the active-low module reset.
	Reset OutputPin
	// Wakeup is driven low during bring-up. It may be nil.
	Wakeup OutputPin
	// Ready is high while the module accepts or holds data.
	Ready InputPin
}

// Transport implements eswifi.IO over an SPI bus.
//
// A Transport is not goroutine-safe; the owning eswifi.Device serializes
// access to it.
type Transport struct {
	conn   Conn
	pins   Pins
	cfg    *Config
	logger logger.Logger
}

var _ eswifi.IO = (*Transport)(nil)

// NewTransport creates a transport on conn with the given control lines.
func NewTransport(conn Conn, pins Pins, opts ...Option) (*Transport, error) {
	if conn == nil {
		return nil, errors.New("spi: conn must not be nil")
	}
	if pins.Select == nil || pins.Reset == nil || pins.Ready == nil {
		return nil, errors.New("spi: select, reset and ready pins are required")
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Transport{
		conn:   conn,
		pins:   pins,
		cfg:    cfg,
		logger: cfg.GetLogger().With("component", "spi"),
	}, nil
}

func (t *Transport) sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func (t *Transport) selectBus() error {
	if err := t.pins.Select.Out(false); err != nil {
		return fmt.Errorf("spi: select: %w: %w", eswifi.ErrTransportIO, err)
	}
	t.sleep(t.cfg.SettleDelay())

	return nil
}

func (t *Transport) deselectBus() {
	if err := t.pins.Select.Out(true); err != nil {
		t.logger.Warn("deselect failed", "error", err)
	}
	t.sleep(t.cfg.SettleDelay())
}

func (t *Transport) isReady() bool {
	return t.pins.Ready.Read()
}

// waitReady polls the ready line until it is high or timeout elapses.
func (t *Transport) waitReady(start time.Time, timeout time.Duration) bool {
	for !t.isReady() {
		if time.Since(start) >= timeout {
			return false
		}
	}

	return true
}

func (t *Transport) resetDevice() error {
	if err := t.pins.Reset.Out(false); err != nil {
		return fmt.Errorf("spi: reset: %w: %w", eswifi.ErrTransportIO, err)
	}
	t.sleep(t.cfg.ResetPulse())
	if err := t.pins.Reset.Out(true); err != nil {
		return fmt.Errorf("spi: reset: %w: %w", eswifi.ErrTransportIO, err)
	}
	t.sleep(t.cfg.ResetSettle())

	return nil
}

func (t *Transport) tx(w uint16) (uint16, error) {
	r, err := t.conn.Tx16(w)
	if err != nil {
		return 0, fmt.Errorf("spi: transfer: %w: %w", eswifi.ErrTransportIO, err)
	}

	return r, nil
}

// Init resets the module and checks the bring-up prompt.
//
//  1. Park the bus: chip select high, wakeup low.
//  2. Pulse reset and wait for the module to boot.
//  3. Select and wait for the ready line within the init timeout.
//  4. Read three words and compare them with the prompt.
func (t *Transport) Init() error {
	if err := t.pins.Select.Out(true); err != nil {
		return fmt.Errorf("spi: select: %w: %w", eswifi.ErrTransportIO, err)
	}
	if t.pins.Wakeup != nil {
		if err := t.pins.Wakeup.Out(false); err != nil {
			return fmt.Errorf("spi: wakeup: %w: %w", eswifi.ErrTransportIO, err)
		}
	}

	if err := t.resetDevice(); err != nil {
		return err
	}
	if err := t.selectBus(); err != nil {
		return err
	}
	defer t.deselectBus()

	if !t.waitReady(time.Now(), t.cfg.InitTimeout()) {
		return fmt.Errorf("spi: init: %w", eswifi.ErrTransportTimeout)
	}

	var got [len(prompt)]byte
	for i := 0; i < len(got); i += 2 {
		r, err := t.tx(dummyWord)
		if err != nil {
			return err
		}
		got[i], got[i+1] = byte(r), byte(r>>8)
	}

	if got != prompt {
		return fmt.Errorf("spi: init: %w: % x", eswifi.ErrTransportFraming, got)
	}
	t.logger.Debug("module prompt received")

	return nil
}

// Send transmits p as little-endian words, padding an odd final byte with a
// line feed. It returns the number of payload bytes sent.
//
// The bus stays selected afterwards; the following Receive deselects it.
func (t *Transport) Send(p []byte, timeout time.Duration) (int, error) {
	if !t.waitReady(time.Now(), timeout) {
		t.deselectBus()
		return 0, fmt.Errorf("spi: send: %w", eswifi.ErrTransportTimeout)
	}

	if err := t.selectBus(); err != nil {
		return 0, err
	}

	for i := 0; i < len(p); i += 2 {
		hi := byte(padByte)
		if i+1 < len(p) {
			hi = p[i+1]
		}
		if _, err := t.tx(uint16(p[i]) | uint16(hi)<<8); err != nil {
			t.deselectBus()
			return 0, err
		}
	}

	return len(p), nil
}

// Receive reads one module message into p.
//
// Words are read while the ready line is high and, when limit is positive,
// until at least limit bytes were read. A limit of 0 reads until the module
// ends the message. Bytes beyond len(p) are read and discarded. When the
// ready line drops after a word whose high byte is the stuffing byte, only
// its low byte is kept, and only if it is not a stuffing byte itself.
//
// It returns 0 and an error wrapping eswifi.ErrTransportTimeout when the
// module does not signal data within timeout, or when the message is not
// complete by then. The bus is left deselected.
func (t *Transport) Receive(p []byte, limit int, timeout time.Duration) (int, error) {
	start := time.Now()

	t.deselectBus()

	if !t.waitReady(start, timeout) {
		return 0, fmt.Errorf("spi: receive: %w", eswifi.ErrTransportTimeout)
	}

	if err := t.selectBus(); err != nil {
		return 0, err
	}
	defer t.deselectBus()

	start = time.Now()
	n := 0
	for t.isReady() && (limit == 0 || n < limit) {
		r, err := t.tx(dummyWord)
		if err != nil {
			return 0, err
		}
		b0, b1 := byte(r), byte(r>>8)

		if b1 == stuffByte {
			t.sleep(t.cfg.StuffSettle())
		}

		if b1 == stuffByte && !t.isReady() {
			if b0 != stuffByte {
				n = store(p, n, b0)
			}
			break
		}

		n = store(p, n, b0)
		n = store(p, n, b1)

		if time.Since(start) >= timeout {
			return 0, fmt.Errorf("spi: receive: %w: message incomplete", eswifi.ErrTransportTimeout)
		}
	}

	return min(n, len(p)), nil
}

// store puts b at p[n] when it fits and returns the next position.
func store(p []byte, n int, b byte) int {
	if n < len(p) {
		p[n] = b
	}

	return n + 1
}

// Delay blocks for d.
func (t *Transport) Delay(d time.Duration) {
	t.sleep(d)
}

// Close parks the bus and releases the underlying conn and pins that
// implement io.Closer.
func (t *Transport) Close() error {
	if err := t.pins.Select.Out(true); err != nil {
		t.logger.Warn("deselect failed", "error", err)
	}

	var errs []error
	closers := []any{t.conn, t.pins.Select, t.pins.Reset, t.pins.Wakeup, t.pins.Ready}
	for _, c := range closers {
		if cl, ok := c.(io.Closer); ok {
			errs = append(errs, cl.Close())
		}
	}

	return errors.Join(errs...)
}
