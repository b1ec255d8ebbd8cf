package eswifi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-eswifi/logger"
)

// Device drives one ES-WiFi module through an IO link.
//
// Every exported method holds the device lock for its whole duration, so a
// command and its reply are never interleaved with another caller's traffic.
// Methods that wait for a peer, such as StartServer in accept mode, block all
// other callers until they return.
type Device struct {
	mu sync.Mutex

	io      IO
	cfg     *Config
	logger  logger.Logger
	metrics *DeviceMetrics

	// scratch holds the outbound command and then its reply.
	scratch []byte
	// tail holds the bytes of a split terminator during payload recovery.
	tail []byte

	sockets *socketTable
	current int // last successfully selected socket

	info        Info
	initialized bool
	closed      bool
}

// NewDevice creates a device bound to io.
//
// The link is not touched until Init is called.
func NewDevice(io IO, opts ...Option) (*Device, error) {
	if io == nil {
		return nil, fmt.Errorf("%w: nil IO", ErrInvalidArgument)
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	d := &Device{
		io:      io,
		cfg:     cfg,
		logger:  cfg.GetLogger().With("component", "eswifi"),
		metrics: newDeviceMetrics(),
		scratch: make([]byte, DataSize),
		tail:    make([]byte, 2*TerminatorLength+2),
		sockets: newSocketTable(cfg.MaxSockets()),
	}

	return d, nil
}

// Init brings up the link and reads the module identity.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDeviceClosed
	}

	if err := d.io.Init(); err != nil {
		d.countTransportErr(err)
		return fmt.Errorf("eswifi: init link: %w", err)
	}

	body, err := d.command(cmdGetInfo)
	if err != nil {
		return err
	}

	info, err := parseInfo(body)
	if err != nil {
		return err
	}

	d.info = info
	d.initialized = true
	d.logger.Info("module ready", "product", info.ProductName, "firmware", info.FirmwareRev)

	return nil
}

// Close releases the link. Subsequent calls return ErrDeviceClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDeviceClosed
	}
	d.closed = true

	return d.io.Close()
}

// Info returns the module identity read during Init.
func (d *Device) Info() Info {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.info
}

// Config returns the device configuration.
func (d *Device) Config() *Config {
	return d.cfg
}

// GetMetrics returns the device metrics.
func (d *Device) GetMetrics() *DeviceMetrics {
	return d.metrics
}

// ready reports whether the device can issue commands. The lock must be held.
func (d *Device) ready() error {
	if d.closed {
		return ErrDeviceClosed
	}
	if !d.initialized {
		return ErrNotInitialized
	}

	return nil
}

// deviceTimeout converts a host timeout to the value handed to the module.
func (d *Device) deviceTimeout(timeout time.Duration) (time.Duration, error) {
	if timeout <= d.cfg.TimeoutOffset() {
		return 0, fmt.Errorf("%w: timeout %v must exceed offset %v", ErrInvalidArgument, timeout, d.cfg.TimeoutOffset())
	}

	return timeout - d.cfg.TimeoutOffset(), nil
}

// command runs a command with the default timeout and returns the reply body.
//
// The body aliases the shared buffer and is valid until the next command.
func (d *Device) command(token string, params ...string) ([]byte, error) {
	return d.commandTimeout(d.cfg.Timeout(), token, params...)
}

func (d *Device) commandTimeout(timeout time.Duration, token string, params ...string) ([]byte, error) {
	status, n, err := d.exchange(timeout, token, params...)

	switch status {
	case StatusOK:
		return replyBody(d.scratch[:n]), nil
	case StatusError:
		return nil, fmt.Errorf("eswifi: %s: %w: %s", token, ErrProtocol, errorDetail(d.scratch[:n]))
	case StatusNeedMore:
		d.drain(timeout)
		return nil, fmt.Errorf("eswifi: %s: %w", token, ErrProtocolIncomplete)
	default:
		return nil, fmt.Errorf("eswifi: %s: %w", token, err)
	}
}

// exchange encodes a command into the shared buffer, sends it and reads the
// reply back into the same buffer.
func (d *Device) exchange(timeout time.Duration, token string, params ...string) (Status, int, error) {
	cmd := appendCommand(d.scratch[:0], token, params...)

	return d.exchangeRaw(cmd, timeout)
}

// exchangeRaw sends an encoded command and classifies the reply stored in
// the shared buffer.
func (d *Device) exchangeRaw(cmd []byte, timeout time.Duration) (Status, int, error) {
	token := commandToken(cmd)
	d.metrics.incCommand(token)

	if _, err := d.io.Send(cmd, timeout); err != nil {
		d.countTransportErr(err)
		return StatusTransportError, 0, fmt.Errorf("send: %w", err)
	}

	status, n, err := d.receiveReply(d.scratch, timeout)
	if status != StatusOK {
		d.metrics.incCommandErrCount()
	}
	d.logger.Debug("command", "cmd", token, "status", status, "len", n)

	return status, n, err
}

// receiveReply reads one reply into p, keeping room for a terminator
// that straddles the capacity.
func (d *Device) receiveReply(p []byte, timeout time.Duration) (Status, int, error) {
	limit := len(p) - TerminatorLength - 2

	n, err := d.io.Receive(p, limit, timeout)
	if err != nil {
		d.countTransportErr(err)
		return StatusTransportError, 0, fmt.Errorf("receive: %w", err)
	}
	if n == 0 {
		return StatusTransportError, 0, fmt.Errorf("receive: %w: empty reply", ErrTransportIO)
	}

	status := Classify(p[:n], limit)
	if status == StatusTransportError {
		return status, n, fmt.Errorf("receive: %w: unterminated reply", ErrTransportIO)
	}

	return status, n, nil
}

// drain discards whatever remains of the current message.
func (d *Device) drain(timeout time.Duration) {
	if _, err := d.io.Receive(d.scratch, 0, timeout); err != nil {
		d.logger.Debug("drain failed", "error", err)
	}
}

func (d *Device) countTransportErr(err error) {
	if errors.Is(err, ErrTransportTimeout) {
		d.metrics.incTimeoutCount()
	}
}
