package eswifi

import (
	"fmt"
	"time"
)

// Send writes data to socket i and returns the number of bytes the module
// accepted.
//
// timeout bounds the whole exchange; the module gets timeout minus the
// configured offset so that it gives up first.
func (d *Device) Send(i int, data []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := d.sockets.validate(i); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty data", ErrInvalidArgument)
	}
	if len(data) > PayloadSize {
		return 0, fmt.Errorf("%w: %d bytes, max %d", ErrCapacityExceeded, len(data), PayloadSize)
	}
	devTimeout, err := d.deviceTimeout(timeout)
	if err != nil {
		return 0, err
	}

	if err := d.selectSocket(i); err != nil {
		return 0, err
	}
	if _, err := d.commandTimeout(timeout, cmdSendTimeout, millis(devTimeout)); err != nil {
		return 0, err
	}
	if _, err := d.commandTimeout(timeout, cmdSendLength, itoa(len(data))); err != nil {
		return 0, err
	}

	// The data follows the command terminator directly.
	cmd := appendCommand(d.scratch[:0], cmdSendData)
	cmd = append(cmd, data...)

	status, n, err := d.exchangeRaw(cmd, timeout)
	switch status {
	case StatusOK:
	case StatusError:
		return 0, fmt.Errorf("eswifi: %s: %w: %s", cmdSendData, ErrProtocol, errorDetail(d.scratch[:n]))
	case StatusNeedMore:
		d.drain(timeout)
		return 0, fmt.Errorf("eswifi: %s: %w", cmdSendData, ErrProtocolIncomplete)
	default:
		return 0, fmt.Errorf("eswifi: %s: %w", cmdSendData, err)
	}

	d.metrics.addBytesSent(len(data))

	return len(data), nil
}

// Receive reads up to len(buf) bytes from socket i and returns the number
// of bytes stored, which is 0 when no data was pending.
//
// When the payload cannot be recovered the socket is marked free and the
// error is returned.
func (d *Device) Receive(i int, buf []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := d.sockets.validate(i); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: empty buffer", ErrInvalidArgument)
	}
	if len(buf) > PayloadSize {
		return 0, fmt.Errorf("%w: %d bytes, max %d", ErrCapacityExceeded, len(buf), PayloadSize)
	}
	devTimeout, err := d.deviceTimeout(timeout)
	if err != nil {
		return 0, err
	}

	if err := d.selectSocket(i); err != nil {
		return 0, err
	}
	if _, err := d.commandTimeout(timeout, cmdReadLength, itoa(len(buf))); err != nil {
		return 0, err
	}
	if _, err := d.commandTimeout(timeout, cmdReadTimeout, millis(devTimeout)); err != nil {
		return 0, err
	}

	cmd := appendCommand(d.scratch[:0], cmdReadData, "")
	d.metrics.incCommand(cmdReadData)
	if _, err := d.io.Send(cmd, timeout); err != nil {
		d.countTransportErr(err)
		return 0, fmt.Errorf("eswifi: %s: send: %w", cmdReadData, err)
	}

	n, err := d.receivePayload(buf, timeout)
	if err != nil {
		d.setFree(i)
		d.logger.Warn("receive failed, socket released", "socket", i, "error", err)

		return 0, fmt.Errorf("eswifi: %s: %w", cmdReadData, err)
	}

	d.metrics.addBytesReceived(n)

	return n, nil
}
