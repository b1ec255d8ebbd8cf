package eswifi

import (
	"fmt"
	"net/netip"
)

// FreeSocket returns the lowest free socket index, or NoSocket when every
// socket is busy.
func (d *Device) FreeSocket() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.sockets.free()
}

// SocketState returns the state of socket i.
func (d *Device) SocketState(i int) (SocketState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.sockets.validate(i); err != nil {
		return SocketBusy, err
	}

	return d.sockets.get(i).State, nil
}

// Socket returns a copy of the table entry of socket i.
func (d *Device) Socket(i int) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.sockets.validate(i); err != nil {
		return Socket{}, err
	}

	return *d.sockets.get(i), nil
}

// CurrentSocket returns the socket selected by the last successful command
// that targeted a socket.
func (d *Device) CurrentSocket() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.current
}

// SetConnectionParam records the endpoint of socket i for a later start.
//
// It only updates the local table; no command is sent.
func (d *Device) SetConnectionParam(i int, param ConnectionParam) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.sockets.validate(i); err != nil {
		return err
	}
	if !param.Type.valid() {
		return fmt.Errorf("%w: socket type %v", ErrInvalidArgument, param.Type)
	}

	s := d.sockets.get(i)
	s.ConnectionParam = param
	s.Number = i

	return nil
}

// selectSocket makes socket i the target of the following socket commands.
// The cursor moves only when the module accepts the selection.
func (d *Device) selectSocket(i int) error {
	if _, err := d.command(cmdSelectSocket, itoa(i)); err != nil {
		return err
	}
	d.current = i

	return nil
}

// setBusy marks socket i busy.
func (d *Device) setBusy(i int) {
	if d.sockets.setState(i, SocketBusy) {
		d.metrics.incOpenSockets()
	}
}

// setFree marks socket i free.
func (d *Device) setFree(i int) {
	if d.sockets.setState(i, SocketFree) {
		d.metrics.decOpenSockets()
	}
}

// StartClientConnection opens a client connection on socket i with the
// endpoint recorded by SetConnectionParam.
//
// Each command must succeed before the next is issued. The socket becomes
// busy only when the module accepted the start command; on failure the table
// entry is left untouched.
func (d *Device) StartClientConnection(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	if err := d.sockets.validate(i); err != nil {
		return err
	}

	s := d.sockets.get(i)
	if !s.RemoteIP.IsValid() {
		return fmt.Errorf("%w: socket %d has no remote address", ErrInvalidArgument, i)
	}

	if err := d.selectSocket(i); err != nil {
		return err
	}
	if _, err := d.command(cmdSetProtocol, itoa(int(s.Type))); err != nil {
		return err
	}
	if s.Type.isDatagram() && s.LocalPort > 0 {
		if _, err := d.command(cmdSetLocalPort, itoa(int(s.LocalPort))); err != nil {
			return err
		}
	}
	if _, err := d.command(cmdSetRemotePort, itoa(int(s.RemotePort))); err != nil {
		return err
	}
	if _, err := d.command(cmdSetRemoteHost, s.RemoteIP.String()); err != nil {
		return err
	}
	if _, err := d.command(cmdClient, "1"); err != nil {
		return err
	}

	d.setBusy(i)
	d.logger.Debug("client started", "socket", i, "type", s.Type, "remote",
		netip.AddrPortFrom(s.RemoteIP, s.RemotePort))

	return nil
}

// StopClientConnection closes the client connection on socket i.
//
// The table entry is freed even when the module rejects the stop.
func (d *Device) StopClientConnection(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	if err := d.sockets.validate(i); err != nil {
		return err
	}

	defer d.setFree(i)

	if err := d.selectSocket(i); err != nil {
		return err
	}
	_, err := d.command(cmdClient, "0")

	return err
}

// RemoteAddr queries the module for the peer of socket i and records it.
func (d *Device) RemoteAddr(i int) (netip.AddrPort, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return netip.AddrPort{}, err
	}
	if err := d.sockets.validate(i); err != nil {
		return netip.AddrPort{}, err
	}

	if err := d.selectSocket(i); err != nil {
		return netip.AddrPort{}, err
	}
	body, err := d.command(cmdTransportInfo)
	if err != nil {
		return netip.AddrPort{}, err
	}

	ts, err := parseTransportSettings(body)
	if err != nil {
		return netip.AddrPort{}, err
	}

	s := d.sockets.get(i)
	s.RemoteIP = ts.RemoteIP
	s.RemotePort = ts.RemotePort
	s.LocalPort = ts.LocalPort

	return netip.AddrPortFrom(ts.RemoteIP, ts.RemotePort), nil
}
