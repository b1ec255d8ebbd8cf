package eswifi

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
)

var (
	startOfMessage = []byte("[SOMA]")
	endOfMessage   = []byte("[EOMA]")
)

// StartServer starts listening on socket i with the local port recorded by
// SetConnectionParam and, for stream sockets, waits for a peer.
//
// Datagram sockets return as soon as the listener runs, with a zero peer.
// Stream sockets block until the module announces an accepted connection,
// which may never happen; the device lock is held for the whole wait.
func (d *Device) StartServer(i int, mode TransportMode) (netip.AddrPort, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return netip.AddrPort{}, err
	}
	if err := d.sockets.validate(i); err != nil {
		return netip.AddrPort{}, err
	}

	s := d.sockets.get(i)
	if err := d.selectSocket(i); err != nil {
		return netip.AddrPort{}, err
	}
	if !s.Type.isDatagram() {
		if _, err := d.command(cmdKeepAlive, serverKeepAlive); err != nil {
			return netip.AddrPort{}, err
		}
	}
	if _, err := d.command(cmdSetProtocol, itoa(int(s.Type))); err != nil {
		return netip.AddrPort{}, err
	}
	if _, err := d.command(cmdSetLocalPort, itoa(int(s.LocalPort))); err != nil {
		return netip.AddrPort{}, err
	}
	if _, err := d.command(cmdServer, "1"); err != nil {
		return netip.AddrPort{}, err
	}

	d.setBusy(i)
	d.logger.Info("server started", "socket", i, "type", s.Type, "port", s.LocalPort, "mode", mode)

	if s.Type.isDatagram() {
		return netip.AddrPort{}, nil
	}

	var (
		peer netip.AddrPort
		err  error
	)
	switch mode {
	case ModeBus:
		peer, err = d.pollAccept()
	default:
		peer, err = d.probeAccept()
	}
	if err != nil {
		return netip.AddrPort{}, err
	}

	s.RemoteIP = peer.Addr()
	s.RemotePort = peer.Port()
	d.logger.Info("connection accepted", "socket", i, "peer", peer)

	return peer, nil
}

// probeAccept issues the message-read command until the module reports an
// accepted connection between the start and end of message markers.
func (d *Device) probeAccept() (netip.AddrPort, error) {
	for {
		d.metrics.incAcceptPollCount()

		body, err := d.command(cmdMessageRead)
		if err != nil {
			return netip.AddrPort{}, fmt.Errorf("eswifi: accept: %w", err)
		}

		if peer, ok := announcedPeer(body); ok {
			return peer, nil
		}

		d.io.Delay(d.cfg.AcceptPollInterval())
	}
}

// pollAccept reads the channel directly until an unsolicited connection
// announcement arrives. A read that times out means nothing was announced yet.
func (d *Device) pollAccept() (netip.AddrPort, error) {
	for {
		d.metrics.incAcceptPollCount()

		n, err := d.io.Receive(d.scratch, 0, d.cfg.Timeout())
		switch {
		case errors.Is(err, ErrTransportTimeout):
		case err != nil:
			return netip.AddrPort{}, fmt.Errorf("eswifi: accept: %w", err)
		default:
			if peer, ok := parseAccepted(d.scratch[:n]); ok {
				return peer, nil
			}
		}

		d.io.Delay(d.cfg.AcceptPollInterval())
	}
}

// announcedPeer extracts the peer of a message-read reply framed by the
// start and end of message markers.
func announcedPeer(body []byte) (netip.AddrPort, bool) {
	start := bytes.Index(body, startOfMessage)
	if start < 0 {
		return netip.AddrPort{}, false
	}
	msg := body[start+len(startOfMessage):]
	end := bytes.Index(msg, endOfMessage)
	if end < 0 {
		return netip.AddrPort{}, false
	}

	return parseAccepted(msg[:end])
}

// StopServer stops the listener on socket i.
//
// The table entry is freed even when the module rejects the stop.
func (d *Device) StopServer(i int) error {
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
	_, err := d.command(cmdServer, "0")

	return err
}
