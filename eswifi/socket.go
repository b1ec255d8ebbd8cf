package eswifi

import (
	"fmt"
	"net/netip"
)

// NoSocket is returned by Device.FreeSocket when every socket is busy.
const NoSocket = -1

// SocketType is the transport protocol of a socket.
type SocketType uint8

const (
	TCP SocketType = iota
	UDP
	UDPLite
	TCPSSL
	MQTT
)

// String returns string representation of the socket type.
func (t SocketType) String() string {
	switch t {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	case UDPLite:
		return "udp-lite"
	case TCPSSL:
		return "tcp-ssl"
	case MQTT:
		return "mqtt"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t SocketType) valid() bool { return t <= MQTT }

func (t SocketType) isDatagram() bool { return t == UDP || t == UDPLite }

// SocketState is the local view of a socket's lifecycle.
type SocketState uint8

const (
	SocketFree SocketState = iota
	SocketBusy
)

// String returns string representation of the socket state.
func (s SocketState) String() string {
	if s == SocketBusy {
		return "busy"
	}

	return "free"
}

// TransportMode selects how a listening socket waits for an incoming connection.
type TransportMode uint8

const (
	// ModeStream probes the module with the message-read command until a
	// connection announcement shows up.
	ModeStream TransportMode = iota
	// ModeBus polls the channel for an unsolicited connection announcement.
	ModeBus
)

// String returns string representation of the transport mode.
func (m TransportMode) String() string {
	if m == ModeBus {
		return "bus"
	}

	return "stream"
}

// ConnectionParam describes the endpoint of a socket.
type ConnectionParam struct {
	Type       SocketType
	RemoteIP   netip.Addr
	RemotePort uint16
	LocalPort  uint16
}

// Socket is an entry of the socket table.
type Socket struct {
	ConnectionParam

	Number int
	State  SocketState
}

// socketTable is the fixed-size socket table. It is guarded by the device lock.
type socketTable struct {
	entries []Socket
}

func newSocketTable(n int) *socketTable {
	t := &socketTable{entries: make([]Socket, n)}
	for i := range t.entries {
		t.entries[i].Number = i
	}

	return t
}

func (t *socketTable) validate(i int) error {
	if i < 0 || i >= len(t.entries) {
		return fmt.Errorf("%w: socket %d out of range [0, %d)", ErrInvalidArgument, i, len(t.entries))
	}

	return nil
}

// free returns the lowest free index or NoSocket.
func (t *socketTable) free() int {
	for i := range t.entries {
		if t.entries[i].State == SocketFree {
			return i
		}
	}

	return NoSocket
}

func (t *socketTable) get(i int) *Socket {
	return &t.entries[i]
}

// setState updates the state of socket i and reports whether it changed.
func (t *socketTable) setState(i int, state SocketState) bool {
	s := &t.entries[i]
	if s.State == state {
		return false
	}
	s.State = state

	return true
}
