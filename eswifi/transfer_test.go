package eswifi

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openClient starts a TCP client on socket i and clears the command log.
func openClient(t *testing.T, d *Device, f *fakeIO, i int) {
	t.Helper()

	setClient(t, d, i, TCP, "10.0.0.7", 80)
	require.NoError(t, d.StartClientConnection(i))
	f.reset()
}

func bulkReply(parts ...[]byte) []byte {
	out := []byte("\r\n")
	for _, p := range parts {
		out = append(out, p...)
	}

	return out
}

func TestTransfer_Send(t *testing.T) {
	d, f := newTestDevice(t)
	openClient(t, d, f, 1)

	n, err := d.Send(1, []byte("hello"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"P0=1", "S2=900", "S1=5", "S0\rhello"}, f.sent())
	assert.Equal(t, uint64(5), d.GetMetrics().BytesSent.Load())
}

func TestTransfer_SendRejected(t *testing.T) {
	d, f := newTestDevice(t)
	openClient(t, d, f, 1)
	f.on(cmdSendData, errReply("Socket closed"))

	n, err := d.Send(1, []byte("hello"), time.Second)
	require.ErrorIs(t, err, ErrProtocol)
	assert.Zero(t, n)
}

func TestTransfer_SendInvalid(t *testing.T) {
	d, f := newTestDevice(t)

	_, err := d.Send(0, payload(PayloadSize+1), time.Second)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = d.Send(0, nil, time.Second)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = d.Send(0, []byte("x"), DefaultTimeoutOffset)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = d.Send(MaxSockets, []byte("x"), time.Second)
	require.ErrorIs(t, err, ErrInvalidArgument)

	assert.Empty(t, f.sent())
}

func TestTransfer_SendMaxPayload(t *testing.T) {
	d, f := newTestDevice(t)
	data := payload(PayloadSize)

	n, err := d.Send(0, data, time.Second)
	require.NoError(t, err)
	assert.Equal(t, PayloadSize, n)

	sent := f.sent()
	assert.Equal(t, "S0\r"+string(data), sent[len(sent)-1])
}

func TestTransfer_ReceiveShort(t *testing.T) {
	d, f := newTestDevice(t)
	openClient(t, d, f, 1)
	f.on(cmdReadData, bulkReply([]byte("hi"), okTerminator))

	buf := make([]byte, 2)
	n, err := d.Receive(1, buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "hi", string(buf))
	assert.Equal(t, []string{"P0=1", "R1=2", "R2=900", "R0="}, f.sent())
	assert.Zero(t, f.pending())
}

func TestTransfer_ReceiveShortLessThanRequested(t *testing.T) {
	d, f := newTestDevice(t)
	openClient(t, d, f, 0)
	f.on(cmdReadData, bulkReply([]byte("abc"), okTerminator))

	buf := make([]byte, 8)
	n, err := d.Receive(0, buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(buf[:n]))
}

func TestTransfer_ReceiveLong(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		reply     []byte
		want      int
	}{
		{
			name:      "terminator at tail",
			requested: 1000,
			reply:     bulkReply(payload(992), okTerminator),
			want:      992,
		},
		{
			name:      "terminator one before tail",
			requested: 1000,
			reply:     bulkReply(payload(991), okTerminator, []byte{0x15}),
			want:      991,
		},
		{
			name:      "terminator after full buffer",
			requested: 1000,
			reply:     bulkReply(payload(1000), okTerminator),
			want:      1000,
		},
		{
			name:      "odd request filled",
			requested: 1001,
			reply:     bulkReply(payload(1001), okTerminator),
			want:      1001,
		},
		{
			name:      "terminator split across reads",
			requested: 1000,
			reply:     bulkReply(payload(996), okTerminator),
			want:      996,
		},
		{
			name:      "fewer bytes pending",
			requested: 1000,
			reply:     bulkReply(payload(100), okTerminator),
			want:      100,
		},
		{
			name:      "nothing pending",
			requested: 1000,
			reply:     bulkReply(okTerminator),
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, f := newTestDevice(t)
			openClient(t, d, f, 1)
			f.on(cmdReadData, tt.reply)

			buf := make([]byte, tt.requested)
			n, err := d.Receive(1, buf, time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, payload(tt.want), buf[:n])
			assert.Zero(t, f.pending())

			state, _ := d.SocketState(1)
			assert.Equal(t, SocketBusy, state)
		})
	}
}

func TestTransfer_ReceiveErrorReleasesSocket(t *testing.T) {
	d, f := newTestDevice(t)
	openClient(t, d, f, 1)
	f.on(cmdReadData, bulkReply([]byte("\r\nERROR: Socket closed\r\n> ")))

	buf := make([]byte, 4)
	n, err := d.Receive(1, buf, time.Second)
	require.ErrorIs(t, err, ErrProtocol)
	assert.Zero(t, n)
	assert.Zero(t, f.pending(), "error text must be drained")

	state, _ := d.SocketState(1)
	assert.Equal(t, SocketFree, state)
}

func TestTransfer_ReceiveLongGarbageReleasesSocket(t *testing.T) {
	d, f := newTestDevice(t)
	openClient(t, d, f, 2)
	f.on(cmdReadData, bulkReply([]byte(strings.Repeat("z", 1100))))

	n, err := d.Receive(2, make([]byte, 1000), time.Second)
	require.ErrorIs(t, err, ErrTransportIO)
	assert.Zero(t, n)

	state, _ := d.SocketState(2)
	assert.Equal(t, SocketFree, state)
}

func TestTransfer_ReceivePromptTimeout(t *testing.T) {
	d, f := newTestDevice(t)
	openClient(t, d, f, 1)
	f.on(cmdReadData, nil)

	_, err := d.Receive(1, make([]byte, 16), time.Second)
	require.ErrorIs(t, err, ErrTransportTimeout)

	state, _ := d.SocketState(1)
	assert.Equal(t, SocketFree, state)
}

func TestTransfer_ReceiveSelectFailureKeepsSocket(t *testing.T) {
	d, f := newTestDevice(t)
	openClient(t, d, f, 1)
	f.on(cmdSelectSocket, errReply("Invalid socket"))

	_, err := d.Receive(1, make([]byte, 16), time.Second)
	require.ErrorIs(t, err, ErrProtocol)

	state, _ := d.SocketState(1)
	assert.Equal(t, SocketBusy, state)
}

func TestTransfer_ReceiveInvalid(t *testing.T) {
	d, f := newTestDevice(t)

	_, err := d.Receive(0, make([]byte, PayloadSize+1), time.Second)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = d.Receive(0, nil, time.Second)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = d.Receive(0, make([]byte, 4), 50*time.Millisecond)
	require.ErrorIs(t, err, ErrInvalidArgument)

	assert.Empty(t, f.sent())
}
