package eswifi

import (
	"bytes"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-eswifi/logger"
)

const testInfoReply = "ISM43362-M3G-L44-SPI,C3.5.2.5.STM,v3.5.2,v1.4.0.rc1,v8.2.1,120000000,Inventek eS-WiFi"

// fakeIO is a scripted module. Every Send is recorded and the responder
// appends the reply to a byte stream that Receive hands out.
type fakeIO struct {
	mu sync.Mutex

	commands []string
	stream   []byte
	replies  map[string][]byte
	seqs     map[string][][]byte
	delays   []time.Duration
	onDelay  func()

	initErr error
	sendErr error
	closed  bool
}

func newFakeIO() *fakeIO {
	f := &fakeIO{
		replies: make(map[string][]byte),
		seqs:    make(map[string][][]byte),
	}
	f.on(cmdGetInfo, okReply(testInfoReply))

	return f
}

func okReply(body string) []byte {
	return []byte("\r\n" + body + "\r\nOK\r\n> ")
}

func errReply(detail string) []byte {
	return []byte("\r\nERROR: " + detail + "\r\n> ")
}

// on sets the reply for a command token. A nil reply sends nothing.
func (f *fakeIO) on(token string, reply []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.replies[token] = reply
}

// onSeq queues replies for a command token; they are used once each, in
// order, before falling back to the reply set by on.
func (f *fakeIO) onSeq(token string, replies ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seqs[token] = append(f.seqs[token], replies...)
}

// push appends raw bytes to the receive stream.
func (f *fakeIO) push(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stream = append(f.stream, b...)
}

func (f *fakeIO) Init() error {
	return f.initErr
}

func (f *fakeIO) Send(p []byte, _ time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return 0, f.sendErr
	}

	cmd := string(p)
	f.commands = append(f.commands, cmd)

	token := commandToken(p)
	reply, ok := f.replies[token]
	if seq := f.seqs[token]; len(seq) > 0 {
		reply, ok = seq[0], true
		f.seqs[token] = seq[1:]
	}
	if !ok {
		reply = okReply("")
	}
	f.stream = append(f.stream, reply...)

	return len(p), nil
}

func (f *fakeIO) Receive(p []byte, limit int, _ time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.stream) == 0 {
		return 0, fmt.Errorf("%w: no data", ErrTransportTimeout)
	}

	n := len(f.stream)
	if limit > 0 && n > limit {
		n = limit
	}
	n = min(n, len(p))
	copy(p, f.stream[:n])
	f.stream = f.stream[n:]

	// A drain consumes the whole message.
	if limit == 0 {
		f.stream = f.stream[:0]
	}

	return n, nil
}

func (f *fakeIO) Delay(d time.Duration) {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	hook := f.onDelay
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func (f *fakeIO) Close() error {
	f.closed = true
	return nil
}

// sent returns the recorded commands with the trailing carriage return stripped.
func (f *fakeIO) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.commands))
	for i, c := range f.commands {
		out[i] = strings.TrimSuffix(c, "\r")
	}

	return out
}

func (f *fakeIO) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = nil
}

func (f *fakeIO) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.stream)
}

// newTestDevice creates an initialized device on a fake link.
func newTestDevice(t *testing.T, opts ...Option) (*Device, *fakeIO) {
	t.Helper()

	f := newFakeIO()
	opts = append([]Option{
		WithLogger(logger.NewSlogWriter(&bytes.Buffer{}, logger.ErrorLevel, false)),
		WithAcceptPollInterval(MinAcceptPollInterval),
	}, opts...)

	d, err := NewDevice(f, opts...)
	require.NoError(t, err)
	require.NoError(t, d.Init())
	f.reset()

	return d, f
}

func setClient(t *testing.T, d *Device, i int, typ SocketType, remote string, port uint16) {
	t.Helper()

	param := ConnectionParam{Type: typ, RemotePort: port}
	if remote != "" {
		param.RemoteIP = netip.MustParseAddr(remote)
	}
	require.NoError(t, d.SetConnectionParam(i, param))
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}

	return b
}
