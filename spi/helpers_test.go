package spi

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-eswifi/logger"
)

// fakeModule models the module side of the bus: an outbound byte queue
// clocked out word by word and a ready line that is high while the queue
// holds data or the module listens for a command.
type fakeModule struct {
	mu sync.Mutex

	out       []byte
	in        []uint16
	listening bool
	stuck     bool // ready line held high forever

	// respond, when set, answers every command written to the module.
	respond func(cmd string) []byte
	cmd     []byte

	// bootPrompt is queued when the reset line is released.
	bootPrompt []byte

	selected bool
	selects  int
	resets   []bool
	wakeup   []bool
	txErr    error
	closed   bool
}

func (m *fakeModule) Tx16(w uint16) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.txErr != nil {
		return 0, m.txErr
	}
	if !m.selected {
		return 0, errors.New("bus not selected")
	}
	m.in = append(m.in, w)

	if m.respond != nil && m.listening {
		m.cmd = append(m.cmd, byte(w), byte(w>>8))
		if byte(w) == '\r' || byte(w>>8) == '\r' {
			cmd := string(bytes.TrimRight(m.cmd, "\r\n"))
			m.cmd = m.cmd[:0]
			m.out = append(m.out, m.respond(cmd)...)
			m.listening = false
		}

		return 0, nil
	}
	defer func() {
		if m.respond != nil && len(m.out) == 0 {
			m.listening = true
		}
	}()

	switch len(m.out) {
	case 0:
		return 0, nil
	case 1:
		r := uint16(m.out[0]) | uint16(stuffByte)<<8
		m.out = m.out[:0]

		return r, nil
	default:
		r := uint16(m.out[0]) | uint16(m.out[1])<<8
		m.out = m.out[2:]

		return r, nil
	}
}

func (m *fakeModule) Close() error {
	m.closed = true
	return nil
}

func (m *fakeModule) ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stuck || (m.listening && !m.selected) || len(m.out) > 0
}

func (m *fakeModule) queue(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.out = append(m.out, b...)
}

func (m *fakeModule) remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.out)
}

// written returns the words written to the module as bytes in stream order.
func (m *fakeModule) written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := make([]byte, 0, 2*len(m.in))
	for _, w := range m.in {
		b = append(b, byte(w), byte(w>>8))
	}

	return b
}

type selectPin struct{ m *fakeModule }

func (p selectPin) Out(high bool) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()

	if !high && !p.m.selected {
		p.m.selects++
	}
	p.m.selected = !high

	return nil
}

type resetPin struct{ m *fakeModule }

func (p resetPin) Out(high bool) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()

	p.m.resets = append(p.m.resets, high)
	if high {
		p.m.out = append(p.m.out[:0], p.m.bootPrompt...)
	}

	return nil
}

type wakeupPin struct{ m *fakeModule }

func (p wakeupPin) Out(high bool) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()

	p.m.wakeup = append(p.m.wakeup, high)

	return nil
}

type readyPin struct{ m *fakeModule }

func (p readyPin) Read() bool { return p.m.ready() }

func (m *fakeModule) isSelected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.selected
}

func newTestTransport(t *testing.T) (*Transport, *fakeModule) {
	t.Helper()

	m := &fakeModule{}
	tr, err := NewTransport(m, Pins{
		Select: selectPin{m},
		Reset:  resetPin{m},
		Wakeup: wakeupPin{m},
		Ready:  readyPin{m},
	},
		WithSettleDelay(0),
		WithResetPulse(0),
		WithResetSettle(0),
		WithStuffSettle(0),
		WithInitTimeout(20*time.Millisecond),
		WithLogger(logger.NewSlogWriter(&bytes.Buffer{}, logger.ErrorLevel, false)),
	)
	require.NoError(t, err)

	return tr, m
}
