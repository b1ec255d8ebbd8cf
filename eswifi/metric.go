package eswifi

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// DeviceMetrics contains atomic metrics for a Device.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type DeviceMetrics struct {
	// CommandCount indicates the number of commands issued.
	CommandCount atomic.Uint64
	// CommandErrCount indicates the number of commands that did not end with OK.
	CommandErrCount atomic.Uint64
	// TimeoutCount indicates the number of transport timeouts.
	TimeoutCount atomic.Uint64

	// BytesSent indicates the number of payload bytes sent through sockets.
	BytesSent atomic.Uint64
	// BytesReceived indicates the number of payload bytes received from sockets.
	BytesReceived atomic.Uint64
	// RecoveryFallbackCount indicates how often a receive needed the follow-up read.
	RecoveryFallbackCount atomic.Uint64

	// AcceptPollCount indicates the number of accept probes issued.
	AcceptPollCount atomic.Uint64

	// OpenSockets indicates the number of sockets currently busy.
	OpenSockets atomic.Int32

	commands *xsync.MapOf[string, *atomic.Uint64]
}

func newDeviceMetrics() *DeviceMetrics {
	return &DeviceMetrics{commands: xsync.NewMapOf[string, *atomic.Uint64]()}
}

// CommandCounts returns the number of times each command token was issued.
func (m *DeviceMetrics) CommandCounts() map[string]uint64 {
	counts := make(map[string]uint64, m.commands.Size())
	m.commands.Range(func(token string, c *atomic.Uint64) bool {
		counts[token] = c.Load()
		return true
	})

	return counts
}

func (m *DeviceMetrics) incCommand(token string) {
	m.CommandCount.Add(1)
	c, _ := m.commands.LoadOrCompute(token, func() *atomic.Uint64 { return &atomic.Uint64{} })
	c.Add(1)
}

func (m *DeviceMetrics) incCommandErrCount() {
	m.CommandErrCount.Add(1)
}

func (m *DeviceMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *DeviceMetrics) addBytesSent(n int) {
	m.BytesSent.Add(uint64(n)) //nolint:gosec
}

func (m *DeviceMetrics) addBytesReceived(n int) {
	m.BytesReceived.Add(uint64(n)) //nolint:gosec
}

func (m *DeviceMetrics) incRecoveryFallbackCount() {
	m.RecoveryFallbackCount.Add(1)
}

func (m *DeviceMetrics) incAcceptPollCount() {
	m.AcceptPollCount.Add(1)
}

func (m *DeviceMetrics) incOpenSockets() {
	m.OpenSockets.Add(1)
}

func (m *DeviceMetrics) decOpenSockets() {
	m.OpenSockets.Add(-1)
}
