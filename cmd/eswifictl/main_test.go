package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-eswifi/eswifi"
	"github.com/arloliu/go-eswifi/logger"
)

// scriptIO answers every command with a canned reply keyed by its token.
type scriptIO struct {
	mu       sync.Mutex
	replies  map[string]string
	stream   []byte
	commands []string
}

func (s *scriptIO) Init() error { return nil }

func (s *scriptIO) Send(p []byte, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := strings.TrimSuffix(string(p), "\r")
	token, _, _ := strings.Cut(cmd, "=")
	s.commands = append(s.commands, token)
	body, ok := s.replies[token]
	if !ok {
		body = ""
	}
	s.stream = append(s.stream, "\r\n"+body+"\r\nOK\r\n> "...)

	return len(p), nil
}

func (s *scriptIO) Receive(p []byte, limit int, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit == 0 {
		n := copy(p, s.stream)
		s.stream = nil

		return n, nil
	}
	n := min(limit, len(s.stream), len(p))
	copy(p, s.stream[:n])
	s.stream = s.stream[n:]

	return n, nil
}

func (s *scriptIO) Delay(time.Duration) {}

func (s *scriptIO) Close() error { return nil }

func useScriptDevice(t *testing.T, replies map[string]string) *scriptIO {
	t.Helper()

	s := &scriptIO{replies: replies}
	prev, prevCfg := openDevice, cfg
	openDevice = func(c *Config) (*eswifi.Device, error) {
		d, err := eswifi.NewDevice(s, eswifi.WithLogger(logger.NewSlogWriter(&bytes.Buffer{}, logger.ErrorLevel, false)))
		if err != nil {
			return nil, err
		}

		return d, d.Init()
	}
	t.Cleanup(func() { openDevice, cfg = prev, prevCfg })

	return s
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		cfgFile, devicePath, logLevel, ssid = "", "", "", ""
	})
	err := rootCmd.Execute()

	return out.String(), err
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/spidev0.0", cfg.Device)
	assert.Equal(t, uint32(10_000_000), cfg.SpeedHz)
	assert.Equal(t, -1, cfg.Pins.Wakeup)
	assert.Equal(t, eswifi.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)

	sec, err := cfg.SecurityType()
	require.NoError(t, err)
	assert.Equal(t, eswifi.SecurityWPA2, sec)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
device: /dev/spidev1.0
speed_hz: 4000000
pins:
  select: 5
  reset: 6
  wakeup: 13
  ready: 19
ssid: lab
passphrase: secret
security: open
timeout: 12s
log_level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/spidev1.0", cfg.Device)
	assert.Equal(t, uint32(4_000_000), cfg.SpeedHz)
	assert.Equal(t, PinConfig{Select: 5, Reset: 6, Wakeup: 13, Ready: 19}, cfg.Pins)
	assert.Equal(t, "lab", cfg.SSID)
	assert.Equal(t, 12*time.Second, cfg.Timeout)

	sec, err := cfg.SecurityType()
	require.NoError(t, err)
	assert.Equal(t, eswifi.SecurityOpen, sec)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "pins: [1, 2"))
	require.Error(t, err)

	cfg, err := LoadConfig(writeConfig(t, "security: rot13"))
	require.NoError(t, err)
	_, err = cfg.SecurityType()
	require.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "--config", writeConfig(t, ""), "version")
	require.NoError(t, err)
	assert.Equal(t, "eswifictl dev\n", out)
}

func TestRootCmd_BadLogLevel(t *testing.T) {
	_, err := runCmd(t, "--config", writeConfig(t, ""), "--log-level", "loud", "version")
	require.ErrorContains(t, err, "unknown log level")
}

func TestScanCmd(t *testing.T) {
	useScriptDevice(t, map[string]string{
		"I?": "ISM43362-M3G-L44-SPI,C3.5.2.5.STM,v3.5.2,v1.4.0.rc1,v8.2.1,120000000,Inventek eS-WiFi",
		"F0": "#001,\"lab\",C4:7F:51:8E:1F:0B,-52,72.2,Infrastructure,WPA2 AES,2.4GHz,6",
	})

	out, err := runCmd(t, "--config", writeConfig(t, ""), "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "SSID")
	assert.Contains(t, out, "lab")
	assert.Contains(t, out, "c4:7f:51:8e:1f:0b")
	assert.Contains(t, out, "-52")
}

func TestJoinCmd(t *testing.T) {
	s := useScriptDevice(t, map[string]string{
		"I?": "ISM43362-M3G-L44-SPI,C3.5.2.5.STM,v3.5.2,v1.4.0.rc1,v8.2.1,120000000,Inventek eS-WiFi",
		"C?": "lab,secret,4,1,0,192.168.1.20,255.255.255.0,192.168.1.1,8.8.8.8,8.8.4.4,5,1",
	})
	path := writeConfig(t, "passphrase: secret\nsecurity: wpa2\n")

	out, err := runCmd(t, "--config", path, "join", "lab")
	require.NoError(t, err)
	assert.Equal(t, "joined lab: ip 192.168.1.20 gateway 192.168.1.1\n", out)
	assert.Equal(t, []string{"I?", "C1", "C2", "C3", "C0", "C?"}, s.commands)
}

func TestJoinCmd_NoSSID(t *testing.T) {
	_, err := runCmd(t, "--config", writeConfig(t, ""), "join")
	require.ErrorContains(t, err, "no ssid")
}
