package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSON(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Info("module ready", "product", "ISM43362")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "module ready", rec["msg"])
	assert.Equal(t, "ISM43362", rec["product"])
	assert.Contains(t, rec, "ts")
}

func TestSlogLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, WarnLevel, false)
	assert.Equal(t, WarnLevel, l.Level())

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())

	child := l.With("socket", 1)
	assert.Equal(t, DebugLevel, child.Level())

	l.SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, child.Level(), "child shares the parent level")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		ok    bool
	}{
		{"debug", DebugLevel, true},
		{"info", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"fatal", FatalLevel, true},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.name)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSetLogger(t *testing.T) {
	orig := GetLogger()
	t.Cleanup(func() { SetLogger(orig) })

	m := NewMockLogger()
	m.On("Info", "hello", []any{"k", "v"}).Once()

	SetLogger(m)
	SetLogger(nil)
	Info("hello", "k", "v")

	m.AssertExpectations(t)
}
