package eswifi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		resp      string
		requested int
		want      Status
	}{
		{"ok terminator at tail", "\r\n1,2,3\r\nOK\r\n> ", 100, StatusOK},
		{"bare terminator", "\r\nOK\r\n> ", 8, StatusOK},
		{"terminator not at tail", "\r\nOK\r\n> trailing", 100, StatusTransportError},
		{"embedded terminator with full capacity", "\r\nOK\r\n> 12345678", 16, StatusNeedMore},
		{"error reply", "\r\nERROR: Invalid\r\n> ", 100, StatusError},
		{"error without text", "\r\nERROR", 100, StatusError},
		{"full capacity without marker", "abcdefgh", 8, StatusNeedMore},
		{"short without marker", "abc", 8, StatusTransportError},
		{"empty", "", 8, StatusTransportError},
		{"zero requested", "abc", 0, StatusTransportError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify([]byte(tt.resp), tt.requested))
		})
	}
}

func TestClassify_OKWinsOverError(t *testing.T) {
	resp := []byte("\r\nERROR in payload\r\nOK\r\n> ")
	assert.Equal(t, StatusOK, Classify(resp, 100))
}

func TestTerminatorEnd(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		end  int
		ok   bool
	}{
		{"at tail", "data\r\nOK\r\n> ", 4, true},
		{"one before tail", "data\r\nOK\r\n> \x15", 4, true},
		{"two before tail", "data\r\nOK\r\n> \x15\x15", 0, false},
		{"terminator only", "\r\nOK\r\n> ", 0, true},
		{"missing", "data", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, ok := terminatorEnd([]byte(tt.buf))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestReplyBodyAndErrorDetail(t *testing.T) {
	assert.Equal(t, "192.168.1.10", string(replyBody(okReply("192.168.1.10"))))
	assert.Empty(t, replyBody(okReply("")))

	assert.Equal(t, "Invalid socket", errorDetail(errReply("Invalid socket")))
	assert.Empty(t, errorDetail([]byte("\r\nOK\r\n> ")))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "need-more", StatusNeedMore.String())
	assert.Equal(t, "unknown(9)", Status(9).String())

	assert.NoError(t, StatusOK.Err())
	assert.ErrorIs(t, StatusError.Err(), ErrProtocol)
	assert.ErrorIs(t, StatusNeedMore.Err(), ErrProtocolIncomplete)
	assert.ErrorIs(t, StatusTransportError.Err(), ErrTransportIO)
}

func TestAppendCommand(t *testing.T) {
	assert.Equal(t, "I?\r", string(appendCommand(nil, cmdGetInfo)))
	assert.Equal(t, "P0=2\r", string(appendCommand(nil, cmdSelectSocket, "2")))
	assert.Equal(t, "PK=1,3000\r", string(appendCommand(nil, cmdKeepAlive, "1", "3000")))
	assert.Equal(t, "R0=\r", string(appendCommand(nil, cmdReadData, "")))

	assert.Equal(t, "P3", commandToken([]byte("P3=10.0.0.1\r")))
	assert.Equal(t, "S0", commandToken([]byte("S0\rpayload=x")))
}
