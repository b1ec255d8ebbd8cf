package eswifi

import (
	"bytes"
	"strconv"
	"time"
)

// Buffer sizes and table limits.
const (
	// DataSize is the size of the shared command buffer.
	DataSize = 1400
	// PayloadSize is the largest payload accepted by one socket send or receive.
	PayloadSize = 1200
	// MaxSockets is the number of sockets supported by the module.
	MaxSockets = 4
	// MaxDetectedAP caps the number of access points kept from a scan.
	MaxDetectedAP = 10
	// MaxSSIDLength is the longest SSID accepted by the join command.
	MaxSSIDLength = 32
	// MaxPassphraseLength is the longest passphrase accepted by the join command.
	MaxPassphraseLength = 63
	// MaxProductNameLength is the longest name accepted by SetProductName.
	MaxProductNameLength = 32
)

var (
	// okTerminator ends every successful reply.
	okTerminator = []byte("\r\nOK\r\n> ")
	// errorMarker prefixes a module error reply.
	errorMarker = []byte("\r\nERROR")
	// replyPrompt precedes bulk payload data.
	replyPrompt = []byte("\r\n")
)

// TerminatorLength is the length of the OK terminator.
const TerminatorLength = 8

// Command tokens. The text after the token is the parameter, separated by '='.
const (
	cmdGetInfo         = "I?"
	cmdScan            = "F0"
	cmdSetSSID         = "C1"
	cmdSetPassphrase   = "C2"
	cmdSetSecurity     = "C3"
	cmdJoin            = "C0"
	cmdDisconnect      = "CD"
	cmdNetSettings     = "C?"
	cmdGetRSSI         = "CR"
	cmdDNSLookup       = "D0"
	cmdPingTarget      = "T1"
	cmdPingRepeat      = "T2"
	cmdPingDelay       = "T3"
	cmdPing            = "T0"
	cmdSelectSocket    = "P0"
	cmdSetProtocol     = "P1"
	cmdSetLocalPort    = "P2"
	cmdSetRemoteHost   = "P3"
	cmdSetRemotePort   = "P4"
	cmdServer          = "P5"
	cmdClient          = "P6"
	cmdKeepAlive       = "PK"
	cmdTransportInfo   = "P?"
	cmdSendData        = "S0"
	cmdSendLength      = "S1"
	cmdSendTimeout     = "S2"
	cmdReadData        = "R0"
	cmdReadLength      = "R1"
	cmdReadTimeout     = "R2"
	cmdMessageRead     = "MR"
	cmdSystemConfig    = "Z?"
	cmdSaveSettings    = "Z1"
	cmdFactoryDefaults = "Z0"
	cmdSetMAC          = "Z4"
	cmdGetMAC          = "Z5"
	cmdSetProductName  = "ZN"
	cmdResetModule     = "ZR"
)

// serverKeepAlive enables TCP keep-alive with a 3s probe interval.
const serverKeepAlive = "1,3000"

// appendCommand appends "token[=p1[,p2...]]\r" to dst.
//
// A single empty parameter yields "token=\r".
func appendCommand(dst []byte, token string, params ...string) []byte {
	dst = append(dst, token...)
	for i, p := range params {
		if i == 0 {
			dst = append(dst, '=')
		} else {
			dst = append(dst, ',')
		}
		dst = append(dst, p...)
	}

	return append(dst, '\r')
}

// commandToken returns the token of an encoded command.
func commandToken(cmd []byte) string {
	if i := bytes.IndexAny(cmd, "=\r"); i >= 0 {
		return string(cmd[:i])
	}

	return string(cmd)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// millis formats d as integer milliseconds.
func millis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
