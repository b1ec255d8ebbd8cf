package eswifi

import (
	"bytes"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Info is the identity reported by the module.
type Info struct {
	ProductID   string
	FirmwareRev string
	APIRev      string
	StackRev    string
	RTOSRev     string
	CPUClock    int
	ProductName string
}

// Security is the security type of a wireless network.
type Security uint8

const (
	SecurityOpen     Security = 0x00
	SecurityWEP      Security = 0x01
	SecurityWPA      Security = 0x02
	SecurityWPA2     Security = 0x03
	SecurityWPAWPA2  Security = 0x04
	SecurityWPA2TKIP Security = 0x05
	SecurityUnknown  Security = 0xFF
)

// String returns string representation of the security type.
func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "open"
	case SecurityWEP:
		return "wep"
	case SecurityWPA:
		return "wpa"
	case SecurityWPA2:
		return "wpa2"
	case SecurityWPAWPA2:
		return "wpa-wpa2"
	case SecurityWPA2TKIP:
		return "wpa2-tkip"
	default:
		return "unknown"
	}
}

// ParseSecurity maps a security name, as used in configuration files, to a Security.
func ParseSecurity(name string) (Security, bool) {
	for s := SecurityOpen; s <= SecurityWPA2TKIP; s++ {
		if strings.EqualFold(name, s.String()) {
			return s, true
		}
	}

	return SecurityUnknown, false
}

// AccessPoint is an entry of a network scan.
type AccessPoint struct {
	SSID     string
	BSSID    net.HardwareAddr
	RSSI     int
	Security Security
	Channel  int
}

// NetworkSettings is the network configuration reported by the module.
type NetworkSettings struct {
	SSID        string
	Passphrase  string
	Security    Security
	DHCP        bool
	IPv6        bool
	IP          netip.Addr
	Mask        netip.Addr
	Gateway     netip.Addr
	DNS1        netip.Addr
	DNS2        netip.Addr
	JoinRetries int
	AutoConnect int
}

// SystemConfig is the system configuration reported by the module.
type SystemConfig struct {
	Configuration int
	WPSPin        int
	VID           int
	PID           int
	MAC           net.HardwareAddr
	APAddr        netip.Addr
	PowerSave     int
	RadioMode     int
	CurrentBeacon int
	PrevBeacon    int
	ProductName   int
}

// transportSettings is the part of a socket's settings the driver keeps.
type transportSettings struct {
	RemoteIP   netip.Addr
	LocalPort  uint16
	RemotePort uint16
}

func malformed(what string, field []byte) error {
	return fmt.Errorf("%w: %s %q", ErrMalformedReply, what, field)
}

// firstLine returns body up to the first line break.
func firstLine(body []byte) []byte {
	if i := bytes.IndexAny(body, "\r\n"); i >= 0 {
		return body[:i]
	}

	return body
}

func splitFields(body []byte, want int, what string) ([][]byte, error) {
	fields := bytes.Split(firstLine(body), []byte(","))
	if len(fields) < want {
		return nil, fmt.Errorf("%w: %s has %d fields, want %d", ErrMalformedReply, what, len(fields), want)
	}

	return fields, nil
}

func parseInt(field []byte, what string) (int, error) {
	v, err := strconv.Atoi(string(bytes.TrimSpace(field)))
	if err != nil {
		return 0, malformed(what, field)
	}

	return v, nil
}

func parsePort(field []byte, what string) (uint16, error) {
	v, err := strconv.ParseUint(string(bytes.TrimSpace(field)), 10, 16)
	if err != nil {
		return 0, malformed(what, field)
	}

	return uint16(v), nil
}

func parseAddr(field []byte, what string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(string(bytes.TrimSpace(field)))
	if err != nil {
		return netip.Addr{}, malformed(what, field)
	}

	return addr, nil
}

// parseMAC accepts colon separated octets of one or two hex digits.
func parseMAC(field []byte) (net.HardwareAddr, error) {
	parts := bytes.Split(bytes.TrimSpace(field), []byte(":"))
	if len(parts) != 6 {
		return nil, malformed("mac", field)
	}

	mac := make(net.HardwareAddr, 0, 6)
	for _, p := range parts {
		v, err := strconv.ParseUint(string(p), 16, 8)
		if err != nil {
			return nil, malformed("mac", field)
		}
		mac = append(mac, byte(v))
	}

	return mac, nil
}

// parseScanSecurity maps the security text of a scan entry.
func parseScanSecurity(field []byte) Security {
	switch {
	case bytes.Contains(field, []byte("Open")):
		return SecurityOpen
	case bytes.Contains(field, []byte("WEP")):
		return SecurityWEP
	case bytes.Contains(field, []byte("WPA WPA2")):
		return SecurityWPAWPA2
	case bytes.Contains(field, []byte("WPA2 TKIP")):
		return SecurityWPA2TKIP
	case bytes.Contains(field, []byte("WPA2")):
		return SecurityWPA2
	case bytes.Contains(field, []byte("WPA")):
		return SecurityWPA
	default:
		return SecurityUnknown
	}
}

// parseInfo parses "productID,fw,api,stack,rtos,clock,name".
func parseInfo(body []byte) (Info, error) {
	f, err := splitFields(body, 7, "info")
	if err != nil {
		return Info{}, err
	}

	clock, err := parseInt(f[5], "cpu clock")
	if err != nil {
		return Info{}, err
	}

	return Info{
		ProductID:   string(f[0]),
		FirmwareRev: string(f[1]),
		APIRev:      string(f[2]),
		StackRev:    string(f[3]),
		RTOSRev:     string(f[4]),
		CPUClock:    clock,
		ProductName: string(f[6]),
	}, nil
}

// parseAccessPoint parses one scan line:
//
//	#idx,"SSID",MAC,RSSI,rate,type,security,band,channel
func parseAccessPoint(line []byte) (AccessPoint, error) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 || line[0] != '#' {
		return AccessPoint{}, malformed("access point", line)
	}

	// The SSID is quoted and may itself hold commas.
	start := bytes.IndexByte(line, '"')
	if start < 0 {
		return AccessPoint{}, malformed("access point", line)
	}
	end := bytes.Index(line[start+1:], []byte(`",`))
	if end < 0 {
		return AccessPoint{}, malformed("access point", line)
	}
	ssid := line[start+1 : start+1+end]
	rest := bytes.Split(line[start+1+end+2:], []byte(","))
	if len(rest) < 7 {
		return AccessPoint{}, malformed("access point", line)
	}

	mac, err := parseMAC(rest[0])
	if err != nil {
		return AccessPoint{}, err
	}
	rssi, err := parseInt(rest[1], "rssi")
	if err != nil {
		return AccessPoint{}, err
	}
	channel, err := parseInt(rest[6], "channel")
	if err != nil {
		return AccessPoint{}, err
	}

	return AccessPoint{
		SSID:     string(ssid),
		BSSID:    mac,
		RSSI:     rssi,
		Security: parseScanSecurity(rest[4]),
		Channel:  channel,
	}, nil
}

// parseNetworkSettings parses the twelve fields of a network settings reply.
func parseNetworkSettings(body []byte) (NetworkSettings, error) {
	f, err := splitFields(body, 12, "network settings")
	if err != nil {
		return NetworkSettings{}, err
	}

	var ns NetworkSettings
	ns.SSID = string(f[0])
	ns.Passphrase = string(f[1])

	sec, err := parseInt(f[2], "security")
	if err != nil {
		return ns, err
	}
	ns.Security = Security(sec) //nolint:gosec

	dhcp, err := parseInt(f[3], "dhcp")
	if err != nil {
		return ns, err
	}
	ns.DHCP = dhcp != 0

	ipVer, err := parseInt(f[4], "ip version")
	if err != nil {
		return ns, err
	}
	ns.IPv6 = ipVer == 1

	addrs := []*netip.Addr{&ns.IP, &ns.Mask, &ns.Gateway, &ns.DNS1, &ns.DNS2}
	for i, dst := range addrs {
		if *dst, err = parseAddr(f[5+i], "address"); err != nil {
			return ns, err
		}
	}

	if ns.JoinRetries, err = parseInt(f[10], "join retries"); err != nil {
		return ns, err
	}
	if ns.AutoConnect, err = parseInt(f[11], "auto connect"); err != nil {
		return ns, err
	}

	return ns, nil
}

// parseSystemConfig parses the eleven fields of a system configuration reply.
func parseSystemConfig(body []byte) (SystemConfig, error) {
	f, err := splitFields(body, 11, "system config")
	if err != nil {
		return SystemConfig{}, err
	}

	var sc SystemConfig
	ints := []struct {
		dst *int
		idx int
	}{
		{&sc.Configuration, 0},
		{&sc.WPSPin, 1},
		{&sc.VID, 2},
		{&sc.PID, 3},
		{&sc.PowerSave, 6},
		{&sc.RadioMode, 7},
		{&sc.CurrentBeacon, 8},
		{&sc.PrevBeacon, 9},
		{&sc.ProductName, 10},
	}
	for _, it := range ints {
		if *it.dst, err = parseInt(f[it.idx], "system config"); err != nil {
			return sc, err
		}
	}

	if sc.MAC, err = parseMAC(f[4]); err != nil {
		return sc, err
	}
	if sc.APAddr, err = parseAddr(f[5], "ap address"); err != nil {
		return sc, err
	}

	return sc, nil
}

// parseTransportSettings parses "proto,remoteIP,localPort,hostIP,remotePort,...".
func parseTransportSettings(body []byte) (transportSettings, error) {
	f, err := splitFields(body, 5, "transport settings")
	if err != nil {
		return transportSettings{}, err
	}

	var ts transportSettings
	if ts.RemoteIP, err = parseAddr(f[1], "remote address"); err != nil {
		return ts, err
	}
	if ts.LocalPort, err = parsePort(f[2], "local port"); err != nil {
		return ts, err
	}
	if ts.RemotePort, err = parsePort(f[4], "remote port"); err != nil {
		return ts, err
	}

	return ts, nil
}

var acceptedMarker = []byte("Accepted ")

// parseAccepted finds "Accepted <ip>:<port>" in a reply.
func parseAccepted(body []byte) (netip.AddrPort, bool) {
	i := bytes.Index(body, acceptedMarker)
	if i < 0 {
		return netip.AddrPort{}, false
	}

	peer := firstLine(body[i+len(acceptedMarker):])
	addr, err := netip.ParseAddrPort(string(bytes.TrimSpace(peer)))
	if err != nil {
		return netip.AddrPort{}, false
	}

	return addr, true
}
