package eswifi

import (
	"bytes"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"
)

// ListAccessPoints scans for wireless networks.
//
// A scan reply usually exceeds the command buffer, so it is read in
// continuation chunks until the module ends it. At most MaxDetectedAP
// entries are kept; the rest of the reply is consumed and discarded.
func (d *Device) ListAccessPoints() ([]AccessPoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return nil, err
	}

	timeout := d.cfg.Timeout()
	status, n, err := d.exchange(timeout, cmdScan)

	aps := make([]AccessPoint, 0, MaxDetectedAP)
	var partial []byte
	for {
		switch status {
		case StatusOK, StatusNeedMore:
		case StatusError:
			return nil, fmt.Errorf("eswifi: %s: %w: %s", cmdScan, ErrProtocol, errorDetail(d.scratch[:n]))
		default:
			return nil, fmt.Errorf("eswifi: %s: %w", cmdScan, err)
		}

		chunk := d.scratch[:n]
		if status == StatusOK {
			chunk = bytes.TrimSuffix(chunk, okTerminator)
		}
		data := append(partial, chunk...)

		lines := bytes.Split(data, []byte("\n"))
		if status == StatusNeedMore {
			// The last line may continue in the next chunk.
			partial = append([]byte(nil), lines[len(lines)-1]...)
			lines = lines[:len(lines)-1]
		}

		for _, line := range lines {
			line = bytes.TrimRight(line, "\r")
			if len(aps) >= MaxDetectedAP || len(line) == 0 || line[0] != '#' {
				continue
			}
			ap, perr := parseAccessPoint(line)
			if perr != nil {
				d.logger.Debug("skip scan entry", "error", perr)
				continue
			}
			aps = append(aps, ap)
		}

		if status == StatusOK {
			return aps, nil
		}

		status, n, err = d.receiveReply(d.scratch, timeout)
	}
}

// Connect joins a wireless network.
//
// The join command runs with the join timeout.
func (d *Device) Connect(ssid, passphrase string, sec Security) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}

	if ssid == "" || len(ssid) > MaxSSIDLength {
		return fmt.Errorf("%w: ssid length %d out of range [1, %d]", ErrInvalidArgument, len(ssid), MaxSSIDLength)
	}
	if len(passphrase) > MaxPassphraseLength {
		return fmt.Errorf("%w: passphrase longer than %d", ErrInvalidArgument, MaxPassphraseLength)
	}
	if sec > SecurityWPA2TKIP {
		return fmt.Errorf("%w: security %v", ErrInvalidArgument, sec)
	}

	if _, err := d.command(cmdSetSSID, ssid); err != nil {
		return err
	}
	if _, err := d.command(cmdSetPassphrase, passphrase); err != nil {
		return err
	}
	if _, err := d.command(cmdSetSecurity, itoa(int(sec))); err != nil {
		return err
	}
	if _, err := d.commandTimeout(d.cfg.JoinTimeout(), cmdJoin); err != nil {
		return err
	}

	d.logger.Info("joined network", "ssid", ssid, "security", sec)

	return nil
}

// Disconnect leaves the current wireless network.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}

	_, err := d.command(cmdDisconnect)

	return err
}

// NetworkSettings returns the network configuration of the module.
func (d *Device) NetworkSettings() (NetworkSettings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return NetworkSettings{}, err
	}

	body, err := d.command(cmdNetSettings)
	if err != nil {
		return NetworkSettings{}, err
	}

	return parseNetworkSettings(body)
}

// MACAddress returns the MAC address of the module.
func (d *Device) MACAddress() (net.HardwareAddr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return nil, err
	}

	body, err := d.command(cmdGetMAC)
	if err != nil {
		return nil, err
	}

	return parseMAC(firstLine(body))
}

// SetMACAddress changes the MAC address of the module and saves the settings.
func (d *Device) SetMACAddress(mac net.HardwareAddr) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	if len(mac) != 6 {
		return fmt.Errorf("%w: mac %v", ErrInvalidArgument, mac)
	}

	if _, err := d.command(cmdSetMAC, strings.ToUpper(mac.String())); err != nil {
		return err
	}
	_, err := d.command(cmdSaveSettings)

	return err
}

// RSSI returns the signal strength of the associated access point in dBm.
func (d *Device) RSSI() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return 0, err
	}

	body, err := d.command(cmdGetRSSI)
	if err != nil {
		return 0, err
	}

	return parseInt(firstLine(body), "rssi")
}

// LookupHost resolves host through the module resolver.
func (d *Device) LookupHost(host string) (netip.Addr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return netip.Addr{}, err
	}
	if host == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty host", ErrInvalidArgument)
	}

	body, err := d.command(cmdDNSLookup, host)
	if err != nil {
		return netip.Addr{}, err
	}

	return parseAddr(firstLine(body), "resolved address")
}

// Ping sends count echo requests to addr, interval apart.
func (d *Device) Ping(addr netip.Addr, count int, interval time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	if !addr.Is4() || count <= 0 || interval <= 0 {
		return fmt.Errorf("%w: ping %v count=%d interval=%v", ErrInvalidArgument, addr, count, interval)
	}

	if _, err := d.command(cmdPingTarget, addr.String()); err != nil {
		return err
	}
	if _, err := d.command(cmdPingRepeat, itoa(count)); err != nil {
		return err
	}
	if _, err := d.command(cmdPingDelay, millis(interval)); err != nil {
		return err
	}
	_, err := d.command(cmdPing)

	return err
}

// SystemConfig returns the system configuration of the module.
func (d *Device) SystemConfig() (SystemConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return SystemConfig{}, err
	}

	body, err := d.command(cmdSystemConfig)
	if err != nil {
		return SystemConfig{}, err
	}

	return parseSystemConfig(body)
}

// ResetModule restarts the module firmware.
func (d *Device) ResetModule() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}

	_, err := d.command(cmdResetModule)

	return err
}

// ResetToFactoryDefault restores the factory settings of the module.
func (d *Device) ResetToFactoryDefault() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}

	_, err := d.command(cmdFactoryDefaults)

	return err
}

// SetProductName changes the product name and saves the settings.
func (d *Device) SetProductName(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	if name == "" || len(name) > MaxProductNameLength {
		return fmt.Errorf("%w: product name length %d", ErrInvalidArgument, len(name))
	}

	if _, err := d.command(cmdSetProductName, name); err != nil {
		return err
	}
	if _, err := d.command(cmdSaveSettings); err != nil {
		return err
	}
	d.info.ProductName = name

	return nil
}
