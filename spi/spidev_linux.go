//go:build linux

package spi

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// spidev ioctl requests, from linux/spi/spidev.h.
const (
	spiIocWrMode        = 0x40016b01
	spiIocWrBitsPerWord = 0x40016b03
	spiIocWrMaxSpeedHz  = 0x40046b04
	spiIocMessage1      = 0x40206b00
)

// SPI modes.
const (
	Mode0 uint8 = 0x00
	Mode1 uint8 = 0x01
	Mode2 uint8 = 0x02
	Mode3 uint8 = 0x03
	// NoCS keeps the controller from driving its own chip select, so the
	// Select pin owns the line.
	NoCS uint8 = 0x40
)

// DefaultSpeedHz is the bus clock of the module.
const DefaultSpeedHz = 10_000_000

// spiIocTransfer mirrors struct spi_ioc_transfer.
type spiIocTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	pad         uint8
}

// Dev is a spidev character device exchanging 16-bit words, high byte first.
type Dev struct {
	f       *os.File
	speedHz uint32
	tx      [2]byte
	rx      [2]byte
}

var _ Conn = (*Dev)(nil)

// OpenDev opens a spidev device such as /dev/spidev0.0.
func OpenDev(path string, mode uint8, speedHz uint32) (*Dev, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("spi: open %s: %w", path, err)
	}

	d := &Dev{f: f, speedHz: speedHz}
	bits := uint8(8)
	if err := d.ioctl(spiIocWrMode, unsafe.Pointer(&mode)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("spi: set mode: %w", err)
	}
	if err := d.ioctl(spiIocWrBitsPerWord, unsafe.Pointer(&bits)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("spi: set bits per word: %w", err)
	}
	if err := d.ioctl(spiIocWrMaxSpeedHz, unsafe.Pointer(&speedHz)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("spi: set speed: %w", err)
	}

	return d, nil
}

func (d *Dev) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}

	return nil
}

// Tx16 sends w most significant byte first and returns the word clocked in.
func (d *Dev) Tx16(w uint16) (uint16, error) {
	d.tx[0], d.tx[1] = byte(w>>8), byte(w)

	tr := spiIocTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&d.tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&d.rx[0]))),
		length:      2,
		speedHz:     d.speedHz,
		bitsPerWord: 8,
	}
	err := d.ioctl(spiIocMessage1, unsafe.Pointer(&tr))
	runtime.KeepAlive(d)
	if err != nil {
		return 0, err
	}

	return uint16(d.rx[0])<<8 | uint16(d.rx[1]), nil
}

// Close closes the device.
func (d *Dev) Close() error {
	return d.f.Close()
}
