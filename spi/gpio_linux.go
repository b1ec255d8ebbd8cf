//go:build linux

package spi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const sysfsGPIO = "/sys/class/gpio"

// SysfsPin is a GPIO line driven through the sysfs interface.
type SysfsPin struct {
	num   int
	value *os.File
	err   error
}

var (
	_ InputPin  = (*SysfsPin)(nil)
	_ OutputPin = (*SysfsPin)(nil)
)

// OpenInput exports GPIO num as an input.
func OpenInput(num int) (*SysfsPin, error) {
	return openSysfsPin(num, "in")
}

// OpenOutput exports GPIO num as an output driven high.
func OpenOutput(num int) (*SysfsPin, error) {
	return openSysfsPin(num, "high")
}

func openSysfsPin(num int, direction string) (*SysfsPin, error) {
	dir := filepath.Join(sysfsGPIO, "gpio"+strconv.Itoa(num))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(sysfsGPIO, "export"), []byte(strconv.Itoa(num)), 0); err != nil {
			return nil, fmt.Errorf("spi: export gpio %d: %w", num, err)
		}
	}

	// udev may need a moment to hand the new files to us.
	var err error
	for range 10 {
		if err = os.WriteFile(filepath.Join(dir, "direction"), []byte(direction), 0); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("spi: gpio %d direction: %w", num, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "value"), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("spi: open gpio %d: %w", num, err)
	}

	return &SysfsPin{num: num, value: f}, nil
}

// Read returns the line level. A read failure reads as low and is kept
// for Err.
func (p *SysfsPin) Read() bool {
	var buf [1]byte
	if _, err := p.value.ReadAt(buf[:], 0); err != nil {
		p.err = err
		return false
	}

	return buf[0] == '1'
}

// Out drives the line.
func (p *SysfsPin) Out(high bool) error {
	v := []byte("0")
	if high {
		v = []byte("1")
	}
	if _, err := p.value.WriteAt(v, 0); err != nil {
		return fmt.Errorf("spi: write gpio %d: %w", p.num, err)
	}

	return nil
}

// Err returns the last read failure.
func (p *SysfsPin) Err() error {
	return p.err
}

// Close releases the value file.
func (p *SysfsPin) Close() error {
	return p.value.Close()
}
