//go:build linux

package main

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-eswifi/eswifi"
	"github.com/arloliu/go-eswifi/logger"
	"github.com/arloliu/go-eswifi/spi"
)

// openHardware opens the spidev device and GPIO lines named by c and
// initializes the module.
func openHardware(c *Config) (*eswifi.Device, error) {
	conn, err := spi.OpenDev(c.Device, spi.Mode0|spi.NoCS, c.SpeedHz)
	if err != nil {
		return nil, err
	}

	var opened []*spi.SysfsPin
	fail := func(err error) (*eswifi.Device, error) {
		errs := []error{err, conn.Close()}
		for _, p := range opened {
			errs = append(errs, p.Close())
		}

		return nil, errors.Join(errs...)
	}

	openOut := func(num int) (*spi.SysfsPin, error) {
		p, err := spi.OpenOutput(num)
		if err == nil {
			opened = append(opened, p)
		}

		return p, err
	}

	var pins spi.Pins
	if pins.Select, err = openOut(c.Pins.Select); err != nil {
		return fail(err)
	}
	if pins.Reset, err = openOut(c.Pins.Reset); err != nil {
		return fail(err)
	}
	if c.Pins.Wakeup >= 0 {
		if pins.Wakeup, err = openOut(c.Pins.Wakeup); err != nil {
			return fail(err)
		}
	}
	ready, err := spi.OpenInput(c.Pins.Ready)
	if err != nil {
		return fail(err)
	}
	opened = append(opened, ready)
	pins.Ready = ready

	log := logger.GetLogger()
	tr, err := spi.NewTransport(conn, pins, spi.WithLogger(log))
	if err != nil {
		return fail(err)
	}

	d, err := eswifi.NewDevice(tr, eswifi.WithTimeout(c.Timeout), eswifi.WithLogger(log))
	if err != nil {
		return fail(err)
	}
	if err := d.Init(); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to init module: %w", err), d.Close())
	}

	return d, nil
}
