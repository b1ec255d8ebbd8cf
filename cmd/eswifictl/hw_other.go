//go:build !linux

package main

import (
	"errors"

	"github.com/arloliu/go-eswifi/eswifi"
)

func openHardware(*Config) (*eswifi.Device, error) {
	return nil, errors.New("spidev access requires linux")
}
