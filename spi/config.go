package spi

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-eswifi/logger"
)

// Default bus timings of the ES-WiFi module.
const (
	DefaultSettleDelay = 10 * time.Millisecond  // After select and deselect
	DefaultResetPulse  = 10 * time.Millisecond  // Reset line held low
	DefaultResetSettle = 500 * time.Millisecond // Boot time after reset
	DefaultInitTimeout = 100 * time.Millisecond // Bring-up prompt deadline
	DefaultStuffSettle = 1 * time.Millisecond   // Ready line settle after a stuffing byte
)

// MaxDelay bounds every configurable delay.
const MaxDelay = 5 * time.Second

// Config holds the bus timing configuration of a Transport.
type Config struct {
	settleDelay time.Duration
	resetPulse  time.Duration
	resetSettle time.Duration
	initTimeout time.Duration
	stuffSettle time.Duration

	logger logger.Logger
}

// NewConfig creates a transport configuration.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		settleDelay: DefaultSettleDelay,
		resetPulse:  DefaultResetPulse,
		resetSettle: DefaultResetSettle,
		initTimeout: DefaultInitTimeout,
		stuffSettle: DefaultStuffSettle,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// SettleDelay returns the delay after select and deselect.
func (cfg *Config) SettleDelay() time.Duration { return cfg.settleDelay }

// ResetPulse returns how long the reset line is held low.
func (cfg *Config) ResetPulse() time.Duration { return cfg.resetPulse }

// ResetSettle returns the boot time allowed after reset.
func (cfg *Config) ResetSettle() time.Duration { return cfg.resetSettle }

// InitTimeout returns the deadline of the bring-up prompt.
func (cfg *Config) InitTimeout() time.Duration { return cfg.initTimeout }

// StuffSettle returns the wait after a word carrying a stuffing byte.
func (cfg *Config) StuffSettle() time.Duration { return cfg.stuffSettle }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Transport.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

func delayOption(name string, dst func(*Config) *time.Duration, d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxDelay {
			return fmt.Errorf("spi: %s %v out of range [0, %v]", name, d, MaxDelay)
		}
		*dst(cfg) = d

		return nil
	})
}

// WithSettleDelay sets the delay after select and deselect.
func WithSettleDelay(d time.Duration) Option {
	return delayOption("settle delay", func(cfg *Config) *time.Duration { return &cfg.settleDelay }, d)
}

// WithResetPulse sets how long the reset line is held low.
func WithResetPulse(d time.Duration) Option {
	return delayOption("reset pulse", func(cfg *Config) *time.Duration { return &cfg.resetPulse }, d)
}

// WithResetSettle sets the boot time allowed after reset.
func WithResetSettle(d time.Duration) Option {
	return delayOption("reset settle", func(cfg *Config) *time.Duration { return &cfg.resetSettle }, d)
}

// WithInitTimeout sets the deadline of the bring-up prompt. Must be positive.
func WithInitTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 || d > MaxDelay {
			return fmt.Errorf("spi: init timeout %v out of range (0, %v]", d, MaxDelay)
		}
		cfg.initTimeout = d

		return nil
	})
}

// WithStuffSettle sets the wait after a word carrying a stuffing byte.
func WithStuffSettle(d time.Duration) Option {
	return delayOption("stuff settle", func(cfg *Config) *time.Duration { return &cfg.stuffSettle }, d)
}

// WithLogger sets the logger of the transport.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("spi: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
