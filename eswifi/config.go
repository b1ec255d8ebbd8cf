package eswifi

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-eswifi/logger"
)

// Default timing values.
const (
	DefaultTimeout            = 30 * time.Second       // Command and data timeout
	DefaultJoinTimeout        = 10 * time.Second       // Access point join timeout
	DefaultTimeoutOffset      = 100 * time.Millisecond // Host margin subtracted from device-side timeouts
	DefaultAcceptPollInterval = 1 * time.Second        // Delay between accept probes
)

// Range limits.
const (
	MinTimeout = 200 * time.Millisecond
	MaxTimeout = 10 * time.Minute

	MaxTimeoutOffset = 5 * time.Second

	MinAcceptPollInterval = 10 * time.Millisecond
	MaxAcceptPollInterval = time.Minute
)

// Config holds the configuration of a Device.
type Config struct {
	timeout            time.Duration
	joinTimeout        time.Duration
	timeoutOffset      time.Duration
	acceptPollInterval time.Duration
	maxSockets         int

	logger logger.Logger
}

// NewConfig creates a device configuration.
//
// opts are functional options applied in order; see With* functions.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		timeout:            DefaultTimeout,
		joinTimeout:        DefaultJoinTimeout,
		timeoutOffset:      DefaultTimeoutOffset,
		acceptPollInterval: DefaultAcceptPollInterval,
		maxSockets:         MaxSockets,
		logger:             logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.timeout <= cfg.timeoutOffset || cfg.joinTimeout <= cfg.timeoutOffset {
		return nil, fmt.Errorf("eswifi: timeouts must exceed the timeout offset %v", cfg.timeoutOffset)
	}

	return cfg, nil
}

// --- Getters ---

// Timeout returns the default command and data timeout.
func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

// JoinTimeout returns the timeout used while joining an access point.
func (cfg *Config) JoinTimeout() time.Duration { return cfg.joinTimeout }

// TimeoutOffset returns the margin subtracted from timeouts handed to the module.
func (cfg *Config) TimeoutOffset() time.Duration { return cfg.timeoutOffset }

// AcceptPollInterval returns the delay between accept probes.
func (cfg *Config) AcceptPollInterval() time.Duration { return cfg.acceptPollInterval }

// MaxSockets returns the size of the socket table.
func (cfg *Config) MaxSockets() int { return cfg.maxSockets }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Device.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithTimeout sets the default command and data timeout.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("eswifi: timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.timeout = d

		return nil
	})
}

// WithJoinTimeout sets the timeout used while joining an access point.
func WithJoinTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("eswifi: join timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.joinTimeout = d

		return nil
	})
}

// WithTimeoutOffset sets the margin subtracted from timeouts handed to the
// module, so the host gives up after the module does.
func WithTimeoutOffset(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxTimeoutOffset {
			return fmt.Errorf("eswifi: timeout offset %v out of range [0, %v]", d, MaxTimeoutOffset)
		}
		cfg.timeoutOffset = d

		return nil
	})
}

// WithAcceptPollInterval sets the delay between accept probes of a listening socket.
func WithAcceptPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinAcceptPollInterval || d > MaxAcceptPollInterval {
			return fmt.Errorf("eswifi: accept poll interval %v out of range [%v, %v]",
				d, MinAcceptPollInterval, MaxAcceptPollInterval)
		}
		cfg.acceptPollInterval = d

		return nil
	})
}

// WithMaxSockets limits the socket table. Must be in [1, MaxSockets].
func WithMaxSockets(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxSockets {
			return fmt.Errorf("eswifi: max sockets %d out of range [1, %d]", n, MaxSockets)
		}
		cfg.maxSockets = n

		return nil
	})
}

// WithLogger sets the logger of the device.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("eswifi: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
