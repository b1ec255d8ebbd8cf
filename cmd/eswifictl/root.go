package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-eswifi/eswifi"
	"github.com/arloliu/go-eswifi/logger"
)

var (
	// Global flags
	cfgFile    string
	devicePath string
	logLevel   string
	ssid       string

	// Shared state set during PersistentPreRun
	cfg *Config

	// openDevice opens and initializes the module; tests replace it.
	openDevice = openHardware
)

var rootCmd = &cobra.Command{
	Use:   "eswifictl",
	Short: "Drive an ES-WiFi module attached over SPI",
	Long: `eswifictl talks to an Inventek ES-WiFi module on an SPI bus. It scans
and joins wireless networks, shows the module state and opens TCP sockets
through the module.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = DefaultConfigPath()
		}

		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		if devicePath != "" {
			cfg.Device = devicePath
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if ssid != "" {
			cfg.SSID = ssid
		}

		level, ok := logger.ParseLevel(cfg.LogLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", cfg.LogLevel)
		}
		logger.SetLevel(level)

		return nil
	},
}

// withDevice opens the module, runs fn and closes the module.
func withDevice(fn func(d *eswifi.Device) error) error {
	d, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("close device", "error", err)
		}
	}()

	return fn(d)
}

// join connects to the configured network when an SSID is set.
func join(d *eswifi.Device) error {
	if cfg.SSID == "" {
		return nil
	}

	sec, err := cfg.SecurityType()
	if err != nil {
		return err
	}
	if err := d.Connect(cfg.SSID, cfg.Passphrase, sec); err != nil {
		return fmt.Errorf("failed to join %q: %w", cfg.SSID, err)
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.eswifi/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "spidev device path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&ssid, "ssid", "", "network to join before running the command")
}
