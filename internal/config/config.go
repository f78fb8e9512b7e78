// Package config loads the harness configuration from YAML with
// environment variable expansion and strict validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Flash     FlashConfig     `yaml:"flash"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Capture   CaptureConfig   `yaml:"capture"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TransportConfig struct {
	Kind        string        `yaml:"kind"` // serial, tcp, ws, loopback
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	Target      string        `yaml:"target"`
	ProxyURL    string        `yaml:"proxy_url"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	WriteRate   int           `yaml:"write_rate"` // bytes/sec, 0 disables pacing
}

type FlashConfig struct {
	Command     string        `yaml:"command"`
	Address     string        `yaml:"address"`
	Timeout     time.Duration `yaml:"timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

type GPIOConfig struct {
	Driver    string `yaml:"driver"` // mock or sysfs
	SysfsRoot string `yaml:"sysfs_root"`
}

type CaptureConfig struct {
	OverallTimeout time.Duration `yaml:"overall_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json" or "terminal"
}

func Defaults() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:        "serial",
			Device:      "/dev/ttyUSB0",
			Baud:        115200,
			DialTimeout: 10 * time.Second,
		},
		Flash: FlashConfig{
			Command:     "st-flash",
			Address:     "0x08000000",
			Timeout:     60 * time.Second,
			SettleDelay: 2 * time.Second,
		},
		GPIO: GPIOConfig{
			Driver: "mock",
		},
		Capture: CaptureConfig{
			OverallTimeout: 10 * time.Second,
			IdleTimeout:    2 * time.Second,
			PollInterval:   20 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path:          "hiltest.db",
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. A missing path returns plain defaults
// so the harness runs without a config file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateFlash(); err != nil {
		return err
	}
	if err := c.validateGPIO(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.RetentionDays < 0 {
		return fmt.Errorf("database.retention_days must not be negative")
	}
	if err := validateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	return validateLogFormat(c.Logging.Format)
}

func (c *Config) validateTransport() error {
	switch c.Transport.Kind {
	case "serial":
		if c.Transport.Device == "" {
			return fmt.Errorf("transport.device is required for serial")
		}
		if c.Transport.Baud <= 0 {
			return fmt.Errorf("transport.baud must be positive")
		}
	case "tcp", "ws":
		if c.Transport.Target == "" {
			return fmt.Errorf("transport.target is required for %s", c.Transport.Kind)
		}
		if c.Transport.Kind == "ws" {
			u, err := url.Parse(c.Transport.Target)
			if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
				return fmt.Errorf("transport.target must be a ws:// or wss:// URL")
			}
		}
	case "loopback":
	default:
		return fmt.Errorf("transport.kind must be one of: serial, tcp, ws, loopback")
	}
	if c.Transport.ProxyURL != "" {
		u, err := url.Parse(c.Transport.ProxyURL)
		if err != nil || u.Scheme != "socks5" {
			return fmt.Errorf("transport.proxy_url must be a socks5:// URL")
		}
	}
	if c.Transport.DialTimeout <= 0 {
		return fmt.Errorf("transport.dial_timeout must be positive")
	}
	if c.Transport.WriteRate < 0 {
		return fmt.Errorf("transport.write_rate must not be negative")
	}
	return nil
}

func (c *Config) validateFlash() error {
	if c.Flash.Command == "" {
		return fmt.Errorf("flash.command is required")
	}
	if !strings.HasPrefix(c.Flash.Address, "0x") {
		return fmt.Errorf("flash.address must be a hex address (e.g. 0x08000000)")
	}
	if c.Flash.Timeout <= 0 {
		return fmt.Errorf("flash.timeout must be positive")
	}
	if c.Flash.SettleDelay < 0 {
		return fmt.Errorf("flash.settle_delay must not be negative")
	}
	return nil
}

func (c *Config) validateGPIO() error {
	switch c.GPIO.Driver {
	case "mock", "sysfs":
		return nil
	default:
		return fmt.Errorf("gpio.driver must be one of: mock, sysfs")
	}
}

func (c *Config) validateCapture() error {
	if c.Capture.OverallTimeout <= 0 {
		return fmt.Errorf("capture.overall_timeout must be positive")
	}
	if c.Capture.IdleTimeout <= 0 {
		return fmt.Errorf("capture.idle_timeout must be positive")
	}
	if c.Capture.PollInterval <= 0 {
		return fmt.Errorf("capture.poll_interval must be positive")
	}
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
}

func validateLogFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "json", "terminal":
		return nil
	default:
		return fmt.Errorf("logging.format must be one of: text, json, terminal")
	}
}
