package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Transport.Kind != "serial" {
		t.Fatalf("expected serial transport, got %s", cfg.Transport.Kind)
	}
	if cfg.Transport.Baud != 115200 {
		t.Fatalf("expected 115200 baud, got %d", cfg.Transport.Baud)
	}
	if cfg.Flash.Command != "st-flash" {
		t.Fatalf("expected st-flash, got %s", cfg.Flash.Command)
	}
	if cfg.Flash.SettleDelay != 2*time.Second {
		t.Fatalf("expected 2s settle delay, got %s", cfg.Flash.SettleDelay)
	}
	if cfg.Capture.OverallTimeout != 10*time.Second {
		t.Fatalf("expected 10s overall timeout, got %s", cfg.Capture.OverallTimeout)
	}
	if cfg.Database.Path != "hiltest.db" {
		t.Fatalf("expected hiltest.db, got %s", cfg.Database.Path)
	}
	if cfg.Database.RetentionDays != 90 {
		t.Fatalf("expected 90 retention days, got %d", cfg.Database.RetentionDays)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected info log level, got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid defaults", func(t *testing.T) {
		if err := Defaults().Validate(); err != nil {
			t.Fatal(err)
		}
	})

	tests := []struct {
		name   string
		modify func(*Config)
		errSub string
	}{
		{
			name:   "unknown transport kind",
			modify: func(c *Config) { c.Transport.Kind = "carrier-pigeon" },
			errSub: "transport.kind",
		},
		{
			name:   "serial without device",
			modify: func(c *Config) { c.Transport.Device = "" },
			errSub: "transport.device",
		},
		{
			name:   "serial with zero baud",
			modify: func(c *Config) { c.Transport.Baud = 0 },
			errSub: "transport.baud",
		},
		{
			name:   "tcp without target",
			modify: func(c *Config) { c.Transport.Kind = "tcp"; c.Transport.Target = "" },
			errSub: "transport.target",
		},
		{
			name:   "ws with http target",
			modify: func(c *Config) { c.Transport.Kind = "ws"; c.Transport.Target = "http://dut:9000" },
			errSub: "ws://",
		},
		{
			name:   "bad proxy scheme",
			modify: func(c *Config) { c.Transport.ProxyURL = "http://proxy:1080" },
			errSub: "socks5",
		},
		{
			name:   "zero dial timeout",
			modify: func(c *Config) { c.Transport.DialTimeout = 0 },
			errSub: "dial_timeout",
		},
		{
			name:   "negative write rate",
			modify: func(c *Config) { c.Transport.WriteRate = -1 },
			errSub: "write_rate",
		},
		{
			name:   "empty flash command",
			modify: func(c *Config) { c.Flash.Command = "" },
			errSub: "flash.command",
		},
		{
			name:   "non-hex flash address",
			modify: func(c *Config) { c.Flash.Address = "bootloader" },
			errSub: "flash.address",
		},
		{
			name:   "unknown gpio driver",
			modify: func(c *Config) { c.GPIO.Driver = "bitbang" },
			errSub: "gpio.driver",
		},
		{
			name:   "zero overall timeout",
			modify: func(c *Config) { c.Capture.OverallTimeout = 0 },
			errSub: "overall_timeout",
		},
		{
			name:   "zero idle timeout",
			modify: func(c *Config) { c.Capture.IdleTimeout = 0 },
			errSub: "idle_timeout",
		},
		{
			name:   "empty database path",
			modify: func(c *Config) { c.Database.Path = "" },
			errSub: "database.path",
		},
		{
			name:   "invalid log level",
			modify: func(c *Config) { c.Logging.Level = "verbose" },
			errSub: "logging.level",
		},
		{
			name:   "invalid log format",
			modify: func(c *Config) { c.Logging.Format = "xml" },
			errSub: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Fatalf("error %q does not mention %q", err, tt.errSub)
			}
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
transport:
  kind: tcp
  target: dut.lab:9000
  write_rate: 1200
flash:
  settle_delay: 500ms
logging:
  format: json
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport.Kind != "tcp" || cfg.Transport.Target != "dut.lab:9000" {
		t.Fatalf("transport = %+v", cfg.Transport)
	}
	if cfg.Transport.WriteRate != 1200 {
		t.Fatalf("write_rate = %d", cfg.Transport.WriteRate)
	}
	if cfg.Flash.SettleDelay != 500*time.Millisecond {
		t.Fatalf("settle_delay = %s", cfg.Flash.SettleDelay)
	}
	// Untouched sections keep their defaults.
	if cfg.Capture.IdleTimeout != 2*time.Second {
		t.Fatalf("idle_timeout = %s", cfg.Capture.IdleTimeout)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("HILTEST_DEVICE", "/dev/ttyACM3")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "transport:\n  device: ${HILTEST_DEVICE}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport.Device != "/dev/ttyACM3" {
		t.Fatalf("device = %s", cfg.Transport.Device)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport.Kind != "serial" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("transport:\n  kind: smoke-signals\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit path")
	}
}
