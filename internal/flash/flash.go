// Package flash programs firmware onto the target microcontroller by
// invoking an external flashing tool (st-flash by default) as a subprocess.
// The tool is opaque: success is inferred from its exit code and output
// markers only.
package flash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Flasher runs `Command write <image> <Address>`.
type Flasher struct {
	Command string
	Address string
	Timeout time.Duration
	Logger  *slog.Logger
}

func New(command, address string, timeout time.Duration, logger *slog.Logger) *Flasher {
	if command == "" {
		command = "st-flash"
	}
	if address == "" {
		address = "0x08000000"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Flasher{Command: command, Address: address, Timeout: timeout, Logger: logger}
}

// Flash writes the firmware image and returns nil on success. On failure the
// error carries the tool's full output; it is also logged, since flashing
// diagnostics are the only window into what went wrong on the probe.
func (f *Flasher) Flash(ctx context.Context, imagePath string) error {
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("flash: firmware image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.Command, "write", imagePath, f.Address)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.Logger.Info("flashing firmware", "command", f.Command, "image", imagePath, "address", f.Address)
	err := cmd.Run()
	out := strings.TrimSpace(stdout.String() + "\n" + stderr.String())

	if err != nil {
		f.Logger.Error("flash tool failed", "error", err, "output", out)
		return fmt.Errorf("flash: %s failed: %w\n%s", f.Command, err, out)
	}

	// st-flash reports progress on stderr even on success; an explicit
	// verify marker, or a clean exit without an error marker, both count.
	lower := strings.ToLower(out)
	if strings.Contains(lower, "verify success") ||
		strings.Contains(lower, "flash written and verified successfully") ||
		!strings.Contains(lower, "error") {
		f.Logger.Info("firmware flashed", "image", imagePath)
		return nil
	}

	f.Logger.Error("flash tool exited cleanly but reported an error", "output", out)
	return fmt.Errorf("flash: %s reported an error despite exit 0:\n%s", f.Command, out)
}
