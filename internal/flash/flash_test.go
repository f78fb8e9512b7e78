package flash

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeTool drops an executable shell script that plays the flashing tool.
func writeTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-st-flash")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firmware.bin")
	if err := os.WriteFile(path, []byte{0xde, 0xad, 0xbe, 0xef}, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFlashSuccessWithVerifyMarker(t *testing.T) {
	tool := writeTool(t, `echo "Flash written and verified successfully" >&2`)
	f := New(tool, "0x08000000", 10*time.Second, testLogger())

	if err := f.Flash(context.Background(), writeImage(t)); err != nil {
		t.Fatal(err)
	}
}

func TestFlashSuccessCleanExit(t *testing.T) {
	tool := writeTool(t, `echo "writing 4 bytes" >&2`)
	f := New(tool, "0x08000000", 10*time.Second, testLogger())

	if err := f.Flash(context.Background(), writeImage(t)); err != nil {
		t.Fatal(err)
	}
}

func TestFlashNonZeroExitSurfacesOutput(t *testing.T) {
	tool := writeTool(t, `echo "Error: target not found" >&2; exit 1`)
	f := New(tool, "0x08000000", 10*time.Second, testLogger())

	err := f.Flash(context.Background(), writeImage(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "target not found") {
		t.Fatalf("tool output not surfaced: %v", err)
	}
}

func TestFlashErrorMarkerDespiteExitZero(t *testing.T) {
	tool := writeTool(t, `echo "ERROR: verification mismatch" >&2; exit 0`)
	f := New(tool, "0x08000000", 10*time.Second, testLogger())

	if err := f.Flash(context.Background(), writeImage(t)); err == nil {
		t.Fatal("expected error for error marker with exit 0")
	}
}

func TestFlashMissingImage(t *testing.T) {
	tool := writeTool(t, `exit 0`)
	f := New(tool, "0x08000000", 10*time.Second, testLogger())

	err := f.Flash(context.Background(), filepath.Join(t.TempDir(), "nope.bin"))
	if err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestFlashArgumentOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args.txt")
	tool := writeTool(t, `echo "$@" > `+out)
	f := New(tool, "0x08004000", 10*time.Second, testLogger())
	image := writeImage(t)

	if err := f.Flash(context.Background(), image); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "write " + image + " 0x08004000"
	if strings.TrimSpace(string(got)) != want {
		t.Fatalf("args = %q, want %q", strings.TrimSpace(string(got)), want)
	}
}

func TestDefaults(t *testing.T) {
	f := New("", "", 0, testLogger())
	if f.Command != "st-flash" || f.Address != "0x08000000" || f.Timeout <= 0 {
		t.Fatalf("defaults: %+v", f)
	}
}
