package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/embedlab/hiltest/internal/config"
	"github.com/embedlab/hiltest/internal/gpio"
	"github.com/embedlab/hiltest/internal/runner"
	"github.com/embedlab/hiltest/internal/storage"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file")
	firmware := flag.String("firmware", "", "firmware image to flash before the test")
	actions := flag.String("actions", "", "stimulus action sequence (JSON)")
	expected := flag.String("expected", "", "expected response document (JSON)")
	skipFlash := flag.Bool("skip-flash", false, "run against already-programmed hardware")
	transportKind := flag.String("transport", "", "override transport kind (serial, tcp, ws, loopback)")
	history := flag.Int("history", 0, "print the last n recorded runs and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("hiltest %s\n", version)
		return 0
	}

	// Bad configuration is a recoverable setup problem, not an internal error.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return runner.ExitFail
	}
	if *transportKind != "" {
		cfg.Transport.Kind = *transportKind
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return runner.ExitFail
		}
	}

	logger := setupLogger(cfg.Logging)

	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return runner.ExitError
	}
	defer store.Close()

	if *history > 0 {
		return printHistory(store, *history)
	}

	logger.Info("starting hiltest", "version", version, "transport", cfg.Transport.Kind)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info("received signal, aborting run", "signal", sig)
		// Cancelling the context closes the transport mid-capture.
		cancel()
	}()

	driver, err := openDriver(cfg, logger)
	if err != nil {
		logger.Error("failed to open gpio driver", "error", err)
		return runner.ExitError
	}
	defer driver.Close()

	r := runner.New(cfg, store, driver, logger)
	r.SkipFlash = *skipFlash

	code, err := r.Run(ctx, *firmware, *actions, *expected)
	if err != nil {
		logger.Error("run failed", "error", err)
	}
	return code
}

func openDriver(cfg *config.Config, logger *slog.Logger) (gpio.Driver, error) {
	switch cfg.GPIO.Driver {
	case "sysfs":
		return gpio.NewSysfs(cfg.GPIO.SysfsRoot, logger), nil
	default:
		return gpio.NewMock(logger), nil
	}
}

func printHistory(store storage.Store, n int) int {
	runs, err := store.ListRuns(context.Background(), n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return runner.ExitError
	}
	for _, r := range runs {
		name := r.TestName
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s  %-7s  %-20s  %s", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Verdict, name, r.ID)
		if r.Message != "" {
			fmt.Printf("  %s", r.Message)
		}
		fmt.Println()
	}
	return 0
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "terminal":
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:   level,
			NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
		})
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
