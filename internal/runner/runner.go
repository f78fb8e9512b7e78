// Package runner orchestrates one end-to-end test invocation: flash the
// firmware, drive the stimulus sequence, capture the response, verify it
// and record the outcome.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/embedlab/hiltest/internal/capture"
	"github.com/embedlab/hiltest/internal/config"
	"github.com/embedlab/hiltest/internal/expect"
	"github.com/embedlab/hiltest/internal/flash"
	"github.com/embedlab/hiltest/internal/gpio"
	"github.com/embedlab/hiltest/internal/report"
	"github.com/embedlab/hiltest/internal/sequence"
	"github.com/embedlab/hiltest/internal/storage"
	"github.com/embedlab/hiltest/internal/transport"
)

// Exit codes of one run.
const (
	ExitPass  = 0 // verdict PASSED or SKIPPED
	ExitFail  = 1 // verdict FAILED, or a recoverable setup problem
	ExitError = 2 // unexpected internal failure
)

// Runner wires the harness components together. Transport is normally opened
// from the config; setting it directly bypasses Open, which tests use to
// inject a preloaded loopback.
type Runner struct {
	Cfg       *config.Config
	Store     storage.Store
	Flasher   *flash.Flasher
	Driver    gpio.Driver
	Logger    *slog.Logger
	Out       io.Writer
	SkipFlash bool
	Transport transport.Transport
}

func New(cfg *config.Config, store storage.Store, driver gpio.Driver, logger *slog.Logger) *Runner {
	return &Runner{
		Cfg:     cfg,
		Store:   store,
		Flasher: flash.New(cfg.Flash.Command, cfg.Flash.Address, cfg.Flash.Timeout, logger),
		Driver:  driver,
		Logger:  logger,
		Out:     os.Stdout,
	}
}

// Run executes one invocation. Returns the process exit code; the error
// carries detail for non-verdict failures.
func (r *Runner) Run(ctx context.Context, firmware, actionsPath, expectedPath string) (int, error) {
	started := time.Now()

	var seq *sequence.Sequence
	if actionsPath != "" {
		var err error
		seq, err = sequence.Load(actionsPath)
		if err != nil {
			return ExitFail, err
		}
	}

	var doc *expect.Document
	if expectedPath != "" {
		var err error
		doc, err = expect.Load(expectedPath)
		if err != nil {
			return ExitFail, err
		}
	}

	if !r.SkipFlash {
		if firmware == "" {
			return ExitFail, fmt.Errorf("runner: no firmware image given (use -skip-flash to run against already-programmed hardware)")
		}
		if err := r.Flasher.Flash(ctx, firmware); err != nil {
			return ExitFail, err
		}
		if d := r.Cfg.Flash.SettleDelay; d > 0 {
			r.Logger.Debug("waiting for device to settle", "delay", d)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ExitFail, ctx.Err()
			}
		}
	}

	tr := r.Transport
	if tr == nil {
		var err error
		tr, err = transport.Open(ctx, transport.Options{
			Kind:        r.Cfg.Transport.Kind,
			Device:      r.Cfg.Transport.Device,
			Baud:        r.Cfg.Transport.Baud,
			Target:      r.Cfg.Transport.Target,
			ProxyURL:    r.Cfg.Transport.ProxyURL,
			DialTimeout: r.Cfg.Transport.DialTimeout,
			WriteRate:   r.Cfg.Transport.WriteRate,
		}, r.Logger)
		if err != nil {
			return ExitFail, err
		}
	}
	defer tr.Close()

	rep := report.New()

	var seqRes sequence.Result
	if seq != nil && len(seq.Actions) > 0 {
		seqRes = sequence.NewRunner(r.Driver, tr, r.Logger).Run(ctx, seq)
		if seqRes.Partial {
			r.Logger.Warn("stimulus sequence degraded",
				"executed", seqRes.Executed, "skipped", seqRes.Skipped)
			for _, f := range seqRes.Failures {
				rep.AddInfo("stimulus: %s", f)
			}
		}
	}

	mode := capture.ModeLines
	captureCfg := capture.Config{
		Overall: r.Cfg.Capture.OverallTimeout,
		Idle:    r.Cfg.Capture.IdleTimeout,
		Poll:    r.Cfg.Capture.PollInterval,
	}
	if doc != nil {
		mode = doc.Mode()
		captureCfg = doc.CaptureConfig(
			r.Cfg.Capture.OverallTimeout, r.Cfg.Capture.IdleTimeout, r.Cfg.Capture.PollInterval)
	}

	res := capture.Run(ctx, tr, mode, captureCfg, r.Logger)
	expect.Verify(rep, res, doc)

	fmt.Fprintln(r.Out, rep.Render())

	verdict := rep.Verdict()
	r.Logger.Info("run finished", "verdict", verdict.String(), "duration", time.Since(started).Round(time.Millisecond))

	if r.Store != nil {
		if err := r.persist(ctx, rep, seq, firmware, started); err != nil {
			// History is best effort; the verdict already stands.
			r.Logger.Error("failed to record run", "error", err)
		}
		storage.Sweep(ctx, r.Store, r.Cfg.Database.RetentionDays, r.Logger)
	}

	if verdict == report.Fail {
		return ExitFail, nil
	}
	return ExitPass, nil
}

func (r *Runner) persist(ctx context.Context, rep *report.Report, seq *sequence.Sequence, firmware string, started time.Time) error {
	run := &storage.Run{
		ID:         uuid.NewString(),
		Firmware:   firmware,
		Transport:  r.Cfg.Transport.Kind,
		Verdict:    rep.Verdict().String(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if seq != nil {
		run.TestName = seq.TestName
	}
	for _, c := range rep.Checks() {
		run.Checks = append(run.Checks, storage.RunCheck{
			Description: c.Description,
			Pass:        c.Pass,
			Info:        c.Info,
		})
		if !c.Pass && !c.Info && run.Message == "" {
			run.Message = c.Description
		}
	}
	return r.Store.InsertRun(ctx, run)
}
