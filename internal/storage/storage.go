// Package storage persists test run history in SQLite so past verdicts
// survive across invocations of a short-lived CLI.
package storage

import (
	"context"
	"time"
)

// Run is one harness invocation: firmware flashed, sequence driven, capture
// verified. Message carries the top-level failure summary when the verdict
// is FAILED.
type Run struct {
	ID         string
	TestName   string
	Firmware   string
	Transport  string
	Verdict    string
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
	Checks     []RunCheck
}

// RunCheck is one report entry, in report order.
type RunCheck struct {
	Seq         int
	Description string
	Pass        bool
	Info        bool
}

// Store defines the run history interface.
type Store interface {
	InsertRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	PurgeOldRuns(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
