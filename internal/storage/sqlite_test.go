package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "hiltest.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(started time.Time) *Run {
	return &Run{
		ID:         uuid.NewString(),
		TestName:   "boot smoke",
		Firmware:   "firmware.bin",
		Transport:  "serial",
		Verdict:    "PASSED",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Checks: []RunCheck{
			{Description: "exact_line 'OK'", Pass: true},
			{Description: "2 received line(s) left unmatched", Pass: true, Info: true},
		},
	}
}

func TestInsertAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun(time.Now())
	if err := s.InsertRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TestName != run.TestName || got.Verdict != run.Verdict {
		t.Fatalf("got %+v", got)
	}
	if len(got.Checks) != 2 {
		t.Fatalf("checks = %d", len(got.Checks))
	}
	if got.Checks[0].Seq != 0 || got.Checks[1].Seq != 1 {
		t.Fatalf("check order: %+v", got.Checks)
	}
	if !got.Checks[1].Info {
		t.Fatal("info flag lost")
	}
	if got.FinishedAt.Sub(got.StartedAt) != 3*time.Second {
		t.Fatalf("timestamps: %v -> %v", got.StartedAt, got.FinishedAt)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetRun(context.Background(), "no-such-id"); err == nil {
		t.Fatal("expected error")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	var ids []string
	for i := 0; i < 3; i++ {
		r := sampleRun(base.Add(time.Duration(i) * time.Minute))
		ids = append(ids, r.ID)
		if err := s.InsertRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := sampleRun(time.Now().AddDate(0, 0, -40))
	fresh := sampleRun(time.Now())
	if err := s.InsertRun(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertRun(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.PurgeOldRuns(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d", deleted)
	}

	// Cascade removes the old run's checks.
	if _, err := s.GetRun(ctx, old.ID); err == nil {
		t.Fatal("purged run still present")
	}
	if _, err := s.GetRun(ctx, fresh.ID); err != nil {
		t.Fatal(err)
	}
}

func TestSweepHonorsRetention(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	old := sampleRun(time.Now().AddDate(0, 0, -40))
	if err := s.InsertRun(ctx, old); err != nil {
		t.Fatal(err)
	}

	// Disabled sweep keeps everything.
	Sweep(ctx, s, 0, logger)
	if _, err := s.GetRun(ctx, old.ID); err != nil {
		t.Fatal("disabled sweep must not delete")
	}

	Sweep(ctx, s, 30, logger)
	if _, err := s.GetRun(ctx, old.ID); err == nil {
		t.Fatal("sweep left an expired run")
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hiltest.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	run := sampleRun(time.Now())
	if err := s.InsertRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Migrations must be idempotent across reopen.
	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if _, err := s2.GetRun(context.Background(), run.ID); err != nil {
		t.Fatal(err)
	}
}
