package storage

import (
	"context"
	"log/slog"
	"time"
)

// Sweep deletes runs older than the retention window. Called once per
// invocation after the run is recorded; a retentionDays of zero disables it.
func Sweep(ctx context.Context, store Store, retentionDays int, logger *slog.Logger) {
	if retentionDays <= 0 {
		return
	}
	before := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := store.PurgeOldRuns(ctx, before)
	if err != nil {
		logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		logger.Info("retention sweep completed", "deleted", deleted, "before", before.Format(time.RFC3339))
	}
}
