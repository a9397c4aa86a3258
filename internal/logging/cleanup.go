package logging

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

// PurgeOlderThan deletes system_logs recorded before now minus retentionDays.
func PurgeOlderThan(ctx context.Context, db *gorm.DB, retentionDays int, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}

// StartCleanup purges expired system_logs once a day until done is closed.
func StartCleanup(db *gorm.DB, retentionDays int, done <-chan struct{}) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := PurgeOlderThan(context.Background(), db, retentionDays, time.Now())
				if err != nil {
					slog.Error("log cleanup failed", "error", err)
				} else if n > 0 {
					slog.Info("log cleanup completed", "deleted", n)
				}
			case <-done:
				return
			}
		}
	}()
}
