package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"visitry/internal/config"
	"visitry/internal/visitors"
)

// Sweep batch sizes. Stale sessions are removed in larger bites than
// daily stats since there are far more of them.
const (
	sessionSweepBatchSize    = 100
	dailyStatsSweepBatchSize = 50
)

// RetentionJob bounds the engine's own storage: it retires stale
// visitor sessions, caps the total session count, and prunes old daily
// aggregates. Each sweep is independently fault-tolerant; a failure in
// one never aborts the others.
type RetentionJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewRetentionJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *RetentionJob {
	return &RetentionJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run performs one maintenance pass: three sweeps, best-effort. Errors
// are logged and swallowed per sweep; Run itself only reports a
// whole-pass failure when every sweep failed to start.
func (j *RetentionJob) Run() error {
	db := j.dbManager.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	if err := j.sweepOldSessions(db); err != nil {
		j.logger.Error("Old-session sweep failed", slog.Any("error", err))
	}
	if err := j.sweepExcessSessions(db); err != nil {
		j.logger.Error("Excess-session sweep failed", slog.Any("error", err))
	}
	if err := j.sweepOldDailyStats(db); err != nil {
		j.logger.Error("Old-daily-stats sweep failed", slog.Any("error", err))
	}

	return nil
}

// sweepOldSessions deletes visitor sessions whose last visit is older
// than the retention window, in bounded batches. A full batch means
// more may remain, so the sweep continues immediately.
func (j *RetentionJob) sweepOldSessions(db *gorm.DB) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -j.cfg.SessionRetentionDays)

	j.logger.Info("Starting cleanup of stale visitor sessions",
		slog.Int("retention_days", j.cfg.SessionRetentionDays),
		slog.Time("cutoff_date", cutoff))

	totalDeleted := int64(0)

	for {
		result := db.Where("last_visit < ?", cutoff).
			Limit(sessionSweepBatchSize).
			Delete(&visitors.VisitorSession{})

		if result.Error != nil {
			return fmt.Errorf("failed to delete stale sessions (deleted so far: %d): %w",
				totalDeleted, result.Error)
		}

		totalDeleted += result.RowsAffected

		if result.RowsAffected < int64(sessionSweepBatchSize) {
			break
		}

		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	if totalDeleted > 0 {
		j.logger.Info("Cleaned up stale visitor sessions",
			slog.Int64("deleted_count", totalDeleted))
	}
	return nil
}

// sweepExcessSessions enforces the total session cap, removing the
// oldest-lastVisit records beyond it.
func (j *RetentionJob) sweepExcessSessions(db *gorm.DB) error {
	var total int64
	if err := db.Model(&visitors.VisitorSession{}).Count(&total).Error; err != nil {
		return fmt.Errorf("failed to count visitor sessions: %w", err)
	}

	excess := total - int64(j.cfg.SessionCap)
	if excess <= 0 {
		return nil
	}

	j.logger.Info("Session cap exceeded, removing oldest sessions",
		slog.Int64("total", total),
		slog.Int("cap", j.cfg.SessionCap),
		slog.Int64("excess", excess))

	var ids []uint
	if err := db.Model(&visitors.VisitorSession{}).
		Order("last_visit ASC").
		Limit(int(excess)).
		Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("failed to select excess sessions: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	result := db.Where("id IN ?", ids).Delete(&visitors.VisitorSession{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete excess sessions: %w", result.Error)
	}

	j.logger.Info("Removed excess visitor sessions",
		slog.Int64("deleted_count", result.RowsAffected))
	return nil
}

// sweepOldDailyStats prunes daily aggregate rows older than the
// daily-stats retention window, in bounded batches.
func (j *RetentionJob) sweepOldDailyStats(db *gorm.DB) error {
	cutoff := time.Now().UTC().
		AddDate(0, 0, -j.cfg.DailyStatsRetentionDays).
		Format(visitors.DateFormat)

	totalDeleted := int64(0)

	for {
		result := db.Where("date < ?", cutoff).
			Limit(dailyStatsSweepBatchSize).
			Delete(&visitors.DailyStat{})

		if result.Error != nil {
			return fmt.Errorf("failed to delete old daily stats (deleted so far: %d): %w",
				totalDeleted, result.Error)
		}

		totalDeleted += result.RowsAffected

		if result.RowsAffected < int64(dailyStatsSweepBatchSize) {
			break
		}

		time.Sleep(100 * time.Millisecond)
	}

	if totalDeleted > 0 {
		j.logger.Info("Cleaned up old daily stats",
			slog.Int64("deleted_count", totalDeleted),
			slog.String("cutoff_date", cutoff))
	}
	return nil
}
