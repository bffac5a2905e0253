package visitors

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RecordPageView atomically increments the global and daily page-view
// counters, creating either row if absent. It runs on every page load,
// before dedup classification, regardless of uniqueness outcome.
func RecordPageView(tx *gorm.DB, date string, now time.Time) error {
	query := `
		INSERT INTO global_stats (key, unique_visitors, page_views, last_visit, last_update, created_at)
		VALUES (?, 0, 1, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			page_views = global_stats.page_views + 1,
			last_visit = ?,
			last_update = ?
	`
	if err := tx.Exec(query, GlobalStatKey, now, now, now, now, now).Error; err != nil {
		return fmt.Errorf("failed to record global page view: %w", err)
	}

	query = `
		INSERT INTO daily_stats (date, unique_visitors, page_views, last_visit, last_update, created_at)
		VALUES (?, 0, 1, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			page_views = daily_stats.page_views + 1,
			last_visit = ?,
			last_update = ?
	`
	if err := tx.Exec(query, date, now, now, now, now, now).Error; err != nil {
		return fmt.Errorf("failed to record daily page view: %w", err)
	}

	return nil
}

// RecordUniqueVisitor atomically increments the global and daily
// unique-visitor counters and refreshes the visit timestamps. It runs
// only after a successful new-session insert.
func RecordUniqueVisitor(tx *gorm.DB, date string, now time.Time) error {
	query := `
		INSERT INTO global_stats (key, unique_visitors, page_views, last_visit, last_update, created_at)
		VALUES (?, 1, 0, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			unique_visitors = global_stats.unique_visitors + 1,
			last_visit = ?,
			last_update = ?
	`
	if err := tx.Exec(query, GlobalStatKey, now, now, now, now, now).Error; err != nil {
		return fmt.Errorf("failed to record global unique visitor: %w", err)
	}

	query = `
		INSERT INTO daily_stats (date, unique_visitors, page_views, last_visit, last_update, created_at)
		VALUES (?, 1, 0, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			unique_visitors = daily_stats.unique_visitors + 1,
			last_visit = ?,
			last_update = ?
	`
	if err := tx.Exec(query, date, now, now, now, now, now).Error; err != nil {
		return fmt.Errorf("failed to record daily unique visitor: %w", err)
	}

	return nil
}

// GetGlobalStat loads the singleton counter row. Returns a zero-valued
// record when no visit has been tracked yet.
func GetGlobalStat(db *gorm.DB) (GlobalStat, error) {
	var stat GlobalStat
	err := db.Where("key = ?", GlobalStatKey).Limit(1).Find(&stat).Error
	return stat, err
}

// GetDailyStat loads the counter row for the given ISO date. Returns a
// zero-valued record when the day has no events.
func GetDailyStat(db *gorm.DB, date string) (DailyStat, error) {
	var stat DailyStat
	err := db.Where("date = ?", date).Limit(1).Find(&stat).Error
	return stat, err
}
