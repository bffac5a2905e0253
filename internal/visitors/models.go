package visitors

import "time"

// GlobalStatKey is the fixed key of the singleton GlobalStat row.
const GlobalStatKey = "global"

// DateFormat is the key format for daily stats rows.
const DateFormat = "2006-01-02"

// VisitorSession is the per-fingerprint identity record. At most one row
// exists per fingerprint value; the session token is a fallback
// correlation key only.
type VisitorSession struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Fingerprint string `gorm:"uniqueIndex;size:16;not null"`
	ClientHash  string `gorm:"index;size:16;not null"`
	SessionID   string `gorm:"index;size:64;not null"`
	FirstVisit  time.Time `gorm:"not null"`
	LastVisit   time.Time `gorm:"index;not null"`
	PageViews   int       `gorm:"not null;default:1"`
	UserAgent   string    `gorm:"type:text"`
	IsBot       bool      `gorm:"not null;default:false"`
	Country     string
	City        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GlobalStat is the singleton counter record (key = "global"). Counters
// only increase; there is no administrative reset in this engine.
type GlobalStat struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Key            string `gorm:"uniqueIndex;size:16;not null"`
	UniqueVisitors int    `gorm:"not null;default:0"`
	PageViews      int    `gorm:"not null;default:0"`
	LastVisit      time.Time
	LastUpdate     time.Time
	CreatedAt      time.Time
}

// DailyStat holds per-calendar-date counters, keyed by ISO date string.
// Rows are created lazily on the first event of a day and retired by the
// retention maintainer.
type DailyStat struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Date           string `gorm:"uniqueIndex;size:10;not null"`
	UniqueVisitors int    `gorm:"not null;default:0"`
	PageViews      int    `gorm:"not null;default:0"`
	LastVisit      time.Time
	LastUpdate     time.Time
	CreatedAt      time.Time
}

// Location is the best-effort geolocation attached to a new visitor
// session. Either field may be empty.
type Location struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}
