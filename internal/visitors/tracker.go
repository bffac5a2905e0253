package visitors

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"visitry/internal/pkg/botfilter"
)

// LocationResolver resolves a best-effort approximate location for a
// client address. Implementations never return an error; failures
// degrade to an empty Location.
type LocationResolver interface {
	Lookup(ctx context.Context, ipAddress string) Location
}

// TrackInput is a single page load as reported by the client.
type TrackInput struct {
	Signals   Signals
	SessionID string
	ClientIP  string
	// WithinTab is true for reloads and SPA route changes inside an
	// already-tracked tab. The signal is recorded on the result for
	// callers but does not gate any counting decision.
	WithinTab bool
}

// TrackResult reports what one Track call did.
type TrackResult struct {
	Bot         bool
	Unique      bool
	Fingerprint string
	Alias       string
	WithinTab   bool
}

// Tracker is the per-page-load entry point: bot filtering, unconditional
// page-view counting, dedup resolution, and asynchronous location
// enrichment. Tracking is fully best-effort: no store failure ever
// propagates to the caller.
type Tracker struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	locator   LocationResolver
}

// NewTracker creates a Tracker. locator may be nil, in which case new
// sessions are stored without location data.
func NewTracker(dbManager cartridge.DBManager, logger *slog.Logger, locator LocationResolver) *Tracker {
	return &Tracker{
		dbManager: dbManager,
		logger:    logger,
		locator:   locator,
	}
}

// Track processes one page load. Page views are recorded before dedup
// classification runs; only unique visitors additionally increment the
// unique-visitor counters. This ordering is a hard invariant.
func (t *Tracker) Track(input TrackInput) TrackResult {
	result := TrackResult{WithinTab: input.WithinTab}

	if botfilter.IsBot(input.Signals.UserAgent) {
		t.logger.Debug("Skipping bot page load",
			slog.String("user_agent", input.Signals.UserAgent))
		result.Bot = true
		return result
	}

	now := time.Now().UTC()
	date := now.Format(DateFormat)
	db := t.dbManager.GetConnection()

	result.Fingerprint = Fingerprint(input.Signals)
	result.Alias = VisitorAlias(result.Fingerprint)

	err := sqlite.PerformWrite(t.logger, db, func(tx *gorm.DB) error {
		return RecordPageView(tx, date, now)
	})
	if err != nil {
		t.logger.Error("Failed to record page view", slog.Any("error", err))
	}

	unique, sessionRowID := t.resolve(input, result.Fingerprint, now)
	result.Unique = unique
	if !unique {
		return result
	}

	err = sqlite.PerformWrite(t.logger, db, func(tx *gorm.DB) error {
		return RecordUniqueVisitor(tx, date, now)
	})
	if err != nil {
		t.logger.Error("Failed to record unique visitor", slog.Any("error", err))
	}

	if t.locator != nil && sessionRowID != 0 {
		go t.Enrich(sessionRowID, input.ClientIP)
	}

	return result
}

// resolve classifies the page load: false for a known fingerprint or a
// known session token, true for a first-ever visit. The fingerprint is
// the primary identity key; the session token is a fallback only. Any
// store error fails closed toward under-counting.
func (t *Tracker) resolve(input TrackInput, fingerprint string, now time.Time) (bool, uint) {
	db := t.dbManager.GetConnection()

	var session VisitorSession
	if err := db.Where("fingerprint = ?", fingerprint).Limit(1).Find(&session).Error; err != nil {
		t.logger.Error("Visitor lookup by fingerprint failed", slog.Any("error", err))
		return false, 0
	}
	if session.ID != 0 {
		t.touchSession(session.ID, input.SessionID, true, now)
		return false, session.ID
	}

	// The fingerprint can drift across visits from the same device, e.g.
	// after a canvas-rendering change. The session token covers that gap.
	if input.SessionID != "" {
		if err := db.Where("session_id = ?", input.SessionID).Limit(1).Find(&session).Error; err != nil {
			t.logger.Error("Visitor lookup by session failed", slog.Any("error", err))
			return false, 0
		}
		if session.ID != 0 {
			t.touchSession(session.ID, input.SessionID, false, now)
			return false, session.ID
		}
	}

	newSession := VisitorSession{
		Fingerprint: fingerprint,
		ClientHash:  ClientHash(input.Signals),
		SessionID:   input.SessionID,
		FirstVisit:  now,
		LastVisit:   now,
		PageViews:   1,
		UserAgent:   input.Signals.UserAgent,
		IsBot:       false,
	}

	var inserted bool
	err := sqlite.PerformWrite(t.logger, db, func(tx *gorm.DB) error {
		// Insert-if-absent keyed by fingerprint: two concurrent loads
		// from the same device cannot both create a session.
		result := tx.Exec(`
			INSERT INTO visitor_sessions
				(fingerprint, client_hash, session_id, first_visit, last_visit, page_views, user_agent, is_bot, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, 0, ?, ?)
			ON CONFLICT (fingerprint) DO NOTHING
		`, newSession.Fingerprint, newSession.ClientHash, newSession.SessionID,
			newSession.FirstVisit, newSession.LastVisit, newSession.UserAgent, now, now)
		if result.Error != nil {
			return result.Error
		}
		inserted = result.RowsAffected > 0
		return tx.Where("fingerprint = ?", newSession.Fingerprint).
			Select("id").Limit(1).Find(&newSession).Error
	})
	if err != nil {
		t.logger.Error("Failed to insert visitor session", slog.Any("error", err))
		return false, 0
	}

	if !inserted {
		// Lost the race to a concurrent tab; attribute this load to the
		// winner's row and treat it as returning.
		if newSession.ID != 0 {
			t.touchSession(newSession.ID, input.SessionID, true, now)
		}
		return false, newSession.ID
	}

	return true, newSession.ID
}

// touchSession updates lastVisit and pageViews on a returning visitor's
// record. The session token is re-associated only on a fingerprint
// match, never the other way around.
func (t *Tracker) touchSession(id uint, sessionID string, associateToken bool, now time.Time) {
	db := t.dbManager.GetConnection()

	updates := map[string]interface{}{
		"last_visit": now,
		"page_views": gorm.Expr("page_views + 1"),
	}
	if associateToken && sessionID != "" {
		updates["session_id"] = sessionID
	}

	err := sqlite.PerformWrite(t.logger, db, func(tx *gorm.DB) error {
		return tx.Model(&VisitorSession{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		t.logger.Error("Failed to update visitor session",
			slog.Uint64("id", uint64(id)),
			slog.Any("error", err))
	}
}

// Enrich resolves an approximate location for a stored session and
// attaches it. Best-effort: lookup failures leave the location empty and
// are not retried.
func (t *Tracker) Enrich(sessionRowID uint, ipAddress string) {
	if t.locator == nil {
		return
	}

	location := t.locator.Lookup(context.Background(), ipAddress)
	if location.Country == "" && location.City == "" {
		return
	}

	db := t.dbManager.GetConnection()
	err := sqlite.PerformWrite(t.logger, db, func(tx *gorm.DB) error {
		return tx.Model(&VisitorSession{}).Where("id = ?", sessionRowID).Updates(map[string]interface{}{
			"country": location.Country,
			"city":    location.City,
		}).Error
	})
	if err != nil {
		t.logger.Error("Failed to attach visitor location",
			slog.Uint64("id", uint64(sessionRowID)),
			slog.Any("error", err))
	}
}
