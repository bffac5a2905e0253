package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"visitry/internal/pkg/async"
	"visitry/internal/visitors"
)

type statsCounters struct {
	UniqueVisitors int        `json:"uniqueVisitors"`
	PageViews      int        `json:"pageViews"`
	LastVisit      *time.Time `json:"lastVisit,omitempty"`
}

// GetStatsHandler returns the global and current-day visitor counters.
// Both rows are fetched concurrently.
func GetStatsHandler(ctx *cartridge.Context) error {
	db := ctx.DBManager.GetConnection()
	today := time.Now().UTC().Format(visitors.DateFormat)

	tasks := []async.Task{
		{
			Name: "global",
			Execute: func() (interface{}, error) {
				return visitors.GetGlobalStat(db)
			},
		},
		{
			Name: "today",
			Execute: func() (interface{}, error) {
				return visitors.GetDailyStat(db, today)
			},
		},
	}

	pool := async.NewPool(2)
	results := pool.Execute(ctx.Ctx.UserContext(), tasks)

	for _, result := range results {
		if result.Err != nil {
			ctx.Logger.Error("Failed to load stats",
				slog.String("counter", result.Name),
				slog.Any("error", result.Err))
			return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load stats",
				"code":  "STATS_LOAD_ERROR",
			})
		}
	}

	global, ok := results["global"].Data.(visitors.GlobalStat)
	if !ok {
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stats",
			"code":  "STATS_LOAD_ERROR",
		})
	}
	daily, ok := results["today"].Data.(visitors.DailyStat)
	if !ok {
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stats",
			"code":  "STATS_LOAD_ERROR",
		})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"global":      countersFor(global.UniqueVisitors, global.PageViews, global.LastVisit),
		"today":       countersFor(daily.UniqueVisitors, daily.PageViews, daily.LastVisit),
		"date":        today,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func countersFor(unique, pageViews int, lastVisit time.Time) statsCounters {
	counters := statsCounters{
		UniqueVisitors: unique,
		PageViews:      pageViews,
	}
	if !lastVisit.IsZero() {
		counters.LastVisit = &lastVisit
	}
	return counters
}
