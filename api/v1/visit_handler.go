package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"visitry/internal/config"
	"visitry/internal/pkg/sessiontoken"
	"visitry/internal/visitors"
)

const errInvalidRequest = "Invalid request"

// TrackVisitParams is the request body posted by the tracking snippet
// on every page load.
type TrackVisitParams struct {
	Signals   visitors.Signals `json:"signals"`
	WithinTab bool             `json:"withinTab"`
}

// TrackVisitHandler returns the public tracking endpoint. The locator
// may be nil (location enrichment disabled). Tracking failures never
// surface as errors to the client: the page must render regardless.
func TrackVisitHandler(locator visitors.LocationResolver) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		var params TrackVisitParams
		if err := ctx.Ctx.BodyParser(&params); err != nil {
			ctx.Logger.Debug("Failed to parse visit request", slog.Any("error", err))
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": errInvalidRequest,
				"code":  "INVALID_REQUEST",
			})
		}

		if params.Signals.UserAgent == "" {
			params.Signals.UserAgent = ctx.Get("User-Agent")
		}

		cfg := ctx.Config.(*config.Config)
		now := time.Now().UTC()
		duration := time.Duration(cfg.SessionDurationHours) * time.Hour

		token, minted := sessiontoken.GetOrCreate(
			ctx.Ctx.Cookies(sessiontoken.CookieName), now, duration)
		if minted {
			ctx.Ctx.Cookie(&fiber.Cookie{
				Name:     sessiontoken.CookieName,
				Value:    token,
				Path:     "/",
				Expires:  now.Add(duration),
				SameSite: "Lax",
			})
		}

		tracker := visitors.NewTracker(ctx.DBManager, ctx.Logger, locator)
		result := tracker.Track(visitors.TrackInput{
			Signals:   params.Signals,
			SessionID: token,
			ClientIP:  getClientIP(ctx.Ctx),
			WithinTab: params.WithinTab,
		})

		if result.Bot {
			return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
				"ignored": true,
			})
		}

		return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
			"unique":       result.Unique,
			"visitorAlias": result.Alias,
			"sessionId":    token,
		})
	}
}
