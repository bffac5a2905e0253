package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "visitry/api/v1"
	"visitry/internal/config"
	"visitry/internal/http"
	"visitry/internal/pkg/geo"
	"visitry/internal/visitors"
)

// publicCORSConfig is the CORS setup shared by all public endpoints;
// tracking requests arrive cross-origin from the tracked pages.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	logger := srv.GetLogger()

	// Rate limiting only in production; in development and test it
	// would interfere with testing.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70/min ≈ 1.2 req/sec handles legitimate tracking traffic while
	// preventing abuse.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Public API config (visit ingestion)
	// Rate limiting + CORS + Sec-Fetch-Site (global middleware handles validation)
	// Global SecFetchSite middleware allows: cross-site, same-site, same-origin
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	var locator visitors.LocationResolver = geo.NewEnricher(cfg, logger)

	// === ROOT ROUTES ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC API ROUTES ===
	srv.Post("/x/api/v1/visits", v1.TrackVisitHandler(locator), publicAPIConfig)
	srv.Options("/x/api/v1/visits", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	srv.Get("/x/api/v1/stats", v1.GetStatsHandler, publicAPIConfig)
	srv.Options("/x/api/v1/stats", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)
}
