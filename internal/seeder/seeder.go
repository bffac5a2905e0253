// Package seeder populates the database with synthetic visit traffic
// for development and demos.
package seeder

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"

	"visitry/internal/pkg/sessiontoken"
	"visitry/internal/visitors"
)

// Seeder drives synthetic page loads through the regular tracking path
// so counters, sessions, and dedup behave exactly as in production.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	VisitCount int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, visitCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		VisitCount: visitCount,
	}
}

// deviceProfile is one synthetic browser identity. Every visit from
// the same profile reports the same signal tuple.
type deviceProfile struct {
	signals visitors.Signals
	token   string
}

var profileUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
}

var profileLanguages = []string{"en-US", "en-GB", "de-DE", "fr-FR", "es-ES", "pt-BR", "ja-JP"}

var profilePlatforms = []string{"Win32", "MacIntel", "Linux x86_64", "iPhone", "Linux armv81"}

var profileScreens = [][2]int{
	{1920, 1080}, {2560, 1440}, {1440, 900}, {1366, 768}, {390, 844}, {412, 915},
}

func randomProfile() deviceProfile {
	screen := profileScreens[rand.IntN(len(profileScreens))]
	return deviceProfile{
		token: sessiontoken.Mint(time.Now().UTC()),
		signals: visitors.Signals{
			UserAgent:      profileUserAgents[rand.IntN(len(profileUserAgents))],
			Language:       profileLanguages[rand.IntN(len(profileLanguages))],
			ScreenWidth:    screen[0],
			ScreenHeight:   screen[1],
			ColorDepth:     24,
			TimezoneOffset: []int{-480, -300, -60, 0, 60, 120, 540}[rand.IntN(7)],
			Platform:       profilePlatforms[rand.IntN(len(profilePlatforms))],
			CookiesEnabled: rand.IntN(10) > 0,
			LocalStorage:   true,
			SessionStorage: true,
			CanvasHash:     fmt.Sprintf("%08x", rand.Uint32()),
		},
	}
}

// Run generates VisitCount synthetic page loads across a pool of device
// profiles. Roughly a third of loads come from returning devices, which
// exercises the dedup path as well as the counters.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()

	profileCount := s.VisitCount / 3
	if profileCount < 1 {
		profileCount = 1
	}

	s.Logger.Info("Seeding synthetic visits...",
		slog.Int("visit_count", s.VisitCount),
		slog.Int("device_profiles", profileCount))

	profiles := make([]deviceProfile, profileCount)
	for i := range profiles {
		profiles[i] = randomProfile()
	}

	tracker := visitors.NewTracker(s.DBManager, s.Logger, nil)

	uniques := 0
	for i := 0; i < s.VisitCount; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		profile := &profiles[rand.IntN(len(profiles))]

		result := tracker.Track(visitors.TrackInput{
			Signals:   profile.signals,
			SessionID: profile.token,
			WithinTab: rand.IntN(4) == 0,
		})
		if result.Unique {
			uniques++
		}
	}

	s.Logger.Info("Seeding completed",
		slog.Int("visits", s.VisitCount),
		slog.Int("unique_visitors", uniques),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
