// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"visitry/internal/config"
	"visitry/internal/database"
	"visitry/internal/jobs"
)

// Application wraps cartridge.Application with visitry-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager // Visitry-specific DB manager with migration methods
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	// Create logger
	logger := cartridge.NewLogger(cfg, nil)

	// Initialize database manager (visitry-specific with migration methods)
	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize the maintenance scheduler
	scheduler, err := jobs.NewScheduler(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	// Tracking requests arrive cross-origin from the tracked pages, so
	// the Sec-Fetch-Site check must accept cross-site browser fetches.
	serverConfig := cartridge.DefaultServerConfig()
	serverConfig.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	// Create the cartridge application using NewApplication
	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      serverConfig,
		RouteMountFunc:    MountAppRoutes,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
	}, nil
}
