// main.go - Admin control tool for Visitry
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visitry/internal"
	"visitry/internal/jobs"
	"visitry/internal/seeder"
	"visitry/internal/visitors"

	"log/slog"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&StatusCommand{},
	&MaintainCommand{},
	&SeedCommand{},
	&HelpCommand{},
}

func main() {
	// Parse global flags
	flag.Parse()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Set up context with cancellation for cleanup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals in a separate goroutine
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel() // Signal the context to cancel
	}()

	// Parse command and arguments
	cmdName, args := parseArgs()

	// Find the requested command
	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	// Try to initialize the app
	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
		log.Println("Proceeding with limited functionality...")
		// Let the command handle this situation
	}

	// Ensure app is cleaned up
	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	// Execute the command
	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")

	// Use the app's DBManager directly (no singleton)
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

// Name returns the command name
func (c *StatusCommand) Name() string {
	return "status"
}

// Description returns the command description
func (c *StatusCommand) Description() string {
	return "Shows the current system status"
}

// Execute implements the status command
func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	// Get database connection
	db := app.DBManager.GetConnection()

	// Check database status
	var sessions int64
	if err := db.Model(&visitors.VisitorSession{}).Count(&sessions).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Visitor sessions: %d", sessions)

	global, err := visitors.GetGlobalStat(db)
	if err != nil {
		return fmt.Errorf("failed to load global stats: %w", err)
	}
	if global.Key != "" {
		log.Printf("- Unique visitors: %d", global.UniqueVisitors)
		log.Printf("- Page views: %d", global.PageViews)
		log.Printf("- Last visit: %s", global.LastVisit.Format(time.RFC3339))
	} else {
		log.Println("- No visits recorded yet")
	}

	// Check database statistics
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// MaintainCommand runs a retention maintenance pass immediately
type MaintainCommand struct{}

func (c *MaintainCommand) Name() string        { return "maintain" }
func (c *MaintainCommand) Description() string { return "Runs a retention maintenance pass" }

func (c *MaintainCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run maintenance")
	}

	scheduler, err := jobs.NewScheduler(app.DBManager, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	log.Println("Running retention maintenance...")
	if err := scheduler.RunMaintenance(); err != nil {
		return fmt.Errorf("maintenance failed: %w", err)
	}

	log.Println("Maintenance completed")
	return nil
}

// SeedCommand populates the DB with synthetic visit traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with synthetic visits" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	visits := fs.Int("visits", 1000, "number of page loads to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *visits)
	return se.Run(ctx)
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

// Name returns the command name
func (c *HelpCommand) Name() string {
	return "help"
}

// Description returns the command description
func (c *HelpCommand) Description() string {
	return "Shows usage information"
}

// Execute implements the help command
func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fmt.Println("Usage: visitryctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}

	return nil
}

// Helper functions

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	fmt.Println("Usage: visitryctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}

	os.Exit(1)
}
