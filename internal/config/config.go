// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Geolocation collaborator (HTTP fallback when no local GeoIP database)
	GeoAPIURL            string `mapstructure:"geoapiurl"`
	GeoAPITimeoutSeconds int    `mapstructure:"geoapitimeoutseconds"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Visitor session settings
	SessionDurationHours int `mapstructure:"sessiondurationhours"`

	// Data retention settings
	SessionRetentionDays     int `mapstructure:"sessionretentiondays"`
	SessionCap               int `mapstructure:"sessioncap"`
	DailyStatsRetentionDays  int `mapstructure:"dailystatsretentiondays"`
	MaintenanceIntervalHours int `mapstructure:"maintenanceintervalhours"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "visitry")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("geoapiurl", "https://ipapi.co/json/")
		v.SetDefault("geoapitimeoutseconds", 5)
		v.SetDefault("publicdir", "web/dist/assets")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("sessiondurationhours", 24)
		v.SetDefault("sessionretentiondays", 30)
		v.SetDefault("sessioncap", 10000)
		v.SetDefault("dailystatsretentiondays", 90)
		v.SetDefault("maintenanceintervalhours", 24)

		v.BindEnv("appname", "VISITRY_APP_NAME")
		v.BindEnv("appport", "VISITRY_APP_PORT")
		v.BindEnv("environment", "VISITRY_ENV")
		v.BindEnv("loglevel", "VISITRY_LOG_LEVEL")
		v.BindEnv("privatekey", "VISITRY_PRIVATE_KEY")
		v.BindEnv("storagepath", "VISITRY_STORAGE_PATH")
		v.BindEnv("geodbpath", "VISITRY_GEO_DB_PATH")
		v.BindEnv("geoapiurl", "VISITRY_GEO_API_URL")
		v.BindEnv("geoapitimeoutseconds", "VISITRY_GEO_API_TIMEOUT_SECONDS")
		v.BindEnv("publicdir", "VISITRY_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "VISITRY_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "VISITRY_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "VISITRY_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "VISITRY_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "VISITRY_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "VISITRY_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "VISITRY_DB_MAX_IDLE_CONNS")
		v.BindEnv("sessiondurationhours", "VISITRY_SESSION_DURATION_HOURS")
		v.BindEnv("sessionretentiondays", "VISITRY_SESSION_RETENTION_DAYS")
		v.BindEnv("sessioncap", "VISITRY_SESSION_CAP")
		v.BindEnv("dailystatsretentiondays", "VISITRY_DAILY_STATS_RETENTION_DAYS")
		v.BindEnv("maintenanceintervalhours", "VISITRY_MAINTENANCE_INTERVAL_HOURS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		// Tests never reach the public geolocation endpoint.
		if cfg.IsTest() {
			cfg.GeoAPIURL = ""
			cfg.GeoDBPath = ""
		}

		// In production the private key must be explicitly set (not the default)
		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique VISITRY_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.SessionRetentionDays <= 0 {
		return fmt.Errorf("invalid session retention days: %d", c.SessionRetentionDays)
	}
	if c.SessionCap <= 0 {
		return fmt.Errorf("invalid session cap: %d", c.SessionCap)
	}
	if c.DailyStatsRetentionDays <= 0 {
		return fmt.Errorf("invalid daily stats retention days: %d", c.DailyStatsRetentionDays)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Tests require a single connection for in-memory database stability.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
