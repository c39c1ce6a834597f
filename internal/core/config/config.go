package config

import (
	"time"

	"github.com/vietddude/mintwatch/internal/indexing/classifier"
	"github.com/vietddude/mintwatch/internal/infra/explorer"
	redisclient "github.com/vietddude/mintwatch/internal/infra/redis"
	"github.com/vietddude/mintwatch/internal/infra/storage/postgres"
	"github.com/vietddude/mintwatch/internal/infra/telegram"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	Explorer   explorer.Config    `yaml:"explorer"`
	Classifier classifier.Config  `yaml:"classifier"`
	Poller     PollerConfig       `yaml:"poller"`
	Telegram   telegram.Config    `yaml:"telegram"`
	Storage    StorageConfig      `yaml:"storage"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
	Recovery   RecoveryConfig     `yaml:"recovery"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// PollerConfig holds polling loop settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

// StorageConfig selects where the state document lives.
type StorageConfig struct {
	Driver        string        `yaml:"driver"` // file, redis, postgres
	Path          string        `yaml:"path"`   // state file for the file driver
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// RecoveryConfig holds settings for re-classifying journaled transactions.
// The worker runs unless Disabled is set.
type RecoveryConfig struct {
	Disabled    bool          `yaml:"disabled"`
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}
