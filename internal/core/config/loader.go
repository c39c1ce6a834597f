package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/mintwatch/internal/infra/explorer"
)

// DefaultStatePath is where the file driver keeps the state document.
const DefaultStatePath = "storage.json"

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	def := explorer.DefaultConfig()
	if cfg.Explorer.APIURL == "" {
		cfg.Explorer.APIURL = def.APIURL
	}
	if cfg.Explorer.WebURL == "" {
		cfg.Explorer.WebURL = def.WebURL
	}
	if cfg.Explorer.Timeout == 0 {
		cfg.Explorer.Timeout = def.Timeout
	}
	if cfg.Explorer.RateLimit == 0 {
		cfg.Explorer.RateLimit = def.RateLimit
	}

	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = 10 * time.Second
	}
	if cfg.Poller.Concurrency == 0 {
		cfg.Poller.Concurrency = 1
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverFile
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStatePath
	}
	if cfg.Storage.FlushInterval == 0 {
		cfg.Storage.FlushInterval = time.Minute
	}

	if cfg.Recovery.Interval == 0 {
		cfg.Recovery.Interval = time.Minute
	}
	if cfg.Recovery.MaxAttempts == 0 {
		cfg.Recovery.MaxAttempts = 5
	}
}

// Validate checks settings that have no usable default.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case DriverFile:
	case DriverRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the %s storage driver", DriverRedis)
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the %s storage driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Telegram.Token != "" && c.Telegram.Channel == "" {
		return fmt.Errorf("telegram.channel is required when telegram.token is set")
	}
	if c.Poller.Concurrency < 0 {
		return fmt.Errorf("poller.concurrency must be positive, got %d", c.Poller.Concurrency)
	}
	return nil
}
