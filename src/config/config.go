package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"market-dashboard/src/models"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. DASHBOARD_STREAM_URL
const EnvPrefix = "DASHBOARD"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Defaults returns the configuration used for any key the YAML file omits
func Defaults() *models.MConfig {
	return &models.MConfig{
		Name:     "market-dashboard",
		Host:     "127.0.0.1",
		Port:     8090,
		LogLevel: "INFO",
		Stream: models.MStreamConfig{
			PageURL:        "http://127.0.0.1:8081",
			Path:           "/ws/market-data",
			DefaultSymbols: []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META", "NVDA", "TSLA", "JPM"},
			Reconnect: models.MReconnectConfig{
				InitialDelayMs: 3000,
				MaxDelayMs:     3000,
				Multiplier:     1,
				Jitter:         0,
				MaxAttempts:    0,
			},
			PongWaitMs:  60000,
			WriteWaitMs: 2000,
			HandshakeMs: 10000,
		},
		Rest: models.MRestConfig{
			BaseURL:   "http://127.0.0.1:8080/api",
			TimeoutMs: 10000,
		},
		Storage: models.MStorageConfig{
			DBType: "sqlite",
			DBPath: "reference.db",
		},
		Gateway: models.MGatewayConfig{
			Host: "127.0.0.1",
			Port: 8081,
			Path: "/ws/market-data",
		},
		Feed: models.MFeedConfig{
			Synthetic: models.MSyntheticConfig{
				Enabled:           true,
				Name:              "SYNTHETIC",
				Symbols:           []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META", "NVDA", "TSLA", "JPM"},
				MessagesPerSecond: 10,
				TradeToQuoteRatio: 5,
				BurstMultiplier:   5,
				BurstDurationMs:   1000,
				BurstIntervalMs:   10000,
			},
			Kafka: models.MKafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "pulsewire-consumers",
				Topic:   "canonical.events",
			},
		},
	}
}

// -----------------------------------------------------------------------------

// NewConfig loads defaults, then the YAML file, then .env and DASHBOARD_* overrides
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data over the defaults
	modelConfig := Defaults()
	if err := yaml.Unmarshal(data, modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Environment overrides; a missing .env is normal outside development
	_ = godotenv.Load()
	if err := envconfig.Process(EnvPrefix, modelConfig); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config := &Config{MConfig: modelConfig}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Stream
	if c.Stream.URL == "" && c.Stream.PageURL == "" {
		return fmt.Errorf("stream url or page_url must be set")
	}
	for _, raw := range []string{c.Stream.URL, c.Stream.PageURL} {
		if raw == "" {
			continue
		}
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("invalid stream url '%s': %w", raw, err)
		}
	}
	if c.Stream.URL == "" && !strings.HasPrefix(c.Stream.Path, "/") {
		return fmt.Errorf("stream path must start with '/': %q", c.Stream.Path)
	}
	r := c.Stream.Reconnect
	if r.InitialDelayMs <= 0 {
		return fmt.Errorf("reconnect initial delay must be greater than 0")
	}
	if r.MaxDelayMs < r.InitialDelayMs {
		return fmt.Errorf("reconnect max delay (%d) must not be below initial delay (%d)", r.MaxDelayMs, r.InitialDelayMs)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("reconnect multiplier must be at least 1")
	}
	if r.Jitter < 0 || r.Jitter >= 1 {
		return fmt.Errorf("reconnect jitter must be in [0, 1)")
	}
	if r.MaxAttempts < 0 {
		return fmt.Errorf("reconnect max attempts cannot be negative")
	}

	// REST collaborator
	if c.Rest.BaseURL == "" {
		return fmt.Errorf("rest base url cannot be empty")
	}
	if c.Rest.TimeoutMs <= 0 {
		return fmt.Errorf("rest timeout must be greater than 0")
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Storage.DBType)
	}

	// Data plane
	if c.Gateway.Port <= 1024 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port number: %d", c.Gateway.Port)
	}
	if !strings.HasPrefix(c.Gateway.Path, "/") {
		return fmt.Errorf("gateway path must start with '/': %q", c.Gateway.Path)
	}
	if c.Feed.Synthetic.Enabled {
		if c.Feed.Synthetic.MessagesPerSecond <= 0 {
			return fmt.Errorf("synthetic messages per second must be greater than 0")
		}
		if c.Feed.Synthetic.TradeToQuoteRatio < 0 {
			return fmt.Errorf("synthetic trade to quote ratio cannot be negative")
		}
	}
	if c.Feed.Kafka.Enabled {
		if len(c.Feed.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka feed requires at least one broker")
		}
		if c.Feed.Kafka.Topic == "" {
			return fmt.Errorf("kafka feed topic cannot be empty")
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
