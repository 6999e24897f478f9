package config

import (
	"fmt"
	"net/url"
	"os"

	"marketstore-client/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Default returns a configuration pointing at a local MarketStore.
func Default() *Config {
	return &Config{MConfig: &models.MConfig{
		Name:        "marketstore-client",
		LogLevel:    "INFO",
		GrpcAddress: "localhost:5995",
		StreamURL:   "ws://localhost:5993/ws",
		Streams:     []string{},
		Network: models.MNetworkConfig{
			RequestTimeout:   10,
			MaxRetries:       5,
			HandshakeTimeout: 10,
			MaxMessageSize:   4 * 1024 * 1024,
		},
		Storage: models.MStorageConfig{
			DBType:            "sqlite",
			DBPath:            "marketstore_client.db",
			DataRetentionDays: 7,
		},
		Simulator: models.MSimulatorConfig{
			Host:            "127.0.0.1",
			Port:            5993,
			GrpcPort:        5995,
			Symbols:         []string{"AAPL", "MSFT"},
			Timeframe:       "1Min",
			IntervalSeconds: 1,
		},
	}}
}

// -----------------------------------------------------------------------------

// NewConfig loads a YAML file on top of Default and validates the result
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data over the defaults
	config := Default()
	if err := yaml.Unmarshal(data, config.MConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Validate the loaded configuration
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

	// Endpoints
	if c.GrpcAddress == "" {
		return fmt.Errorf("grpc address cannot be empty")
	}
	u, err := url.Parse(c.StreamURL)
	if err != nil {
		return fmt.Errorf("invalid stream url %q: %w", c.StreamURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("stream url must use ws or wss, got %q", u.Scheme)
	}
	if err := models.NewStreamSubscription().AddStreams(c.Streams).Validate(); err != nil {
		return err
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.HandshakeTimeout < 0 || c.Network.MaxMessageSize < 0 {
		return fmt.Errorf("handshake timeout and max message size cannot be negative")
	}

	// Storage
	if c.Storage.Enabled {
		switch c.Storage.DBType {
		case "sqlite":
			if c.Storage.DBPath == "" {
				return fmt.Errorf("database path cannot be empty for sqlite")
			}
		case "postgres":
			if c.Storage.DBConnectionString == "" {
				return fmt.Errorf("connection string cannot be empty for postgres")
			}
		default:
			return fmt.Errorf("unsupported database type %q", c.Storage.DBType)
		}
		if c.Storage.DataRetentionDays < 0 {
			return fmt.Errorf("data retention days cannot be negative")
		}
	}

	// Simulator
	sim := c.Simulator
	if sim.Port < 0 || sim.Port > 65535 || sim.GrpcPort < 0 || sim.GrpcPort > 65535 {
		return fmt.Errorf("invalid simulator port numbers: %d/%d", sim.Port, sim.GrpcPort)
	}
	if sim.Port != 0 && sim.Port == sim.GrpcPort {
		return fmt.Errorf("simulator stream and grpc ports must differ")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
