package models

// MConfig Structure
type MConfig struct {
	Name        string           `yaml:"name"`
	LogLevel    string           `yaml:"log_level"`
	GrpcAddress string           `yaml:"grpc_address"`
	StreamURL   string           `yaml:"stream_url"`
	Streams     []string         `yaml:"streams"`
	Network     MNetworkConfig   `yaml:"network"`
	Storage     MStorageConfig   `yaml:"storage"`
	Simulator   MSimulatorConfig `yaml:"simulator"`
}

type MNetworkConfig struct {
	RequestTimeout   int `yaml:"timeout"`
	MaxRetries       int `yaml:"retries"`
	HandshakeTimeout int `yaml:"handshake_timeout"`
	MaxMessageSize   int `yaml:"max_message_size"`
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	DataRetentionDays  int    `yaml:"data_retention_days"`
}

// MSimulatorConfig configures the local stand-in server (cmd/simulator).
type MSimulatorConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	GrpcPort        int      `yaml:"grpc_port"`
	Symbols         []string `yaml:"symbols"`
	Timeframe       string   `yaml:"timeframe"`
	IntervalSeconds int      `yaml:"interval_seconds"`
	MarketHoursOnly bool     `yaml:"market_hours_only"`
}
