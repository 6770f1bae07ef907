package models

// MConfig Structure
type MConfig struct {
	Name      string            `yaml:"name"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	LogLevel  string            `yaml:"log_level"`
	GrpcHost  string            `yaml:"grpc_host"`
	GrpcPort  int               `yaml:"grpc_port"`
	Upstream  MUpstreamConfig   `yaml:"upstream"`
	RateLimit MRateLimitConfig  `yaml:"rate_limit"`
	Storage   MStorageConfig    `yaml:"storage"`
	Streams   []MStreamOverride `yaml:"streams"`
}

type MUpstreamConfig struct {
	URL            string `yaml:"url"`
	RequestTimeout int    `yaml:"timeout_seconds"`
	Proxy          string `yaml:"proxy"`   // Optional static HTTP proxy
}

type MRateLimitConfig struct {
	MaxPerMinute int `yaml:"max_per_minute"`
	MinSpacingMs int `yaml:"min_spacing_ms"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

// MStreamOverride tunes a catalogue entry without redefining it
type MStreamOverride struct {
	Name       string `yaml:"name"`
	IntervalMs int    `yaml:"interval_ms"`
	TTLMs      int    `yaml:"ttl_ms"`
}
