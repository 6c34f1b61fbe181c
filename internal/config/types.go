package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Context   ContextConfig   `yaml:"context" mapstructure:"context"`
	Compiler  CompilerConfig  `yaml:"compiler" mapstructure:"compiler"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// EngineConfig points at the external optimization engine
type EngineConfig struct {
	URL              string        `yaml:"url" mapstructure:"url"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes" mapstructure:"max_response_bytes"`
}

// CacheConfig contains Redis outcome cache configuration
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// ContextConfig contains the reference-population store configuration
type ContextConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	AugmentKMap     bool          `yaml:"augment_kmap" mapstructure:"augment_kmap"`
	RecordRequests  bool          `yaml:"record_requests" mapstructure:"record_requests"`
	MaxRows         int           `yaml:"max_rows" mapstructure:"max_rows"`
	BatchSize       int           `yaml:"batch_size" mapstructure:"batch_size"`
}

// CompilerConfig tunes job compilation
type CompilerConfig struct {
	HierarchyConflicts string `yaml:"hierarchy_conflicts" mapstructure:"hierarchy_conflicts"` // last_write_wins or reject
}

// PrivacyConfig controls direct identifier screening of request values
type PrivacyConfig struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	Detectors []string `yaml:"detectors" mapstructure:"detectors"` // rule names or "all"
	Action    string   `yaml:"action" mapstructure:"action"`       // warn or reject
}

// RateLimitConfig contains per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int      `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int      `yaml:"burst" mapstructure:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies" mapstructure:"trusted_proxies"` // addresses or CIDRs
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains job event stream configuration
type WebSocketConfig struct {
	Enabled         bool     `yaml:"enabled" mapstructure:"enabled"`
	Path            string   `yaml:"path" mapstructure:"path"`
	ReadBufferSize  int      `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int      `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Username        string   `yaml:"username" mapstructure:"username"`
	Password        string   `yaml:"password" mapstructure:"password"`
	Events          struct {
		BroadcastJobs        bool `yaml:"broadcast_jobs" mapstructure:"broadcast_jobs"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// MetricsConfig contains Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Minute,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 5 * time.Minute,
			MaxBodyBytes:   32 << 20,
		},
		Engine: EngineConfig{
			URL:              "http://localhost:9090",
			Timeout:          5 * time.Minute,
			MaxResponseBytes: 64 << 20,
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     time.Hour,
			KeyPrefix:      "petgw",
		},
		Context: ContextConfig{
			Enabled:         false,
			DatabaseURL:     "postgres://localhost:5432/petgw?sslmode=disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			AugmentKMap:     true,
			RecordRequests:  false,
			MaxRows:         10000,
			BatchSize:       500,
		},
		Compiler: CompilerConfig{
			HierarchyConflicts: "last_write_wins",
		},
		Privacy: PrivacyConfig{
			Enabled:   true,
			Detectors: []string{"all"},
			Action:    "warn",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 120,
			Burst:          20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			AllowedOrigins:  []string{"*"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
	cfg.Logging.File.Path = "logs/pet-gateway.log"
	cfg.WebSocket.Events.BroadcastJobs = true
	cfg.WebSocket.Events.BroadcastConnections = true
	return cfg
}
