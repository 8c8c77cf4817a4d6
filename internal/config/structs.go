package config

import "time"

type Config struct {
	// App: service identity shown in the banner and /health
	App AppConfig `mapstructure:"app"`

	// Server: listener and execution environment
	Server ServerConfig `mapstructure:"server"`

	// Database: record store engine and connection pool
	Database DatabaseConfig `mapstructure:"database"`

	// Upload: limits enforced on school photo batches
	Upload UploadConfig `mapstructure:"upload"`

	// Directory: domain rules for school records
	Directory DirectoryConfig `mapstructure:"directory"`

	// Security: CORS whitelist and request throttling
	Security SecurityConfig `mapstructure:"security"`

	// BaseURL: public root URL used in startup output
	BaseURL string `mapstructure:"base_url"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`

	// StartupBanner: print the signature block on boot
	StartupBanner bool `mapstructure:"startup_banner"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`

	// Env: development, staging, production
	Env string `mapstructure:"env"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// CompressMinSize: smallest response body worth gzipping, in bytes
	CompressMinSize int `mapstructure:"compress_min_size"`
}

type DatabaseConfig struct {
	// Driver: sqlite, postgres or mysql
	Driver string `mapstructure:"driver"`

	// Path: sqlite database file (e.g. ./data/schools.db)
	Path string `mapstructure:"path"`

	// Network engines (postgres, mysql)
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`

	// TLS: require TLS to the server; InsecureTLS skips certificate checks
	TLS         bool `mapstructure:"tls"`
	InsecureTLS bool `mapstructure:"insecure_tls"`

	// Pool: callers block once MaxOpenConns connections are busy
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`

	// MaxConcurrentWrites: write transactions allowed in flight at once
	MaxConcurrentWrites int `mapstructure:"max_concurrent_writes"`

	// MaintenanceInterval: sqlite checkpoint/VACUUM cadence, 0 disables
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

type UploadConfig struct {
	MinFiles int `mapstructure:"min_files"`
	MaxFiles int `mapstructure:"max_files"`

	// MaxFileSize: per-file limit, human readable (e.g. "5MB")
	MaxFileSize string `mapstructure:"max_file_size"`

	AllowedTypes []string `mapstructure:"allowed_types"`
}

type DirectoryConfig struct {
	// PhoneCountryCode: digits prepended to normalized contacts (e.g. "91")
	PhoneCountryCode string `mapstructure:"phone_country_code"`
}

type SecurityConfig struct {
	CorsOrigins []string        `mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`

	// TrustedProxies: IPs or CIDRs whose X-Forwarded-For is believed
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Burst    int           `mapstructure:"burst"`
}
