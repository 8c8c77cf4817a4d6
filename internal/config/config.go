package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"schooldir/pkg/logger"
	"schooldir/pkg/utils"
)

const EnvPrefix = "SCHOOLDIR"

func (c *Config) GetBaseUrl() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}

// IsProduction reports whether the server runs with production semantics.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// MaxFileSizeBytes returns the per-file upload limit in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return utils.SizeToBytes(c.Upload.MaxFileSize, 5<<20)
}

// TrustedProxies returns the parsed proxy list. Validate rejects bad
// entries, so errors are not expected here.
func (c *Config) TrustedProxies() utils.TrustedProxies {
	proxies, _ := utils.ParseTrustedProxies(c.Security.TrustedProxies)
	return proxies
}

// LoadEnv reads a .env file into the process environment if one exists.
// Variables already set in the environment win.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logger.LogInfo("No .env file loaded, relying on process environment.")
	}
}

// Load builds the configuration from defaults, an optional config.yaml in
// the search paths, and the environment (SCHOOLDIR_* plus a few
// conventional names such as PORT and DB_HOST).
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"server.port":       {"SCHOOLDIR_SERVER_PORT", "PORT"},
		"server.env":        {"SCHOOLDIR_SERVER_ENV", "APP_ENV"},
		"database.driver":   {"SCHOOLDIR_DATABASE_DRIVER", "DB_DRIVER"},
		"database.path":     {"SCHOOLDIR_DATABASE_PATH", "DB_PATH"},
		"database.host":     {"SCHOOLDIR_DATABASE_HOST", "DB_HOST"},
		"database.port":     {"SCHOOLDIR_DATABASE_PORT", "DB_PORT"},
		"database.user":     {"SCHOOLDIR_DATABASE_USER", "DB_USER"},
		"database.password": {"SCHOOLDIR_DATABASE_PASSWORD", "DB_PASSWORD"},
		"database.name":     {"SCHOOLDIR_DATABASE_NAME", "DB_NAME"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.LogInfo("Config file not found. Using environment variables and defaults.")
		} else {
			return nil, fmt.Errorf("config file unreadable: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.BaseURL = cfg.GetBaseUrl()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger.LogInfo("⚙️  %s v%s Initialized | Env: %s | Port: %d | DB: %s",
		cfg.App.Name,
		cfg.App.Version,
		cfg.Server.Env,
		cfg.Server.Port,
		cfg.Database.Driver,
	)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "School Directory")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.startup_banner", true)

	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.compress_min_size", 1024)
	v.SetDefault("base_url", "")

	// Database
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/schools.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "school_directory")
	v.SetDefault("database.tls", false)
	v.SetDefault("database.insecure_tls", false)
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.connect_timeout", "60s")
	v.SetDefault("database.max_concurrent_writes", 10)
	v.SetDefault("database.maintenance_interval", "30m")

	// Upload
	v.SetDefault("upload.min_files", 1)
	v.SetDefault("upload.max_files", 10)
	v.SetDefault("upload.max_file_size", "5MB")
	v.SetDefault("upload.allowed_types", []string{
		"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp",
	})

	// Directory
	v.SetDefault("directory.phone_country_code", "91")

	// Security
	v.SetDefault("security.cors_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests", 20)
	v.SetDefault("security.rate_limit.window", "1s")
	v.SetDefault("security.rate_limit.burst", 50)
	v.SetDefault("security.trusted_proxies", []string{})
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres", "mysql":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for the %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q (want sqlite, postgres or mysql)", c.Database.Driver)
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}

	if c.Upload.MaxFiles <= 0 || c.Upload.MinFiles < 0 || c.Upload.MinFiles > c.Upload.MaxFiles {
		return fmt.Errorf("upload file bounds are inconsistent (min %d, max %d)", c.Upload.MinFiles, c.Upload.MaxFiles)
	}

	if _, err := utils.ParseSize(c.Upload.MaxFileSize); err != nil {
		return fmt.Errorf("upload.max_file_size: %w", err)
	}

	if len(c.Upload.AllowedTypes) == 0 {
		return fmt.Errorf("upload.allowed_types must not be empty")
	}

	cc := c.Directory.PhoneCountryCode
	if cc == "" || strings.Trim(cc, "0123456789") != "" {
		return fmt.Errorf("directory.phone_country_code must be digits, got %q", cc)
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.Window <= 0 {
		return fmt.Errorf("security.rate_limit.window must be a positive duration")
	}

	if _, err := utils.ParseTrustedProxies(c.Security.TrustedProxies); err != nil {
		return fmt.Errorf("security.trusted_proxies: %w", err)
	}

	if c.Server.CompressMinSize < 0 {
		return fmt.Errorf("server.compress_min_size must not be negative")
	}

	if c.IsProduction() && len(c.Security.CorsOrigins) == 1 && c.Security.CorsOrigins[0] == "*" {
		logger.LogWarn("Security Alert: CORS allows every origin in production.")
	}
	return nil
}
