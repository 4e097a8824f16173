package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the siprouted server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir       string
	DatabaseURL   string // PostgreSQL DSN; empty selects embedded SQLite under DataDir
	HTTPPort      int
	LogLevel      string
	LogFormat     string // "text" or "json"
	ConsulURI     string // Consul agent URI; empty disables service discovery
	AdvertiseHost string // address advertised in Consul
	AdvertisePort int    // port advertised in Consul
	RedisAddress  string // redis host:port for the read cache; empty disables it
	RedisPassword string
	RedisDB       int
	AdminPassword string // bcrypt hash of the admin API password; empty disables auth
	JWTSecret     string // hex-encoded secret for admin token signing
}

// defaults
const (
	defaultDataDir  = "./data"
	defaultHTTPPort = 8000
	defaultLogLevel = "info"
	defaultLogFormat = "text"
)

// envPrefix is the prefix for all siprouted environment variables.
const envPrefix = "SIPROUTED_"

// Load parses configuration from CLI flags and environment variables. A .env
// file in the working directory is loaded first, if present, without
// overriding variables already set in the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	fs := flag.NewFlagSet("siprouted", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the embedded database")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL DSN; empty uses embedded SQLite under the data directory")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.ConsulURI, "consul-uri", "", "Consul agent URI for service discovery and config overrides")
	fs.StringVar(&cfg.AdvertiseHost, "advertise-host", "127.0.0.1", "address advertised to Consul")
	fs.IntVar(&cfg.AdvertisePort, "advertise-port", defaultHTTPPort, "port advertised to Consul")
	fs.StringVar(&cfg.RedisAddress, "redis-address", "", "redis host:port for the routing read cache")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database number")
	fs.StringVar(&cfg.AdminPassword, "admin-password-hash", "", "bcrypt hash of the admin API password; empty disables admin auth")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "hex-encoded secret for admin token signing")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	envMap := map[string]string{
		"data-dir":            envPrefix + "DATA_DIR",
		"database-url":        envPrefix + "DATABASE_URL",
		"http-port":           envPrefix + "HTTP_PORT",
		"log-level":           envPrefix + "LOG_LEVEL",
		"log-format":          envPrefix + "LOG_FORMAT",
		"consul-uri":          envPrefix + "CONSUL_URI",
		"advertise-host":      envPrefix + "ADVERTISE_HOST",
		"advertise-port":      envPrefix + "ADVERTISE_PORT",
		"redis-address":       envPrefix + "REDIS_ADDRESS",
		"redis-password":      envPrefix + "REDIS_PASSWORD",
		"redis-db":            envPrefix + "REDIS_DB",
		"admin-password-hash": envPrefix + "ADMIN_PASSWORD_HASH",
		"jwt-secret":          envPrefix + "JWT_SECRET",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "database-url":
			cfg.DatabaseURL = val
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "consul-uri":
			cfg.ConsulURI = val
		case "advertise-host":
			cfg.AdvertiseHost = val
		case "advertise-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.AdvertisePort = v
			}
		case "redis-address":
			cfg.RedisAddress = val
		case "redis-password":
			cfg.RedisPassword = val
		case "redis-db":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.RedisDB = v
			}
		case "admin-password-hash":
			cfg.AdminPassword = val
		case "jwt-secret":
			cfg.JWTSecret = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.AdvertisePort < 1 || c.AdvertisePort > 65535 {
		return fmt.Errorf("advertise-port must be between 1 and 65535, got %d", c.AdvertisePort)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log-format must be text or json, got %q", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log-level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.AdminPassword != "" && c.JWTSecret == "" {
		return fmt.Errorf("jwt-secret is required when admin auth is enabled")
	}
	return nil
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
