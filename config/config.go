package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig    ServerConfig    `json:"server"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	RedisConfig     RedisConfig     `json:"redis"`
	VaultConfig     VaultConfig     `json:"vault"`
	LoggingConfig   LoggingConfig   `json:"logging"`
	GuardConfig     GuardConfig     `json:"guard"`
	RateLimitConfig RateLimitConfig `json:"rate_limit"`
	AdminConfig     AdminConfig     `json:"admin"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ProductionMode  bool   `json:"production_mode"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for shared counters and caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault configuration for secret material
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	JSONFormat bool   `json:"json_format"` // JSON output (console writer otherwise)
}

// GuardConfig holds abuse-guard lookup configuration. Both external
// lookups fail open on error or timeout.
type GuardConfig struct {
	VPNLookupEnabled    bool          `json:"vpn_lookup_enabled"`
	VPNLookupURL        string        `json:"vpn_lookup_url"` // ip-api compatible endpoint
	VPNLookupTimeout    time.Duration `json:"vpn_lookup_timeout"`
	VPNCacheTTL         time.Duration `json:"vpn_cache_ttl"`
	BreachLookupEnabled bool          `json:"breach_lookup_enabled"`
	BreachLookupURL     string        `json:"breach_lookup_url"` // HIBP range endpoint
	BreachLookupTimeout time.Duration `json:"breach_lookup_timeout"`
}

// RateLimitConfig holds fixed-window rate limit settings keyed by
// (endpoint group, ip) in Redis.
type RateLimitConfig struct {
	Enabled  bool          `json:"enabled"`
	Requests int           `json:"requests"` // Max requests per window
	Window   time.Duration `json:"window"`
}

// AdminConfig holds admin API authentication settings
type AdminConfig struct {
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	MinPasswordLength   int           `json:"min_password_length"`
}

func Load() (*Config, error) {
	// Base config from file, env overrides on top
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", "false") == "true"
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "hexauth")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", "hexauth")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "true") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "hexauth/server")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CA_CERT", cfg.VaultConfig.CACert)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"

	// Guard config
	cfg.GuardConfig.VPNLookupEnabled = getEnvOrDefault("GUARD_VPN_LOOKUP_ENABLED", "true") == "true"
	cfg.GuardConfig.VPNLookupURL = getEnvOrDefault("GUARD_VPN_LOOKUP_URL", "http://ip-api.com/json")
	cfg.GuardConfig.VPNLookupTimeout = getEnvDurationOrDefault("GUARD_VPN_LOOKUP_TIMEOUT", 5*time.Second)
	cfg.GuardConfig.VPNCacheTTL = getEnvDurationOrDefault("GUARD_VPN_CACHE_TTL", time.Hour)
	cfg.GuardConfig.BreachLookupEnabled = getEnvOrDefault("GUARD_BREACH_LOOKUP_ENABLED", "true") == "true"
	cfg.GuardConfig.BreachLookupURL = getEnvOrDefault("GUARD_BREACH_LOOKUP_URL", "https://api.pwnedpasswords.com/range")
	cfg.GuardConfig.BreachLookupTimeout = getEnvDurationOrDefault("GUARD_BREACH_LOOKUP_TIMEOUT", 5*time.Second)

	// Rate limit config
	cfg.RateLimitConfig.Enabled = getEnvOrDefault("RATE_LIMIT_ENABLED", "true") == "true"
	cfg.RateLimitConfig.Requests = getEnvIntOrDefault("RATE_LIMIT_REQUESTS", 100)
	cfg.RateLimitConfig.Window = getEnvDurationOrDefault("RATE_LIMIT_WINDOW", time.Hour)

	// Admin config
	cfg.AdminConfig.JWTSecret = getEnvOrDefault("ADMIN_JWT_SECRET", cfg.AdminConfig.JWTSecret)
	cfg.AdminConfig.AccessTokenDuration = getEnvDurationOrDefault("ADMIN_ACCESS_TOKEN_DURATION", 24*time.Hour)
	cfg.AdminConfig.MinPasswordLength = getEnvIntOrDefault("ADMIN_MIN_PASSWORD_LENGTH", 8)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
