package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Port              int
	DatabaseURL       string
	InstanceTTL       time.Duration
	LogMaxAge         time.Duration
	MaxLogsPerWebhook int
	HeartbeatInterval time.Duration
	EnableAutoCleanup bool
	CleanupInterval   time.Duration
	AllowedOrigins    string
	LogLevel          string
	LogFormat         string
	MaxBodySize       int64

	// Rate limits
	CreateRatePerMinute int // instance creations per client IP
	ItemsRatePerMinute  int // items API calls per API key
}

// fileConfig is the optional YAML overlay. Durations are Go duration strings.
type fileConfig struct {
	Port                *int    `yaml:"port"`
	DatabaseURL         *string `yaml:"database_url"`
	InstanceTTL         *string `yaml:"instance_ttl"`
	LogMaxAge           *string `yaml:"log_max_age"`
	MaxLogsPerWebhook   *int    `yaml:"max_logs_per_webhook"`
	HeartbeatInterval   *string `yaml:"heartbeat_interval"`
	EnableAutoCleanup   *bool   `yaml:"enable_auto_cleanup"`
	CleanupInterval     *string `yaml:"cleanup_interval"`
	AllowedOrigins      *string `yaml:"allowed_origins"`
	LogLevel            *string `yaml:"log_level"`
	LogFormat           *string `yaml:"log_format"`
	MaxBodySize         *int64  `yaml:"max_body_size"`
	CreateRatePerMinute *int    `yaml:"create_rate_per_minute"`
	ItemsRatePerMinute  *int    `yaml:"items_rate_per_minute"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Port:                8080,
		DatabaseURL:         "data/api.json",
		InstanceTTL:         24 * time.Hour,
		LogMaxAge:           72 * time.Hour,
		MaxLogsPerWebhook:   100,
		HeartbeatInterval:   30 * time.Second,
		EnableAutoCleanup:   false,
		CleanupInterval:     time.Hour,
		AllowedOrigins:      "",
		LogLevel:            "info",
		LogFormat:           "json",
		MaxBodySize:         10 << 20,
		CreateRatePerMinute: 30,
		ItemsRatePerMinute:  600,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE, then environment variables (a .env file is loaded first if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.InstanceTTL = getEnvDuration("INSTANCE_TTL", cfg.InstanceTTL)
	cfg.LogMaxAge = getEnvDuration("LOG_MAX_AGE", cfg.LogMaxAge)
	cfg.MaxLogsPerWebhook = getEnvInt("MAX_LOGS_PER_WEBHOOK", cfg.MaxLogsPerWebhook)
	cfg.HeartbeatInterval = getEnvDuration("HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.EnableAutoCleanup = getEnvBool("ENABLE_AUTO_CLEANUP", cfg.EnableAutoCleanup)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.AllowedOrigins = getEnv("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.MaxBodySize = int64(getEnvInt("MAX_BODY_SIZE", int(cfg.MaxBodySize)))
	cfg.CreateRatePerMinute = getEnvInt("CREATE_RATE_PER_MINUTE", cfg.CreateRatePerMinute)
	cfg.ItemsRatePerMinute = getEnvInt("ITEMS_RATE_PER_MINUTE", cfg.ItemsRatePerMinute)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.MaxLogsPerWebhook < 1 {
		return fmt.Errorf("MAX_LOGS_PER_WEBHOOK must be positive, got %d", c.MaxLogsPerWebhook)
	}
	if c.MaxBodySize < 1 {
		return fmt.Errorf("MAX_BODY_SIZE must be positive, got %d", c.MaxBodySize)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if c.InstanceTTL <= 0 || c.LogMaxAge <= 0 {
		return fmt.Errorf("retention windows must be positive")
	}
	if c.EnableAutoCleanup && c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive when auto cleanup is enabled")
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Port != nil {
		c.Port = *fc.Port
	}
	if fc.DatabaseURL != nil {
		c.DatabaseURL = *fc.DatabaseURL
	}
	if fc.MaxLogsPerWebhook != nil {
		c.MaxLogsPerWebhook = *fc.MaxLogsPerWebhook
	}
	if fc.EnableAutoCleanup != nil {
		c.EnableAutoCleanup = *fc.EnableAutoCleanup
	}
	if fc.AllowedOrigins != nil {
		c.AllowedOrigins = *fc.AllowedOrigins
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		c.LogFormat = *fc.LogFormat
	}
	if fc.MaxBodySize != nil {
		c.MaxBodySize = *fc.MaxBodySize
	}
	if fc.CreateRatePerMinute != nil {
		c.CreateRatePerMinute = *fc.CreateRatePerMinute
	}
	if fc.ItemsRatePerMinute != nil {
		c.ItemsRatePerMinute = *fc.ItemsRatePerMinute
	}

	durations := []struct {
		name  string
		value *string
		dst   *time.Duration
	}{
		{"instance_ttl", fc.InstanceTTL, &c.InstanceTTL},
		{"log_max_age", fc.LogMaxAge, &c.LogMaxAge},
		{"heartbeat_interval", fc.HeartbeatInterval, &c.HeartbeatInterval},
		{"cleanup_interval", fc.CleanupInterval, &c.CleanupInterval},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s in config file: %w", d.name, err)
		}
		*d.dst = parsed
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "24h")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
