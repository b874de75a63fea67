package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultCacheTTLSeconds    = 300
	defaultHTTPTimeoutSeconds = 30
	defaultCandidateLimit     = 10
)

// Config holds the settings of the notemarket service and CLI
type Config struct {
	DBPath   string `yaml:"db_path"`
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	CacheBackend    string `yaml:"cache_backend"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisKeyPrefix  string `yaml:"redis_key_prefix"`

	VoyageAPIKey   string `yaml:"voyage_api_key"`
	EmbeddingModel string `yaml:"embedding_model"`
	CandidateLimit int    `yaml:"candidate_limit"`
	SweepSchedule  string `yaml:"sweep_schedule"`

	StrictTerminalActions bool `yaml:"strict_terminal_actions"`
	HTTPTimeoutSeconds    int  `yaml:"http_timeout_seconds"`
}

// Load reads config.yaml (or CONFIG_PATH), applies environment overrides,
// fills defaults and validates the result. A missing file is not an error.
func Load() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", configPath, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read %s: %w", configPath, err)
	}

	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.Addr, "ADDR")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.CacheBackend, "CACHE_BACKEND")
	envOverride(&cfg.RedisAddr, "REDIS_ADDR")
	envOverride(&cfg.RedisPassword, "REDIS_PASSWORD")
	envOverride(&cfg.RedisKeyPrefix, "REDIS_KEY_PREFIX")
	envOverride(&cfg.VoyageAPIKey, "VOYAGE_API_KEY")
	envOverride(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	envOverrideAllowEmpty(&cfg.SweepSchedule, "SWEEP_SCHEDULE")
	envOverrideBool(&cfg.StrictTerminalActions, "STRICT_TERMINAL_ACTIONS")
	for field, key := range map[*int]string{
		&cfg.CacheTTLSeconds:    "CACHE_TTL_SECONDS",
		&cfg.RedisDB:            "REDIS_DB",
		&cfg.CandidateLimit:     "CANDIDATE_LIMIT",
		&cfg.HTTPTimeoutSeconds: "HTTP_TIMEOUT_SECONDS",
	} {
		if err := envOverrideInt(field, key); err != nil {
			return Config{}, err
		}
	}

	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "memory"
	}
	if cfg.CacheTTLSeconds == 0 {
		cfg.CacheTTLSeconds = defaultCacheTTLSeconds
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "notemarket:"
	}
	if cfg.CandidateLimit == 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	if cfg.HTTPTimeoutSeconds == 0 {
		cfg.HTTPTimeoutSeconds = defaultHTTPTimeoutSeconds
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache_backend must be 'memory' or 'redis', got '%s'", c.CacheBackend)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.CacheTTLSeconds < 1 {
		return fmt.Errorf("invalid cache_ttl_seconds '%d': must be >= 1", c.CacheTTLSeconds)
	}
	if c.CandidateLimit < 1 {
		return fmt.Errorf("invalid candidate_limit '%d': must be >= 1", c.CandidateLimit)
	}
	if c.HTTPTimeoutSeconds < 1 {
		return fmt.Errorf("invalid http_timeout_seconds '%d': must be >= 1", c.HTTPTimeoutSeconds)
	}
	return nil
}

// CacheTTL returns the transparency cache lifetime
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// HTTPTimeout returns the timeout for outbound calls
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// EmbeddingsConfigured reports whether similarity detection can run
func (c Config) EmbeddingsConfigured() bool {
	return strings.TrimSpace(c.VoyageAPIKey) != ""
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "notemarket.db"
	}
	return home + "/.notemarket/notemarket.db"
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}
