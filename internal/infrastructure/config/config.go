// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback), including a .env file if present
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	engineCfg, err := cfg.Matching.ToEngineConfig()
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Matching      MatchingConfig      `yaml:"matching"`
	Server        ServerConfig        `yaml:"server"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MatchingConfig tunes the matching engine. Zero values mean "use the
// engine default".
type MatchingConfig struct {
	Weights struct {
		ExactAmount float64 `yaml:"exact_amount"`
		Date        float64 `yaml:"date"`
		Reference   float64 `yaml:"reference"`
		Description float64 `yaml:"description"`
		Cheque      float64 `yaml:"cheque"`
	} `yaml:"weights"`
	Thresholds struct {
		High   float64 `yaml:"high"`
		Medium float64 `yaml:"medium"`
		Low    float64 `yaml:"low"`
	} `yaml:"thresholds"`
	ProposalFloor float64 `yaml:"proposal_floor"`

	// Pointers so an explicit 0 can be told apart from "unset".
	DateToleranceDays      *int     `yaml:"date_tolerance_days"`
	AmountTolerancePercent *float64 `yaml:"amount_tolerance_percent"`

	MaxCombinationSize int `yaml:"max_combination_size"`
	MaxCombinationPool int `yaml:"max_combination_pool"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SchedulerConfig holds periodic auto-match settings
type SchedulerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	TimeZone      string `yaml:"time_zone"`
	IncludeMedium bool   `yaml:"include_medium"`
	IncludeMulti  bool   `yaml:"include_multi"`
	Actor         string `yaml:"actor"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECON_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("RECON_DB_PATH", "reconciliation.db"),
		},
		Server: ServerConfig{
			Port:           getEnvInt("RECON_PORT", 8085),
			AllowedOrigins: getEnvList("RECON_ALLOWED_ORIGINS"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getEnvBool("RECON_SCHEDULER_ENABLED", false),
			Schedule:      getEnv("RECON_SCHEDULE", ""),
			TimeZone:      getEnv("RECON_TIME_ZONE", ""),
			IncludeMedium: getEnvBool("RECON_INCLUDE_MEDIUM", false),
			IncludeMulti:  getEnvBool("RECON_INCLUDE_MULTI", false),
			Actor:         getEnv("RECON_ACTOR", ""),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}

	if val := os.Getenv("RECON_DATE_TOLERANCE_DAYS"); val != "" {
		if days, err := strconv.Atoi(val); err == nil {
			cfg.Matching.DateToleranceDays = &days
		}
	}
	if val := os.Getenv("RECON_AMOUNT_TOLERANCE"); val != "" {
		if pct, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Matching.AmountTolerancePercent = &pct
		}
	}

	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to
// environment variables. A .env file in the working directory is loaded
// first; variables already set in the environment win.
func LoadOrEnvWithPath(path string) *Config {
	_ = godotenv.Load()

	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "reconciliation.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8085
	}
	if c.Scheduler.Schedule == "" {
		c.Scheduler.Schedule = "0 2 * * *"
	}
	if c.Scheduler.Actor == "" {
		c.Scheduler.Actor = "scheduler"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// ToEngineConfig merges the configured values over matching.DefaultConfig
// and validates the result.
func (m MatchingConfig) ToEngineConfig() (matching.Config, error) {
	cfg := matching.DefaultConfig()

	setIfPositive(&cfg.Weights.ExactAmount, m.Weights.ExactAmount)
	setIfPositive(&cfg.Weights.Date, m.Weights.Date)
	setIfPositive(&cfg.Weights.Reference, m.Weights.Reference)
	setIfPositive(&cfg.Weights.Description, m.Weights.Description)
	setIfPositive(&cfg.Weights.Cheque, m.Weights.Cheque)
	setIfPositive(&cfg.Thresholds.High, m.Thresholds.High)
	setIfPositive(&cfg.Thresholds.Medium, m.Thresholds.Medium)
	setIfPositive(&cfg.Thresholds.Low, m.Thresholds.Low)
	setIfPositive(&cfg.ProposalFloor, m.ProposalFloor)

	if m.DateToleranceDays != nil {
		cfg.DateToleranceDays = *m.DateToleranceDays
	}
	if m.AmountTolerancePercent != nil {
		cfg.AmountTolerancePercent = decimal.NewFromFloat(*m.AmountTolerancePercent)
	}
	if m.MaxCombinationSize > 0 {
		cfg.MaxCombinationSize = m.MaxCombinationSize
	}
	if m.MaxCombinationPool > 0 {
		cfg.MaxCombinationPool = m.MaxCombinationPool
	}

	if err := cfg.Validate(); err != nil {
		return matching.Config{}, fmt.Errorf("invalid matching config: %w", err)
	}
	return cfg, nil
}

func setIfPositive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
