// Package common provides shared utilities for buyradar
package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/mclennan/buyradar/internal/interfaces"
)

// Config holds all configuration for buyradar
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Radar       RadarConfig   `toml:"radar"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection settings.
type StorageConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	AlphaVantage AlphaVantageConfig `toml:"alphavantage"`
	Brave        BraveConfig        `toml:"brave"`
	Gemini       GeminiConfig       `toml:"gemini"`
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per minute (free tier: 5)
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *AlphaVantageConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// BraveConfig holds Brave Search API configuration
type BraveConfig struct {
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key"`
	ResultCount int    `toml:"result_count"`
	Timeout     string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *BraveConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetResultCount returns the configured web result count, default 5.
func (c *BraveConfig) GetResultCount() int {
	if c.ResultCount <= 0 {
		return 5
	}
	return c.ResultCount
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// GetModel returns the configured model, default gemini-2.0-flash.
func (c *GeminiConfig) GetModel() string {
	if c.Model == "" {
		return "gemini-2.0-flash"
	}
	return c.Model
}

// RadarConfig holds recommendation batch runner configuration.
type RadarConfig struct {
	SubBatchSize    int    `toml:"sub_batch_size"`    // companies analyzed concurrently
	InterBatchDelay string `toml:"inter_batch_delay"` // pause between sub-batches
	MaxDuration     string `toml:"max_duration"`      // wall-clock budget per invocation
	GuardBuffer     string `toml:"guard_buffer"`      // margin subtracted from the budget
	CronSpec        string `toml:"cron_spec"`         // schedule for the unattended run
	CronSecret      string `toml:"cron_secret"`       // bearer secret for the trigger endpoint

	SearchResultCount int `toml:"search_result_count"` // web hits fed into each prompt
}

// GetSearchResultCount returns the web hits per analysis, default 5.
func (c *RadarConfig) GetSearchResultCount() int {
	if c.SearchResultCount <= 0 {
		return 5
	}
	return c.SearchResultCount
}

// GetSubBatchSize returns the sub-batch size, default 5.
func (c *RadarConfig) GetSubBatchSize() int {
	if c.SubBatchSize <= 0 {
		return 5
	}
	return c.SubBatchSize
}

// GetInterBatchDelay returns the inter-sub-batch pause, default 2s.
func (c *RadarConfig) GetInterBatchDelay() time.Duration {
	d, err := time.ParseDuration(c.InterBatchDelay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetMaxDuration returns the per-invocation wall-clock budget, default 5m.
func (c *RadarConfig) GetMaxDuration() time.Duration {
	d, err := time.ParseDuration(c.MaxDuration)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetGuardBuffer returns the timeout guard buffer, default 30s.
func (c *RadarConfig) GetGuardBuffer() time.Duration {
	d, err := time.ParseDuration(c.GuardBuffer)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000",
			Username:  "root",
			Password:  "root",
			Namespace: "buyradar",
			Database:  "buyradar",
		},
		Clients: ClientsConfig{
			AlphaVantage: AlphaVantageConfig{
				BaseURL:   "https://www.alphavantage.co/query",
				RateLimit: 5,
				Timeout:   "30s",
			},
			Brave: BraveConfig{
				BaseURL:     "https://api.search.brave.com/res/v1/web/search",
				ResultCount: 5,
				Timeout:     "15s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Radar: RadarConfig{
			SubBatchSize:    5,
			InterBatchDelay: "2s",
			MaxDuration:     "5m",
			GuardBuffer:     "30s",
			CronSpec:        "0 6 * * *",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Outputs: []string{"console"},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BUYRADAR_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("BUYRADAR_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("BUYRADAR_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("BUYRADAR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("BUYRADAR_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("BUYRADAR_STORAGE_NAMESPACE"); v != "" {
		config.Storage.Namespace = v
	}
	if v := os.Getenv("BUYRADAR_STORAGE_DATABASE"); v != "" {
		config.Storage.Database = v
	}
	if v := os.Getenv("BUYRADAR_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("BUYRADAR_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	if v := os.Getenv("CRON_SECRET"); v != "" {
		config.Radar.CronSecret = v
	}
	if v := os.Getenv("BUYRADAR_CRON_SECRET"); v != "" {
		config.Radar.CronSecret = v
	}
	if v := os.Getenv("BUYRADAR_CRON_SPEC"); v != "" {
		config.Radar.CronSpec = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment, the system KV store,
// or the config fallback, in that order.
func ResolveAPIKey(ctx context.Context, store interfaces.SystemStore, name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"alphavantage_api_key": {"ALPHA_VANTAGE_API_KEY", "BUYRADAR_ALPHAVANTAGE_API_KEY"},
		"brave_api_key":        {"BRAVE_API_KEY", "BUYRADAR_BRAVE_API_KEY"},
		"gemini_api_key":       {"GEMINI_API_KEY", "BUYRADAR_GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if store != nil {
		apiKey, err := store.GetSystemKV(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or store", name)
}
