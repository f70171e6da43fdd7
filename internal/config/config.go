// Package config loads and validates runtime configuration from a YAML
// file overlaid with environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment identifies the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the root configuration for the service.
type Config struct {
	Environment Environment `yaml:"environment" validate:"required,oneof=development staging production"`

	Server ServerConfig `yaml:"server"`
	AWS    AWSConfig    `yaml:"aws"`
	Store  StoreConfig  `yaml:"store"`
	Data   DataConfig   `yaml:"data"`
	Cache  CacheConfig  `yaml:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"min=0"`
}

// AWSConfig holds AWS client settings.
type AWSConfig struct {
	Region string `yaml:"region" validate:"required"`
	// Endpoint overrides the DynamoDB endpoint, used for local development
	// against dynamodb-local.
	Endpoint string `yaml:"endpoint"`
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	TableName      string `yaml:"tableName" validate:"required"`
	CacheTableName string `yaml:"cacheTableName" validate:"required"`
	MaxRetries     int    `yaml:"maxRetries" validate:"min=0,max=10"`
	EnableMetrics  bool   `yaml:"enableMetrics"`
	EnableBreaker  bool   `yaml:"enableBreaker"`
}

// DataConfig holds repository behavior tunables.
type DataConfig struct {
	DefaultPageSize     int `yaml:"defaultPageSize" validate:"min=1,max=1000"`
	DataEditLockMinutes int `yaml:"dataEditLockMinutes" validate:"min=0"`
}

// CacheConfig holds cache repository tunables.
type CacheConfig struct {
	DefaultTTL time.Duration `yaml:"defaultTTL" validate:"min=0"`
}

// Load reads configuration from the file named by CONFIG_FILE (if set),
// overlays environment variables, applies defaults and validates the result.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	overlayEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

func defaults() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Store: StoreConfig{
			TableName:      "tenantcore-dev",
			CacheTableName: "tenantcore-cache-dev",
			MaxRetries:     3,
			EnableMetrics:  true,
		},
		Data: DataConfig{
			DefaultPageSize:     50,
			DataEditLockMinutes: 0,
		},
		Cache: CacheConfig{
			DefaultTTL: 15 * time.Minute,
		},
	}
}

func overlayEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(v)
	}
	setString("SERVER_ADDR", &cfg.Server.Addr)
	setString("AWS_REGION", &cfg.AWS.Region)
	setString("DYNAMODB_ENDPOINT", &cfg.AWS.Endpoint)
	setString("TABLE_NAME", &cfg.Store.TableName)
	setString("CACHE_TABLE_NAME", &cfg.Store.CacheTableName)
	setInt("STORE_MAX_RETRIES", &cfg.Store.MaxRetries)
	setBool("ENABLE_METRICS", &cfg.Store.EnableMetrics)
	setBool("ENABLE_BREAKER", &cfg.Store.EnableBreaker)
	setInt("DEFAULT_PAGE_SIZE", &cfg.Data.DefaultPageSize)
	setInt("DATA_EDIT_LOCK_MINUTES", &cfg.Data.DataEditLockMinutes)
	if v := os.Getenv("CACHE_DEFAULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DefaultTTL = d
		}
	}
}
