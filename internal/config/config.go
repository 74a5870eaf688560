// Package config loads the server configuration from an optional YAML file
// with environment overrides applied on top (SYNCFORGE_ prefix).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Secret store backend names.
const (
	// SecretStoreLocal encrypts secrets into the application database.
	SecretStoreLocal = "local"
	// SecretStoreAWS delegates to AWS Secrets Manager.
	SecretStoreAWS = "aws"
)

// Config is the full server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	SecretStore SecretStoreConfig `yaml:"secret_store" envconfig:"SECRET_STORE"`
	Cache       CacheConfig       `yaml:"cache"`
	Log         LogConfig         `yaml:"log"`
	GitHub      GitHubConfig      `yaml:"github"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr  string `yaml:"addr" envconfig:"ADDR"`
	Debug bool   `yaml:"debug" envconfig:"DEBUG"`
}

// DatabaseConfig controls the storage layer.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" envconfig:"DSN"`
}

// JWTConfig controls token issuance.
type JWTConfig struct {
	Secret        string `yaml:"secret" envconfig:"SECRET"`
	ExpiryMinutes int    `yaml:"expiry_minutes" envconfig:"EXPIRY_MINUTES"`
}

// SecretStoreConfig selects and parameterizes the secret store backend.
type SecretStoreConfig struct {
	Backend       string `yaml:"backend" envconfig:"BACKEND"`
	EncryptionKey string `yaml:"encryption_key" envconfig:"ENCRYPTION_KEY"`
	AWSRegion     string `yaml:"aws_region" envconfig:"AWS_REGION"`
	AWSPrefix     string `yaml:"aws_prefix" envconfig:"AWS_PREFIX"`
}

// CacheConfig enables the optional Redis table-schema cache. Leaving
// RedisAddr empty keeps every schema fetch live.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
	TTLSeconds    int    `yaml:"ttl_seconds" envconfig:"TTL_SECONDS"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL"`
	File       string `yaml:"file" envconfig:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS"`
}

// GitHubConfig allows overriding the GitHub API endpoint, e.g. for GitHub
// Enterprise installations.
type GitHubConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`
}

// envPrefix namespaces environment overrides, e.g. SYNCFORGE_JWT_SECRET.
const envPrefix = "SYNCFORGE"

// Load reads the YAML file at path (when non-empty), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		data, errRead := os.ReadFile(path)
		if errRead != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
		}
		if errParse := yaml.Unmarshal(data, &cfg); errParse != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errParse)
		}
	}

	if errEnv := envconfig.Process(envPrefix, &cfg); errEnv != nil {
		return Config{}, fmt.Errorf("config: env: %w", errEnv)
	}

	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":8080"
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		c.Database.DSN = "syncforge.db"
	}
	if c.JWT.ExpiryMinutes <= 0 {
		c.JWT.ExpiryMinutes = 60
	}
	if strings.TrimSpace(c.SecretStore.Backend) == "" {
		c.SecretStore.Backend = SecretStoreLocal
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 60
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
}

// validate rejects configurations that cannot boot.
func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.SecretStore.Backend == SecretStoreLocal && strings.TrimSpace(c.SecretStore.EncryptionKey) == "" {
		return errors.New("config: secret_store.encryption_key is required for the local backend")
	}
	return nil
}
