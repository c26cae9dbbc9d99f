package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Supported credential storage backends
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageS3     = "s3"
)

// EnvPrefix is the prefix for environment overrides, e.g. BOARDADMIN_ENDPOINT
const EnvPrefix = "BOARDADMIN"

// StorageConfig represents credential storage configuration
type StorageConfig struct {
	// Type is one of "memory", "file", "redis", "s3"
	Type string `json:"type" mapstructure:"type" toml:"type" yaml:"type"`

	// File storage config
	FilePath string `json:"file_path,omitempty" mapstructure:"file_path" toml:"file_path" yaml:"file_path"`
	Encrypt  bool   `json:"encrypt,omitempty" mapstructure:"encrypt" toml:"encrypt" yaml:"encrypt"`

	// Redis storage config
	RedisAddr     string `json:"redis_addr,omitempty" mapstructure:"redis_addr" toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password,omitempty" mapstructure:"redis_password" toml:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db,omitempty" mapstructure:"redis_db" toml:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `json:"redis_prefix,omitempty" mapstructure:"redis_prefix" toml:"redis_prefix" yaml:"redis_prefix"`

	// S3 storage config
	S3Bucket   string `json:"s3_bucket,omitempty" mapstructure:"s3_bucket" toml:"s3_bucket" yaml:"s3_bucket"`
	S3Region   string `json:"s3_region,omitempty" mapstructure:"s3_region" toml:"s3_region" yaml:"s3_region"`
	S3Prefix   string `json:"s3_prefix,omitempty" mapstructure:"s3_prefix" toml:"s3_prefix" yaml:"s3_prefix"`
	S3Endpoint string `json:"s3_endpoint,omitempty" mapstructure:"s3_endpoint" toml:"s3_endpoint" yaml:"s3_endpoint"`
}

// Config represents the admin client configuration
type Config struct {
	// Endpoint is the base URL of the board admin API
	Endpoint string `json:"endpoint" mapstructure:"endpoint" toml:"endpoint" yaml:"endpoint"`
	// TimeoutSeconds bounds every API request
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds"`
	// RefreshTimeoutSeconds bounds a single access token refresh call
	RefreshTimeoutSeconds int `json:"refresh_timeout_seconds" mapstructure:"refresh_timeout_seconds" toml:"refresh_timeout_seconds" yaml:"refresh_timeout_seconds"`
	// LogDir receives the session journal
	LogDir  string `json:"log_dir" mapstructure:"log_dir" toml:"log_dir" yaml:"log_dir"`
	Verbose bool   `json:"verbose" mapstructure:"verbose" toml:"verbose" yaml:"verbose"`
	// Storage represents credential storage configuration
	Storage StorageConfig `json:"storage" mapstructure:"storage" toml:"storage" yaml:"storage"`
}

// DefaultDir returns the per-user directory holding credentials and logs
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "boardadmin")
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	dir := DefaultDir()
	return &Config{
		Endpoint:              "http://localhost:8080",
		TimeoutSeconds:        30,
		RefreshTimeoutSeconds: 10,
		LogDir:                filepath.Join(dir, "logs"),
		Storage: StorageConfig{
			Type:     StorageFile,
			FilePath: filepath.Join(dir, "credentials.json"),
			Encrypt:  true,
		},
	}
}

// LoadConfig loads configuration from a JSON, TOML or YAML file.
// Unset fields keep their DefaultConfig values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json", "":
		err = json.Unmarshal(data, config)
	case ".toml":
		_, err = toml.Decode(string(data), config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, err)
	}

	config.applyDefaults()
	return config, nil
}

// LoadWithViper builds the configuration from the file named by the
// "config" key (when it exists) and then applies flag and environment
// overrides registered on v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	config := DefaultConfig()

	if filename := v.GetString("config"); filename != "" {
		loaded, err := LoadConfig(filename)
		switch {
		case err == nil:
			config = loaded
		case errors.Is(err, os.ErrNotExist):
			log.Printf("[CONFIG] %s not found, using defaults", filename)
		default:
			return nil, err
		}
	}

	// viper merges flags, env and defaults; only keys explicitly set win over the file
	layered := viper.New()
	overridden := 0
	for _, key := range v.AllKeys() {
		if key == "config" || !v.IsSet(key) {
			continue
		}
		layered.Set(key, v.Get(key))
		overridden++
	}
	if overridden > 0 {
		if err := layered.Unmarshal(config); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewViper returns a viper instance reading BOARDADMIN_* environment variables
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"endpoint", "timeout_seconds", "refresh_timeout_seconds", "log_dir", "verbose",
		"storage.type", "storage.file_path", "storage.encrypt",
		"storage.redis_addr", "storage.redis_password", "storage.redis_db", "storage.redis_prefix",
		"storage.s3_bucket", "storage.s3_region", "storage.s3_prefix", "storage.s3_endpoint",
	} {
		// BindEnv makes AllKeys report the key so env-only values are picked up
		_ = v.BindEnv(key)
	}
	return v
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Endpoint == "" {
		c.Endpoint = defaults.Endpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if c.RefreshTimeoutSeconds == 0 {
		c.RefreshTimeoutSeconds = defaults.RefreshTimeoutSeconds
	}
	if c.LogDir == "" {
		c.LogDir = defaults.LogDir
	}
	if c.Storage.Type == "" {
		c.Storage.Type = defaults.Storage.Type
	}
	if c.Storage.Type == StorageFile && c.Storage.FilePath == "" {
		c.Storage.FilePath = defaults.Storage.FilePath
	}
}

// Validate checks the configuration for values the client cannot work with
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", c.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", c.Endpoint)
	}
	if c.TimeoutSeconds < 0 || c.RefreshTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	switch c.Storage.Type {
	case StorageMemory, StorageFile:
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for redis storage")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}
	return nil
}

// Timeout returns the per-request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RefreshTimeout returns the bound applied to a single token refresh call
func (c *Config) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutSeconds) * time.Second
}
