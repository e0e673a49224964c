// Package config loads projfs settings from defaults, an optional TOML or
// YAML file and PROJFS_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PROJFS"

// Store types.
const (
	StoreMem = "mem"
	StoreDir = "dir"
	StoreS3  = "s3"
)

// Config holds all projfs configuration.
type Config struct {
	Store StoreConfig `toml:"store" yaml:"store"`
	S3    S3Config    `toml:"s3" yaml:"s3"`
	Cache CacheConfig `toml:"cache" yaml:"cache"`
	Log   LogConfig   `toml:"log" yaml:"log"`
}

// StoreConfig selects the backing store.
type StoreConfig struct {
	Type string `toml:"type" yaml:"type"` // "mem", "dir" or "s3"
	Root string `toml:"root" yaml:"root"` // directory for the dir store
}

// S3Config holds S3 store settings.
type S3Config struct {
	Bucket          string `toml:"bucket" yaml:"bucket"`
	Prefix          string `toml:"prefix" yaml:"prefix"`
	Region          string `toml:"region" yaml:"region"`
	Endpoint        string `toml:"endpoint" yaml:"endpoint"` // S3-compatible services
	UsePathStyle    bool   `toml:"use_path_style" yaml:"use_path_style" envconfig:"use_path_style"`
	AccessKeyID     string `toml:"access_key_id" yaml:"access_key_id" envconfig:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key" yaml:"secret_access_key" envconfig:"secret_access_key"`
}

// CacheConfig holds stat cache settings.
type CacheConfig struct {
	Enabled bool     `toml:"enabled" yaml:"enabled"`
	TTL     Duration `toml:"ttl" yaml:"ttl"`
	// MaxEntries bounds hits and misses separately. Zero means unbounded.
	MaxEntries int `toml:"max_entries" yaml:"max_entries" envconfig:"max_entries"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `toml:"level" yaml:"level"`
	Development bool   `toml:"development" yaml:"development"`
}

// Duration is a time.Duration written as "30s" or "5m" in files and
// environment variables.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Type: StoreMem,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        Duration{5 * time.Second},
			MaxEntries: 1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load returns the defaults overridden by the file at path, if path is not
// empty, and then by the environment. The result is not validated; callers
// apply their own overrides first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the selected store is fully configured.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case StoreMem:
	case StoreDir:
		if c.Store.Root == "" {
			return fmt.Errorf("store.root is required for the %s store", StoreDir)
		}
	case StoreS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the %s store", StoreS3)
		}
	default:
		return fmt.Errorf("unknown store type %q (want %s, %s or %s)", c.Store.Type, StoreMem, StoreDir, StoreS3)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative")
	}
	return nil
}
