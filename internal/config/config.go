// Package config loads the settings of the hitch command line.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is read when no --config flag is given.
	DefaultPath = "hitch.yaml"

	// EnvEncryptionKey holds the base64 AES-256 key enabling encryption at rest.
	EnvEncryptionKey = "HITCH_ENCRYPTION_KEY"
	// EnvFallbackKeys holds comma separated base64 keys accepted for decryption only.
	EnvFallbackKeys = "HITCH_ENCRYPTION_FALLBACK_KEYS"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the content of hitch.yaml.
type Config struct {
	Store       StoreConfig `yaml:"store" json:"store"`
	Log         LogConfig   `yaml:"log" json:"log"`
	TaskTimeout string      `yaml:"task_timeout" json:"task_timeout"`
	LockTTL     string      `yaml:"lock_ttl" json:"lock_ttl"`
	MetricsFile string      `yaml:"metrics_file" json:"metrics_file"`

	taskTimeout time.Duration
	lockTTL     time.Duration
}

// StoreConfig selects and configures the checkpoint store.
type StoreConfig struct {
	Driver string      `yaml:"driver" json:"driver"`
	Path   string      `yaml:"path" json:"path"`
	Redis  RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	// TTL expires idle threads with their checkpoints. Empty keeps them
	// until removed.
	TTL string `yaml:"ttl" json:"ttl"`
	// Lock serializes threads across processes sharing the server.
	Lock bool `yaml:"lock" json:"lock"`

	ttl time.Duration
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverFile,
			Path:   ".hitch/threads",
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "hitch:"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML or JSON file (by extension) over the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings and parses durations.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverSQLite, DriverRedis:
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Store.Driver == DriverSQLite && c.Store.Path == "" {
		return fmt.Errorf("%w: sqlite driver needs a path", ErrInvalidConfig)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}

	var err error
	if c.taskTimeout, err = parseDuration("task_timeout", c.TaskTimeout); err != nil {
		return err
	}
	if c.lockTTL, err = parseDuration("lock_ttl", c.LockTTL); err != nil {
		return err
	}
	if c.Store.Redis.ttl, err = parseDuration("store.redis.ttl", c.Store.Redis.TTL); err != nil {
		return err
	}
	return nil
}

// TaskTimeoutDuration bounds tasks without their own timeout; zero means none.
func (c *Config) TaskTimeoutDuration() time.Duration {
	return c.taskTimeout
}

// LockTTLDuration is the lease of the distributed thread lock; zero means the default.
func (c *Config) LockTTLDuration() time.Duration {
	return c.lockTTL
}

// TTLDuration is the expiry of redis records; zero means none.
func (r RedisConfig) TTLDuration() time.Duration {
	return r.ttl
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, field)
	}
	return d, nil
}

// EncryptionKeys reads the keys from the environment. It returns a nil active
// key when encryption is not configured.
func EncryptionKeys() (active []byte, fallback [][]byte, err error) {
	val := os.Getenv(EnvEncryptionKey)
	if val == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(EnvEncryptionKey, val); err != nil {
		return nil, nil, err
	}
	for _, part := range strings.Split(os.Getenv(EnvFallbackKeys), ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		key, err := decodeKey(EnvFallbackKeys, part)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(name, val string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not base64: %w", ErrInvalidConfig, name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: %s must decode to 32 bytes, got %d", ErrInvalidConfig, name, len(key))
	}
	return key, nil
}
