package domain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete aquanet configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	CacheStore   CacheStoreConfig   `yaml:"cacheStore"`
	DatasetCache DatasetCacheConfig `yaml:"datasetCache"`
	Generator    GeneratorConfig    `yaml:"generator"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds
}

// CacheStoreConfig selects the build-cache record store.
type CacheStoreConfig struct {
	// Driver is "sqlite" (default, per-collection file) or "postgres"
	// (shared cache for build farms).
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlitePath"`

	PostgresHost     string `yaml:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort"`
	PostgresDB       string `yaml:"postgresDb"`
	PostgresUser     string `yaml:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword"`
	PostgresSSLMode  string `yaml:"postgresSslMode"`

	MaxOpenConns int `yaml:"maxOpenConns"`
	MaxIdleConns int `yaml:"maxIdleConns"`
}

// DatasetCacheConfig selects the read-path raw series cache.
type DatasetCacheConfig struct {
	// Type is "memory" (local LRU) or "redis" (two-phase LRU + redis).
	Type      string        `yaml:"type"`
	MaxSeries int           `yaml:"maxSeries"`
	TTL       time.Duration `yaml:"ttl"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`
}

// GeneratorConfig holds write-path defaults.
type GeneratorConfig struct {
	// Workers bounds the simulation pool when parallel generation is
	// requested. Zero means one worker per CPU.
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the zero-configuration setup: local SQLite cache
// records next to the collection, in-memory dataset cache.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 120,
		},
		CacheStore: CacheStoreConfig{
			Driver: "sqlite",
		},
		DatasetCache: DatasetCacheConfig{
			Type:      "memory",
			MaxSeries: 64,
			TTL:       15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ConfigErrorf("parsing config file %s: %v", path, err)
	}
	return cfg, nil
}
