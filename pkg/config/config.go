// Package config provides configuration management for the fieldaccess tool.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Synth     SynthConfig     `mapstructure:"synth"`
	Histogram HistogramConfig `mapstructure:"histogram"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Output    OutputConfig    `mapstructure:"output"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// ResolverConfig selects how container layouts are produced.
type ResolverConfig struct {
	// Mode is "symbol_server" (synthesize full container backing storage)
	// or "local" (return the bare element type).
	Mode string `mapstructure:"mode"`
}

// SynthConfig holds the ABI constants used by the container synthesizer.
type SynthConfig struct {
	SwissAlignmentBytes int64 `mapstructure:"swiss_alignment_bytes"`
	SwissGroupWidth     int64 `mapstructure:"swiss_group_width"`
	WordBits            int64 `mapstructure:"word_bits"`
	Hashtablez          bool  `mapstructure:"hashtablez"`
	HashtablezBits      int64 `mapstructure:"hashtablez_bits"`
}

// HistogramConfig holds the builder pipeline settings.
type HistogramConfig struct {
	GranularityBytes         int64    `mapstructure:"granularity_bytes"`
	TypePrefixFilter         []string `mapstructure:"type_prefix_filter"`
	CallstackFilter          []string `mapstructure:"callstack_filter"`
	OnlyRecords              bool     `mapstructure:"only_records"`
	VerifyVerbose            bool     `mapstructure:"verify_verbose"`
	DumpUnresolvedCallstacks bool     `mapstructure:"dump_unresolved_callstacks"`
	Workers                  int      `mapstructure:"workers"`
}

// MetadataConfig selects the type metadata source.
type MetadataConfig struct {
	Source string `mapstructure:"source"` // file or database
	Path   string `mapstructure:"path"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// CacheConfig holds the resolved layout cache configuration.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
}

// OutputConfig controls report generation.
type OutputConfig struct {
	Path       string `mapstructure:"path"`
	Flamegraph bool   `mapstructure:"flamegraph"`
	Limit      int    `mapstructure:"limit"`
	Stats      bool   `mapstructure:"stats"`
}

// Load reads configuration from the specified file path. A missing file
// yields the defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("fieldaccess")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fieldaccess")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return unmarshal(v)
}

// Default returns the configuration made of defaults only.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FIELDACCESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("resolver.mode", "symbol_server")

	v.SetDefault("synth.swiss_alignment_bytes", 8)
	v.SetDefault("synth.swiss_group_width", 16)
	v.SetDefault("synth.word_bits", 64)
	v.SetDefault("synth.hashtablez", false)
	v.SetDefault("synth.hashtablez_bits", 64)

	v.SetDefault("histogram.granularity_bytes", 8)
	v.SetDefault("histogram.type_prefix_filter", []string{})
	v.SetDefault("histogram.callstack_filter", []string{})
	v.SetDefault("histogram.workers", 4)

	v.SetDefault("metadata.source", "file")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.database", "fieldaccess.db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.key_prefix", "fieldaccess:layout:")
	v.SetDefault("cache.ttl_seconds", 3600)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./storage")

	v.SetDefault("output.limit", -1)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Resolver.Mode {
	case "symbol_server", "local":
	default:
		return fmt.Errorf("unsupported resolver mode: %s", c.Resolver.Mode)
	}

	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.Type != "sqlite" && c.Database.Host == "" {
		return fmt.Errorf("database host is required for %s", c.Database.Type)
	}

	switch c.Metadata.Source {
	case "file", "database":
	default:
		return fmt.Errorf("unsupported metadata source: %s", c.Metadata.Source)
	}

	if c.Synth.SwissAlignmentBytes <= 0 || c.Synth.SwissGroupWidth <= 0 || c.Synth.WordBits <= 0 {
		return fmt.Errorf("synth constants must be positive")
	}

	if c.Histogram.GranularityBytes <= 0 {
		return fmt.Errorf("histogram granularity must be positive")
	}
	if c.Histogram.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	return nil
}
