package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"election-backend/service"
	"election-backend/storage"
)

// EnvPrefix is prepended to every environment override, e.g.
// ELECTION_STORAGE_BACKEND.
const EnvPrefix = "ELECTION"

type Config struct {
	ProgramID       string        `mapstructure:"program_id"`
	StakeMultiplier uint64        `mapstructure:"stake_multiplier"`
	Storage         StorageConfig `mapstructure:"storage"`
	Log             LogConfig     `mapstructure:"log"`
}

type StorageConfig struct {
	// Backend is one of memory, json or bolt.
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults and environment overrides set.
func New() *viper.Viper {
	v := viper.New()
	defaults := service.DefaultParams()
	v.SetDefault("program_id", defaults.ProgramID)
	v.SetDefault("stake_multiplier", defaults.StakeMultiplier)
	v.SetDefault("storage.backend", storage.BackendBolt)
	v.SetDefault("storage.path", "./data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configPath, if set, into v and decodes the result.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if err := c.Params().Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	switch c.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendJSON, storage.BackendBolt:
		if c.Storage.Path == "" {
			result = multierror.Append(result, fmt.Errorf("storage path is required for backend %q", c.Storage.Backend))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		result = multierror.Append(result, fmt.Errorf("log format must be console or json, got %q", c.Log.Format))
	}
	return result.ErrorOrNil()
}

func (c *Config) Params() service.Params {
	return service.Params{
		ProgramID:       c.ProgramID,
		StakeMultiplier: c.StakeMultiplier,
	}
}

// OpenStore opens the configured storage backend.
func (c *Config) OpenStore() (storage.Store, error) {
	return storage.Open(c.Storage.Backend, c.Storage.Path)
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	out := w
	if c.Log.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
