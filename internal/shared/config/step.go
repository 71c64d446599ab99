package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StepConfig contains all configuration for the step executor.
type StepConfig struct {
	Poll    PollConfig    `mapstructure:"poll"`
	Backend BackendConfig `mapstructure:"backend"`
	Store   StoreConfig   `mapstructure:"store"`
	Local   LocalConfig   `mapstructure:"local"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PollConfig controls how often the backend status is sampled.
type PollConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

func (c PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// BackendConfig selects the compute backend and how to reach it.
type BackendConfig struct {
	Type           string        `mapstructure:"type"`
	StatusURL      string        `mapstructure:"status_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// StoreConfig contains the output store connection settings.
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LocalConfig configures the in-process backend.
type LocalConfig struct {
	Slots      int    `mapstructure:"slots"`
	Mappers    int    `mapstructure:"mappers"`
	OutputRoot string `mapstructure:"output_root"`
}

const (
	BackendLocal = "local"
	BackendREST  = "rest"
)

// LoadStep loads the step executor configuration from the given path.
// If configPath is empty, it looks for stepexec.yaml in the config/ directory.
// Environment variables with MRSTEP_ prefix override config file values.
func LoadStep(configPath string) (*StepConfig, error) {
	v := viper.New()

	v.SetDefault("poll.interval_seconds", 10)
	v.SetDefault("backend.type", BackendLocal)
	v.SetDefault("backend.status_url", "http://localhost:8080")
	v.SetDefault("backend.request_timeout", 10*time.Second)
	v.SetDefault("backend.max_retries", 3)
	v.SetDefault("store.dsn", "mrstep.db?_pragma=busy_timeout(5000)")
	v.SetDefault("local.slots", 2)
	v.SetDefault("local.mappers", 4)
	v.SetDefault("local.output_root", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("stepexec")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MRSTEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg StepConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *StepConfig) Validate() error {
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be greater than 0")
	}
	switch c.Backend.Type {
	case BackendLocal:
		if c.Local.Slots <= 0 {
			return fmt.Errorf("local.slots must be greater than 0")
		}
	case BackendREST:
		if c.Backend.StatusURL == "" {
			return fmt.Errorf("backend.status_url is required for the rest backend")
		}
	default:
		return fmt.Errorf("unsupported backend type: %s", c.Backend.Type)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	return nil
}
