package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "REFSCAN"

var OutputFormats = []string{"cli", "tui", "json"}

// Config holds the whole refscan configuration
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Scan   ScanConfig   `mapstructure:"scan" yaml:"scan"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// ScanConfig tunes the traversal and the host loop that drives it
type ScanConfig struct {
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
	StepsPerTick  int           `mapstructure:"steps_per_tick" yaml:"steps_per_tick"`
	TickInterval  time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	IncludeHidden bool          `mapstructure:"include_hidden" yaml:"include_hidden"`
	RetainResults bool          `mapstructure:"retain_results" yaml:"retain_results"`
	AssetWorkers  int           `mapstructure:"asset_workers" yaml:"asset_workers"`
}

type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Color  bool   `mapstructure:"color" yaml:"color"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "refscan")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Scan --
	v.SetDefault("scan.batch_size", 32)
	v.SetDefault("scan.steps_per_tick", 64)
	v.SetDefault("scan.tick_interval", "16ms")
	v.SetDefault("scan.include_hidden", false)
	v.SetDefault("scan.retain_results", false)
	v.SetDefault("scan.asset_workers", 8)

	// -- Output --
	v.SetDefault("output.format", "cli")
	v.SetDefault("output.color", true)

	// -- Watch --
	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.debounce", "250ms")
}

// Load reads an optional config file plus REFSCAN_* environment variables
// into v and returns the validated result. Flags bound to v before the call
// take precedence over both.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(".refscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("scan.batch_size must be a positive integer")
	}
	if c.Scan.StepsPerTick <= 0 {
		return fmt.Errorf("scan.steps_per_tick must be a positive integer")
	}
	if c.Scan.TickInterval <= 0 {
		return fmt.Errorf("scan.tick_interval must be a positive duration")
	}
	if c.Scan.AssetWorkers <= 0 {
		return fmt.Errorf("scan.asset_workers must be a positive integer")
	}
	if !slices.Contains(OutputFormats, c.Output.Format) {
		return fmt.Errorf("output.format must be one of %v, got %q", OutputFormats, c.Output.Format)
	}
	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be a positive duration")
	}
	return nil
}
