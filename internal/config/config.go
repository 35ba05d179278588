// Package config loads multishot settings from defaults, an optional YAML
// file, environment variables (MULTISHOT_*) and command-line flags, in
// increasing order of precedence, using viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"multishot/internal/job"
)

// EnvPrefix is the prefix of environment overrides, e.g. MULTISHOT_CONCURRENCY.
const EnvPrefix = "MULTISHOT"

// Config represents the complete multishot configuration
type Config struct {
	// Concurrency is the number of jobs captured at once (default: 1)
	Concurrency int `mapstructure:"concurrency"`
	// Timeout bounds each job: navigation, delay and capture (default: 30s)
	Timeout time.Duration `mapstructure:"timeout"`
	// ChromePath is the Chrome/Chromium binary. Empty means CHROME_BIN or
	// the usual install locations.
	ChromePath string         `mapstructure:"chrome_path"`
	Logging    LoggingConfig  `mapstructure:"logging"`
	Defaults   DefaultsConfig `mapstructure:"defaults"`
}

// LoggingConfig controls diagnostic logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "warn")
	Level string `mapstructure:"level"`
	// File receives JSON log entries when set; otherwise logs go to stderr
	File string `mapstructure:"file"`
}

// DefaultsConfig supplies job settings that neither a bracket group nor the
// top-level arguments set.
type DefaultsConfig struct {
	// Out is the output directory (default: ".")
	Out string `mapstructure:"out"`
	// Format is "png" or "jpg" (default: "png")
	Format string `mapstructure:"format"`
	// Quality is the jpg quality, 0 for the encoder default
	Quality int `mapstructure:"quality"`
	// DelayMs is waited after load before capturing
	DelayMs int `mapstructure:"delay_ms"`
	// ZoomFactor scales page layout (default: 1)
	ZoomFactor float64 `mapstructure:"zoom_factor"`
	// DeviceScaleFactor scales output pixels (default: 1)
	DeviceScaleFactor float64 `mapstructure:"device_scale_factor"`
	// ChromeFlags are extra Chrome switches added to every job
	ChromeFlags map[string]string `mapstructure:"chrome_flags"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Concurrency: 1,
		Timeout:     30 * time.Second,
		ChromePath:  "",
		Logging: LoggingConfig{
			Level: "warn",
			File:  "",
		},
		Defaults: DefaultsConfig{
			Out:               ".",
			Format:            "png",
			Quality:           0,
			DelayMs:           0,
			ZoomFactor:        1,
			DeviceScaleFactor: 1,
			ChromeFlags:       map[string]string{},
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("concurrency", defaults.Concurrency)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("chrome_path", defaults.ChromePath)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)

	v.SetDefault("defaults.out", defaults.Defaults.Out)
	v.SetDefault("defaults.format", defaults.Defaults.Format)
	v.SetDefault("defaults.quality", defaults.Defaults.Quality)
	v.SetDefault("defaults.delay_ms", defaults.Defaults.DelayMs)
	v.SetDefault("defaults.zoom_factor", defaults.Defaults.ZoomFactor)
	v.SetDefault("defaults.device_scale_factor", defaults.Defaults.DeviceScaleFactor)
	v.SetDefault("defaults.chrome_flags", defaults.Defaults.ChromeFlags)
}

// Init prepares v: defaults, environment overrides and the config file
// search path. cfgFile, when set, replaces the search path.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// Nested keys use underscores, e.g. MULTISHOT_LOGGING_LEVEL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return v.ReadInConfig()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; a broken one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// JobDefaults converts the defaults section into the lowest layer of job
// resolution. Call it on a validated Config.
func (c *Config) JobDefaults() job.Defaults {
	format, err := job.ParseFormat(c.Defaults.Format)
	if err != nil {
		format = job.FormatPNG
	}
	d := job.Defaults{
		OutputDir:         c.Defaults.Out,
		Format:            format,
		Quality:           c.Defaults.Quality,
		Delay:             time.Duration(c.Defaults.DelayMs) * time.Millisecond,
		ZoomFactor:        c.Defaults.ZoomFactor,
		DeviceScaleFactor: c.Defaults.DeviceScaleFactor,
		ExtraFlags:        c.Defaults.ChromeFlags,
	}
	if d.OutputDir == "" {
		d.OutputDir = "."
	}
	return d
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "multishot")
	}
	// Fall back to ~/.config/multishot
	home, err := os.UserHomeDir()
	if err != nil {
		return ".multishot"
	}
	return filepath.Join(home, ".config", "multishot")
}
