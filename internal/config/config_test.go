package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"multishot/internal/job"
)

func TestDefaultIsValid(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default() has validation errors: %v", ValidationErrors(errs))
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	v := viper.New()
	if err := Init(v, ""); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Concurrency != 1 || cfg.Timeout != 30*time.Second || cfg.Logging.Level != "warn" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	d := cfg.JobDefaults()
	if d.Format != job.FormatPNG || d.OutputDir != "." || d.ZoomFactor != 1 || d.DeviceScaleFactor != 1 {
		t.Errorf("unexpected job defaults: %+v", d)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multishot.yaml")
	content := `
concurrency: 4
timeout: 5s
logging:
  level: debug
defaults:
  out: shots
  format: jpg
  quality: 80
  delay_ms: 250
  chrome_flags:
    disable-gpu: "true"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := Init(v, path); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Concurrency != 4 || cfg.Timeout != 5*time.Second || cfg.Logging.Level != "debug" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	d := cfg.JobDefaults()
	if d.OutputDir != "shots" || d.Format != job.FormatJPG || d.Quality != 80 || d.Delay != 250*time.Millisecond {
		t.Errorf("unexpected job defaults: %+v", d)
	}
	if d.ExtraFlags["disable-gpu"] != "true" {
		t.Errorf("chrome flags not loaded: %v", d.ExtraFlags)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("MULTISHOT_CONCURRENCY", "3")
	t.Setenv("MULTISHOT_DEFAULTS_FORMAT", "jpg")

	v := viper.New()
	if err := Init(v, ""); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3 from env", cfg.Concurrency)
	}
	if cfg.Defaults.Format != "jpg" {
		t.Errorf("Defaults.Format = %q, want jpg from env", cfg.Defaults.Format)
	}
}

func TestInitMissingExplicitFile(t *testing.T) {
	v := viper.New()
	if err := Init(v, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Defaults.Format = "bmp" }, "defaults.format"},
		{"bad quality", func(c *Config) { c.Defaults.Format = "jpg"; c.Defaults.Quality = 120 }, "defaults.quality"},
		{"negative delay", func(c *Config) { c.Defaults.DelayMs = -1 }, "defaults.delay_ms"},
		{"zero zoom", func(c *Config) { c.Defaults.ZoomFactor = 0 }, "defaults.zoom_factor"},
		{"zero scale", func(c *Config) { c.Defaults.DeviceScaleFactor = 0 }, "defaults.device_scale_factor"},
		{"NaN zoom", func(c *Config) { c.Defaults.ZoomFactor = math.NaN() }, "defaults.zoom_factor"},
		{"infinite scale", func(c *Config) { c.Defaults.DeviceScaleFactor = math.Inf(1) }, "defaults.device_scale_factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), ValidationErrors(errs))
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") || !strings.Contains(msg, "b: worse (got: 2)") {
		t.Errorf("unexpected message: %s", msg)
	}

	var target ValidationErrors
	if !errors.As(error(errs), &target) {
		t.Error("ValidationErrors should be matchable with errors.As")
	}
}
