// internal/config/config.go

// Package config loads and validates the application configuration from
// defaults, an optional YAML file and SCREENPILOT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the full application configuration tree.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Capture   CaptureConfig   `mapstructure:"capture" yaml:"capture"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Runtime   RuntimeConfig   `mapstructure:"runtime" yaml:"runtime"`
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

// ColorConfig names the console color for each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Capture modes.
const (
	CaptureModeCDP    = "cdp"
	CaptureModeReplay = "replay"
)

// CaptureConfig selects and tunes the frame source.
type CaptureConfig struct {
	// Mode is "cdp" for a live browser or "replay" for a directory of
	// recorded frames.
	Mode string `mapstructure:"mode" yaml:"mode"`
	// CDPURL points at an already running DevTools endpoint. Empty means
	// launch a browser locally.
	CDPURL    string `mapstructure:"cdp_url" yaml:"cdp_url"`
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
	FramesDir string `mapstructure:"frames_dir" yaml:"frames_dir"`
	// RatePerSecond caps how often frames are captured.
	RatePerSecond  float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	ViewportWidth  int     `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int     `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// DetectionConfig tunes screen state scoring.
type DetectionConfig struct {
	// DefaultThreshold is the activation confidence used when a screen
	// state does not carry its own.
	DefaultThreshold float64 `mapstructure:"default_threshold" yaml:"default_threshold"`
	// SettleDelay is the pause between a click and its postcondition check.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// HistoryConfig holds the run-history sink connection details. An empty DSN
// disables persistence.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// RuntimeConfig bounds the engine's polling loops.
type RuntimeConfig struct {
	WorkflowTimeout   time.Duration `mapstructure:"workflow_timeout" yaml:"workflow_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	NavigationMaxWait time.Duration `mapstructure:"navigation_max_wait" yaml:"navigation_max_wait"`
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults always unmarshal; anything else is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults seeds v with the default value for every key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "screenpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Capture --
	v.SetDefault("capture.mode", CaptureModeCDP)
	v.SetDefault("capture.cdp_url", "")
	v.SetDefault("capture.headless", true)
	v.SetDefault("capture.frames_dir", "")
	v.SetDefault("capture.rate_per_second", 4.0)
	v.SetDefault("capture.viewport_width", 1280)
	v.SetDefault("capture.viewport_height", 800)

	// -- Detection --
	v.SetDefault("detection.default_threshold", 0.9)
	v.SetDefault("detection.settle_delay", "250ms")

	// -- History --
	v.SetDefault("history.dsn", "")

	// -- Runtime --
	v.SetDefault("runtime.workflow_timeout", "5m")
	v.SetDefault("runtime.poll_interval", "500ms")
	v.SetDefault("runtime.navigation_max_wait", "30s")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The history DSN carries credentials; allow it via env only.
	v.BindEnv("history.dsn", "SCREENPILOT_HISTORY_DSN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.History.DSN == "" {
		cfg.History.DSN = os.Getenv("SCREENPILOT_HISTORY_DSN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// SearchPaths returns the directories probed for a config file, in order:
// the working directory, then $HOME/.screenpilot.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := homedir.Dir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".screenpilot"))
	}
	return paths
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture configuration invalid: %w", err)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection configuration invalid: %w", err)
	}
	if err := c.Runtime.Validate(); err != nil {
		return fmt.Errorf("runtime configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the capture section.
func (c *CaptureConfig) Validate() error {
	switch c.Mode {
	case CaptureModeCDP:
	case CaptureModeReplay:
		if c.FramesDir == "" {
			return fmt.Errorf("frames_dir is required when mode is %q", CaptureModeReplay)
		}
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", CaptureModeCDP, CaptureModeReplay, c.Mode)
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("rate_per_second must be positive")
	}
	if c.ViewportWidth < 0 || c.ViewportHeight < 0 {
		return fmt.Errorf("viewport dimensions must not be negative")
	}
	return nil
}

// Validate checks the detection section.
func (d *DetectionConfig) Validate() error {
	if d.DefaultThreshold < 0.0 || d.DefaultThreshold > 1.0 {
		return fmt.Errorf("default_threshold must be between 0.0 and 1.0")
	}
	if d.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	return nil
}

// Validate checks the runtime section.
func (r *RuntimeConfig) Validate() error {
	if r.WorkflowTimeout <= 0 {
		return fmt.Errorf("workflow_timeout must be a positive duration")
	}
	if r.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if r.NavigationMaxWait <= 0 {
		return fmt.Errorf("navigation_max_wait must be a positive duration")
	}
	return nil
}
