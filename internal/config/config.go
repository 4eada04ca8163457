// Package config loads webqa configuration from YAML with environment and
// command-line overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all webqa configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Capture CaptureConfig `yaml:"capture"`
	Visual  VisualConfig  `yaml:"visual"`
	Matrix  MatrixConfig  `yaml:"matrix"`
	Run     RunConfig     `yaml:"run"`
	Logging LoggingConfig `yaml:"logging"`
}

// BrowserConfig configures browser launching.
type BrowserConfig struct {
	// Driver selects the automation backend: auto, rod, playwright.
	Driver   string `yaml:"driver"`
	Headless bool   `yaml:"headless"`
	// Bin overrides the Chromium binary used by the rod driver.
	Bin string `yaml:"bin"`
	// Flags are extra Chromium command-line flags for the rod driver.
	Flags []string `yaml:"flags"`
}

// CaptureConfig configures navigation and screenshot capture.
type CaptureConfig struct {
	// Engine used for viewport targets.
	Engine            string `yaml:"engine"`
	WaitUntil         string `yaml:"wait_until"` // load, domcontentloaded, networkidle
	NavigationTimeout string `yaml:"navigation_timeout"`
	MaxAttempts       int    `yaml:"max_attempts"`
	RetryDelay        string `yaml:"retry_delay"`
	WaitForStableDOM  bool   `yaml:"wait_for_stable_dom"`
	StableDOMTimeout  string `yaml:"stable_dom_timeout"`
}

// VisualConfig configures the diff engine.
type VisualConfig struct {
	Threshold    float64 `yaml:"threshold"`
	Gain         int     `yaml:"gain"`
	ResizePolicy string  `yaml:"resize_policy"` // stretch, pad, reject
}

// MatrixConfig configures the cross-browser smoke run.
type MatrixConfig struct {
	SlowLoad string `yaml:"slow_load"`
}

// RunConfig configures scheduling and pass/fail policy.
type RunConfig struct {
	Workers     int  `yaml:"workers"`
	FailOnError bool `yaml:"fail_on_error"`
	FailOnWarn  bool `yaml:"fail_on_warn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`
	// Categories turns individual log categories off (browser: false).
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Driver:   "auto",
			Headless: true,
		},
		Capture: CaptureConfig{
			Engine:            "chromium",
			WaitUntil:         "networkidle",
			NavigationTimeout: "30s",
			MaxAttempts:       3,
			RetryDelay:        "1s",
			StableDOMTimeout:  "10s",
		},
		Visual: VisualConfig{
			Threshold:    0.05,
			Gain:         10,
			ResizePolicy: "stretch",
		},
		Matrix: MatrixConfig{
			SlowLoad: "5s",
		},
		Run: RunConfig{
			Workers:     1,
			FailOnError: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("WEBQA_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WEBQA_HEADLESS: %w", err)
		}
		c.Browser.Headless = b
	}
	if v := os.Getenv("WEBQA_BROWSER_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("WEBQA_DRIVER"); v != "" {
		c.Browser.Driver = v
	}
	if v := os.Getenv("WEBQA_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("WEBQA_THRESHOLD: %w", err)
		}
		c.Visual.Threshold = f
	}
	if v := os.Getenv("WEBQA_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WEBQA_WORKERS: %w", err)
		}
		c.Run.Workers = n
	}
	if v := os.Getenv("WEBQA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate reports configuration errors that make a run impossible.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Browser.Driver) {
	case "", "auto", "rod", "playwright":
	default:
		errs = append(errs, fmt.Errorf("browser.driver: unknown driver %q", c.Browser.Driver))
	}
	switch strings.ToLower(c.Capture.WaitUntil) {
	case "", "load", "domcontentloaded", "networkidle":
	default:
		errs = append(errs, fmt.Errorf("capture.wait_until: unknown condition %q", c.Capture.WaitUntil))
	}
	if math.IsNaN(c.Visual.Threshold) || c.Visual.Threshold < 0 || c.Visual.Threshold > 1 {
		errs = append(errs, fmt.Errorf("visual.threshold: %v is outside [0,1]", c.Visual.Threshold))
	}
	switch strings.ToLower(c.Visual.ResizePolicy) {
	case "", "stretch", "pad", "reject":
	default:
		errs = append(errs, fmt.Errorf("visual.resize_policy: unknown policy %q", c.Visual.ResizePolicy))
	}
	if c.Run.Workers < 0 {
		errs = append(errs, fmt.Errorf("run.workers: must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return &Error{Err: err}
	}
	return nil
}

// GetNavigationTimeout returns the navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Capture.NavigationTimeout, 30*time.Second)
}

// GetRetryDelay returns the delay between navigation attempts.
func (c *Config) GetRetryDelay() time.Duration {
	return parseDuration(c.Capture.RetryDelay, time.Second)
}

// GetStableDOMTimeout returns the bound on the DOM stability wait.
func (c *Config) GetStableDOMTimeout() time.Duration {
	return parseDuration(c.Capture.StableDOMTimeout, 10*time.Second)
}

// GetSlowLoad returns the load time above which a load step warns.
func (c *Config) GetSlowLoad() time.Duration {
	return parseDuration(c.Matrix.SlowLoad, 5*time.Second)
}

// GetMaxAttempts returns the navigation attempt bound, at least 1.
func (c *Config) GetMaxAttempts() int {
	if c.Capture.MaxAttempts < 1 {
		return 3
	}
	return c.Capture.MaxAttempts
}

// GetWorkers returns the worker count, at least 1.
func (c *Config) GetWorkers() int {
	if c.Run.Workers < 1 {
		return 1
	}
	return c.Run.Workers
}

// GetGain returns the diff amplification factor.
func (c *Config) GetGain() int {
	if c.Visual.Gain < 1 {
		return 10
	}
	return c.Visual.Gain
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Error marks a configuration problem that is fatal to the whole run.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a configuration error.
func Errorf(format string, args ...any) error {
	return &Error{Err: fmt.Errorf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a configuration error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
