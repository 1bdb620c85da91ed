// Package config provides centralized configuration for the storefront suite.
// It loads configuration from environment variables, an optional YAML file and
// CLI overrides, validates every field, and provides defaults matching the
// storefront demo site.
//
// Precedence, lowest first: defaults, environment, YAML file, CLI overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL   = "https://magento.softwaretestingboard.com/"
	defaultAWSRegion = "us-east-1"
)

// Browsers lists the supported Playwright browser engines.
var Browsers = []string{"chromium", "firefox", "webkit"}

// Config holds all suite configuration.
type Config struct {
	// Target storefront
	BaseURL string

	// Browser
	Browser           string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	DefaultTimeout    time.Duration
	NavigationTimeout time.Duration
	ProbeTimeout      time.Duration

	// Retry executor
	MaxRetries     int
	RetryBaseDelay time.Duration
	SettleDelay    time.Duration

	// Navigation pacing against the shared demo store
	NavigationRPS   float64
	NavigationBurst int

	// Artifacts and logs
	ArtifactDir     string
	LogDir          string
	MetricsTextfile string

	// S3 artifact upload (disabled when ArtifactBucket is empty)
	ArtifactBucket     string
	AWSEndpointS3      string
	AWSRegion          string
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
}

// Overrides carries values set explicitly on the command line. Nil fields
// leave the loaded value untouched.
type Overrides struct {
	ConfigFile string
	BaseURL    *string
	Browser    *string
	Headless   *bool
	MaxRetries *int
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		Browser:           "chromium",
		Headless:          true,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		DefaultTimeout:    30 * time.Second,
		NavigationTimeout: 60 * time.Second,
		ProbeTimeout:      5 * time.Second,
		MaxRetries:        3,
		RetryBaseDelay:    3 * time.Second,
		SettleDelay:       2 * time.Second,
		NavigationRPS:     2,
		NavigationBurst:   4,
		ArtifactDir:       "./artifacts",
		LogDir:            "./logs",
		AWSRegion:         defaultAWSRegion,
	}
}

// LoadConfig loads configuration from the environment, the YAML file named by
// overrides.ConfigFile or SUITE_CONFIG, and the CLI overrides, then validates it.
func LoadConfig(overrides Overrides) (*Config, error) {
	cfg := Default()
	cfg.applyEnv()

	configFile := strings.TrimSpace(overrides.ConfigFile)
	if configFile == "" {
		configFile = strings.TrimSpace(os.Getenv("SUITE_CONFIG"))
	}
	if configFile != "" {
		if err := cfg.applyFile(configFile); err != nil {
			return nil, err
		}
	}

	if overrides.BaseURL != nil {
		cfg.BaseURL = strings.TrimSpace(*overrides.BaseURL)
	}
	if overrides.Browser != nil {
		cfg.Browser = strings.ToLower(strings.TrimSpace(*overrides.Browser))
	}
	if overrides.Headless != nil {
		cfg.Headless = *overrides.Headless
	}
	if overrides.MaxRetries != nil {
		cfg.MaxRetries = *overrides.MaxRetries
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.BaseURL = getEnvOrDefault("BASE_URL", c.BaseURL)
	c.Browser = strings.ToLower(getEnvOrDefault("BROWSER", c.Browser))
	c.Headless = parseBoolOrDefault("HEADLESS", c.Headless)
	c.ViewportWidth = parseIntOrDefault("VIEWPORT_WIDTH", c.ViewportWidth)
	c.ViewportHeight = parseIntOrDefault("VIEWPORT_HEIGHT", c.ViewportHeight)
	c.DefaultTimeout = parseDurationOrDefault("WAIT_TIMEOUT", c.DefaultTimeout)
	c.NavigationTimeout = parseDurationOrDefault("NAVIGATION_TIMEOUT", c.NavigationTimeout)
	c.ProbeTimeout = parseDurationOrDefault("PROBE_TIMEOUT", c.ProbeTimeout)

	c.MaxRetries = parseIntOrDefault("MAX_RETRIES", c.MaxRetries)
	c.RetryBaseDelay = parseDurationOrDefault("RETRY_BASE_DELAY", c.RetryBaseDelay)
	c.SettleDelay = parseDurationOrDefault("SETTLE_DELAY", c.SettleDelay)

	c.NavigationRPS = parseFloat64OrDefault("NAVIGATION_RPS", c.NavigationRPS)
	c.NavigationBurst = parseIntOrDefault("NAVIGATION_BURST", c.NavigationBurst)

	c.ArtifactDir = getEnvOrDefault("ARTIFACT_DIR", c.ArtifactDir)
	c.LogDir = getEnvOrDefault("LOG_DIR", c.LogDir)
	c.MetricsTextfile = getEnvOrDefault("METRICS_TEXTFILE", c.MetricsTextfile)

	c.ArtifactBucket = getEnvOrDefault("ARTIFACT_BUCKET", c.ArtifactBucket)
	c.AWSEndpointS3 = getEnvOrDefault("AWS_ENDPOINT_URL_S3", c.AWSEndpointS3)
	c.AWSRegion = getEnvOrDefault("AWS_REGION", c.AWSRegion)
	c.AWSAccessKeyID = getEnvOrDefault("AWS_ACCESS_KEY_ID", c.AWSAccessKeyID)
	c.AWSSecretAccessKey = getEnvOrDefault("AWS_SECRET_ACCESS_KEY", c.AWSSecretAccessKey)
}

// applyFile overlays fields present in a YAML file. Absent keys leave the
// field untouched.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	file.apply(c)
	return nil
}

// fileConfig mirrors Config with string durations so YAML can say "3s".
type fileConfig struct {
	BaseURL           *string  `yaml:"base_url"`
	Browser           *string  `yaml:"browser"`
	Headless          *bool    `yaml:"headless"`
	ViewportWidth     *int     `yaml:"viewport_width"`
	ViewportHeight    *int     `yaml:"viewport_height"`
	DefaultTimeout    *string  `yaml:"wait_timeout"`
	NavigationTimeout *string  `yaml:"navigation_timeout"`
	ProbeTimeout      *string  `yaml:"probe_timeout"`
	MaxRetries        *int     `yaml:"max_retries"`
	RetryBaseDelay    *string  `yaml:"retry_base_delay"`
	SettleDelay       *string  `yaml:"settle_delay"`
	NavigationRPS     *float64 `yaml:"navigation_rps"`
	NavigationBurst   *int     `yaml:"navigation_burst"`
	ArtifactDir       *string  `yaml:"artifact_dir"`
	LogDir            *string  `yaml:"log_dir"`
	MetricsTextfile   *string  `yaml:"metrics_textfile"`
	ArtifactBucket    *string  `yaml:"artifact_bucket"`
	AWSEndpointS3     *string  `yaml:"aws_endpoint_url_s3"`
	AWSRegion         *string  `yaml:"aws_region"`
}

func (f fileConfig) apply(c *Config) {
	setString(&c.BaseURL, f.BaseURL)
	if f.Browser != nil {
		c.Browser = strings.ToLower(strings.TrimSpace(*f.Browser))
	}
	if f.Headless != nil {
		c.Headless = *f.Headless
	}
	setInt(&c.ViewportWidth, f.ViewportWidth)
	setInt(&c.ViewportHeight, f.ViewportHeight)
	setDuration(&c.DefaultTimeout, f.DefaultTimeout)
	setDuration(&c.NavigationTimeout, f.NavigationTimeout)
	setDuration(&c.ProbeTimeout, f.ProbeTimeout)
	setInt(&c.MaxRetries, f.MaxRetries)
	setDuration(&c.RetryBaseDelay, f.RetryBaseDelay)
	setDuration(&c.SettleDelay, f.SettleDelay)
	if f.NavigationRPS != nil {
		c.NavigationRPS = *f.NavigationRPS
	}
	setInt(&c.NavigationBurst, f.NavigationBurst)
	setString(&c.ArtifactDir, f.ArtifactDir)
	setString(&c.LogDir, f.LogDir)
	setString(&c.MetricsTextfile, f.MetricsTextfile)
	setString(&c.ArtifactBucket, f.ArtifactBucket)
	setString(&c.AWSEndpointS3, f.AWSEndpointS3)
	setString(&c.AWSRegion, f.AWSRegion)
}

// Validate checks that every field is usable. All issues are reported at once.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, "BASE_URL must be an absolute http(s) URL")
	}

	if !isSupportedBrowser(c.Browser) {
		errs = append(errs, fmt.Sprintf("BROWSER must be one of %s", strings.Join(Browsers, ", ")))
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		errs = append(errs, "VIEWPORT_WIDTH and VIEWPORT_HEIGHT must be positive")
	}
	if c.DefaultTimeout <= 0 {
		errs = append(errs, "WAIT_TIMEOUT must be positive")
	}
	if c.NavigationTimeout <= 0 {
		errs = append(errs, "NAVIGATION_TIMEOUT must be positive")
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, "PROBE_TIMEOUT must be positive")
	}

	if c.MaxRetries < 1 {
		errs = append(errs, "MAX_RETRIES must be at least 1")
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, "RETRY_BASE_DELAY must not be negative")
	}
	if c.SettleDelay < 0 {
		errs = append(errs, "SETTLE_DELAY must not be negative")
	}

	if c.NavigationRPS <= 0 {
		errs = append(errs, "NAVIGATION_RPS must be positive")
	}
	if c.NavigationBurst < 1 {
		errs = append(errs, "NAVIGATION_BURST must be at least 1")
	}

	if c.ArtifactDir == "" {
		errs = append(errs, "ARTIFACT_DIR must not be empty")
	}
	if c.LogDir == "" {
		errs = append(errs, "LOG_DIR must not be empty")
	}

	// S3: a half-configured credential pair is always a mistake
	if c.ArtifactBucket != "" && (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
		errs = append(errs, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// UploadsArtifacts returns true when diagnostics should also go to S3.
func (c *Config) UploadsArtifacts() bool {
	return c.ArtifactBucket != ""
}

// URL joins a storefront path onto BaseURL.
func (c *Config) URL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "storefront suite starting...")
	fmt.Fprintf(os.Stderr, "  Target:    %s\n", c.BaseURL)
	fmt.Fprintf(os.Stderr, "  Browser:   %s (headless=%t, %dx%d)\n", c.Browser, c.Headless, c.ViewportWidth, c.ViewportHeight)
	fmt.Fprintf(os.Stderr, "  Retries:   %d (base delay %s)\n", c.MaxRetries, c.RetryBaseDelay)
	if c.UploadsArtifacts() {
		fmt.Fprintf(os.Stderr, "  Artifacts: %s + s3://%s\n", c.ArtifactDir, c.ArtifactBucket)
	} else {
		fmt.Fprintf(os.Stderr, "  Artifacts: %s\n", c.ArtifactDir)
	}
	fmt.Fprintf(os.Stderr, "  Logs:      %s\n", c.LogDir)
	fmt.Fprintln(os.Stderr, "")
}

func isSupportedBrowser(name string) bool {
	for _, b := range Browsers {
		if b == name {
			return true
		}
	}
	return false
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// setDuration ignores unparseable durations the same way the env helpers do.
func setDuration(dst *time.Duration, v *string) {
	if v == nil {
		return
	}
	if parsed, err := time.ParseDuration(strings.TrimSpace(*v)); err == nil {
		*dst = parsed
	}
}
