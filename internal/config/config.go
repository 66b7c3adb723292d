// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Pacing   PacingConfig   `mapstructure:"pacing" yaml:"pacing"`
	Extract  ExtractConfig  `mapstructure:"extract" yaml:"extract"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Platform PlatformConfig `mapstructure:"platform" yaml:"platform"`
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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the managed browser instance.
type BrowserConfig struct {
	Headless    bool           `mapstructure:"headless" yaml:"headless"`
	UserAgent   string         `mapstructure:"user_agent" yaml:"user_agent"`
	Locale      string         `mapstructure:"locale" yaml:"locale"`
	Args        []string       `mapstructure:"args" yaml:"args"`
	Viewport    map[string]int `mapstructure:"viewport" yaml:"viewport"`
	UserDataDir string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
}

// NetworkConfig tunes page-level timing.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// PacingConfig shapes the timing of write workflows so step sequences do not
// present uniform, machine-like intervals to the platform.
type PacingConfig struct {
	StepDelayMin     time.Duration `mapstructure:"step_delay_min" yaml:"step_delay_min"`
	StepDelayMax     time.Duration `mapstructure:"step_delay_max" yaml:"step_delay_max"`
	WriteMinInterval time.Duration `mapstructure:"write_min_interval" yaml:"write_min_interval"`
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	LoginWaitTimeout time.Duration `mapstructure:"login_wait_timeout" yaml:"login_wait_timeout"`
	ReadbackWindow   time.Duration `mapstructure:"readback_window" yaml:"readback_window"`
}

// ExtractConfig bounds read operations.
type ExtractConfig struct {
	WaitTimeout time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	MaxComments int           `mapstructure:"max_comments" yaml:"max_comments"`
}

// StoreConfig selects and configures the session state backend.
type StoreConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// PlatformConfig names the platform identity a process drives.
type PlatformConfig struct {
	ID string `mapstructure:"id" yaml:"id"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "quill-cli")
	v.SetDefault("logger.log_file", "quill.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.locale", "zh-CN")
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 800})

	// -- Network --
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.post_load_wait", "1500ms")

	// -- Pacing --
	v.SetDefault("pacing.step_delay_min", "300ms")
	v.SetDefault("pacing.step_delay_max", "800ms")
	v.SetDefault("pacing.write_min_interval", "5s")
	v.SetDefault("pacing.poll_interval", "500ms")
	v.SetDefault("pacing.login_wait_timeout", "120s")
	v.SetDefault("pacing.readback_window", "10s")

	// -- Extract --
	v.SetDefault("extract.wait_timeout", "20s")
	v.SetDefault("extract.max_comments", 50)

	// -- Store --
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", "data/sessions")

	// -- Platform --
	v.SetDefault("platform.id", "xiaohongshu")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("store.database_url", "QUILL_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Pacing.StepDelayMin < 0 || c.Pacing.StepDelayMax < c.Pacing.StepDelayMin {
		return fmt.Errorf("pacing.step_delay_max must be >= pacing.step_delay_min >= 0")
	}
	if c.Pacing.PollInterval <= 0 {
		return fmt.Errorf("pacing.poll_interval must be a positive duration")
	}
	if c.Extract.WaitTimeout <= 0 {
		return fmt.Errorf("extract.wait_timeout must be a positive duration")
	}
	switch c.Store.Backend {
	case "file":
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the file backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url is required for the postgres backend (set QUILL_DATABASE_URL)")
		}
	default:
		return fmt.Errorf("store.backend must be one of: file, postgres")
	}
	if c.Platform.ID == "" {
		return fmt.Errorf("platform.id is a required configuration field")
	}
	return nil
}
