package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/intervalmon/intervalmon/internal/core/dates"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	App        AppConfig        `mapstructure:"app"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Alert      AlertConfig      `mapstructure:"alert"`
	Holidays   HolidaysConfig   `mapstructure:"holidays"`
	Security   SecurityConfig   `mapstructure:"security"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AppConfig names the monitor instance and controls diagnostic verbosity.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	IncludeApp  bool   `mapstructure:"include_app"`
	Diagnostics bool   `mapstructure:"diagnostics"`
}

// MonitorConfig is the interval monitoring schedule and timeout behavior.
// Times are local to the configured timezone; durations use Go duration
// syntax ("30s", "5m").
type MonitorConfig struct {
	StartTime         string           `mapstructure:"start_time"`
	EndTime           string           `mapstructure:"end_time"`
	Timezone          string           `mapstructure:"timezone"`
	Timeout           string           `mapstructure:"timeout"`
	Suppression       string           `mapstructure:"suppression"`
	RepeatTimeout     bool             `mapstructure:"repeat_timeout"`
	RepeatSuppression string           `mapstructure:"repeat_suppression"`
	DaysOfWeek        string           `mapstructure:"days_of_week"`
	IncludeDays       string           `mapstructure:"include_days"`
	ExcludeDays       string           `mapstructure:"exclude_days"`
	TestDate          string           `mapstructure:"test_date"`
	Properties        []PropertyConfig `mapstructure:"properties"`
}

// PropertyConfig is one (property, substring) match rule. The first rule
// with an empty name matches against the event's primary text.
type PropertyConfig struct {
	Name  string `mapstructure:"name"`
	Match string `mapstructure:"match"`
}

type AlertConfig struct {
	Message     string   `mapstructure:"message"`
	Description string   `mapstructure:"description"`
	Level       string   `mapstructure:"level"`
	Tags        []string `mapstructure:"tags"`
}

type HolidaysConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	APIKey          string   `mapstructure:"api_key"`
	Country         string   `mapstructure:"country"`
	Match           []string `mapstructure:"match"`
	LocaleMatch     []string `mapstructure:"locale_match"`
	IncludeBank     bool     `mapstructure:"include_bank"`
	IncludeWeekends bool     `mapstructure:"include_weekends"`
	RetryCount      int      `mapstructure:"retry_count"`
}

type SecurityConfig struct {
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.AutomaticEnv()

	// Override specific values from env
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("holidays.api_key", "HOLIDAYS_API_KEY")
	viper.BindEnv("holidays.country", "HOLIDAYS_COUNTRY")
	viper.BindEnv("monitor.timezone", "MONITOR_TIMEZONE")
	viper.BindEnv("monitor.test_date", "MONITOR_TEST_DATE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate rejects configurations the service cannot start with. Schedule
// and duration values are not validated here; Normalize defaults them
// instead so a misconfigured monitor still runs.
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, "server.port must be between 1 and 65535")
	}
	if c.Server.Host == "" {
		errors = append(errors, "server.host is required")
	}

	if len(c.Monitor.Properties) == 0 {
		errors = append(errors, "monitor.properties must contain at least one match rule")
	}
	if len(c.Monitor.Properties) > 4 {
		errors = append(errors, "monitor.properties supports at most four match rules")
	}

	if c.Holidays.Enabled && c.Holidays.APIKey == "" {
		errors = append(errors, "holidays.api_key is required when holidays are enabled")
	}
	if c.Holidays.Enabled && c.Holidays.Country == "" {
		errors = append(errors, "holidays.country is required when holidays are enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Normalize replaces unusable schedule values with safe defaults. Invalid
// times fall back to midnight and invalid durations to their defaults, so
// configuration mistakes degrade instead of refusing to start.
func (c *Config) Normalize() []string {
	var notes []string

	if _, err := dates.DetectFormat(c.Monitor.StartTime); err != nil {
		notes = append(notes, fmt.Sprintf("monitor.start_time %q is not a valid time, using 00:00:00", c.Monitor.StartTime))
		c.Monitor.StartTime = "00:00:00"
	}
	if _, err := dates.DetectFormat(c.Monitor.EndTime); err != nil {
		notes = append(notes, fmt.Sprintf("monitor.end_time %q is not a valid time, using 00:00:00", c.Monitor.EndTime))
		c.Monitor.EndTime = "00:00:00"
	}

	if _, err := time.LoadLocation(c.Monitor.Timezone); err != nil {
		notes = append(notes, fmt.Sprintf("monitor.timezone %q is unknown, using UTC", c.Monitor.Timezone))
		c.Monitor.Timezone = "UTC"
	}

	if c.Monitor.TestDate != "" {
		if _, err := time.Parse("2006-1-2", c.Monitor.TestDate); err != nil {
			notes = append(notes, fmt.Sprintf("monitor.test_date %q is not a valid date, ignoring", c.Monitor.TestDate))
			c.Monitor.TestDate = ""
		}
	}

	return notes
}

// Location resolves the configured timezone. Normalize guarantees the name
// parses.
func (c *MonitorConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TimeoutDuration parses monitor.timeout, defaulting to 60s.
func (c *MonitorConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// SuppressionDuration parses monitor.suppression, defaulting to 0.
func (c *MonitorConfig) SuppressionDuration() time.Duration {
	return parseDuration(c.Suppression, 0)
}

// RepeatSuppressionDuration parses monitor.repeat_suppression, defaulting
// to 0.
func (c *MonitorConfig) RepeatSuppressionDuration() time.Duration {
	return parseDuration(c.RepeatSuppression, 0)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 3001)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "development")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// App defaults
	viper.SetDefault("app.name", "Interval Monitor")
	viper.SetDefault("app.include_app", false)
	viper.SetDefault("app.diagnostics", false)

	// Monitor defaults
	viper.SetDefault("monitor.start_time", "00:00:00")
	viper.SetDefault("monitor.end_time", "00:00:00")
	viper.SetDefault("monitor.timezone", "UTC")
	viper.SetDefault("monitor.timeout", "60s")
	viper.SetDefault("monitor.suppression", "0s")
	viper.SetDefault("monitor.repeat_timeout", false)
	viper.SetDefault("monitor.repeat_suppression", "0s")
	viper.SetDefault("monitor.days_of_week", "")
	viper.SetDefault("monitor.include_days", "")
	viper.SetDefault("monitor.exclude_days", "")
	viper.SetDefault("monitor.properties", []map[string]interface{}{
		{"name": "", "match": ""},
	})

	// Alert defaults
	viper.SetDefault("alert.message", "An event timeout has occurred!")
	viper.SetDefault("alert.description", "")
	viper.SetDefault("alert.level", "error")
	viper.SetDefault("alert.tags", []string{})

	// Holiday defaults
	viper.SetDefault("holidays.enabled", false)
	viper.SetDefault("holidays.country", "")
	viper.SetDefault("holidays.match", []string{})
	viper.SetDefault("holidays.locale_match", []string{})
	viper.SetDefault("holidays.include_bank", false)
	viper.SetDefault("holidays.include_weekends", false)
	viper.SetDefault("holidays.retry_count", 10)

	// Security defaults
	viper.SetDefault("security.enable_cors", true)
	viper.SetDefault("security.allowed_origins", []string{"*"})

	// Monitoring defaults
	viper.SetDefault("monitoring.prometheus.enabled", true)
	viper.SetDefault("monitoring.prometheus.path", "/metrics")
}
