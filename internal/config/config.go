package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DEFENSE"

// DefaultEnvFiles are loaded from the working directory when present.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config captures the settings of the defense scheduling service.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Notify     NotifyConfig     `yaml:"notify"`
	Log        LogConfig        `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"            split_words:"true"`
	ReadTimeout     time.Duration `yaml:"readTimeout"     split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"    split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	CORSOrigins     []string      `yaml:"corsOrigins"     split_words:"true"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file, or ":memory:".
	Path        string        `yaml:"path"        split_words:"true"`
	BusyTimeout time.Duration `yaml:"busyTimeout" split_words:"true"`
}

type SchedulingConfig struct {
	// Timezone is the IANA zone in which dates and start times are interpreted.
	Timezone string `yaml:"timezone" split_words:"true"`
}

type NotifyConfig struct {
	Workers        int           `yaml:"workers"        split_words:"true"`
	QueueSize      int           `yaml:"queueSize"      split_words:"true"`
	WebhookURLs    []string      `yaml:"webhookURLs"    envconfig:"WEBHOOK_URLS"`
	WebhookSecret  string        `yaml:"webhookSecret"  split_words:"true"`
	WebhookTimeout time.Duration `yaml:"webhookTimeout" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"  split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "defense.db",
			BusyTimeout: 5 * time.Second,
		},
		Scheduling: SchedulingConfig{
			Timezone: "Africa/Addis_Ababa",
		},
		Notify: NotifyConfig{
			Workers:        4,
			QueueSize:      256,
			WebhookTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// .env files and DEFENSE_* environment variables, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := loadEnvFiles(DefaultEnvFiles); err != nil {
		return Config{}, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadEnvFiles exports variables from the files that exist. Variables already
// set in the process environment win.
func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []error
	invalid := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.HTTP.Addr) == "" {
		invalid("http.addr is required")
	}
	if c.HTTP.ReadTimeout <= 0 {
		invalid("http.readTimeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		invalid("http.writeTimeout must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		invalid("http.shutdownTimeout must be positive")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		invalid("database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		invalid("database.busyTimeout must not be negative")
	}
	if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil || c.Scheduling.Timezone == "" {
		invalid("scheduling.timezone %q is not a known IANA zone", c.Scheduling.Timezone)
	}
	if c.Notify.Workers <= 0 {
		invalid("notify.workers must be positive")
	}
	if c.Notify.QueueSize <= 0 {
		invalid("notify.queueSize must be positive")
	}
	if c.Notify.WebhookTimeout <= 0 {
		invalid("notify.webhookTimeout must be positive")
	}
	for _, raw := range c.Notify.WebhookURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			invalid("notify.webhookURLs entry %q must be an absolute http(s) URL", raw)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		invalid("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		invalid("log.format %q must be json or text", c.Log.Format)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return nil
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying cfg.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the configuration stored by WithContext, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}
