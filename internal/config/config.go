// Package config loads boxsync settings from defaults, an optional YAML file
// and BOXSYNC_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BOXSYNC_"
	// PathEnvVar names the config file when -config is not given.
	PathEnvVar = "BOXSYNC_CONFIG"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Security  SecurityConfig  `koanf:"security"`
	Remote    RemoteConfig    `koanf:"remote"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Sync      SyncConfig      `koanf:"sync"`
	SyncLog   SyncLogConfig   `koanf:"sync_log"`
	Media     MediaConfig     `koanf:"media"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	SyncRateLimit     int           `koanf:"sync_rate_limit" validate:"min=0"`
	SyncRateWindow    time.Duration `koanf:"sync_rate_window" validate:"min=0"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type SecurityConfig struct {
	// Secret keys the credential cipher. Empty selects the insecure
	// fallback key, which is logged at startup.
	Secret string `koanf:"secret"`
}

type RemoteConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	PageSize          int           `koanf:"page_size" validate:"min=1,max=100"`
	MaxPages          int           `koanf:"max_pages" validate:"min=1"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"min=0"`
	LegacyAPIKey      string        `koanf:"legacy_api_key"`
}

type BreakerConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxFailures uint32        `koanf:"max_failures" validate:"min=1"`
	OpenTimeout time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

type SyncConfig struct {
	// Interval of the scheduled run. Zero disables scheduling.
	Interval    time.Duration `koanf:"interval" validate:"min=0"`
	Concurrency int           `koanf:"concurrency" validate:"min=1,max=32"`
	LockTTL     time.Duration `koanf:"lock_ttl" validate:"gt=0"`
	RunOnStart  bool          `koanf:"run_on_start"`
}

type SyncLogConfig struct {
	Enabled bool `koanf:"enabled"`
	// RetentionDays below 1 falls back to the default.
	RetentionDays int           `koanf:"retention_days"`
	PurgeInterval time.Duration `koanf:"purge_interval" validate:"min=0"`
}

type MediaConfig struct {
	Enabled      bool          `koanf:"enabled"`
	AllowedHosts []string      `koanf:"allowed_hosts" validate:"required_if=Enabled true,dive,hostname_rfc1123"`
	MaxBytes     int64         `koanf:"max_bytes" validate:"min=1"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
}

type TelemetryConfig struct {
	ServiceName string  `koanf:"service_name" validate:"required"`
	Environment string  `koanf:"environment" validate:"required"`
	Exporter    string  `koanf:"exporter" validate:"oneof=stdout otlp none"`
	SampleRatio float64 `koanf:"sample_ratio" validate:"min=0,max=1"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			SyncRateLimit:     5,
			SyncRateWindow:    time.Minute,
		},
		Database: DatabaseConfig{Path: "boxsync.db"},
		Remote: RemoteConfig{
			BaseURL:           "https://api.tickettailor.com/v1",
			Timeout:           30 * time.Second,
			PageSize:          100,
			MaxPages:          100,
			RequestsPerSecond: 5,
		},
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			OpenTimeout: 30 * time.Minute,
		},
		Sync: SyncConfig{
			Interval:    time.Hour,
			Concurrency: 1,
			LockTTL:     30 * time.Minute,
		},
		SyncLog: SyncLogConfig{
			Enabled:       true,
			RetentionDays: 30,
			PurgeInterval: 24 * time.Hour,
		},
		Media: MediaConfig{
			Enabled:      true,
			AllowedHosts: []string{"cdn.tickettailor.com", "uploads.tickettailor.com"},
			MaxBytes:     10 << 20,
			Timeout:      20 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "boxsync",
			Environment: "development",
			Exporter:    "none",
			SampleRatio: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// sections lists the top-level keys, longest first so that "sync_log" wins
// over "sync" when mapping environment names.
var sections = func() []string {
	s := []string{"server", "database", "security", "remote", "breaker", "sync", "sync_log", "media", "telemetry", "logging"}
	sort.Slice(s, func(i, j int) bool { return len(s[i]) > len(s[j]) })
	return s
}()

// sliceKeys are split on commas when they arrive as a single string.
var sliceKeys = []string{"media.allowed_hosts"}

// envKey maps BOXSYNC_SYNC_LOG_RETENTION_DAYS to sync_log.retention_days.
// Unknown names map to "" and are ignored.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	for _, s := range sections {
		if rest, ok := strings.CutPrefix(key, s+"_"); ok && rest != "" {
			return s + "." + rest
		}
	}
	return ""
}

// Load builds the configuration. path may be empty, in which case
// BOXSYNC_CONFIG is consulted; with neither set only defaults and the
// environment apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("splitting %s: %w", key, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
