// Package config centralises runtime configuration helpers for showgate services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment where showgate operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// DataConfigSettings controls the remote data-source configuration document.
type DataConfigSettings struct {
	// URL locates the remote JSON document. Empty disables the remote layer.
	URL string `yaml:"url"`
	// PollInterval is the re-fetch cadence for the background poller.
	PollInterval time.Duration `yaml:"pollInterval"`
	// ForcePoll enables polling outside the dev environment.
	ForcePoll bool `yaml:"forcePoll"`
	// OverridePath stores the persisted local override document.
	OverridePath string `yaml:"overridePath"`
}

// BackendSettings configures the REST backend transport.
type BackendSettings struct {
	BaseURL     string        `yaml:"baseURL"`
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
	// RatePerSec caps outgoing request throughput; zero disables limiting.
	RatePerSec float64 `yaml:"ratePerSec"`
	RateBurst  int     `yaml:"rateBurst"`
}

// TelemetrySettings configures the OpenTelemetry metrics exporter.
type TelemetrySettings struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	OTLPInsecure bool   `yaml:"otlpInsecure"`
}

// Settings contains the showgate configuration tree loaded from defaults and overrides.
type Settings struct {
	Environment Environment        `yaml:"environment"`
	LogLevel    string             `yaml:"logLevel"`
	HTTPAddr    string             `yaml:"httpAddr"`
	DataConfig  DataConfigSettings `yaml:"dataConfig"`
	Backend     BackendSettings    `yaml:"backend"`
	Telemetry   TelemetrySettings  `yaml:"telemetry"`
}

// Default returns the default showgate configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		LogLevel:    "info",
		HTTPAddr:    ":8780",
		DataConfig: DataConfigSettings{
			URL:          "",
			PollInterval: 5 * time.Second,
			ForcePoll:    false,
			OverridePath: "",
		},
		Backend: BackendSettings{
			BaseURL:     "",
			HTTPTimeout: 10 * time.Second,
			RatePerSec:  0,
			RateBurst:   1,
		},
		Telemetry: TelemetrySettings{
			Enabled:      false,
			OTLPEndpoint: "localhost:4318",
			OTLPInsecure: true,
		},
	}
}

// Load reads a YAML settings file layered over the defaults. A missing file is
// not an error; the second return reports whether the file was read.
func Load(path string) (Settings, bool, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("read settings file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), false, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	cfg.normalise()
	return cfg, true, nil
}

// FromEnv loads configuration values from environment variables, overriding
// the supplied base settings.
func FromEnv(base Settings) Settings {
	cfg := base
	if env := strings.TrimSpace(os.Getenv("SHOWGATE_ENV")); env != "" {
		cfg.Environment = Environment(strings.ToLower(env))
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_DATA_CONFIG_URL")); v != "" {
		cfg.DataConfig.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_DATA_CONFIG_POLL_INTERVAL")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
			cfg.DataConfig.PollInterval = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_DATA_CONFIG_POLL")); v != "" {
		cfg.DataConfig.ForcePoll = v == "true" || v == "1"
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_OVERRIDE_PATH")); v != "" {
		cfg.DataConfig.OverridePath = v
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_API_BASE_URL")); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_API_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
			cfg.Backend.HTTPTimeout = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_API_RATE")); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate >= 0 {
			cfg.Backend.RatePerSec = rate
		}
	}
	if v := strings.TrimSpace(os.Getenv("SHOWGATE_OTEL_ENABLED")); v != "" {
		cfg.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	cfg.normalise()
	return cfg
}

// PollEnabled reports whether the background configuration poller should run.
// Polling is automatic in dev and opt-in elsewhere.
func (s Settings) PollEnabled() bool {
	if s.DataConfig.URL == "" {
		return false
	}
	return s.DataConfig.ForcePoll || s.Environment == EnvDev
}

// BackendEnabled reports whether a backend base URL is configured.
func (s Settings) BackendEnabled() bool {
	return strings.TrimSpace(s.Backend.BaseURL) != ""
}

func (s *Settings) normalise() {
	s.Environment = Environment(strings.ToLower(strings.TrimSpace(string(s.Environment))))
	switch s.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		s.Environment = EnvProd
	}
	if s.DataConfig.PollInterval <= 0 {
		s.DataConfig.PollInterval = 5 * time.Second
	}
	if s.Backend.HTTPTimeout <= 0 {
		s.Backend.HTTPTimeout = 10 * time.Second
	}
	if s.Backend.RateBurst < 1 {
		s.Backend.RateBurst = 1
	}
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.normalise()
	return cfg
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithDataConfigURL overrides the remote data-source configuration location.
func WithDataConfigURL(url string) Option {
	return func(s *Settings) {
		s.DataConfig.URL = strings.TrimSpace(url)
	}
}

// WithBackendBaseURL overrides the REST backend base URL.
func WithBackendBaseURL(url string) Option {
	return func(s *Settings) {
		s.Backend.BaseURL = strings.TrimSpace(url)
	}
}
