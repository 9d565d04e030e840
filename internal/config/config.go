// Package config loads runtime settings for the outages pipeline.
//
// Precedence, lowest to highest: built-in defaults, an optional yaml config
// file (with environment variables expanded), then the environment itself.
// CLI flags applied by the cmd layer override all three.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gridwatch/outages/config"
)

// Settings holds all runtime configuration.
type Settings struct {
	// Listen is the API listen address.
	Listen string `yaml:"listen"`

	// APIToken protects /data and /refresh when set. Empty disables auth.
	APIToken string `yaml:"api_token"`

	// Logging.
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
	LogFile     string `yaml:"log_file"`
	LogFileMode string `yaml:"log_file_mode"`

	// Upstream feed.
	EIAAPIKey         string        `yaml:"eia_api_key"`
	EIABaseURL        string        `yaml:"eia_base_url"`
	EIARoute          string        `yaml:"eia_route"`
	PageSize          int           `yaml:"page_size"`
	MaxRecords        int           `yaml:"max_records"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`

	// Extraction mode.
	Incremental bool `yaml:"incremental"`
	EarlyStop   bool `yaml:"early_stop"`

	// Stores.
	RawPath    string `yaml:"raw_path"`
	ModeledDir string `yaml:"modeled_dir"`

	// Optional Kafka refresh events.
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// Defaults returns settings with built-in defaults applied.
func Defaults() *Settings {
	return &Settings{
		Listen:      config.DefaultListenAddress,
		LogLevel:    "info",
		LogFileMode: "w",
		EIABaseURL:  config.DefaultBaseURL,
		EIARoute:    config.DefaultOutagesRoute,
		PageSize:    config.DefaultPageSize,
		MaxRecords:  config.DefaultMaxRecords,
		MaxRetries:  config.DefaultMaxRetries,
		RetryDelay:  config.DefaultRetryDelay,
		RawPath:     config.DefaultRawPath,
		ModeledDir:  config.DefaultModeledDir,
		KafkaTopic:  config.DefaultKafkaTopic,
	}
}

// Load builds settings from defaults, an optional yaml file, and the
// environment. path may be empty.
func Load(path string) (*Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), s); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	s.applyEnv()
	return s, nil
}

// applyEnv overrides settings from the environment.
func (s *Settings) applyEnv() {
	s.Listen = GetEnvStr("LISTEN", s.Listen)
	s.APIToken = GetEnvStr("API_TOKEN", s.APIToken)

	s.LogLevel = GetEnvStr("LOG_LEVEL", s.LogLevel)
	s.LogJSON = GetEnvBool("LOG_JSON", s.LogJSON)
	s.LogFile = GetEnvStr("LOG_FILE", s.LogFile)
	s.LogFileMode = GetEnvStr("LOG_FILE_MODE", s.LogFileMode)

	s.EIAAPIKey = GetEnvStr("EIA_API_KEY", s.EIAAPIKey)
	s.EIABaseURL = GetEnvStr("EIA_BASE_URL", s.EIABaseURL)
	s.EIARoute = GetEnvStr("EIA_ROUTE", s.EIARoute)
	s.PageSize = GetEnvInt("PAGE_SIZE", s.PageSize)
	s.MaxRecords = GetEnvInt("MAX_RECORDS", s.MaxRecords)
	s.MaxRetries = GetEnvInt("MAX_RETRIES", s.MaxRetries)
	s.RetryDelay = GetEnvDuration("RETRY_DELAY", s.RetryDelay)

	s.Incremental = GetEnvBool("INCREMENTAL", s.Incremental)
	s.EarlyStop = GetEnvBool("EARLY_STOP", s.EarlyStop)

	s.RawPath = GetEnvStr("RAW_PATH", s.RawPath)
	s.ModeledDir = GetEnvStr("MODELED_DIR", s.ModeledDir)

	if v := GetEnvStr("KAFKA_BROKERS", ""); v != "" {
		parts := strings.Split(v, ",")
		brokers := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				brokers = append(brokers, p)
			}
		}
		s.KafkaBrokers = brokers
	}
	s.KafkaTopic = GetEnvStr("KAFKA_TOPIC", s.KafkaTopic)
}

// Endpoint returns the full upstream data URL.
func (s *Settings) Endpoint() string {
	return s.EIABaseURL + s.EIARoute
}

// SlogLevel converts the configured level name to a slog level.
func (s *Settings) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(s.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidateForExtraction checks settings needed by extraction paths.
// The serving-only paths never need the upstream credential.
func (s *Settings) ValidateForExtraction() error {
	if s.EIAAPIKey == "" {
		return fmt.Errorf("EIA_API_KEY not set, cannot authenticate against upstream")
	}
	return nil
}
