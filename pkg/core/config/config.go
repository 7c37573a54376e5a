// Package config centralizes runtime configuration: .env loading, environment
// variables with defaults, and an optional YAML override file for classifier
// tuning.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the full runtime configuration. SEC_USER_AGENT should identify
// the operator; SEC rejects anonymous clients.
type Config struct {
	SECUserAgent      string        `envconfig:"SEC_USER_AGENT" default:"finsheets/1.0 (contact@example.com)"`
	SECRateLimit      float64       `envconfig:"SEC_RATE_LIMIT" default:"8"`
	HTTPTimeout       time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	LookbackYears     int           `envconfig:"LOOKBACK_YEARS" default:"5"`
	MaxSegmentFilings int           `envconfig:"MAX_SEGMENT_FILINGS" default:"8"`
	SegmentThreshold  float64       `envconfig:"SEGMENT_THRESHOLD" default:"0.5"`
	ListenAddr        string        `envconfig:"LISTEN_ADDR" default:":8080"`
	DatabaseURL       string        `envconfig:"DATABASE_URL"`

	// ClassifierFile optionally points at a YAML file overriding the
	// classifier knobs without touching the environment.
	ClassifierFile string `envconfig:"CLASSIFIER_CONFIG"`
}

// classifierOverrides is the shape of the optional YAML file.
type classifierOverrides struct {
	Threshold  float64 `yaml:"threshold"`
	MaxFilings int     `yaml:"max_filings"`
}

// Load reads .env (when present), the environment, and the optional
// classifier override file, in that order of precedence (later wins).
func Load() (Config, error) {
	godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.ClassifierFile != "" {
		data, err := os.ReadFile(cfg.ClassifierFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read classifier config %s: %w", cfg.ClassifierFile, err)
		}
		var overrides classifierOverrides
		if err := yaml.Unmarshal(data, &overrides); err != nil {
			return Config{}, fmt.Errorf("failed to parse classifier config %s: %w", cfg.ClassifierFile, err)
		}
		if overrides.Threshold > 0 {
			cfg.SegmentThreshold = overrides.Threshold
		}
		if overrides.MaxFilings > 0 {
			cfg.MaxSegmentFilings = overrides.MaxFilings
		}
	}

	return cfg, nil
}
