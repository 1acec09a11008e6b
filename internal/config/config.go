// Package config holds operator-level configuration for a Veil process.
// Values are resolved from env vars (VEIL_ prefix) and an optional
// veil.config.yaml, with sane defaults for zero-config startup.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the VEIL_ prefix
// (e.g. "max_file_mb" → VEIL_MAX_FILE_MB) and to a YAML field in
// veil.config.yaml.
const (
	KeyListenPort      = "listen_port"
	KeyMaxFileMB       = "max_file_mb"
	KeyMinScore        = "min_score"
	KeyPatternFile     = "pattern_file"
	KeyDefaultEntities = "default_entities"
	KeyWorkers         = "workers"
)

const (
	DefaultListenPort = 8080
	DefaultMaxFileMB  = 10
	DefaultWorkers    = 4
)

// DefaultEntities is the category selection used when a caller does not pick
// their own, matching the common redaction baseline.
var DefaultEntities = []string{"PERSON", "EMAIL_ADDRESS", "PHONE_NUMBER"}

// Config holds resolved configuration for a Veil process.
type Config struct {
	ListenPort      int      // HTTP server port
	MaxFileMB       int      // Maximum uploaded file size in MB
	MinScore        float64  // Detection confidence threshold (0 = scanner default)
	PatternFile     string   // Optional recognizer YAML layered over the embedded defaults
	DefaultEntities []string // Entity categories used when the caller selects none
	Workers         int      // Batch parallelism bound
}

func init() {
	viper.SetEnvPrefix("VEIL")
	viper.AutomaticEnv()
	viper.SetDefault(KeyListenPort, DefaultListenPort)
	viper.SetDefault(KeyMaxFileMB, DefaultMaxFileMB)
	viper.SetDefault(KeyWorkers, DefaultWorkers)
	viper.SetDefault(KeyDefaultEntities, DefaultEntities)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		ListenPort:      viper.GetInt(KeyListenPort),
		MaxFileMB:       viper.GetInt(KeyMaxFileMB),
		MinScore:        viper.GetFloat64(KeyMinScore),
		PatternFile:     viper.GetString(KeyPatternFile),
		DefaultEntities: viper.GetStringSlice(KeyDefaultEntities),
		Workers:         viper.GetInt(KeyWorkers),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port must be in 1-65535 (got %d)", c.ListenPort)
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be positive (got %d)", c.MaxFileMB)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0,1] (got %g)", c.MinScore)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 (got %d)", c.Workers)
	}
	return nil
}
