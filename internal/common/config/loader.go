// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like GOOGLE_PLACES_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, ignored when not present
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the first location that has one.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "restaurant-finder"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Discovery.RangeIncreaseMeters == 0 {
		cfg.Discovery.RangeIncreaseMeters = 500
	}
	if cfg.Discovery.MaxIterations == 0 {
		cfg.Discovery.MaxIterations = 5
	}

	if cfg.DistanceBands.Close.RangeMeters == 0 {
		cfg.DistanceBands.Close = DistanceBand{RangeMeters: 1500, TimeoutMs: 5000}
	}
	if cfg.DistanceBands.MidRange.RangeMeters == 0 {
		cfg.DistanceBands.MidRange = DistanceBand{RangeMeters: 5000, TimeoutMs: 8000}
	}
	if cfg.DistanceBands.Far.RangeMeters == 0 {
		cfg.DistanceBands.Far = DistanceBand{RangeMeters: 15000, TimeoutMs: 12000}
	}

	if cfg.Matching.FreshnessWindowDays == 0 {
		cfg.Matching.FreshnessWindowDays = 30
	}
	if cfg.Tags.MaxTags == 0 {
		cfg.Tags.MaxTags = 10
	}

	if cfg.Failover == nil {
		cfg.Failover = map[string]FailoverConfig{}
	}
	if _, ok := cfg.Failover["default"]; !ok {
		cfg.Failover["default"] = FailoverConfig{
			Retry:               2,
			TimeoutMs:           5000,
			ConsecutiveFailures: 5,
			HalfOpenAfterMs:     30000,
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.Discovery.MaxIterations < 1 {
		return fmt.Errorf("discovery.max_iterations must be at least 1")
	}
	for name, fo := range cfg.Failover {
		if fo.TimeoutMs <= 0 {
			return fmt.Errorf("failover.%s.timeout_ms must be positive", name)
		}
		if fo.ConsecutiveFailures <= 0 {
			return fmt.Errorf("failover.%s.consecutive_failures must be positive", name)
		}
	}
	return nil
}
