// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig                 `mapstructure:"app"`
	Database      DatabaseConfig            `mapstructure:"database"`
	Discovery     DiscoveryConfig           `mapstructure:"discovery"`
	DistanceBands DistanceBandsConfig       `mapstructure:"distance_bands"`
	Failover      map[string]FailoverConfig `mapstructure:"failover"`
	Providers     ProvidersConfig           `mapstructure:"providers"`
	Sources       map[string]SourceConfig   `mapstructure:"sources"`
	Tags          TagConfig                 `mapstructure:"tags"`
	Matching      MatchingConfig            `mapstructure:"matching"`
	Notifications NotificationConfig        `mapstructure:"notifications"`
	Logging       LoggingConfig             `mapstructure:"logging"`
	Server        ServerConfig              `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// --- Discovery & Resilience ---

// FailoverConfig controls the circuit breaker guarding one named outbound
// dependency. Immutable once loaded.
type FailoverConfig struct {
	Retry               int `mapstructure:"retry"`                // extra attempts on top of the first
	TimeoutMs           int `mapstructure:"timeout_ms"`           // per-attempt timeout
	ConsecutiveFailures int `mapstructure:"consecutive_failures"` // threshold to open the circuit
	HalfOpenAfterMs     int `mapstructure:"half_open_after_ms"`   // cooldown before a trial call
}

func (f FailoverConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutMs) * time.Millisecond
}

func (f FailoverConfig) HalfOpenAfter() time.Duration {
	return time.Duration(f.HalfOpenAfterMs) * time.Millisecond
}

// DiscoveryConfig controls the expanding-radius scanner.
type DiscoveryConfig struct {
	RangeIncreaseMeters int `mapstructure:"range_increase_meters"`
	MaxIterations       int `mapstructure:"max_iterations"`
}

// DistanceBand maps a caller-facing distance choice to a starting radius and
// a per-call timeout.
type DistanceBand struct {
	RangeMeters int `mapstructure:"range_meters"`
	TimeoutMs   int `mapstructure:"timeout_ms"`
}

func (d DistanceBand) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

type DistanceBandsConfig struct {
	Close    DistanceBand `mapstructure:"close"`
	MidRange DistanceBand `mapstructure:"mid_range"`
	Far      DistanceBand `mapstructure:"far"`
}

// ForRange resolves a distance range name; unknown names fall back to Close.
func (d DistanceBandsConfig) ForRange(name string) DistanceBand {
	switch name {
	case "mid_range":
		return d.MidRange
	case "far":
		return d.Far
	default:
		return d.Close
	}
}

// --- Providers ---

type ProvidersConfig struct {
	Google      GoogleConfig      `mapstructure:"google"`
	TripAdvisor TripAdvisorConfig `mapstructure:"tripadvisor"`
	Overpass    OverpassConfig    `mapstructure:"overpass"`
}

type GoogleConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type TripAdvisorConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type OverpassConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

// SourceConfig holds per-source cost controls.
type SourceConfig struct {
	MaxAttemptsPerMonth int `mapstructure:"max_attempts_per_month"`
}

// TagConfig controls tag filtering on discovered profiles.
type TagConfig struct {
	HiddenTags   []string `mapstructure:"hidden_tags"`
	PriorityTags []string `mapstructure:"priority_tags"`
	MaxTags      int      `mapstructure:"max_tags"`
}

// MatchingConfig controls profile freshness for re-enrichment.
type MatchingConfig struct {
	FreshnessWindowDays int `mapstructure:"freshness_window_days"`
}

func (m MatchingConfig) FreshnessWindow() time.Duration {
	return time.Duration(m.FreshnessWindowDays) * 24 * time.Hour
}

// NotificationConfig holds settings for the best-effort result notifier.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
