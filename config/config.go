// Package config loads application configuration from file, environment,
// and built-in defaults.
//
// Priority (highest to lowest):
//  1. Environment variables with BILLING_ prefix (e.g. BILLING_SERVER_PORT)
//  2. config.yaml in the working directory
//  3. Built-in defaults
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Engine    EngineConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port             int
	CORSAllowOrigins []string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
}

// DatabaseConfig holds the fact store location.
type DatabaseConfig struct {
	Path string // SQLite path; ":memory:" for ephemeral
}

// EngineConfig holds reconciliation engine settings.
type EngineConfig struct {
	// VerifyRollup re-checks client-vs-hotel sums on every hotel-scope
	// request and fails loudly on divergence.
	VerifyRollup bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// SchedulerConfig holds the reconciliation scheduler settings. The
// interval table is keyed by time-of-day: night-audit hours typically
// reconcile more often than the afternoon lull. Configuration is
// injected; the scheduler holds no mutable global interval state.
type SchedulerConfig struct {
	Enabled   bool
	Intervals []IntervalWindow
}

// IntervalWindow sets the check interval from a time of day onward,
// until the next window starts (wrapping at midnight).
type IntervalWindow struct {
	From  string        `mapstructure:"from"` // "HH:MM"
	Every time.Duration `mapstructure:"every"`
}

// IntervalFor returns the check interval in effect at t: the window with
// the latest From not after t's time of day, wrapping to the last window
// before the first one starts.
func (s SchedulerConfig) IntervalFor(t time.Time) time.Duration {
	const fallback = time.Hour
	if len(s.Intervals) == 0 {
		return fallback
	}

	minutes := t.Hour()*60 + t.Minute()
	best := -1
	bestStart := -1
	last := 0
	lastStart := -1
	for i, w := range s.Intervals {
		start, err := parseTimeOfDay(w.From)
		if err != nil {
			continue
		}
		if start <= minutes && start > bestStart {
			best, bestStart = i, start
		}
		if start > lastStart {
			last, lastStart = i, start
		}
	}
	if best >= 0 {
		return s.Intervals[best].Every
	}
	if lastStart >= 0 {
		// Before the first window of the day: still inside yesterday's
		// last window.
		return s.Intervals[last].Every
	}
	return fallback
}

func parseTimeOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Load reads configuration. An absent config file is fine; defaults and
// environment cover everything.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/billing-engine")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.corsalloworigins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.readtimeout", 15*time.Second)
	v.SetDefault("server.writetimeout", 15*time.Second)
	v.SetDefault("server.idletimeout", 60*time.Second)

	v.SetDefault("database.path", "billing.db")

	v.SetDefault("engine.verifyrollup", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("scheduler.enabled", true)
	// Night audit closes the hotel day; check frequently around it and
	// hourly otherwise.
	v.SetDefault("scheduler.intervals", []map[string]any{
		{"from": "00:00", "every": "15m"},
		{"from": "06:00", "every": "1h"},
		{"from": "22:00", "every": "30m"},
	})
}
