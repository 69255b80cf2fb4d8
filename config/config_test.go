package config

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 12, 15, hour, min, 0, 0, time.UTC)
}

func TestIntervalFor_PicksLatestWindowNotAfter(t *testing.T) {
	cfg := SchedulerConfig{
		Enabled: true,
		Intervals: []IntervalWindow{
			{From: "00:00", Every: 15 * time.Minute},
			{From: "06:00", Every: time.Hour},
			{From: "22:00", Every: 30 * time.Minute},
		},
	}

	cases := []struct {
		name string
		t    time.Time
		want time.Duration
	}{
		{"night audit", at(2, 30), 15 * time.Minute},
		{"window boundary", at(6, 0), time.Hour},
		{"afternoon", at(14, 45), time.Hour},
		{"late evening", at(23, 59), 30 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cfg.IntervalFor(tc.t); got != tc.want {
				t.Errorf("IntervalFor(%v) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestIntervalFor_WrapsToYesterdaysLastWindow(t *testing.T) {
	// First window starts at 06:00; 03:00 is still inside the 22:00
	// window from the previous day.
	cfg := SchedulerConfig{
		Intervals: []IntervalWindow{
			{From: "06:00", Every: time.Hour},
			{From: "22:00", Every: 30 * time.Minute},
		},
	}
	if got := cfg.IntervalFor(at(3, 0)); got != 30*time.Minute {
		t.Errorf("expected wrap to 30m, got %v", got)
	}
}

func TestIntervalFor_NoWindows_Fallback(t *testing.T) {
	cfg := SchedulerConfig{}
	if got := cfg.IntervalFor(at(12, 0)); got != time.Hour {
		t.Errorf("expected 1h fallback, got %v", got)
	}
}

func TestIntervalFor_MalformedWindowSkipped(t *testing.T) {
	cfg := SchedulerConfig{
		Intervals: []IntervalWindow{
			{From: "nonsense", Every: time.Minute},
			{From: "00:00", Every: 2 * time.Hour},
		},
	}
	if got := cfg.IntervalFor(at(12, 0)); got != 2*time.Hour {
		t.Errorf("expected malformed window to be skipped, got %v", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// GIVEN: No config file in the working directory
	// WHEN: Loading
	// THEN: Built-in defaults apply

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "billing.db" {
		t.Errorf("expected default db path, got %q", cfg.Database.Path)
	}
	if !cfg.Engine.VerifyRollup {
		t.Error("expected rollup verification on by default")
	}
	if !cfg.Scheduler.Enabled {
		t.Error("expected scheduler enabled by default")
	}
	if len(cfg.Scheduler.Intervals) != 3 {
		t.Errorf("expected 3 default interval windows, got %d", len(cfg.Scheduler.Intervals))
	}
}
