package cliparse

import (
	"testing"
	"time"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := ParseFlags([]string{
		"-d", "postgres://localhost/fable",
		"-gateway-salt", "test-salt",
	})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.Port != 3326 {
		t.Errorf("Expected default port 3326, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "postgres" {
		t.Errorf("Expected default database type postgres, got %s", cfg.DatabaseType)
	}
	if cfg.DeadlineInterval != DefaultDeadlineInterval {
		t.Errorf("Expected deadline interval %v, got %v", DefaultDeadlineInterval, cfg.DeadlineInterval)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("Expected poll interval %v, got %v", DefaultPollInterval, cfg.PollInterval)
	}
	if cfg.RatingWindow != DefaultRatingWindow {
		t.Errorf("Expected rating window %v, got %v", DefaultRatingWindow, cfg.RatingWindow)
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	cfg, err := ParseFlags([]string{
		"-p", "8080",
		"-d", "file:fable.db",
		"-t", "sqlite",
		"-gateway-salt", "test-salt",
		"-deadline-interval", "5m",
		"-poll-interval", "30s",
		"-rating-window", "48h",
	})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("Expected database type sqlite, got %s", cfg.DatabaseType)
	}
	if cfg.DeadlineInterval != 5*time.Minute {
		t.Errorf("Expected 5m deadline interval, got %v", cfg.DeadlineInterval)
	}
	if cfg.RatingWindow != 48*time.Hour {
		t.Errorf("Expected 48h rating window, got %v", cfg.RatingWindow)
	}
}

func TestParseFlagsMissingDatabase(t *testing.T) {
	_, err := ParseFlags([]string{"-gateway-salt", "s"})
	if err == nil {
		t.Error("Expected error for missing database URL")
	}
}

func TestParseFlagsMissingSalt(t *testing.T) {
	_, err := ParseFlags([]string{"-d", "postgres://localhost/fable"})
	if err == nil {
		t.Error("Expected error for missing gateway salt")
	}
}

func TestParseFlagsBadDatabaseType(t *testing.T) {
	_, err := ParseFlags([]string{
		"-d", "x", "-t", "oracle", "-gateway-salt", "s",
	})
	if err == nil {
		t.Error("Expected error for unsupported database type")
	}
}
