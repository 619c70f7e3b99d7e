package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mptrack.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upload.MaxAttempts != 4 || cfg.Upload.Concurrency != 4 {
		t.Errorf("upload defaults = %+v", cfg.Upload)
	}
	if cfg.Ephemeris.Timeout.D() != 30*time.Second {
		t.Errorf("ephemeris timeout = %v", cfg.Ephemeris.Timeout.D())
	}
	if cfg.Site.Name != "CFHT" {
		t.Errorf("site = %+v", cfg.Site)
	}
	if cfg.Visibility.MinUpTime.D() != time.Hour {
		t.Errorf("visibility = %+v", cfg.Visibility)
	}
}

func TestLoad_OverridesMergeWithDefaults(t *testing.T) {
	path := writeConfig(t, `
upload:
  base_url: http://localhost:8080
  timeout: 90s
  concurrency: 2
visibility:
  min_up_time: 45m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upload.BaseURL != "http://localhost:8080" {
		t.Errorf("upload base url = %q", cfg.Upload.BaseURL)
	}
	if cfg.Upload.Timeout.D() != 90*time.Second {
		t.Errorf("upload timeout = %v", cfg.Upload.Timeout.D())
	}
	if cfg.Upload.Concurrency != 2 {
		t.Errorf("concurrency = %d", cfg.Upload.Concurrency)
	}
	if cfg.Visibility.MinUpTime.D() != 45*time.Minute {
		t.Errorf("min up time = %v", cfg.Visibility.MinUpTime.D())
	}
	// Untouched sections keep their defaults.
	if cfg.Upload.MaxAttempts != 4 {
		t.Errorf("max attempts = %d, want default", cfg.Upload.MaxAttempts)
	}
	if cfg.Ephemeris.BaseURL == "" {
		t.Errorf("ephemeris defaults lost")
	}
}

func TestLoad_DurationAsSeconds(t *testing.T) {
	path := writeConfig(t, `
ephemeris:
  timeout: 15
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ephemeris.Timeout.D() != 15*time.Second {
		t.Errorf("timeout = %v, want bare numbers read as seconds", cfg.Ephemeris.Timeout.D())
	}
}

func TestLoad_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"bad duration", "upload:\n  timeout: soon\n"},
		{"empty endpoint", "upload:\n  base_url: \"\"\n"},
		{"latitude out of range", "site:\n  lat_deg: 120\n"},
		{"not yaml", "{{{{"},
	}
	for _, c := range cases {
		path := writeConfig(t, c.contents)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: loaded without error", c.name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("missing file loaded without error")
	}
}

func TestConstraintConversion(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := cfg.Constraint()
	if c.Site.Name != "CFHT" || c.Site.LatDeg != 19.8253 {
		t.Errorf("constraint site = %+v", c.Site)
	}
	if c.SunMaxAltDeg != -7 || c.MinElevationDeg != 40 || c.MinUpTime != time.Hour {
		t.Errorf("constraint thresholds = %+v", c)
	}
}
