// Package config loads the pipeline's run configuration from a YAML
// file. Endpoints, timeouts, and site parameters all live here so
// nothing reaches for ambient globals; the bearer credential is
// deliberately NOT part of the file and must come in out-of-band.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ossos-labs/mptrack/core"
)

// Config is the full run configuration.
type Config struct {
	Ephemeris  EphemerisConfig  `yaml:"ephemeris"`
	Upload     UploadConfig     `yaml:"upload"`
	Recon      ReconConfig      `yaml:"recon"`
	Site       SiteConfig       `yaml:"site"`
	Visibility VisibilityConfig `yaml:"visibility"`
}

// EphemerisConfig points at the external astrometric service.
type EphemerisConfig struct {
	BaseURL   string   `yaml:"base_url"`
	Timeout   Duration `yaml:"timeout"`
	CachePath string   `yaml:"cache_path"`
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// UploadConfig points at the scheduling API.
type UploadConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Timeout        Duration `yaml:"timeout"`
	MaxAttempts    uint     `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	Concurrency    int      `yaml:"concurrency"`
}

// ReconConfig points at the candidate prediction list.
type ReconConfig struct {
	ListURL string   `yaml:"list_url"`
	Timeout Duration `yaml:"timeout"`
}

// SiteConfig is the observatory the visibility checks run against.
type SiteConfig struct {
	Name       string  `yaml:"name"`
	LatDeg     float64 `yaml:"lat_deg"`
	LonDeg     float64 `yaml:"lon_deg"`
	ElevationM float64 `yaml:"elevation_m"`
}

// VisibilityConfig tunes the observability thresholds.
type VisibilityConfig struct {
	SunMaxAltDeg    float64  `yaml:"sun_max_alt_deg"`
	MinElevationDeg float64  `yaml:"min_elevation_deg"`
	MinUpTime       Duration `yaml:"min_up_time"`
}

// Default returns the configuration used when no file is given: the
// production endpoints and the Mauna Kea site the program observes from.
func Default() Config {
	return Config{
		Ephemeris: EphemerisConfig{
			BaseURL:   "https://ephemeris.ossos-labs.org",
			Timeout:   Duration(30 * time.Second),
			CachePath: "",
			CacheTTL:  Duration(7 * 24 * time.Hour),
		},
		Upload: UploadConfig{
			BaseURL:        "https://api.cfht.hawaii.edu",
			Timeout:        Duration(60 * time.Second),
			MaxAttempts:    4,
			InitialBackoff: Duration(time.Second),
			Concurrency:    4,
		},
		Recon: ReconConfig{
			ListURL: "http://www.boulder.swri.edu/~buie/recon/reconlist.csv",
			Timeout: Duration(30 * time.Second),
		},
		Site: SiteConfig{
			Name:       "CFHT",
			LatDeg:     19.8253,
			LonDeg:     -155.4689,
			ElevationM: 4100,
		},
		Visibility: VisibilityConfig{
			SunMaxAltDeg:    -7,
			MinElevationDeg: 40,
			MinUpTime:       Duration(time.Hour),
		},
	}
}

// Load reads a YAML file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.Ephemeris.BaseURL == "" {
		return fmt.Errorf("ephemeris.base_url is required")
	}
	if c.Upload.BaseURL == "" {
		return fmt.Errorf("upload.base_url is required")
	}
	if c.Ephemeris.Timeout < 0 || c.Upload.Timeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if c.Site.LatDeg < -90 || c.Site.LatDeg > 90 {
		return fmt.Errorf("site.lat_deg %v out of range", c.Site.LatDeg)
	}
	if c.Site.LonDeg < -180 || c.Site.LonDeg > 360 {
		return fmt.Errorf("site.lon_deg %v out of range", c.Site.LonDeg)
	}
	return nil
}

// Observatory converts the site section to the core type.
func (c Config) Observatory() core.Observatory {
	return core.Observatory{
		Name:       c.Site.Name,
		LatDeg:     c.Site.LatDeg,
		LonDeg:     c.Site.LonDeg,
		ElevationM: c.Site.ElevationM,
	}
}

// Constraint converts the visibility section to the core type.
func (c Config) Constraint() core.VisibilityConstraint {
	return core.VisibilityConstraint{
		Site:            c.Observatory(),
		SunMaxAltDeg:    c.Visibility.SunMaxAltDeg,
		MinElevationDeg: c.Visibility.MinElevationDeg,
		MinUpTime:       c.Visibility.MinUpTime.D(),
	}
}
