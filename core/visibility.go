package core

import (
	"time"

	"github.com/ossos-labs/mptrack/model"
)

// VisibilityConstraint restricts sampled epochs to those actually
// observable from a site: the Sun below a twilight altitude and the target
// above a minimum elevation.
type VisibilityConstraint struct {
	Site Observatory

	// SunMaxAltDeg is the solar altitude above which the sky is too
	// bright. Nautical-ish twilight at -7 degrees by default.
	SunMaxAltDeg float64

	// MinElevationDeg is the lowest target elevation worth tracking.
	MinElevationDeg float64

	// MinUpTime drops targets whose observable stretch within the window
	// is shorter than this. Zero disables the check.
	MinUpTime time.Duration
}

// DefaultVisibilityConstraint returns the constraint the observing
// program has always used: astronomical sky after -7 degree twilight, and
// a 40 degree elevation floor to stay out of the worst airmass.
func DefaultVisibilityConstraint(site Observatory) VisibilityConstraint {
	return VisibilityConstraint{
		Site:            site,
		SunMaxAltDeg:    -7,
		MinElevationDeg: 40,
		MinUpTime:       time.Hour,
	}
}

// Observable reports whether a body at (raDeg, decDeg) can be usefully
// observed at epoch t.
func (c VisibilityConstraint) Observable(t time.Time, raDeg, decDeg float64) bool {
	if c.Site.SunAltitude(t) > c.SunMaxAltDeg {
		return false
	}
	return c.Site.Altitude(t, raDeg, decDeg) >= c.MinElevationDeg
}

// Filter returns the subsequence of samples whose epochs satisfy the
// constraint, preserving order. When MinUpTime is set and the span from
// first to last kept epoch is shorter, Filter returns nil: the target is
// not worth a document for this window.
func (c VisibilityConstraint) Filter(samples []model.EphemerisSample) []model.EphemerisSample {
	var kept []model.EphemerisSample
	for _, s := range samples {
		if c.Observable(s.Epoch, s.RA, s.Dec) {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if c.MinUpTime > 0 {
		span := kept[len(kept)-1].Epoch.Sub(kept[0].Epoch)
		if span < c.MinUpTime {
			return nil
		}
	}
	return kept
}
