package model

import "time"

// EphemerisSample is the predicted sky position and motion of a body at a
// single instant, as returned by the ephemeris source. Rates are always the
// source's instantaneous values for that epoch, never differences between
// neighbouring samples.
type EphemerisSample struct {
	// Epoch is the UTC instant this sample is valid for.
	Epoch time.Time

	// RA is the J2000 right ascension in degrees, [0, 360).
	RA float64
	// Dec is the J2000 declination in degrees, [-90, +90].
	Dec float64

	// RateRA is d(RA)/dt * cos(Dec) in degrees per day.
	RateRA float64
	// RateDec is d(Dec)/dt in degrees per day.
	RateDec float64

	// Mag is the predicted apparent magnitude, or 0 when the source does
	// not provide one.
	Mag float64
}

// SampleWindow describes the time range and cadence a sample sequence was
// generated for.
type SampleWindow struct {
	Start   time.Time
	End     time.Time
	Cadence time.Duration

	// ShortFinalInterval is set when the window length is not an integer
	// multiple of the cadence, so the last step was shortened to land
	// exactly on End.
	ShortFinalInterval bool

	// Clipped is set when the sequence was restricted to observable
	// epochs after sampling. A clipped sequence keeps the cadence within
	// each night but carries daytime gaps far wider than the cadence.
	Clipped bool
}

// Duration returns the window length.
func (w SampleWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether two windows share any sampled instant. Both
// endpoints carry samples, so windows touching at an endpoint overlap:
// each holds a sample for that shared epoch.
func (w SampleWindow) Overlaps(other SampleWindow) bool {
	return !w.Start.After(other.End) && !other.Start.After(w.End)
}
