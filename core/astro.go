package core

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Observatory is a ground site from which visibility is judged.
// Angles in degrees (east longitude positive), elevation in metres.
type Observatory struct {
	Name       string
	LatDeg     float64
	LonDeg     float64
	ElevationM float64
}

// julianDay returns the Julian day number for t (UTC).
func julianDay(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	return satellite.JDay(year, int(month), day, hour, min, sec)
}

// gmst returns Greenwich mean sidereal time at t, in radians.
func gmst(t time.Time) float64 {
	return satellite.ThetaG_JD(julianDay(t))
}

// SunRADec returns the apparent solar right ascension and declination in
// degrees at t, from the low-order formulae in the Astronomical Almanac.
// Accurate to ~0.01 degree, which is far tighter than the twilight
// thresholds it feeds.
func SunRADec(t time.Time) (raDeg, decDeg float64) {
	n := julianDay(t) - 2451545.0

	meanLon := math.Mod(280.460+0.9856474*n, 360)
	meanAnom := math.Mod(357.528+0.9856003*n, 360) * degToRad
	eclLon := (meanLon + 1.915*math.Sin(meanAnom) + 0.020*math.Sin(2*meanAnom)) * degToRad
	obliquity := (23.439 - 0.0000004*n) * degToRad

	ra := math.Atan2(math.Cos(obliquity)*math.Sin(eclLon), math.Cos(eclLon))
	dec := math.Asin(math.Sin(obliquity) * math.Sin(eclLon))

	raDeg = math.Mod(ra*radToDeg+360, 360)
	return raDeg, dec * radToDeg
}

// Altitude returns the altitude in degrees of a body at (raDeg, decDeg)
// J2000, seen from the observatory at time t. Refraction is ignored; the
// visibility thresholds absorb it.
func (o Observatory) Altitude(t time.Time, raDeg, decDeg float64) float64 {
	lst := gmst(t) + o.LonDeg*degToRad
	hourAngle := lst - raDeg*degToRad

	lat := o.LatDeg * degToRad
	dec := decDeg * degToRad
	sinAlt := math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(hourAngle)
	return math.Asin(clamp(sinAlt, -1, 1)) * radToDeg
}

// SunAltitude returns the Sun's altitude in degrees from the observatory
// at time t.
func (o Observatory) SunAltitude(t time.Time) float64 {
	ra, dec := SunRADec(t)
	return o.Altitude(t, ra, dec)
}

// AngularSeparation returns the great-circle separation in degrees between
// two J2000 positions given in degrees.
func AngularSeparation(ra1, dec1, ra2, dec2 float64) float64 {
	a1, d1 := ra1*degToRad, dec1*degToRad
	a2, d2 := ra2*degToRad, dec2*degToRad

	s := math.Sin(d1)*math.Sin(d2) + math.Cos(d1)*math.Cos(d2)*math.Cos(a1-a2)
	return math.Acos(clamp(s, -1, 1)) * radToDeg
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
