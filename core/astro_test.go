package core

import (
	"math"
	"testing"
	"time"
)

var maunaKea = Observatory{Name: "CFHT", LatDeg: 19.8253, LonDeg: -155.4689, ElevationM: 4100}

func TestSunRADec_Solstices(t *testing.T) {
	// June solstice: the Sun sits near its maximum declination.
	_, dec := SunRADec(time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC))
	if math.Abs(dec-23.44) > 0.5 {
		t.Errorf("June solstice declination = %v, want ~23.44", dec)
	}

	_, dec = SunRADec(time.Date(2026, 12, 21, 12, 0, 0, 0, time.UTC))
	if math.Abs(dec+23.44) > 0.5 {
		t.Errorf("December solstice declination = %v, want ~-23.44", dec)
	}
}

func TestSunRADec_Equinox(t *testing.T) {
	_, dec := SunRADec(time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC))
	if math.Abs(dec) > 1 {
		t.Errorf("equinox declination = %v, want ~0", dec)
	}
}

func TestSunAltitude_DayNight(t *testing.T) {
	// Hawaii is UTC-10: 22:00 UTC is local noon, 10:00 UTC local midnight.
	noon := time.Date(2026, 6, 21, 22, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 6, 21, 10, 0, 0, 0, time.UTC)

	if alt := maunaKea.SunAltitude(noon); alt < 45 {
		t.Errorf("solar altitude at local noon = %v, want high in the sky", alt)
	}
	if alt := maunaKea.SunAltitude(midnight); alt > -20 {
		t.Errorf("solar altitude at local midnight = %v, want well below horizon", alt)
	}
}

func TestAltitude_CelestialPoles(t *testing.T) {
	// The celestial poles sit at a fixed altitude equal to +/- the site
	// latitude, independent of time.
	for _, hour := range []int{0, 6, 13, 21} {
		at := time.Date(2026, 2, 1, hour, 0, 0, 0, time.UTC)
		if alt := maunaKea.Altitude(at, 0, 90); math.Abs(alt-maunaKea.LatDeg) > 1e-6 {
			t.Errorf("north celestial pole altitude at %02dh = %v, want %v", hour, alt, maunaKea.LatDeg)
		}
		if alt := maunaKea.Altitude(at, 0, -90); math.Abs(alt+maunaKea.LatDeg) > 1e-6 {
			t.Errorf("south celestial pole altitude at %02dh = %v, want %v", hour, alt, -maunaKea.LatDeg)
		}
	}
}

func TestAngularSeparation(t *testing.T) {
	cases := []struct {
		ra1, dec1, ra2, dec2, want float64
	}{
		{181, -5, 181, -5, 0},
		{0, 0, 90, 0, 90},
		{0, 90, 0, -90, 180},
		{10, 0, 350, 0, 20}, // wraps through RA 0
	}
	for _, c := range cases {
		got := AngularSeparation(c.ra1, c.dec1, c.ra2, c.dec2)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("AngularSeparation(%v,%v, %v,%v) = %v, want %v", c.ra1, c.dec1, c.ra2, c.dec2, got, c.want)
		}
	}
}
