package ephemeris

import (
	"math"
	"time"
)

// SolarHourAngle computes the local hour angle of the Sun from the NOAA
// equation of time approximation. Accurate to about a minute of time.
type SolarHourAngle struct {
	obs Observer
}

// NewSolarHourAngle creates the built-in solar model.
func NewSolarHourAngle(obs Observer) *SolarHourAngle {
	return &SolarHourAngle{obs: obs}
}

// TargetAngle returns the hour angle of the Sun in (-π, π].
func (s *SolarHourAngle) TargetAngle(t time.Time) (float64, error) {
	u := t.UTC()
	hours := float64(u.Hour()) + float64(u.Minute())/60 +
		(float64(u.Second())+float64(u.Nanosecond())/1e9)/3600

	// True solar time in minutes.
	tst := hours*60 + EquationOfTime(u) + 4*s.obs.LongitudeDeg
	ha := deg2rad(tst/4 - 180)
	return normalize(ha), nil
}

// EquationOfTime returns apparent minus mean solar time in minutes.
func EquationOfTime(t time.Time) float64 {
	u := t.UTC()
	days := 365.0
	if y := u.Year(); y%4 == 0 && (y%100 != 0 || y%400 == 0) {
		days = 366
	}
	hours := float64(u.Hour()) + float64(u.Minute())/60 + float64(u.Second())/3600
	// Fractional year in radians.
	g := 2 * math.Pi / days * (float64(u.YearDay()-1) + (hours-12)/24)

	return 229.18 * (0.000075 +
		0.001868*math.Cos(g) - 0.032077*math.Sin(g) -
		0.014615*math.Cos(2*g) - 0.040849*math.Sin(2*g))
}

// normalize maps an angle into (-π, π].
func normalize(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func deg2rad(x float64) float64 {
	return x * math.Pi / 180
}
