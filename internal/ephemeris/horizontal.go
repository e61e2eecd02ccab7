package ephemeris

import "math"

// HourAngleFromHorizontal converts a horizontal position to a local hour
// angle, all in radians. Azimuth is measured from north through east; the
// result is positive west and lies in (-π, π].
func HourAngleFromHorizontal(alt, az, lat float64) float64 {
	salt, calt := math.Sin(alt), math.Cos(alt)
	saz, caz := math.Sin(az), math.Cos(az)
	slat, clat := math.Sin(lat), math.Cos(lat)

	ha := math.Atan2(-saz*calt, salt*clat-calt*caz*slat)
	return normalize(ha)
}

// DeclinationFromHorizontal returns the declination of a horizontal position.
func DeclinationFromHorizontal(alt, az, lat float64) float64 {
	return math.Asin(math.Sin(alt)*math.Sin(lat) + math.Cos(alt)*math.Cos(lat)*math.Cos(az))
}
