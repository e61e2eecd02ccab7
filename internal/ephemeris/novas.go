//go:build novas

package ephemeris

import (
	"errors"
	"math"
	"time"

	"github.com/pebbe/novas"
)

var errNoPosition = errors.New("novas returned no solar position")

func init() {
	register("novas", func(obs Observer) (Source, error) { return NewNovasSun(obs), nil })
}

// NovasSun computes the topocentric hour angle of the Sun with the NOVAS
// library, including nutation and aberration.
type NovasSun struct {
	obs Observer
}

// NewNovasSun creates the NOVAS solar model.
func NewNovasSun(obs Observer) *NovasSun {
	return &NovasSun{obs: obs}
}

// TargetAngle returns the hour angle of the Sun in (-π, π].
func (n *NovasSun) TargetAngle(t time.Time) (float64, error) {
	u := t.UTC()
	when := novas.Date(u.Year(), int(u.Month()), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC)
	place := novas.NewPlace(n.obs.LatitudeDeg, n.obs.LongitudeDeg, n.obs.AltitudeM, 10, 1010)

	pos := novas.Sun().Topo(when, place, novas.REFR_NONE)
	if math.IsNaN(pos.Alt) || math.IsNaN(pos.Az) {
		return 0, errNoPosition
	}
	return HourAngleFromHorizontal(deg2rad(pos.Alt), deg2rad(pos.Az), deg2rad(n.obs.LatitudeDeg)), nil
}
