package ephemeris

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cjeanneret/AziGo/internal/config"
)

// Observer is the fixed station position.
type Observer struct {
	LatitudeDeg  float64
	LongitudeDeg float64 // east positive
	AltitudeM    float64
}

// Source returns the target hour angle in radians at time t,
// positive west of the meridian.
type Source interface {
	TargetAngle(t time.Time) (float64, error)
}

// Factory builds a Source for an observer.
type Factory func(obs Observer) (Source, error)

var models = map[string]Factory{
	"sun": func(obs Observer) (Source, error) { return NewSolarHourAngle(obs), nil },
}

// register adds a model. Called from init functions of optional models.
func register(name string, f Factory) {
	models[name] = f
}

// Models returns the names of the available models, sorted.
func Models() []string {
	names := make([]string, 0, len(models))
	for n := range models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the named model for obs.
func New(model string, obs Observer) (Source, error) {
	f, ok := models[model]
	if !ok {
		return nil, fmt.Errorf("unknown ephemeris model %q (available: %s)", model, strings.Join(Models(), ", "))
	}
	return f(obs)
}

// FromConfig builds the configured model for the configured observer.
func FromConfig(cfg *config.Config) (Source, error) {
	return New(cfg.Ephemeris.Model, Observer{
		LatitudeDeg:  cfg.Observer.LatitudeDeg,
		LongitudeDeg: cfg.Observer.LongitudeDeg,
		AltitudeM:    cfg.Observer.AltitudeM,
	})
}
