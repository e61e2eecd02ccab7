package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// StepperConfig holds the pins of the A4988 stepper driver.
type StepperConfig struct {
	StepPin   int `yaml:"step_pin"`
	DirPin    int `yaml:"dir_pin"`
	EnablePin int `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
}

// EncoderConfig describes the quadrature encoder on the output shaft.
type EncoderConfig struct {
	APin        int    `yaml:"a_pin"`
	BPin        int    `yaml:"b_pin"`
	Chip        string `yaml:"chip"`          // GPIO character device used for edge events
	TicksPerRev int    `yaml:"ticks_per_rev"` // encoder ticks * gearbox ratio
}

// LimitSwitchConfig is optional: a debounced end-stop input.
type LimitSwitchConfig struct {
	Pin            int  `yaml:"pin"` // 0 = not used
	ActiveLow      bool `yaml:"active_low"`
	DebounceCount  int  `yaml:"debounce_count"`   // consecutive agreeing reads before a level is accepted
	PollIntervalUs int  `yaml:"poll_interval_us"` // delay between reads
}

// ControlConfig holds the regulator, pulse generator and scheduler constants.
type ControlConfig struct {
	PeriodUs             int     `yaml:"period_us"` // regulator and scheduler period
	Kp                   float64 `yaml:"kp"`
	Ki                   float64 `yaml:"ki"`
	Kd                   float64 `yaml:"kd"`
	IntegralLimit        float64 `yaml:"integral_limit"` // anti-windup clamp
	MinStepRate          float64 `yaml:"min_step_rate"`  // ticks/s below which no pulses are emitted
	MinPulseWidthUs      int     `yaml:"min_pulse_width_us"`
	IdleSleepUs          int     `yaml:"idle_sleep_us"`
	RefreshCycles        int     `yaml:"refresh_cycles"` // angle source is queried every N cycles
	GateTrackingWhenIdle bool    `yaml:"gate_tracking_when_idle"`
	ResetPIDOnEntry      *bool   `yaml:"reset_pid_on_entry,omitempty"` // default true
}

// ObserverConfig holds the fixed station coordinates.
type ObserverConfig struct {
	LatitudeDeg  float64 `yaml:"latitude_deg"`
	LongitudeDeg float64 `yaml:"longitude_deg"` // east positive
	AltitudeM    float64 `yaml:"altitude_m"`
}

// EphemerisConfig selects the angle source implementation.
type EphemerisConfig struct {
	Model string `yaml:"model"` // "sun" (built in) or "novas" (build tag novas)
}

// FilesConfig holds paths of the console help and shutdown record files.
type FilesConfig struct {
	Help        string `yaml:"help"`
	ShutdownLog string `yaml:"shutdown_log"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel   int    `yaml:"debug_level"`     // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO     bool   `yaml:"mock_gpio"`       // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	LogFile      string `yaml:"log_file"`        // optional rotated log file
	LogFileMaxMB int    `yaml:"log_file_max_mb"` // rotation size
}

// Config aggregates all application configuration.
type Config struct {
	Stepper     StepperConfig      `yaml:"stepper"`
	Encoder     EncoderConfig      `yaml:"encoder"`
	LimitSwitch *LimitSwitchConfig `yaml:"limit_switch,omitempty"` // optional
	Control     ControlConfig      `yaml:"control"`
	Observer    ObserverConfig     `yaml:"observer"`
	Ephemeris   EphemerisConfig    `yaml:"ephemeris"`
	Files       FilesConfig        `yaml:"files"`
	Defaults    DefaultsConfig     `yaml:"defaults"`
}

// ValidateConfigPath checks that path names a .yaml file inside a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be inside a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Required pins
	if cfg.Stepper.StepPin <= 0 || cfg.Stepper.DirPin <= 0 {
		return nil, errors.New("stepper.step_pin and stepper.dir_pin are required")
	}
	if cfg.Encoder.APin <= 0 || cfg.Encoder.BPin <= 0 {
		return nil, errors.New("encoder.a_pin and encoder.b_pin are required")
	}
	if cfg.Encoder.APin == cfg.Encoder.BPin {
		return nil, fmt.Errorf("encoder.a_pin and encoder.b_pin must differ, both are %d", cfg.Encoder.APin)
	}
	if cfg.Encoder.TicksPerRev < 0 {
		return nil, fmt.Errorf("encoder.ticks_per_rev must be > 0, got %d", cfg.Encoder.TicksPerRev)
	}
	if cfg.Encoder.TicksPerRev == 0 {
		cfg.Encoder.TicksPerRev = 5000
	}
	if cfg.Encoder.TicksPerRev%2 != 0 {
		return nil, fmt.Errorf("encoder.ticks_per_rev must be even, got %d", cfg.Encoder.TicksPerRev)
	}
	if cfg.Encoder.Chip == "" {
		cfg.Encoder.Chip = "gpiochip0"
	}

	// Control loop defaults
	c := &cfg.Control
	if c.PeriodUs <= 0 {
		c.PeriodUs = 1000 // 1 ms
	}
	for name, v := range map[string]float64{
		"kp": c.Kp, "ki": c.Ki, "kd": c.Kd,
		"integral_limit": c.IntegralLimit, "min_step_rate": c.MinStepRate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("control.%s must be finite, got %g", name, v)
		}
	}
	if c.Kp == 0 && c.Ki == 0 && c.Kd == 0 {
		c.Kp = 10
	}
	if c.IntegralLimit < 0 {
		return nil, fmt.Errorf("control.integral_limit must be >= 0, got %g", c.IntegralLimit)
	}
	if c.IntegralLimit == 0 {
		c.IntegralLimit = 1000
	}
	if c.MinStepRate <= 0 {
		c.MinStepRate = 1.0
	}
	if c.MinPulseWidthUs <= 0 {
		c.MinPulseWidthUs = 50 // speed limit: 10 kHz step rate
	}
	if c.IdleSleepUs <= 0 {
		c.IdleSleepUs = 1000
	}
	if c.RefreshCycles <= 0 {
		c.RefreshCycles = 5000
	}
	if c.ResetPIDOnEntry == nil {
		reset := true
		c.ResetPIDOnEntry = &reset
	}

	if ls := cfg.LimitSwitch; ls != nil && ls.Pin > 0 {
		if ls.DebounceCount <= 0 {
			ls.DebounceCount = 5
		}
		if ls.PollIntervalUs <= 0 {
			ls.PollIntervalUs = 1000
		}
	}

	// Observer
	if cfg.Observer.LatitudeDeg < -90 || cfg.Observer.LatitudeDeg > 90 {
		return nil, fmt.Errorf("observer.latitude_deg must be between -90 and 90, got %.4f", cfg.Observer.LatitudeDeg)
	}
	if cfg.Observer.LongitudeDeg < -180 || cfg.Observer.LongitudeDeg > 180 {
		return nil, fmt.Errorf("observer.longitude_deg must be between -180 and 180, got %.4f", cfg.Observer.LongitudeDeg)
	}
	if cfg.Ephemeris.Model == "" {
		cfg.Ephemeris.Model = "sun"
	}

	if cfg.Files.Help == "" {
		cfg.Files.Help = "help.txt"
	}
	if cfg.Files.ShutdownLog == "" {
		cfg.Files.ShutdownLog = "shutdownLog.txt"
	}
	if cfg.Defaults.LogFileMaxMB <= 0 {
		cfg.Defaults.LogFileMaxMB = 10
	}

	return &cfg, nil
}

// Period returns the regulator and scheduler period.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Control.PeriodUs) * time.Microsecond
}

// MinPulseWidth returns the minimum STEP half-period.
func (c *Config) MinPulseWidth() time.Duration {
	return time.Duration(c.Control.MinPulseWidthUs) * time.Microsecond
}

// IdleSleep returns how long the pulse generator sleeps when the demand is below threshold.
func (c *Config) IdleSleep() time.Duration {
	return time.Duration(c.Control.IdleSleepUs) * time.Microsecond
}

// ResetPIDOnEntry reports whether the regulator state is cleared on entering automatic mode.
func (c *Config) ResetPIDOnEntry() bool {
	return c.Control.ResetPIDOnEntry == nil || *c.Control.ResetPIDOnEntry
}

// HasLimitSwitch reports whether a limit switch pin is configured.
func (c *Config) HasLimitSwitch() bool {
	return c.LimitSwitch != nil && c.LimitSwitch.Pin > 0
}

// LimitPollInterval returns the delay between two limit switch reads.
func (c *Config) LimitPollInterval() time.Duration {
	if !c.HasLimitSwitch() {
		return 0
	}
	return time.Duration(c.LimitSwitch.PollIntervalUs) * time.Microsecond
}
