package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	// Create a real configs/ directory so filepath.Abs resolves correctly.
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	// Should not panic; error or success is OS-dependent, but must not crash.
	_ = ValidateConfigPath(long)
}

func TestValidateConfigPath_SpecialChars(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		wantErr bool
	}{
		{"con fig.yaml", false},
		{"café.yaml", false},
	}
	for _, tc := range cases {
		path := filepath.Join(cfgDir, tc.name)
		err := ValidateConfigPath(path)
		if tc.wantErr && err == nil {
			t.Errorf("expected error for %q, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("unexpected error for %q: %v", tc.name, err)
		}
	}
}

func TestValidateConfigPath_DoubleTraversal(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Try to escape via ../../configs/ok.yaml - filepath.Clean resolves this
	// and the parent must still be "configs".
	path := filepath.Join(cfgDir, "../../configs/ok.yaml")
	err := ValidateConfigPath(path)
	// After Clean the parent may or may not be "configs" depending on resolution.
	// The important thing is it either succeeds with a valid parent or fails.
	_ = err
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
stepper:
  step_pin: 13
  dir_pin: 5
encoder:
  a_pin: 27
  b_pin: 17
`

const validYAML = `
stepper:
  step_pin: 13
  dir_pin: 5
  enable_pin: 6
encoder:
  a_pin: 27
  b_pin: 17
  chip: "gpiochip4"
  ticks_per_rev: 6000
limit_switch:
  pin: 23
control:
  period_us: 2000
  kp: 8.5
  ki: 0.5
  kd: 0.01
  integral_limit: 500
  min_step_rate: 2
  min_pulse_width_us: 80
  idle_sleep_us: 500
  refresh_cycles: 1000
  gate_tracking_when_idle: true
  reset_pid_on_entry: false
observer:
  latitude_deg: 45.2757
  longitude_deg: 13.7219
  altitude_m: 223.5
ephemeris:
  model: "novas"
files:
  help: "docs/help.txt"
  shutdown_log: "/var/log/azigo/shutdown.txt"
defaults:
  debug_level: 2
  mock_gpio: true
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Stepper.EnablePin != 6 {
		t.Errorf("stepper.enable_pin = %d, want 6", cfg.Stepper.EnablePin)
	}
	if cfg.Encoder.Chip != "gpiochip4" {
		t.Errorf("encoder.chip = %q, want %q", cfg.Encoder.Chip, "gpiochip4")
	}
	if cfg.Encoder.TicksPerRev != 6000 {
		t.Errorf("encoder.ticks_per_rev = %d, want 6000", cfg.Encoder.TicksPerRev)
	}
	if cfg.Control.Kp != 8.5 || cfg.Control.Ki != 0.5 || cfg.Control.Kd != 0.01 {
		t.Errorf("gains = (%v, %v, %v), want (8.5, 0.5, 0.01)", cfg.Control.Kp, cfg.Control.Ki, cfg.Control.Kd)
	}
	if cfg.Period() != 2*time.Millisecond {
		t.Errorf("Period() = %v, want 2ms", cfg.Period())
	}
	if cfg.MinPulseWidth() != 80*time.Microsecond {
		t.Errorf("MinPulseWidth() = %v, want 80µs", cfg.MinPulseWidth())
	}
	if cfg.Control.RefreshCycles != 1000 {
		t.Errorf("refresh_cycles = %d, want 1000", cfg.Control.RefreshCycles)
	}
	if !cfg.Control.GateTrackingWhenIdle {
		t.Error("gate_tracking_when_idle should be true")
	}
	if cfg.ResetPIDOnEntry() {
		t.Error("ResetPIDOnEntry() should be false when set in YAML")
	}
	if !cfg.HasLimitSwitch() {
		t.Fatal("limit switch should be configured")
	}
	if cfg.LimitSwitch.DebounceCount != 5 {
		t.Errorf("limit_switch.debounce_count default = %d, want 5", cfg.LimitSwitch.DebounceCount)
	}
	if cfg.LimitPollInterval() != time.Millisecond {
		t.Errorf("LimitPollInterval() = %v, want 1ms", cfg.LimitPollInterval())
	}
	if cfg.Ephemeris.Model != "novas" {
		t.Errorf("ephemeris.model = %q, want %q", cfg.Ephemeris.Model, "novas")
	}
	if cfg.Files.ShutdownLog != "/var/log/azigo/shutdown.txt" {
		t.Errorf("files.shutdown_log = %q", cfg.Files.ShutdownLog)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Encoder.TicksPerRev != 5000 {
		t.Errorf("ticks_per_rev default = %d, want 5000", cfg.Encoder.TicksPerRev)
	}
	if cfg.Encoder.Chip != "gpiochip0" {
		t.Errorf("chip default = %q, want gpiochip0", cfg.Encoder.Chip)
	}
	if cfg.Period() != time.Millisecond {
		t.Errorf("Period() default = %v, want 1ms", cfg.Period())
	}
	if cfg.Control.Kp != 10 {
		t.Errorf("kp default = %v, want 10", cfg.Control.Kp)
	}
	if cfg.Control.IntegralLimit != 1000 {
		t.Errorf("integral_limit default = %v, want 1000", cfg.Control.IntegralLimit)
	}
	if cfg.Control.MinStepRate != 1.0 {
		t.Errorf("min_step_rate default = %v, want 1.0", cfg.Control.MinStepRate)
	}
	if cfg.MinPulseWidth() != 50*time.Microsecond {
		t.Errorf("MinPulseWidth() default = %v, want 50µs", cfg.MinPulseWidth())
	}
	if cfg.IdleSleep() != time.Millisecond {
		t.Errorf("IdleSleep() default = %v, want 1ms", cfg.IdleSleep())
	}
	if cfg.Control.RefreshCycles != 5000 {
		t.Errorf("refresh_cycles default = %d, want 5000", cfg.Control.RefreshCycles)
	}
	if !cfg.ResetPIDOnEntry() {
		t.Error("ResetPIDOnEntry() default should be true")
	}
	if cfg.HasLimitSwitch() {
		t.Error("limit switch should be absent by default")
	}
	if cfg.Ephemeris.Model != "sun" {
		t.Errorf("ephemeris.model default = %q, want sun", cfg.Ephemeris.Model)
	}
	if cfg.Files.Help != "help.txt" || cfg.Files.ShutdownLog != "shutdownLog.txt" {
		t.Errorf("files defaults = %+v", cfg.Files)
	}
}

func TestLoad_MissingPins(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no_stepper", "encoder:\n  a_pin: 27\n  b_pin: 17\n"},
		{"no_dir_pin", "stepper:\n  step_pin: 13\nencoder:\n  a_pin: 27\n  b_pin: 17\n"},
		{"no_encoder", "stepper:\n  step_pin: 13\n  dir_pin: 5\n"},
		{"same_encoder_pins", "stepper:\n  step_pin: 13\n  dir_pin: 5\nencoder:\n  a_pin: 27\n  b_pin: 27\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_TicksPerRevInvalid(t *testing.T) {
	cases := []int{-1, 4999}
	for _, ticks := range cases {
		t.Run(fmt.Sprint(ticks), func(t *testing.T) {
			yaml := minimalYAML + "  ticks_per_rev: " + fmt.Sprint(ticks) + "\n"
			if _, err := Load(writeConfig(t, yaml)); err == nil {
				t.Errorf("expected error for ticks_per_rev=%d, got nil", ticks)
			}
		})
	}
}

func TestLoad_ObserverOutOfRange(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
	}{
		{"latitude_over_90", 90.5, 0},
		{"latitude_under_-90", -91, 0},
		{"longitude_over_180", 0, 180.5},
		{"longitude_under_-180", 0, -181},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yaml := minimalYAML + "observer:\n  latitude_deg: " + formatFloat(tc.lat) +
				"\n  longitude_deg: " + formatFloat(tc.lon) + "\n"
			if _, err := Load(writeConfig(t, yaml)); err == nil {
				t.Errorf("expected error for lat=%v lon=%v, got nil", tc.lat, tc.lon)
			}
		})
	}
}

func TestLoad_NegativeIntegralLimit(t *testing.T) {
	yaml := minimalYAML + "control:\n  integral_limit: -5\n"
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Error("expected error for negative integral_limit, got nil")
	}
}

func TestLoad_NonFiniteControlValues(t *testing.T) {
	for _, field := range []string{"kp: .nan", "ki: .inf", "integral_limit: .nan", "min_step_rate: .nan", "min_step_rate: .inf"} {
		t.Run(field, func(t *testing.T) {
			yaml := minimalYAML + "control:\n  " + field + "\n"
			if _, err := Load(writeConfig(t, yaml)); err == nil {
				t.Errorf("expected error for %q, got nil", field)
			}
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for empty config (pins missing), got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := minimalYAML + `
unknown_section:
  foo: bar
`
	path := writeConfig(t, yaml)
	_, err := Load(path)
	if err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "nonexistent.yaml")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

// ---------- Helper methods ----------

func TestConfig_DurationAccessors(t *testing.T) {
	cfg := &Config{Control: ControlConfig{PeriodUs: 500, MinPulseWidthUs: 40, IdleSleepUs: 250}}
	if got := cfg.Period(); got != 500*time.Microsecond {
		t.Errorf("Period() = %v, want 500µs", got)
	}
	if got := cfg.MinPulseWidth(); got != 40*time.Microsecond {
		t.Errorf("MinPulseWidth() = %v, want 40µs", got)
	}
	if got := cfg.IdleSleep(); got != 250*time.Microsecond {
		t.Errorf("IdleSleep() = %v, want 250µs", got)
	}
}

func TestConfig_ResetPIDOnEntryNil(t *testing.T) {
	cfg := &Config{}
	if !cfg.ResetPIDOnEntry() {
		t.Error("ResetPIDOnEntry() with nil field should default to true")
	}
}

func TestConfig_LimitPollIntervalWithoutSwitch(t *testing.T) {
	cfg := &Config{LimitSwitch: &LimitSwitchConfig{Pin: 0, PollIntervalUs: 1000}}
	if cfg.HasLimitSwitch() {
		t.Error("pin 0 means no limit switch")
	}
	if got := cfg.LimitPollInterval(); got != 0 {
		t.Errorf("LimitPollInterval() = %v, want 0", got)
	}
}

// formatFloat is a test helper for embedding floats into YAML strings.
func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}
