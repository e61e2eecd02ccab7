package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/AziGo/internal/config"
	"github.com/cjeanneret/AziGo/internal/console"
	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/cjeanneret/AziGo/internal/ephemeris"
	"github.com/cjeanneret/AziGo/internal/hw/gpio"
	"github.com/cjeanneret/AziGo/internal/hw/limit"
	"github.com/cjeanneret/AziGo/internal/hw/stepper"
	"github.com/cjeanneret/AziGo/internal/logic/geometry"
	"github.com/cjeanneret/AziGo/internal/logic/motion"
	"github.com/cjeanneret/AziGo/internal/logic/pid"
	"github.com/cjeanneret/AziGo/internal/logic/pulse"
	"github.com/cjeanneret/AziGo/internal/logic/quadrature"
	"github.com/cjeanneret/AziGo/internal/logic/setpoint"
	"github.com/cjeanneret/AziGo/internal/logic/supervisor"
	"github.com/cjeanneret/AziGo/internal/record"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// overrides holds command line values replacing configuration entries.
// Zero values mean "use config".
type overrides struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	Model        string
	MockGPIO     bool
}

func main() {
	// CLI flags
	debugLevel := &debugLevelFlag{defaultLevel: debug.LevelLive}
	flag.Var(debugLevel, "debug", "debug level 0-4; -debug= for live output (2); default: config value")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	latitudeDeg := flag.Float64("latitude_deg", 0, "override observer latitude in degrees (-90..90)")
	longitudeDeg := flag.Float64("longitude_deg", 0, "override observer longitude in degrees, east positive (-180..180)")
	model := flag.String("model", "", "override ephemeris model ("+fmt.Sprint(ephemeris.Models())+")")
	mock := flag.Bool("mock", false, "force mock GPIO")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if err := validateCLIOverrides(*latitudeDeg, *longitudeDeg); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides{
		LatitudeDeg:  *latitudeDeg,
		LongitudeDeg: *longitudeDeg,
		Model:        *model,
		MockGPIO:     *mock,
	})
	if lvl, ok := debugLevel.level(); ok {
		cfg.Defaults.DebugLevel = lvl
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	if cfg.Defaults.LogFile != "" {
		debug.AddFile(cfg.Defaults.LogFile, cfg.Defaults.LogFileMaxMB)
	}
	defer debug.Sync()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		debug.Sync()
		log.Fatalf("azigo: %v", err)
	}
}

// run wires the hardware and control loops, serves the console on in/out
// and returns once the supervisor has quit and every loop has stopped.
func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (err error) {
	fmt.Fprintf(out, "AziGo %s: antenna azimuth tracking controller\n", version)
	debug.Summary("AziGo " + version)
	debug.Section("Initialization")
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Value("Ephemeris model", cfg.Ephemeris.Model)
	debug.PrintStruct("Control config", cfg.Control)
	debug.PrintStruct("Observer", cfg.Observer)

	if pos, ok, err := record.LastPosition(cfg.Files.ShutdownLog); err != nil {
		debug.Error(err)
	} else if ok {
		debug.Info("Last recorded position: %d ticks", pos)
	}

	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		err = multierr.Append(err, gpioDriver.Close())
	}()

	debug.Step(2, "Initializing stepper driver")
	motor, err := stepper.NewStepper(gpioDriver, nil, stepper.Config{
		StepPin:   cfg.Stepper.StepPin,
		DirPin:    cfg.Stepper.DirPin,
		EnablePin: cfg.Stepper.EnablePin,
	})
	if err != nil {
		return fmt.Errorf("init stepper: %w", err)
	}
	debug.PrintStruct("Stepper config", cfg.Stepper)

	debug.Step(3, "Initializing encoder")
	state := motion.NewState()
	ticks := geometry.TicksFromConfig(cfg)
	encoder := quadrature.NewEncoder(gpioDriver, cfg.Encoder.APin, cfg.Encoder.BPin,
		quadrature.NewDecoder(state, ticks))
	edges := gpio.NewEdgeSource(cfg.Defaults.MockGPIO, cfg.Encoder.Chip)
	if err := encoder.Start(edges); err != nil {
		return fmt.Errorf("init encoder: %w", err)
	}
	defer func() {
		err = multierr.Append(err, edges.Close())
	}()
	debug.PrintStruct("Encoder config", cfg.Encoder)

	debug.Step(4, "Initializing angle source")
	source, err := ephemeris.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init ephemeris: %w", err)
	}

	debug.Step(5, "Creating control loops")
	regulator := pid.NewRegulator(state, nil, pid.Config{
		Kp:            cfg.Control.Kp,
		Ki:            cfg.Control.Ki,
		Kd:            cfg.Control.Kd,
		IntegralLimit: cfg.Control.IntegralLimit,
		Period:        cfg.Period(),
	})
	scheduler := setpoint.NewScheduler(source, ticks, state, nil, setpoint.Config{
		Period:        cfg.Period(),
		RefreshCycles: cfg.Control.RefreshCycles,
	})
	generator := pulse.NewGenerator(state, motor, nil, pulse.Config{
		MinStepRate:   cfg.Control.MinStepRate,
		MinPulseWidth: cfg.MinPulseWidth(),
		IdleSleep:     cfg.IdleSleep(),
	})
	running := atomic.NewBool(true)
	sup := supervisor.New(supervisor.Config{
		GateTrackingWhenIdle: cfg.Control.GateTrackingWhenIdle,
		ResetPIDOnEntry:      cfg.ResetPIDOnEntry(),
	}, running, motor, regulator, scheduler, generator)

	var aux errgroup.Group
	if cfg.HasLimitSwitch() {
		debug.Step(6, "Starting limit switch watcher")
		sw, err := limit.NewSwitch(gpioDriver, nil, limit.Config{
			Pin:           cfg.LimitSwitch.Pin,
			ActiveLow:     cfg.LimitSwitch.ActiveLow,
			DebounceCount: cfg.LimitSwitch.DebounceCount,
			PollInterval:  cfg.LimitPollInterval(),
		})
		if err != nil {
			return fmt.Errorf("init limit switch: %w", err)
		}
		if err := sw.Settle(); err != nil {
			return fmt.Errorf("init limit switch: %w", err)
		}
		if sw.Pressed() {
			debug.Info("Limit switch on pin %d is pressed at startup", cfg.LimitSwitch.Pin)
		}
		sup.SetInterlock(sw.Pressed)
		aux.Go(func() error {
			err := sw.Run(running, stopOnLimit(sup, out))
			if err != nil {
				_, _ = sup.Handle(supervisor.CmdQuit)
			}
			return err
		})
	}

	debug.Section("Console")
	con := console.New(in, out, sup, cfg.Files.Help)
	go func() {
		if err := con.Run(ctx); err != nil {
			debug.Error(err)
		}
	}()

	select {
	case <-ctx.Done():
		debug.Info("Signal received, shutting down")
		if _, err := sup.Handle(supervisor.CmdQuit); err != nil {
			debug.Error(err)
		}
	case <-sup.Done():
	}

	loopErr := multierr.Combine(sup.Wait(), aux.Wait())

	pos := state.Position()
	fmt.Fprintf(out, "\nThe last known position in encoder ticks is: %d\n", pos)
	recErr := record.WriteShutdown(cfg.Files.ShutdownLog, pos, time.Now())
	if loopErr == nil && recErr == nil {
		fmt.Fprintln(out, "\nYou have performed a graceful shutdown. The control program shall now terminate.")
	}
	debug.Info("Encoder edges: %d (%d dropped), pulses: %d, setpoint refreshes: %d",
		encoder.Edges(), encoder.ReadErrors(), generator.Pulses(), scheduler.Refreshes())
	return multierr.Combine(loopErr, recErr)
}

// modeHandler is the part of the supervisor the limit switch watcher drives.
type modeHandler interface {
	console.Handler
	Mode() supervisor.Mode
}

// stopOnLimit returns the callback run after every poll that finds the
// limit switch pressed: Automatic is left as soon as it is observed.
func stopOnLimit(sup modeHandler, out io.Writer) func() {
	return func() {
		if sup.Mode() != supervisor.Automatic {
			return
		}
		r, err := sup.Handle(supervisor.CmdStop)
		if err != nil {
			debug.Error(fmt.Errorf("limit switch stop: %w", err))
			return
		}
		if r.Changed {
			fmt.Fprintf(out, "\n[LIMIT] End stop reached\n%s\n", r.Message)
		}
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(latitude, longitude float64) error {
	if latitude != 0 {
		if math.IsNaN(latitude) || math.IsInf(latitude, 0) || latitude < -90 || latitude > 90 {
			return fmt.Errorf("latitude_deg must be between -90 and 90, got %g", latitude)
		}
	}
	if longitude != 0 {
		if math.IsNaN(longitude) || math.IsInf(longitude, 0) || longitude < -180 || longitude > 180 {
			return fmt.Errorf("longitude_deg must be between -180 and 180, got %g", longitude)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.LatitudeDeg != 0 {
		cfg.Observer.LatitudeDeg = o.LatitudeDeg
	}
	if o.LongitudeDeg != 0 {
		cfg.Observer.LongitudeDeg = o.LongitudeDeg
	}
	if o.Model != "" {
		cfg.Ephemeris.Model = o.Model
	}
	if o.MockGPIO {
		cfg.Defaults.MockGPIO = true
	}
}

// debugLevelFlag implements flag.Value for -debug: unset = config level,
// -debug= → defaultLevel, -debug 3 → 3.
type debugLevelFlag struct {
	val          int
	set          bool
	defaultLevel int
}

func (d *debugLevelFlag) String() string {
	if !d.set {
		return ""
	}
	return strconv.Itoa(d.val)
}

func (d *debugLevelFlag) Set(s string) error {
	if s == "" {
		d.val, d.set = d.defaultLevel, true
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v < debug.LevelOff || v > debug.LevelTrace {
		return fmt.Errorf("debug level must be %d-%d, got %d", debug.LevelOff, debug.LevelTrace, v)
	}
	d.val, d.set = v, true
	return nil
}

func (d *debugLevelFlag) level() (int, bool) { return d.val, d.set }
