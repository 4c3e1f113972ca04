package drift

import (
	"errors"
	"fmt"
	"time"
)

// CoolingMode selects how the interlock decides the engine has cooled.
type CoolingMode string

const (
	// CoolWaitTemperature polls until the water temperature drops below
	// ResumeTemp.
	CoolWaitTemperature CoolingMode = "wait_temperature"
	// CoolFixedDelay idles for FixedDelay without reading the temperature.
	CoolFixedDelay CoolingMode = "fixed_delay"
)

// PostCooldown is what the session does once a cooldown completes.
type PostCooldown string

const (
	AfterCooldownReverse PostCooldown = "reverse" // run the reversal maneuver
	AfterCooldownKick    PostCooldown = "kick"    // re-launch with a random circle
	AfterCooldownResume  PostCooldown = "resume"  // send ResumeCommand and carry on
)

type WeightedSumConfig struct {
	TargetYawRate float64 // magnitude
	Aggression    float64
	Throttle      ThrottleLaw
}

type PIDConfig struct {
	TargetYawRate float64 // signed
	Kp            float64
	Ki            float64
	Kd            float64
	IntegralLimit float64
	MinDt         time.Duration
	Throttle      ThrottleLaw
}

type ThermalConfig struct {
	CriticalTemp  float64
	ResumeTemp    float64
	Mode          CoolingMode
	FixedDelay    time.Duration
	Dwell         time.Duration
	MaxWait       time.Duration // per blocking phase; exceeded is fatal
	PollInterval  time.Duration
	SafeCommand   Command
	StopCommand   Command
	After         PostCooldown
	ResumeCommand Command
}

type ReversalConfig struct {
	EveryTicks       int // 0 disables the periodic trigger
	MaxAttempts      int
	Interval         time.Duration
	Steering         float64 // magnitude; sign comes from the target
	Throttle         float64
	Brake            float64
	ConfirmThreshold float64
}

type KickConfig struct {
	Enabled  bool
	Duration time.Duration
	Throttle float64
	Gear     Gear
	Seed     uint64
}

// Config is the full set of loop parameters.
type Config struct {
	Law          LawKind
	TickInterval time.Duration
	MaxTicks     int // 0 runs until the context ends
	Secondary    SecondarySignal
	LawGear      Gear

	WeightedSum WeightedSumConfig
	PID         PIDConfig
	Thermal     ThermalConfig
	Reversal    ReversalConfig
	Kick        KickConfig

	// DiagnosticsEvery throttles the per-tick DEBUG line on wall time; 0
	// logs every tick.
	DiagnosticsEvery time.Duration
}

// DefaultConfig reproduces the tuning the drift experiments converged on.
func DefaultConfig() Config {
	return Config{
		Law:          LawWeightedSum,
		TickInterval: 100 * time.Millisecond,
		Secondary:    SecondaryYawAccel,
		LawGear:      GearAutomatic,
		WeightedSum: WeightedSumConfig{
			TargetYawRate: 2,
			Aggression:    2,
			Throttle:      ThrottleLaw{ErrorThreshold: 0.1, Floor: 0.3, Gain: 2},
		},
		PID: PIDConfig{
			TargetYawRate: -2,
			Kp:            0.5,
			Ki:            0.1,
			Kd:            0.05,
			MinDt:         10 * time.Millisecond,
			Throttle:      ThrottleLaw{ErrorThreshold: 0.1, Floor: 0.5, Gain: 5},
		},
		Thermal: ThermalConfig{
			CriticalTemp:  115,
			ResumeTemp:    91,
			Mode:          CoolWaitTemperature,
			FixedDelay:    10 * time.Second,
			Dwell:         5 * time.Second,
			MaxWait:       10 * time.Minute,
			PollInterval:  50 * time.Millisecond,
			SafeCommand:   Command{Throttle: 0.2, Gear: 3},
			StopCommand:   Command{Brake: 1},
			After:         AfterCooldownReverse,
			ResumeCommand: Command{Throttle: 1},
		},
		Reversal: ReversalConfig{
			EveryTicks:       200,
			MaxAttempts:      200,
			Interval:         100 * time.Millisecond,
			Steering:         1,
			Throttle:         0.3,
			Brake:            0.1,
			ConfirmThreshold: ConfirmThreshold,
		},
		Kick: KickConfig{
			Enabled:  true,
			Duration: 2 * time.Second,
			Throttle: 1,
			Gear:     3,
			Seed:     1703,
		},
		DiagnosticsEvery: 2 * time.Second,
	}
}

// Validate checks the invariants the loop relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Law != LawWeightedSum && c.Law != LawPID {
		errs = append(errs, fmt.Errorf("law: unknown %q", c.Law))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %s", c.TickInterval))
	}
	if c.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("max ticks must not be negative"))
	}
	if c.Secondary != SecondaryYawAccel && c.Secondary != SecondaryLinAccelX {
		errs = append(errs, fmt.Errorf("secondary signal: unknown %q", c.Secondary))
	}
	if c.DiagnosticsEvery < 0 {
		errs = append(errs, fmt.Errorf("diagnostics interval must not be negative"))
	}
	if c.PID.MinDt <= 0 {
		errs = append(errs, fmt.Errorf("pid min dt must be positive"))
	}
	for name, t := range map[string]ThrottleLaw{"weighted_sum": c.WeightedSum.Throttle, "pid": c.PID.Throttle} {
		if t.Floor < 0 || t.Floor > 1 {
			errs = append(errs, fmt.Errorf("%s throttle floor %.2f outside [0,1]", name, t.Floor))
		}
		if t.ErrorThreshold < 0 || t.Gain < 0 {
			errs = append(errs, fmt.Errorf("%s throttle threshold and gain must not be negative", name))
		}
	}

	th := c.Thermal
	if th.ResumeTemp >= th.CriticalTemp {
		errs = append(errs, fmt.Errorf("thermal resume temp %.1f must be below critical %.1f", th.ResumeTemp, th.CriticalTemp))
	}
	switch th.Mode {
	case CoolWaitTemperature:
	case CoolFixedDelay:
		if th.FixedDelay <= 0 {
			errs = append(errs, fmt.Errorf("fixed_delay cooling needs a positive delay"))
		}
	default:
		errs = append(errs, fmt.Errorf("cooling mode: unknown %q", th.Mode))
	}
	switch th.After {
	case AfterCooldownReverse, AfterCooldownKick, AfterCooldownResume:
	default:
		errs = append(errs, fmt.Errorf("post-cooldown action: unknown %q", th.After))
	}
	if th.MaxWait <= 0 {
		errs = append(errs, fmt.Errorf("thermal max wait must be positive"))
	}
	if th.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("thermal poll interval must be positive"))
	}

	r := c.Reversal
	if r.EveryTicks < 0 {
		errs = append(errs, fmt.Errorf("reversal cadence must not be negative"))
	}
	if r.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("reversal max attempts must be positive"))
	}
	if r.ConfirmThreshold <= TurnThreshold {
		errs = append(errs, fmt.Errorf("reversal confirm threshold %.2f must exceed turn threshold %.2f", r.ConfirmThreshold, TurnThreshold))
	}

	if c.Kick.Enabled && c.Kick.Duration <= 0 {
		errs = append(errs, fmt.Errorf("kick duration must be positive"))
	}
	return errors.Join(errs...)
}
