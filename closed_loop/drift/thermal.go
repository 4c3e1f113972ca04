package drift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drift-control-core/utils"
)

// ErrCooldownTimeout is returned when a cooldown phase outlasts MaxWait.
// The run cannot continue safely after it.
var ErrCooldownTimeout = errors.New("cooldown exceeded max wait")

// CooldownReport summarizes one completed cooldown.
type CooldownReport struct {
	TriggerTemp   float64
	EndTemp       float64
	Mode          CoolingMode
	CoolDuration  time.Duration
	StopDuration  time.Duration
	Polls         int
	TelemetryGaps int
}

// Interlock overrides the steering law when the engine runs hot.
//
// Normal -> Cooling when the water temperature exceeds CriticalTemp.
// Cooldown then blocks: safe command, wait for the engine (temperature or
// fixed delay), brake to a standstill, dwell, and back to Normal.
type Interlock struct {
	cfg      ThermalConfig
	platform Platform
	clock    Clock
	log      *utils.Logger
	cooling  bool
}

func NewInterlock(cfg ThermalConfig, p Platform, clock Clock, log *utils.Logger) *Interlock {
	return &Interlock{cfg: cfg, platform: p, clock: clock, log: log}
}

// Tripped is the per-tick guard.
func (i *Interlock) Tripped(s Sample) bool {
	return s.WaterTemp > i.cfg.CriticalTemp
}

// Cooling reports whether a cooldown is in progress.
func (i *Interlock) Cooling() bool { return i.cooling }

// Cooldown runs the full cooldown procedure. It returns ErrCooldownTimeout
// (wrapped) if the engine does not cool or the car does not stop within
// MaxWait, and ctx.Err() if the run is stopped meanwhile.
func (i *Interlock) Cooldown(ctx context.Context, trigger Sample) (CooldownReport, error) {
	i.cooling = true
	defer func() { i.cooling = false }()

	rep := CooldownReport{TriggerTemp: trigger.WaterTemp, EndTemp: trigger.WaterTemp, Mode: i.cfg.Mode}

	i.log.Event(utils.WARN, "cooldown_start", "water_temp", trigger.WaterTemp, "critical", i.cfg.CriticalTemp, "mode", string(i.cfg.Mode))

	if err := i.platform.Dispatch(ctx, i.cfg.SafeCommand.Clamped()); err != nil {
		return rep, fmt.Errorf("dispatch safe command: %w", err)
	}

	start := i.clock.Now()
	switch i.cfg.Mode {
	case CoolFixedDelay:
		if err := i.clock.Sleep(ctx, i.cfg.FixedDelay); err != nil {
			return rep, err
		}
	default:
		if err := i.waitForTemperature(ctx, &rep); err != nil {
			return rep, err
		}
	}
	rep.CoolDuration = i.clock.Now().Sub(start)

	start = i.clock.Now()
	if err := i.brakeToStop(ctx, &rep); err != nil {
		return rep, err
	}
	rep.StopDuration = i.clock.Now().Sub(start)

	if err := i.clock.Sleep(ctx, i.cfg.Dwell); err != nil {
		return rep, err
	}

	i.log.Event(utils.INFO, "cooldown_end", "water_temp", rep.EndTemp,
		"cool", rep.CoolDuration, "stop", rep.StopDuration, "polls", rep.Polls)
	return rep, nil
}

func (i *Interlock) waitForTemperature(ctx context.Context, rep *CooldownReport) error {
	deadline := i.clock.Now().Add(i.cfg.MaxWait)
	for {
		s, err := ReadSample(ctx, i.platform)
		rep.Polls++
		switch {
		case err == nil:
			rep.EndTemp = s.WaterTemp
			if s.WaterTemp <= i.cfg.ResumeTemp {
				return nil
			}
		case IsTelemetryFault(err):
			rep.TelemetryGaps++
			i.log.Debug("cooldown: %v", err)
		default:
			return err
		}

		if !i.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: water temperature %.1f°C still above %.1f°C after %s",
				ErrCooldownTimeout, rep.EndTemp, i.cfg.ResumeTemp, i.cfg.MaxWait)
		}
		if err := i.clock.Sleep(ctx, i.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (i *Interlock) brakeToStop(ctx context.Context, rep *CooldownReport) error {
	deadline := i.clock.Now().Add(i.cfg.MaxWait)
	stop := i.cfg.StopCommand.Clamped()
	lastSpeed := -1.0
	for {
		if err := i.platform.Dispatch(ctx, stop); err != nil {
			return fmt.Errorf("dispatch stop command: %w", err)
		}

		s, err := ReadSample(ctx, i.platform)
		rep.Polls++
		switch {
		case err == nil:
			rep.EndTemp = s.WaterTemp
			lastSpeed = s.WheelSpeed
			if s.WheelSpeed == 0 {
				return nil
			}
		case IsTelemetryFault(err):
			rep.TelemetryGaps++
			i.log.Debug("cooldown: %v", err)
		default:
			return err
		}

		if !i.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: wheel speed %.1f m/s not zero after %s", ErrCooldownTimeout, lastSpeed, i.cfg.MaxWait)
		}
		if err := i.clock.Sleep(ctx, i.cfg.PollInterval); err != nil {
			return err
		}
	}
}
