package drift

import (
	"context"
	"fmt"
)

// Gear is a manual gear number. GearAutomatic leaves selection to the
// platform's shifter.
type Gear int

const GearAutomatic Gear = 0

func (g Gear) String() string {
	if g == GearAutomatic {
		return "auto"
	}
	return fmt.Sprintf("%d", int(g))
}

// Command is one actuator set-point. Built per tick, sent, then dropped.
type Command struct {
	Steering float64 // [-1, 1], positive steers right
	Throttle float64 // [0, 1]
	Brake    float64 // [0, 1]
	Gear     Gear
}

// Clamped returns the command limited to the legal actuator ranges.
func (c Command) Clamped() Command {
	return Command{
		Steering: clamp(c.Steering, -1, 1),
		Throttle: clamp(c.Throttle, 0, 1),
		Brake:    clamp(c.Brake, 0, 1),
		Gear:     c.Gear,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DryRun wraps a platform so telemetry flows normally but commands are
// dropped. Everything upstream of the dispatcher still runs and is recorded.
func DryRun(p Platform) Platform {
	return dryRunPlatform{p}
}

type dryRunPlatform struct {
	Platform
}

func (dryRunPlatform) Dispatch(context.Context, Command) error { return nil }
