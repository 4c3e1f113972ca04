package drift

import (
	"context"
	"fmt"

	"drift-control-core/utils"
)

// ReversalResult describes one reversal attempt. An unconfirmed result is
// not an error: control goes back to the law either way.
type ReversalResult struct {
	From        TurnDirection
	Desired     TurnDirection
	Attempts    int
	Confirmed   bool
	LastYawRate float64
}

// Maneuver flips the drift handedness: it holds a counter-command and polls
// until the yaw rate confirms the new direction or MaxAttempts polls have
// gone by.
type Maneuver struct {
	cfg      ReversalConfig
	platform Platform
	clock    Clock
	log      *utils.Logger
}

func NewManeuver(cfg ReversalConfig, p Platform, clock Clock, log *utils.Logger) *Maneuver {
	return &Maneuver{cfg: cfg, platform: p, clock: clock, log: log}
}

// CounterCommand is the command held while reversing toward desired.
func (m *Maneuver) CounterCommand(desired TurnDirection) Command {
	steer := -m.cfg.Steering
	if desired == Left {
		steer = m.cfg.Steering
	}
	return Command{Steering: steer, Throttle: m.cfg.Throttle, Brake: m.cfg.Brake}.Clamped()
}

// Run reverses away from current. observe is called with every sample read
// during the maneuver so the caller's windows keep filling; it may be nil.
func (m *Maneuver) Run(ctx context.Context, current TurnDirection, observe func(Sample)) (ReversalResult, error) {
	res := ReversalResult{From: current, Desired: current.Opposite()}

	m.log.Event(utils.INFO, "reversal_start", "from", res.From.String(), "to", res.Desired.String())

	if err := m.platform.Dispatch(ctx, m.CounterCommand(res.Desired)); err != nil {
		return res, fmt.Errorf("dispatch counter command: %w", err)
	}

	for res.Attempts < m.cfg.MaxAttempts {
		res.Attempts++

		s, err := ReadSample(ctx, m.platform)
		switch {
		case err == nil:
			if observe != nil {
				observe(s)
			}
			res.LastYawRate = s.YawRate
			if d, ok := ConfirmTurn(s.YawRate, m.cfg.ConfirmThreshold); ok && d == res.Desired {
				res.Confirmed = true
				m.log.Event(utils.INFO, "reversal_done", "to", res.Desired.String(), "attempts", res.Attempts, "yaw_rate", s.YawRate)
				return res, nil
			}
		case IsTelemetryFault(err):
			m.log.Debug("reversal: %v", err)
		default:
			return res, err
		}

		if err := m.clock.Sleep(ctx, m.cfg.Interval); err != nil {
			return res, err
		}
	}

	m.log.Event(utils.WARN, "reversal_timeout", "to", res.Desired.String(), "attempts", res.Attempts, "yaw_rate", res.LastYawRate)
	return res, nil
}
