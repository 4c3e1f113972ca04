package drift

import (
	"fmt"
	"math"
)

// LawKind names a steering policy on the command line and in profiles.
type LawKind string

const (
	LawWeightedSum LawKind = "weighted_sum"
	LawPID         LawKind = "pid"
)

// Output is one law evaluation. Steering is unclamped; the dispatcher
// limits it.
type Output struct {
	Steering float64
	Throttle float64
	Error    float64

	// Weighted-sum terms. Defined flags are false when the window could not
	// be normalized and the term contributed nothing.
	NormYaw         float64
	NormYawOK       bool
	NormSecondary   float64
	NormSecondaryOK bool

	// PID terms.
	P, I, D float64
	Dt      float64
}

// Law turns the current sample and carried state into steering and
// throttle. Implementations may update st (the PID accumulator) but never
// dispatch.
type Law interface {
	Kind() LawKind
	Compute(s Sample, st *State) Output
}

// ThrottleLaw eases off the throttle as the yaw error grows so the car
// does not compound oversteer under power, but never below Floor, which
// would drop drive torque and kill the drift.
type ThrottleLaw struct {
	ErrorThreshold float64
	Floor          float64
	Gain           float64
}

func (t ThrottleLaw) Throttle(yawError float64) float64 {
	e := math.Abs(yawError)
	if e <= t.ErrorThreshold {
		return 1.0
	}
	return math.Max(t.Floor, 1-e*t.Gain)
}

// WeightedSumLaw steers on the min-max normalized yaw rate plus the
// normalized secondary signal, with the yaw term scaled by Aggression.
type WeightedSumLaw struct {
	TargetYawRate float64 // magnitude, rad/s
	Aggression    float64
	Throttle      ThrottleLaw
}

func (l WeightedSumLaw) Kind() LawKind { return LawWeightedSum }

func (l WeightedSumLaw) Compute(s Sample, st *State) Output {
	out := Output{Error: l.TargetYawRate - math.Abs(s.YawRate)}
	out.Throttle = l.Throttle.Throttle(out.Error)

	out.NormYaw, out.NormYawOK = st.Yaw.NormalizeLatest()
	out.NormSecondary, out.NormSecondaryOK = st.Secondary.NormalizeLatest()

	if out.NormYawOK {
		out.Steering += l.Aggression * out.NormYaw
	}
	if out.NormSecondaryOK {
		out.Steering += out.NormSecondary
	}
	return out
}

// NewLaw builds the law selected in cfg.
func NewLaw(cfg Config) (Law, error) {
	switch cfg.Law {
	case LawWeightedSum:
		return WeightedSumLaw{
			TargetYawRate: cfg.WeightedSum.TargetYawRate,
			Aggression:    cfg.WeightedSum.Aggression,
			Throttle:      cfg.WeightedSum.Throttle,
		}, nil
	case LawPID:
		return PIDLaw{
			TargetYawRate: cfg.PID.TargetYawRate,
			Kp:            cfg.PID.Kp,
			Ki:            cfg.PID.Ki,
			Kd:            cfg.PID.Kd,
			IntegralLimit: cfg.PID.IntegralLimit,
			MinDt:         cfg.PID.MinDt.Seconds(),
			Throttle:      cfg.PID.Throttle,
		}, nil
	default:
		return nil, fmt.Errorf("unknown law %q (want %s or %s)", cfg.Law, LawWeightedSum, LawPID)
	}
}
