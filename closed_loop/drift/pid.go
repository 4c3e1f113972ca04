package drift

import "math"

// PIDLaw tracks a signed target yaw rate with a discrete PID on steering.
//
// dt is the delta between sample timestamps, floored at MinDt so a
// repeated or out-of-order timestamp cannot blow up the derivative. The
// first tick after a reset has no previous timestamp: it integrates over
// MinDt and seeds the previous error so the derivative starts at zero.
//
// Once a reversal has been confirmed the target keeps its magnitude but
// takes the handedness recorded in the state.
type PIDLaw struct {
	TargetYawRate float64 // signed, rad/s
	Kp, Ki, Kd    float64
	IntegralLimit float64 // 0 disables anti-windup
	MinDt         float64 // seconds
	Throttle      ThrottleLaw
}

func (l PIDLaw) Kind() LawKind { return LawPID }

func (l PIDLaw) Compute(s Sample, st *State) Output {
	pid := &st.PID

	err := l.Target(st) - s.YawRate

	dt := l.MinDt
	if !pid.Initialized {
		// Avoid a derivative kick after a reset.
		pid.PrevError = err
		pid.Initialized = true
	} else if d := s.Timestamp.Sub(pid.PrevTime).Seconds(); d > dt {
		dt = d
	}
	pid.PrevTime = s.Timestamp

	pid.Integral += err * dt
	if l.IntegralLimit > 0 {
		pid.Integral = clamp(pid.Integral, -l.IntegralLimit, l.IntegralLimit)
	}

	derivative := (err - pid.PrevError) / dt
	pid.PrevError = err

	out := Output{
		Error: err,
		Dt:    dt,
		P:     l.Kp * err,
		I:     l.Ki * pid.Integral,
		D:     l.Kd * derivative,
	}
	out.Steering = out.P + out.I + out.D
	out.Throttle = l.Throttle.Throttle(err)
	return out
}

// Target is the signed set-point for the current handedness.
func (l PIDLaw) Target(st *State) float64 {
	switch st.Handedness {
	case Left:
		return -math.Abs(l.TargetYawRate)
	case Right:
		return math.Abs(l.TargetYawRate)
	default:
		return l.TargetYawRate
	}
}

// PIDDiagnostics is a snapshot of the accumulator for logging.
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
}

func (l PIDLaw) Diagnostics(st *State) PIDDiagnostics {
	return PIDDiagnostics{
		Error:    st.PID.PrevError,
		Integral: st.PID.Integral,
		P:        l.Kp * st.PID.PrevError,
		I:        l.Ki * st.PID.Integral,
	}
}
