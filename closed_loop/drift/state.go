package drift

import "time"

// SecondarySignal selects which channel feeds the weighted-sum law's second
// term.
type SecondarySignal string

const (
	SecondaryYawAccel  SecondarySignal = "yaw_accel"
	SecondaryLinAccelX SecondarySignal = "lin_accel_x"
)

// Value picks the configured channel out of a sample.
func (s SecondarySignal) Value(sample Sample) float64 {
	if s == SecondaryLinAccelX {
		return sample.LinAccelX
	}
	return sample.YawAccel
}

// PIDState is the accumulator carried between PID ticks.
type PIDState struct {
	Integral    float64
	PrevError   float64
	PrevTime    time.Time
	Initialized bool // false until the first tick after a reset
}

func (p *PIDState) Reset() { *p = PIDState{} }

// State is everything the loop carries from one tick to the next. A Session
// owns exactly one and nothing else writes to it.
type State struct {
	Turn               TurnDirection
	Handedness         TurnDirection // last confirmed reversal target
	Motion             Motion
	TicksSinceReversal int
	Cooling            bool
	PID                PIDState

	Yaw       *Window
	Secondary *Window
	Longitude *MotionEstimator

	secondary SecondarySignal
}

func NewState(secondary SecondarySignal) *State {
	if secondary == "" {
		secondary = SecondaryYawAccel
	}
	return &State{
		Yaw:       NewWindow(SignalWindowSize),
		Secondary: NewWindow(SignalWindowSize),
		Longitude: NewMotionEstimator(MotionWindowSize),
		secondary: secondary,
	}
}

// Observe folds a fresh sample into the windows and direction labels.
func (st *State) Observe(s Sample) MotionEstimate {
	st.Yaw.Observe(s.YawRate)
	st.Secondary.Observe(st.secondary.Value(s))
	est := st.Longitude.Observe(s.LinAccelX)
	st.Turn = ClassifyTurn(s.YawRate)
	st.Motion = est.Motion
	return est
}
