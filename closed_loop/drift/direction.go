package drift

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Yaw-rate thresholds in rad/s.
const (
	TurnThreshold    = 0.2 // continuous classification
	ConfirmThreshold = 1.2 // reversal confirmation
)

type TurnDirection int

const (
	Straight TurnDirection = iota
	Left
	Right
)

func (d TurnDirection) String() string {
	switch d {
	case Straight:
		return "straight"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Opposite is the reversal target. Straight has no handedness to flip, so
// it maps to Right.
func (d TurnDirection) Opposite() TurnDirection {
	if d == Right {
		return Left
	}
	return Right
}

// ClassifyTurn labels the yaw rate: positive is right.
func ClassifyTurn(yawRate float64) TurnDirection {
	return classify(yawRate, TurnThreshold)
}

// ConfirmTurn is the stricter predicate used to decide whether a reversal
// took hold. ok is false unless |yawRate| exceeds threshold.
func ConfirmTurn(yawRate, threshold float64) (TurnDirection, bool) {
	d := classify(yawRate, threshold)
	return d, d != Straight
}

func classify(yawRate, threshold float64) TurnDirection {
	if math.Abs(yawRate) <= threshold {
		return Straight
	}
	if yawRate > 0 {
		return Right
	}
	return Left
}

type Motion int

const (
	Stationary Motion = iota
	Forward
	Backward
)

func (m Motion) String() string {
	switch m {
	case Stationary:
		return "stationary"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

// MotionEstimate is the outcome of one MotionEstimator observation.
type MotionEstimate struct {
	Motion    Motion
	Regressed float64 // trend-line value at the newest sample
	Threshold float64
}

const (
	motionThresholdFloor = 0.05
	motionThresholdScale = 1.2
)

// MotionEstimator infers forward/backward travel from the smoothed
// longitudinal acceleration. A least-squares line through the window,
// evaluated at the newest index, stands in for the raw reading. Once a
// direction has been seen, readings inside the dead band keep the previous
// label instead of dropping back to Stationary.
type MotionEstimator struct {
	window *Window
	last   Motion
	xs     []float64
}

func NewMotionEstimator(size int) *MotionEstimator {
	return &MotionEstimator{window: NewWindow(size)}
}

func (e *MotionEstimator) Observe(accX float64) MotionEstimate {
	e.window.Observe(accX)
	ys := e.window.Values()

	regressed := accX
	if len(ys) >= 2 {
		e.xs = e.xs[:0]
		for i := range ys {
			e.xs = append(e.xs, float64(i))
		}
		alpha, beta := stat.LinearRegression(e.xs, ys, nil, false)
		regressed = alpha + beta*float64(len(ys)-1)
	}

	threshold := math.Max(motionThresholdFloor, motionThresholdScale*math.Sqrt(stat.PopVariance(ys, nil)))

	switch {
	case regressed > threshold:
		e.last = Forward
	case regressed < -threshold:
		e.last = Backward
	}
	return MotionEstimate{Motion: e.last, Regressed: regressed, Threshold: threshold}
}

// Motion returns the last label without observing anything.
func (e *MotionEstimator) Motion() Motion { return e.last }

func (e *MotionEstimator) Reset() {
	e.window.Reset()
	e.last = Stationary
}
