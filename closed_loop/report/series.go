package report

import (
	"math"
	"time"

	"drift-control-core/closed_loop/drift"
	"drift-control-core/closed_loop/recorder"
)

// Series is a recorded run reshaped into plottable columns. Faulted ticks
// carry no telemetry and are left out.
type Series struct {
	Title         string
	TargetYawRate float64 // either sign; plotted as a ±magnitude band

	T         []float64 // seconds since the first recorded tick
	YawRate   []float64
	Steering  []float64
	Throttle  []float64
	WaterTemp []float64

	// Cooling indexes the ticks on which the interlock tripped.
	Cooling []int
}

func FromTicks(title string, target float64, rows []recorder.TickRow) Series {
	s := Series{Title: title, TargetYawRate: target}
	var t0 time.Time
	for _, r := range rows {
		if r.Phase == drift.PhaseFault {
			continue
		}
		if t0.IsZero() {
			t0 = r.At
		}
		t := r.At.Sub(t0).Seconds()
		if r.Phase == drift.PhaseCooling {
			s.Cooling = append(s.Cooling, len(s.T))
		}
		s.T = append(s.T, t)
		s.YawRate = append(s.YawRate, r.YawRate)
		s.Steering = append(s.Steering, r.Steering)
		s.Throttle = append(s.Throttle, r.Throttle)
		s.WaterTemp = append(s.WaterTemp, r.WaterTemp)
	}
	return s
}

func (s Series) Len() int { return len(s.T) }

// TargetBand returns the target magnitude as constant upper and lower
// lines. The drift may settle on either handedness and flips at every
// reversal, so both signs are drawn. Both are nil when there is no target.
func (s Series) TargetBand() (upper, lower []float64) {
	if s.TargetYawRate == 0 {
		return nil, nil
	}
	m := math.Abs(s.TargetYawRate)
	upper = make([]float64, s.Len())
	lower = make([]float64, s.Len())
	for i := range upper {
		upper[i], lower[i] = m, -m
	}
	return upper, lower
}
