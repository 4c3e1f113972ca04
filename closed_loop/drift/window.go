package drift

import "gonum.org/v1/gonum/floats"

// Window sizes used by the controller.
const (
	SignalWindowSize = 20
	MotionWindowSize = 10
)

// Window keeps the most recent capacity values in arrival order.
//
// Normalization always scales against the window as it is now, not a
// running min/max: once an extreme value is evicted the remaining samples
// are rescaled, so "strong" is always relative to the recent past.
type Window struct {
	capacity int
	values   []float64
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		capacity: capacity,
		values:   make([]float64, 0, capacity+1),
	}
}

// Observe appends v and evicts the oldest value once the window is over
// capacity.
func (w *Window) Observe(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > w.capacity {
		copy(w.values, w.values[1:])
		w.values = w.values[:len(w.values)-1]
	}
}

func (w *Window) Len() int      { return len(w.values) }
func (w *Window) Capacity() int { return w.capacity }

// Values returns a copy of the window, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

// Latest returns the newest value.
func (w *Window) Latest() (float64, bool) {
	if len(w.values) == 0 {
		return 0, false
	}
	return w.values[len(w.values)-1], true
}

// Range returns the window's min and max. ok is false for an empty window.
func (w *Window) Range() (lo, hi float64, ok bool) {
	if len(w.values) == 0 {
		return 0, 0, false
	}
	return floats.Min(w.values), floats.Max(w.values), true
}

// Normalize maps x onto [-1, 1] using the window's current min and max.
// ok is false when the window holds fewer than two values or they are all
// equal; callers must treat that as "no contribution".
func (w *Window) Normalize(x float64) (float64, bool) {
	if len(w.values) < 2 {
		return 0, false
	}
	lo, hi, _ := w.Range()
	if hi == lo {
		return 0, false
	}
	return -1 + 2*(x-lo)/(hi-lo), true
}

// NormalizeLatest normalizes the newest value against the window.
func (w *Window) NormalizeLatest() (float64, bool) {
	x, ok := w.Latest()
	if !ok {
		return 0, false
	}
	return w.Normalize(x)
}

func (w *Window) Reset() {
	w.values = w.values[:0]
}
