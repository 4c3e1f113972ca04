package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTurn(t *testing.T) {
	tests := []struct {
		yaw  float64
		want TurnDirection
	}{
		{0, Straight},
		{0.15, Straight},
		{-0.2, Straight},
		{0.25, Right},
		{-0.25, Left},
		{3, Right},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyTurn(tt.yaw), "yaw=%v", tt.yaw)
	}
}

func TestConfirmTurn(t *testing.T) {
	d, ok := ConfirmTurn(1.3, ConfirmThreshold)
	assert.True(t, ok)
	assert.Equal(t, Right, d)

	d, ok = ConfirmTurn(-1.3, ConfirmThreshold)
	assert.True(t, ok)
	assert.Equal(t, Left, d)

	_, ok = ConfirmTurn(1.1, ConfirmThreshold)
	assert.False(t, ok, "1.1 classifies as Right but must not confirm")
	assert.Equal(t, Right, ClassifyTurn(1.1))
}

func TestTurnDirection_Opposite(t *testing.T) {
	assert.Equal(t, Left, Right.Opposite())
	assert.Equal(t, Right, Left.Opposite())
	assert.Equal(t, Right, Straight.Opposite())
}

func TestMotionEstimator_StationaryUntilEstablished(t *testing.T) {
	e := NewMotionEstimator(MotionWindowSize)
	for i := 0; i < 15; i++ {
		est := e.Observe(0)
		assert.Equal(t, Stationary, est.Motion)
		assert.InDelta(t, 0.05, est.Threshold, 1e-12, "flat window uses the floor")
	}
}

func TestMotionEstimator_HoldsLastDirection(t *testing.T) {
	e := NewMotionEstimator(MotionWindowSize)
	var est MotionEstimate
	for i := 0; i < MotionWindowSize; i++ {
		est = e.Observe(1)
	}
	assert.Equal(t, Forward, est.Motion)
	assert.InDelta(t, 1.0, est.Regressed, 1e-9)

	// Back inside the dead band: keep Forward, never Stationary.
	for i := 0; i < MotionWindowSize; i++ {
		est = e.Observe(0)
		assert.Equal(t, Forward, est.Motion, "step %d", i)
	}

	for i := 0; i < MotionWindowSize; i++ {
		est = e.Observe(-1)
	}
	assert.Equal(t, Backward, est.Motion)
}

func TestMotionEstimator_RegressesTrend(t *testing.T) {
	e := NewMotionEstimator(MotionWindowSize)
	var est MotionEstimate
	for i := 0; i < MotionWindowSize; i++ {
		est = e.Observe(float64(i) * 0.1)
	}
	// A perfect line is reproduced exactly at the newest index.
	assert.InDelta(t, 0.9, est.Regressed, 1e-9)
	assert.Equal(t, Forward, est.Motion)
}
