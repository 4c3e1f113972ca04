package drift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testPIDLaw() PIDLaw {
	cfg := DefaultConfig()
	cfg.Law = LawPID
	law, err := NewLaw(cfg)
	if err != nil {
		panic(err)
	}
	return law.(PIDLaw)
}

func TestPIDLaw_HoldsZeroOnTarget(t *testing.T) {
	law := testPIDLaw()
	st := NewState(SecondaryYawAccel)
	start := time.Unix(1000, 0)

	for i := 0; i < 50; i++ {
		s := Sample{Timestamp: start.Add(time.Duration(i) * 100 * time.Millisecond), YawRate: -2}
		out := law.Compute(s, st)
		assert.Zero(t, out.Error)
		assert.Zero(t, out.Steering)
		assert.Equal(t, 1.0, out.Throttle)
	}
	assert.Zero(t, st.PID.Integral)
}

func TestPIDLaw_Arithmetic(t *testing.T) {
	law := testPIDLaw()
	st := NewState(SecondaryYawAccel)
	start := time.Unix(1000, 0)

	// First tick: no previous timestamp, dt floors to 0.01 s and the
	// derivative is seeded rather than computed against zero.
	out := law.Compute(Sample{Timestamp: start, YawRate: 0}, st)
	assert.InDelta(t, 0.01, out.Dt, 1e-12)
	assert.InDelta(t, -2.0, out.Error, 1e-12)
	assert.InDelta(t, -1.0, out.P, 1e-12)
	assert.InDelta(t, 0.1*-0.02, out.I, 1e-12)
	assert.Zero(t, out.D)
	assert.InDelta(t, -1.0-0.002, out.Steering, 1e-12)
	assert.Equal(t, 0.5, out.Throttle)

	// Second tick 100 ms later, same error: no derivative.
	out = law.Compute(Sample{Timestamp: start.Add(100 * time.Millisecond), YawRate: 0}, st)
	assert.InDelta(t, 0.1, out.Dt, 1e-12)
	assert.InDelta(t, -0.22, st.PID.Integral, 1e-12)
	assert.InDelta(t, 0.0, out.D, 1e-12)
	assert.InDelta(t, -1.0+0.1*-0.22, out.Steering, 1e-12)
}

func TestPIDLaw_ResetReseedsDerivative(t *testing.T) {
	law := testPIDLaw()
	st := NewState(SecondaryYawAccel)
	start := time.Unix(1000, 0)

	law.Compute(Sample{Timestamp: start, YawRate: -1.9}, st)
	law.Compute(Sample{Timestamp: start.Add(100 * time.Millisecond), YawRate: -1.9}, st)

	st.PID.Reset()
	st.Handedness = Right
	out := law.Compute(Sample{Timestamp: start.Add(5 * time.Second), YawRate: 1.9}, st)
	assert.InDelta(t, 0.1, out.Error, 1e-12)
	assert.InDelta(t, 0.01, out.Dt, 1e-12)
	assert.Zero(t, out.D)
	assert.InDelta(t, 0.5*0.1+0.1*0.001, out.Steering, 1e-12)

	out = law.Compute(Sample{Timestamp: start.Add(5100 * time.Millisecond), YawRate: 1.8}, st)
	assert.InDelta(t, 0.1, out.Dt, 1e-9)
	assert.InDelta(t, 0.05*(0.2-0.1)/0.1, out.D, 1e-9)
}

func TestPIDLaw_FloorsRepeatedTimestamp(t *testing.T) {
	law := testPIDLaw()
	st := NewState(SecondaryYawAccel)
	ts := time.Unix(1000, 0)

	law.Compute(Sample{Timestamp: ts, YawRate: -1}, st)
	out := law.Compute(Sample{Timestamp: ts, YawRate: -1.5}, st)
	assert.InDelta(t, 0.01, out.Dt, 1e-12)

	out = law.Compute(Sample{Timestamp: ts.Add(-time.Second), YawRate: -1.5}, st)
	assert.InDelta(t, 0.01, out.Dt, 1e-12, "clock going backwards still floors")
}

func TestPIDLaw_IntegralSettlesOnceErrorVanishes(t *testing.T) {
	law := testPIDLaw()
	st := NewState(SecondaryYawAccel)
	start := time.Unix(1000, 0)
	at := func(i int) time.Time { return start.Add(time.Duration(i) * 100 * time.Millisecond) }

	for i := 0; i < 3; i++ {
		law.Compute(Sample{Timestamp: at(i), YawRate: -1}, st)
	}
	wound := st.PID.Integral
	assert.Less(t, wound, 0.0)

	var last Output
	for i := 3; i < 30; i++ {
		last = law.Compute(Sample{Timestamp: at(i), YawRate: -2}, st)
		assert.InDelta(t, wound, st.PID.Integral, 1e-12)
	}
	assert.InDelta(t, 0.0, last.P, 1e-12)
	assert.InDelta(t, 0.0, last.D, 1e-12)
	assert.InDelta(t, 0.1*wound, last.Steering, 1e-12)
}

func TestPIDLaw_IntegralLimit(t *testing.T) {
	law := testPIDLaw()
	law.IntegralLimit = 0.5
	st := NewState(SecondaryYawAccel)
	start := time.Unix(1000, 0)

	for i := 0; i < 100; i++ {
		law.Compute(Sample{Timestamp: start.Add(time.Duration(i) * time.Second), YawRate: 3}, st)
	}
	assert.InDelta(t, -0.5, st.PID.Integral, 1e-12)
}

func TestPIDLaw_TargetFollowsHandedness(t *testing.T) {
	law := testPIDLaw()
	st := NewState(SecondaryYawAccel)

	assert.Equal(t, -2.0, law.Target(st))
	st.Handedness = Right
	assert.Equal(t, 2.0, law.Target(st))
	st.Handedness = Left
	assert.Equal(t, -2.0, law.Target(st))
}

func TestPIDLaw_Diagnostics(t *testing.T) {
	law := testPIDLaw()
	st := NewState(SecondaryYawAccel)
	law.Compute(Sample{Timestamp: time.Unix(1000, 0), YawRate: -1}, st)

	d := law.Diagnostics(st)
	assert.InDelta(t, -1.0, d.Error, 1e-12)
	assert.InDelta(t, -0.5, d.P, 1e-12)
	assert.InDelta(t, 0.1*d.Integral, d.I, 1e-12)
}
