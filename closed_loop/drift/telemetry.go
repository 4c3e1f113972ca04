package drift

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrTelemetryUnavailable means the platform has no reading to give yet.
	ErrTelemetryUnavailable = errors.New("telemetry unavailable")
	// ErrTelemetryStale means the newest reading is older than the platform's
	// freshness bound.
	ErrTelemetryStale = errors.New("telemetry stale")
)

// Vec3 is an x/y/z triple in the vehicle frame.
type Vec3 [3]float64

func (v Vec3) X() float64 { return v[0] }
func (v Vec3) Y() float64 { return v[1] }
func (v Vec3) Z() float64 { return v[2] }

// Electrics is the powertrain/electrical telemetry block.
type Electrics struct {
	WaterTemperature float64 // °C
	WheelSpeed       float64 // m/s
	VirtualAirspeed  float64 // m/s
	Timestamp        time.Time
}

// Inertial is the rotational/linear inertial telemetry block.
type Inertial struct {
	AngVel    Vec3 // rad/s
	AngAccel  Vec3 // rad/s²
	AccSmooth Vec3 // m/s²
	Timestamp time.Time
}

// Platform is the vehicle boundary: telemetry in, commands out.
// Dispatch is fire-and-forget; an error means the transport failed, not
// that the vehicle rejected the command.
type Platform interface {
	PollElectrics(ctx context.Context) (Electrics, error)
	PollInertial(ctx context.Context) (Inertial, error)
	Dispatch(ctx context.Context, cmd Command) error
}

// Sample is one tick's worth of telemetry, flattened to the channels the
// controller uses.
type Sample struct {
	Timestamp  time.Time
	YawRate    float64 // rad/s, positive turns right
	YawAccel   float64 // rad/s²
	LinAccelX  float64 // m/s²
	WaterTemp  float64 // °C
	WheelSpeed float64 // m/s, rounded to 0.1
	Airspeed   float64 // m/s
}

// ReadSample polls both telemetry blocks and merges them. The sample takes
// the inertial timestamp, which is the one the yaw-rate channels carry.
func ReadSample(ctx context.Context, p Platform) (Sample, error) {
	el, err := p.PollElectrics(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("poll electrics: %w", err)
	}
	in, err := p.PollInertial(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("poll inertial: %w", err)
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = el.Timestamp
	}
	return Sample{
		Timestamp:  ts,
		YawRate:    in.AngVel.Z(),
		YawAccel:   in.AngAccel.Z(),
		LinAccelX:  in.AccSmooth.X(),
		WaterTemp:  el.WaterTemperature,
		WheelSpeed: RoundTenth(el.WheelSpeed),
		Airspeed:   el.VirtualAirspeed,
	}, nil
}

// RoundTenth rounds to one decimal place; -0.0 comes back as 0.
func RoundTenth(v float64) float64 {
	r := math.Round(v*10) / 10
	if r == 0 {
		return 0
	}
	return r
}

// IsTelemetryFault reports whether err is a recoverable telemetry problem.
func IsTelemetryFault(err error) bool {
	return errors.Is(err, ErrTelemetryUnavailable) || errors.Is(err, ErrTelemetryStale)
}
