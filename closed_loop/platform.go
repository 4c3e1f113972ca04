package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.einride.tech/can"

	"drift-control-core/closed_loop/drift"
	"drift-control-core/utils"
)

// Signal names the platform expects in the CAN map.
const (
	sigWaterTemp = "water_temperature_c"
	sigWheel     = "wheelspeed_mps"
	sigAirspeed  = "virtual_airspeed_mps"
	sigYawRate   = "ang_vel_z_rps"
	sigYawAccel  = "ang_accel_z_rps2"
	sigAccelX    = "acc_smooth_x_mps2"

	sigSteering = "steering_cmd"
	sigThrottle = "throttle_cmd"
	sigBrake    = "brake_cmd"
	sigGear     = "gear_cmd"
)

type PlatformConfig struct {
	ElectricsFrame string
	InertialFrame  string
	CommandFrame   string
	// StaleAfter is how old the newest frame may be before polls report
	// drift.ErrTelemetryStale.
	StaleAfter time.Duration
}

func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		ElectricsFrame: "ELECTRICS_1",
		InertialFrame:  "INERTIAL_1",
		CommandFrame:   "DRIFT_CMD_1",
		StaleAfter:     500 * time.Millisecond,
	}
}

// CANPlatform is the vehicle seen through the CAN bus: Receive decodes the
// telemetry frames into a snapshot, polls read the snapshot, and Dispatch
// encodes a command frame.
type CANPlatform struct {
	cfg    PlatformConfig
	cmap   *utils.CANMap
	reader utils.CANReader
	writer utils.CANWriter
	log    *utils.Logger
	now    func() time.Time

	electricsID uint32
	inertialID  uint32
	command     *utils.FrameDef

	mu        sync.Mutex
	electrics drift.Electrics
	inertial  drift.Inertial
	rxFrames  uint64
	txFrames  uint64
}

func NewCANPlatform(cfg PlatformConfig, cmap *utils.CANMap, reader utils.CANReader, writer utils.CANWriter, log *utils.Logger) (*CANPlatform, error) {
	if log == nil {
		log = utils.Discard()
	}
	el, err := frameWithSignals(cmap, cfg.ElectricsFrame, utils.DirectionRX, sigWaterTemp, sigWheel, sigAirspeed)
	if err != nil {
		return nil, err
	}
	in, err := frameWithSignals(cmap, cfg.InertialFrame, utils.DirectionRX, sigYawRate, sigYawAccel, sigAccelX)
	if err != nil {
		return nil, err
	}
	cmd, err := frameWithSignals(cmap, cfg.CommandFrame, utils.DirectionTX, sigSteering, sigThrottle, sigBrake, sigGear)
	if err != nil {
		return nil, err
	}
	if cfg.StaleAfter <= 0 {
		return nil, fmt.Errorf("stale-after must be positive, got %s", cfg.StaleAfter)
	}

	return &CANPlatform{
		cfg:         cfg,
		cmap:        cmap,
		reader:      reader,
		writer:      writer,
		log:         log,
		now:         time.Now,
		electricsID: el.ID,
		inertialID:  in.ID,
		command:     cmd,
	}, nil
}

func frameWithSignals(cmap *utils.CANMap, name, direction string, signals ...string) (*utils.FrameDef, error) {
	fd, err := cmap.FrameByName(name)
	if err != nil {
		return nil, err
	}
	if fd.Direction != direction {
		return nil, fmt.Errorf("frame %s is %s, want %s", name, fd.Direction, direction)
	}
	for _, s := range signals {
		if _, ok := fd.Signal(s); !ok {
			return nil, fmt.Errorf("frame %s has no signal %q", name, s)
		}
	}
	return fd, nil
}

// Receive pumps frames from the reader into the telemetry snapshot until
// ctx ends or the reader fails. Frames the map does not know are skipped.
func (p *CANPlatform) Receive(ctx context.Context) error {
	p.log.Debug("RX loop started")
	defer p.log.Debug("RX loop stopped")

	for {
		frame, err := p.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("can rx: %w", err)
		}
		p.handle(frame)
	}
}

func (p *CANPlatform) handle(frame can.Frame) {
	if frame.ID != p.electricsID && frame.ID != p.inertialID {
		p.log.Trace("RX id=0x%X len=%d ignored", frame.ID, frame.Length)
		return
	}
	_, v, err := p.cmap.DecodeEinrideFrame(frame)
	if err != nil {
		p.log.Warn("RX decode 0x%X: %v", frame.ID, err)
		return
	}
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.rxFrames++
	switch frame.ID {
	case p.electricsID:
		p.electrics = drift.Electrics{
			WaterTemperature: v[sigWaterTemp],
			WheelSpeed:       v[sigWheel],
			VirtualAirspeed:  v[sigAirspeed],
			Timestamp:        now,
		}
	case p.inertialID:
		p.inertial = drift.Inertial{
			AngVel:    drift.Vec3{0, 0, v[sigYawRate]},
			AngAccel:  drift.Vec3{0, 0, v[sigYawAccel]},
			AccSmooth: drift.Vec3{v[sigAccelX], 0, 0},
			Timestamp: now,
		}
	}
}

func (p *CANPlatform) PollElectrics(context.Context) (drift.Electrics, error) {
	p.mu.Lock()
	el := p.electrics
	p.mu.Unlock()
	if err := p.fresh(p.cfg.ElectricsFrame, el.Timestamp); err != nil {
		return drift.Electrics{}, err
	}
	return el, nil
}

func (p *CANPlatform) PollInertial(context.Context) (drift.Inertial, error) {
	p.mu.Lock()
	in := p.inertial
	p.mu.Unlock()
	if err := p.fresh(p.cfg.InertialFrame, in.Timestamp); err != nil {
		return drift.Inertial{}, err
	}
	return in, nil
}

func (p *CANPlatform) fresh(frame string, ts time.Time) error {
	if ts.IsZero() {
		return fmt.Errorf("%s: %w", frame, drift.ErrTelemetryUnavailable)
	}
	if age := p.now().Sub(ts); age > p.cfg.StaleAfter {
		return fmt.Errorf("%s is %s old: %w", frame, age.Round(time.Millisecond), drift.ErrTelemetryStale)
	}
	return nil
}

// Dispatch encodes cmd into the command frame and transmits it.
func (p *CANPlatform) Dispatch(ctx context.Context, cmd drift.Command) error {
	frame, err := p.cmap.EncodeEinrideFrame(p.command.Name, map[string]float64{
		sigSteering: cmd.Steering,
		sigThrottle: cmd.Throttle,
		sigBrake:    cmd.Brake,
		sigGear:     float64(cmd.Gear),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.command.Name, err)
	}
	if err := p.writer.WriteFrame(ctx, frame); err != nil {
		return fmt.Errorf("transmit %s: %w", p.command.Name, err)
	}

	p.mu.Lock()
	p.txFrames++
	p.mu.Unlock()
	p.log.Trace("TX id=0x%X len=%d data=% X steer=%.3f throttle=%.3f brake=%.3f gear=%s",
		frame.ID, frame.Length, frame.Data[:frame.Length], cmd.Steering, cmd.Throttle, cmd.Brake, cmd.Gear)
	return nil
}

// Counters returns how many telemetry frames were decoded and how many
// command frames were sent.
func (p *CANPlatform) Counters() (rx, tx uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rxFrames, p.txFrames
}
