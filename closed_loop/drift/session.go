package drift

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"drift-control-core/utils"
)

// Session owns one run of the drift loop: the platform handle, the carried
// state, and the maneuvers that may take over the dispatcher. It is not safe
// for concurrent use; Run is the only goroutine that touches it.
type Session struct {
	cfg      Config
	platform Platform
	clock    Clock
	log      *utils.Logger
	observer Observer

	law       Law
	state     *State
	interlock *Interlock
	maneuver  *Maneuver
	kicker    *Kicker

	ticks int
	diag  rate.Sometimes
}

type Option func(*Session)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithObserver attaches a tick/event sink.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

func NewSession(cfg Config, p Platform, log *utils.Logger, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if p == nil {
		return nil, errors.New("nil platform")
	}
	if log == nil {
		log = utils.Discard()
	}

	law, err := NewLaw(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		platform: p,
		clock:    SystemClock{},
		log:      log,
		observer: nopObserver{},
		law:      law,
		state:    NewState(cfg.Secondary),
	}
	// Sometimes with neither field set fires only once.
	if cfg.DiagnosticsEvery > 0 {
		s.diag.Interval = cfg.DiagnosticsEvery
	} else {
		s.diag.Every = 1
	}
	for _, opt := range opts {
		opt(s)
	}

	s.interlock = NewInterlock(cfg.Thermal, p, s.clock, log)
	s.maneuver = NewManeuver(cfg.Reversal, p, s.clock, log)
	s.kicker = NewKicker(cfg.Kick, p, s.clock, log)
	return s, nil
}

// State exposes the carried state for inspection. Callers must not modify
// it while Run is active.
func (s *Session) State() *State { return s.state }

// Ticks is the number of loop passes so far.
func (s *Session) Ticks() int { return s.ticks }

// Run kicks off the drift (if configured) and then ticks until MaxTicks is
// reached, the context ends, or a fatal error occurs. A canceled context is
// reported as ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("Drift loop starting: law=%s tick=%s target=%.2f rad/s cooling=%s after_cooldown=%s reverse_every=%d",
		s.law.Kind(), s.cfg.TickInterval, s.target(), s.cfg.Thermal.Mode, s.cfg.Thermal.After, s.cfg.Reversal.EveryTicks)

	if s.cfg.Kick.Enabled {
		if err := s.kick(ctx); err != nil {
			return err
		}
	}

	for {
		if s.cfg.MaxTicks > 0 && s.ticks >= s.cfg.MaxTicks {
			s.log.Info("Drift loop completed: ticks=%d", s.ticks)
			return nil
		}
		if _, err := s.Step(ctx); err != nil {
			return err
		}
		if err := s.clock.Sleep(ctx, s.cfg.TickInterval); err != nil {
			s.log.Warn("Context canceled; stopping drift loop after %d ticks", s.ticks)
			return err
		}
	}
}

// Step runs exactly one tick: read, observe, guard, compute, dispatch, and
// any maneuver the tick triggers. Telemetry faults skip the tick and are
// not returned.
func (s *Session) Step(ctx context.Context) (TickRecord, error) {
	s.ticks++
	rec := TickRecord{Tick: s.ticks, At: s.clock.Now(), Law: s.law.Kind()}

	sample, err := ReadSample(ctx, s.platform)
	if err != nil {
		if !IsTelemetryFault(err) {
			return rec, err
		}
		rec.Phase = PhaseFault
		s.log.Event(utils.WARN, "telemetry_fault", "tick", rec.Tick, "err", err)
		s.observer.ObserveTick(rec)
		s.observer.ObserveEvent(Event{Kind: EventTelemetryFault, At: rec.At, Detail: err.Error()})
		return rec, nil
	}

	rec.Sample = sample
	rec.Motion = s.state.Observe(sample)
	rec.Turn = s.state.Turn

	if s.interlock.Tripped(sample) {
		rec.Phase = PhaseCooling
		s.observer.ObserveTick(rec)
		return rec, s.cooldown(ctx, sample)
	}

	out := s.law.Compute(sample, s.state)
	cmd := Command{Steering: out.Steering, Throttle: out.Throttle, Gear: s.cfg.LawGear}.Clamped()
	if err := s.platform.Dispatch(ctx, cmd); err != nil {
		return rec, fmt.Errorf("dispatch at tick %d: %w", rec.Tick, err)
	}

	rec.Phase = PhaseLaw
	rec.Output = out
	rec.Command = cmd
	rec.Dispatched = true
	s.observer.ObserveTick(rec)

	s.diag.Do(func() {
		s.log.Debug("tick=%d yaw=%.3f turn=%s motion=%s err=%.3f steer=%.3f throttle=%.2f temp=%.1f",
			rec.Tick, sample.YawRate, rec.Turn, rec.Motion.Motion, out.Error, cmd.Steering, cmd.Throttle, sample.WaterTemp)
		if pid, ok := s.law.(PIDLaw); ok {
			d := pid.Diagnostics(s.state)
			s.log.Debug("tick=%d pid target=%.2f err=%.3f integral=%.4f p=%.3f i=%.3f d=%.3f dt=%.3f",
				rec.Tick, pid.Target(s.state), d.Error, d.Integral, d.P, d.I, out.D, out.Dt)
		}
	})
	s.log.Trace("tick=%d yaw=%.4f accel=%.4f lin_x=%.4f steer=%.4f throttle=%.4f",
		rec.Tick, sample.YawRate, sample.YawAccel, sample.LinAccelX, cmd.Steering, cmd.Throttle)

	s.state.TicksSinceReversal++
	if every := s.cfg.Reversal.EveryTicks; every > 0 && s.state.TicksSinceReversal >= every {
		if err := s.reverse(ctx); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func (s *Session) cooldown(ctx context.Context, trigger Sample) error {
	s.state.Cooling = true
	s.observer.ObserveEvent(Event{Kind: EventCooldownStart, At: s.clock.Now(),
		Detail: fmt.Sprintf("water_temp=%.1f", trigger.WaterTemp)})

	rep, err := s.interlock.Cooldown(ctx, trigger)
	s.state.Cooling = false
	if err != nil {
		return fmt.Errorf("cooldown: %w", err)
	}
	s.observer.ObserveEvent(Event{Kind: EventCooldownEnd, At: s.clock.Now(), Cooldown: &rep,
		Detail: fmt.Sprintf("mode=%s end_temp=%.1f", rep.Mode, rep.EndTemp)})

	// The gap spans the whole cooldown; carrying it into dt would spike the
	// integral on the first tick back.
	s.state.PID.Reset()

	switch s.cfg.Thermal.After {
	case AfterCooldownKick:
		return s.kick(ctx)
	case AfterCooldownResume:
		if err := s.platform.Dispatch(ctx, s.cfg.Thermal.ResumeCommand.Clamped()); err != nil {
			return fmt.Errorf("dispatch resume command: %w", err)
		}
		return nil
	default:
		return s.reverse(ctx)
	}
}

func (s *Session) reverse(ctx context.Context) error {
	res, err := s.maneuver.Run(ctx, s.state.Turn, func(smp Sample) { s.state.Observe(smp) })
	s.state.TicksSinceReversal = 0
	if err != nil {
		return fmt.Errorf("reversal: %w", err)
	}
	if res.Confirmed {
		s.state.Handedness = res.Desired
	}
	s.state.PID.Reset()

	detail := fmt.Sprintf("from=%s to=%s attempts=%d confirmed=%t", res.From, res.Desired, res.Attempts, res.Confirmed)
	s.observer.ObserveEvent(Event{Kind: EventReversal, At: s.clock.Now(), Reversal: &res, Detail: detail})
	return nil
}

func (s *Session) kick(ctx context.Context) error {
	dir, err := s.kicker.Run(ctx)
	if err != nil {
		return fmt.Errorf("kick: %w", err)
	}
	s.observer.ObserveEvent(Event{Kind: EventKick, At: s.clock.Now(), Kick: &dir, Detail: "direction=" + dir.String()})
	return nil
}

func (s *Session) target() float64 {
	if pid, ok := s.law.(PIDLaw); ok {
		return pid.Target(s.state)
	}
	return s.cfg.WeightedSum.TargetYawRate
}
