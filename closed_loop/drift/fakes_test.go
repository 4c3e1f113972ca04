package drift

import (
	"bytes"
	"context"
	"time"

	"drift-control-core/utils"
)

// fakeClock only moves when something sleeps on it.
type fakeClock struct {
	now    time.Time
	slept  time.Duration
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps++
	return nil
}

// reading is one scripted telemetry poll.
type reading struct {
	temp     float64
	wheel    float64
	yaw      float64
	yawAccel float64
	linX     float64
	err      error
}

type sentCommand struct {
	Command
	afterPoll int // index of the last reading served before dispatch
}

// fakePlatform serves readings in order and repeats the last one once the
// script runs out. read, when set, overrides the script.
type fakePlatform struct {
	clock   *fakeClock
	script  []reading
	read    func(poll int) reading
	polls   int
	cur     reading
	sent    []sentCommand
	sendErr error
	onPoll  func(poll int)
}

func newFakePlatform(clock *fakeClock, script ...reading) *fakePlatform {
	return &fakePlatform{clock: clock, script: script}
}

func (p *fakePlatform) PollElectrics(context.Context) (Electrics, error) {
	poll := p.polls
	p.polls++
	if p.onPoll != nil {
		p.onPoll(poll)
	}
	switch {
	case p.read != nil:
		p.cur = p.read(poll)
	case len(p.script) == 0:
		return Electrics{}, ErrTelemetryUnavailable
	case poll < len(p.script):
		p.cur = p.script[poll]
	default:
		p.cur = p.script[len(p.script)-1]
	}
	if p.cur.err != nil {
		return Electrics{}, p.cur.err
	}
	return Electrics{
		WaterTemperature: p.cur.temp,
		WheelSpeed:       p.cur.wheel,
		VirtualAirspeed:  p.cur.wheel,
		Timestamp:        p.clock.Now(),
	}, nil
}

func (p *fakePlatform) PollInertial(context.Context) (Inertial, error) {
	return Inertial{
		AngVel:    Vec3{0, 0, p.cur.yaw},
		AngAccel:  Vec3{0, 0, p.cur.yawAccel},
		AccSmooth: Vec3{p.cur.linX, 0, 0},
		Timestamp: p.clock.Now(),
	}, nil
}

func (p *fakePlatform) Dispatch(_ context.Context, cmd Command) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, sentCommand{Command: cmd, afterPoll: p.polls - 1})
	return nil
}

func (p *fakePlatform) commands() []Command {
	out := make([]Command, len(p.sent))
	for i, s := range p.sent {
		out[i] = s.Command
	}
	return out
}

// recordingObserver keeps everything the session reports.
type recordingObserver struct {
	ticks  []TickRecord
	events []Event
}

func (r *recordingObserver) ObserveTick(t TickRecord) { r.ticks = append(r.ticks, t) }
func (r *recordingObserver) ObserveEvent(e Event)     { r.events = append(r.events, e) }

func (r *recordingObserver) eventsOf(kind EventKind) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() (*utils.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return utils.NewWriterLogger(&buf, utils.TRACE), &buf
}

// quietConfig is DefaultConfig without the launch kick or the periodic
// reversal, so tests opt into maneuvers explicitly.
func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Kick.Enabled = false
	cfg.Reversal.EveryTicks = 0
	return cfg
}
