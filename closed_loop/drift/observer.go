package drift

import "time"

// Phase says which part of the loop owned the dispatcher on a tick.
type Phase string

const (
	PhaseLaw     Phase = "law"
	PhaseCooling Phase = "cooling"
	PhaseFault   Phase = "fault"
)

// TickRecord describes one pass of the control loop.
type TickRecord struct {
	Tick       int
	At         time.Time
	Phase      Phase
	Sample     Sample
	Turn       TurnDirection
	Motion     MotionEstimate
	Law        LawKind
	Output     Output
	Command    Command
	Dispatched bool
}

type EventKind string

const (
	EventTelemetryFault EventKind = "telemetry_fault"
	EventCooldownStart  EventKind = "cooldown_start"
	EventCooldownEnd    EventKind = "cooldown_end"
	EventReversal       EventKind = "reversal"
	EventKick           EventKind = "kick"
)

// Event is an out-of-band occurrence: faults and maneuvers.
type Event struct {
	Kind     EventKind
	At       time.Time
	Detail   string
	Reversal *ReversalResult
	Cooldown *CooldownReport
	Kick     *TurnDirection
}

// Observer receives every tick and event on the loop goroutine. It must
// not block for long; the loop waits for it.
type Observer interface {
	ObserveTick(TickRecord)
	ObserveEvent(Event)
}

// Observers fans out to each member in order.
type Observers []Observer

func (obs Observers) ObserveTick(r TickRecord) {
	for _, o := range obs {
		o.ObserveTick(r)
	}
}

func (obs Observers) ObserveEvent(e Event) {
	for _, o := range obs {
		o.ObserveEvent(e)
	}
}

type nopObserver struct{}

func (nopObserver) ObserveTick(TickRecord) {}
func (nopObserver) ObserveEvent(Event)     {}
