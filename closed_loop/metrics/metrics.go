package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"drift-control-core/closed_loop/drift"
)

// Drift loop counters and last-value gauges, partitioned by steering law.

var (
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drift",
		Subsystem: "loop",
		Name:      "ticks_total",
		Help:      "Total control loop ticks by phase",
	}, []string{"law", "phase"})

	TelemetryFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drift",
		Subsystem: "loop",
		Name:      "telemetry_faults_total",
		Help:      "Ticks skipped because telemetry was stale or unavailable",
	}, []string{"law"})

	CooldownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drift",
		Subsystem: "loop",
		Name:      "cooldowns_total",
		Help:      "Completed thermal cooldowns",
	}, []string{"law"})

	CooldownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "drift",
		Subsystem: "loop",
		Name:      "cooldown_duration_seconds",
		Help:      "Time spent waiting for the engine to cool",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"law"})

	ReversalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drift",
		Subsystem: "loop",
		Name:      "reversals_total",
		Help:      "Direction reversals by outcome (confirmed, timeout)",
	}, []string{"law", "outcome"})

	KicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drift",
		Subsystem: "loop",
		Name:      "kicks_total",
		Help:      "Launch kicks by direction",
	}, []string{"law", "direction"})

	// Last observed values
	YawRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "drift",
		Subsystem: "vehicle",
		Name:      "yaw_rate_rps",
		Help:      "Last yaw rate read from telemetry",
	}, []string{"law"})

	WaterTemperature = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "drift",
		Subsystem: "vehicle",
		Name:      "water_temperature_celsius",
		Help:      "Last engine water temperature read from telemetry",
	}, []string{"law"})

	Steering = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "drift",
		Subsystem: "command",
		Name:      "steering",
		Help:      "Last steering command dispatched by the law",
	}, []string{"law"})

	Throttle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "drift",
		Subsystem: "command",
		Name:      "throttle",
		Help:      "Last throttle command dispatched by the law",
	}, []string{"law"})

	Cooling = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "drift",
		Subsystem: "loop",
		Name:      "cooling",
		Help:      "1 while the thermal interlock owns the dispatcher",
	}, []string{"law"})
)

// Observer feeds session ticks and events into the package metrics.
type Observer struct {
	Law drift.LawKind
}

func (o Observer) ObserveTick(r drift.TickRecord) {
	law := string(o.Law)
	TicksTotal.WithLabelValues(law, string(r.Phase)).Inc()
	if r.Phase == drift.PhaseFault {
		return
	}
	YawRate.WithLabelValues(law).Set(r.Sample.YawRate)
	WaterTemperature.WithLabelValues(law).Set(r.Sample.WaterTemp)
	if r.Dispatched {
		Steering.WithLabelValues(law).Set(r.Command.Steering)
		Throttle.WithLabelValues(law).Set(r.Command.Throttle)
	}
}

func (o Observer) ObserveEvent(e drift.Event) {
	law := string(o.Law)
	switch e.Kind {
	case drift.EventTelemetryFault:
		TelemetryFaults.WithLabelValues(law).Inc()
	case drift.EventCooldownStart:
		Cooling.WithLabelValues(law).Set(1)
	case drift.EventCooldownEnd:
		Cooling.WithLabelValues(law).Set(0)
		CooldownsTotal.WithLabelValues(law).Inc()
		if e.Cooldown != nil {
			CooldownDuration.WithLabelValues(law).Observe(e.Cooldown.CoolDuration.Seconds())
		}
	case drift.EventReversal:
		outcome := "timeout"
		if e.Reversal != nil && e.Reversal.Confirmed {
			outcome = "confirmed"
		}
		ReversalsTotal.WithLabelValues(law, outcome).Inc()
	case drift.EventKick:
		dir := "unknown"
		if e.Kick != nil {
			dir = e.Kick.String()
		}
		KicksTotal.WithLabelValues(law, dir).Inc()
	}
}
