package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"drift-control-core/closed_loop/drift"
)

// Profile is the JSON run description. LoadProfile decodes it over the
// defaults, so a profile only lists what it changes.
type Profile struct {
	Meta ProfileMeta `json:"meta"`

	Law          string  `json:"law"`
	TickMS       float64 `json:"tick_ms"`
	MaxTicks     int     `json:"max_ticks"`
	DryRun       bool    `json:"dry_run"`
	Secondary    string  `json:"secondary_signal"`
	LawGear      int     `json:"law_gear"`
	DiagnosticsS float64 `json:"diagnostics_s"`

	WeightedSum WeightedSumProfile `json:"weighted_sum"`
	PID         PIDProfile         `json:"pid"`
	Thermal     ThermalProfile     `json:"thermal"`
	Reversal    ReversalProfile    `json:"reversal"`
	Kick        KickProfile        `json:"kick"`
}

type ProfileMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

type ThrottleProfile struct {
	ErrorThreshold float64 `json:"error_threshold"`
	Floor          float64 `json:"floor"`
	Gain           float64 `json:"gain"`
}

type CommandProfile struct {
	Steering float64 `json:"steering"`
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Gear     int     `json:"gear"`
}

type WeightedSumProfile struct {
	TargetYawRate float64         `json:"target_yaw_rate"`
	Aggression    float64         `json:"aggression"`
	Throttle      ThrottleProfile `json:"throttle"`
}

type PIDProfile struct {
	TargetYawRate float64         `json:"target_yaw_rate"`
	Kp            float64         `json:"kp"`
	Ki            float64         `json:"ki"`
	Kd            float64         `json:"kd"`
	IntegralLimit float64         `json:"integral_limit"`
	MinDtMS       float64         `json:"min_dt_ms"`
	Throttle      ThrottleProfile `json:"throttle"`
}

type ThermalProfile struct {
	CriticalC   float64        `json:"critical_c"`
	ResumeC     float64        `json:"resume_c"`
	Mode        string         `json:"mode"`
	FixedDelayS float64        `json:"fixed_delay_s"`
	DwellS      float64        `json:"dwell_s"`
	MaxWaitS    float64        `json:"max_wait_s"`
	PollMS      float64        `json:"poll_ms"`
	After       string         `json:"after"`
	Safe        CommandProfile `json:"safe_command"`
	Stop        CommandProfile `json:"stop_command"`
	Resume      CommandProfile `json:"resume_command"`
}

type ReversalProfile struct {
	EveryTicks       int     `json:"every_ticks"`
	MaxAttempts      int     `json:"max_attempts"`
	IntervalMS       float64 `json:"interval_ms"`
	Steering         float64 `json:"steering"`
	Throttle         float64 `json:"throttle"`
	Brake            float64 `json:"brake"`
	ConfirmThreshold float64 `json:"confirm_threshold"`
}

type KickProfile struct {
	Enabled   bool    `json:"enabled"`
	DurationS float64 `json:"duration_s"`
	Throttle  float64 `json:"throttle"`
	Gear      int     `json:"gear"`
	Seed      uint64  `json:"seed"`
}

// DefaultProfile mirrors drift.DefaultConfig.
func DefaultProfile() Profile {
	return ProfileFromConfig("default", drift.DefaultConfig())
}

func ProfileFromConfig(name string, c drift.Config) Profile {
	th := c.Thermal
	return Profile{
		Meta:         ProfileMeta{Name: name, Version: 1},
		Law:          string(c.Law),
		TickMS:       ms(c.TickInterval),
		MaxTicks:     c.MaxTicks,
		Secondary:    string(c.Secondary),
		LawGear:      int(c.LawGear),
		DiagnosticsS: c.DiagnosticsEvery.Seconds(),
		WeightedSum: WeightedSumProfile{
			TargetYawRate: c.WeightedSum.TargetYawRate,
			Aggression:    c.WeightedSum.Aggression,
			Throttle:      throttleProfile(c.WeightedSum.Throttle),
		},
		PID: PIDProfile{
			TargetYawRate: c.PID.TargetYawRate,
			Kp:            c.PID.Kp,
			Ki:            c.PID.Ki,
			Kd:            c.PID.Kd,
			IntegralLimit: c.PID.IntegralLimit,
			MinDtMS:       ms(c.PID.MinDt),
			Throttle:      throttleProfile(c.PID.Throttle),
		},
		Thermal: ThermalProfile{
			CriticalC:   th.CriticalTemp,
			ResumeC:     th.ResumeTemp,
			Mode:        string(th.Mode),
			FixedDelayS: th.FixedDelay.Seconds(),
			DwellS:      th.Dwell.Seconds(),
			MaxWaitS:    th.MaxWait.Seconds(),
			PollMS:      ms(th.PollInterval),
			After:       string(th.After),
			Safe:        commandProfile(th.SafeCommand),
			Stop:        commandProfile(th.StopCommand),
			Resume:      commandProfile(th.ResumeCommand),
		},
		Reversal: ReversalProfile{
			EveryTicks:       c.Reversal.EveryTicks,
			MaxAttempts:      c.Reversal.MaxAttempts,
			IntervalMS:       ms(c.Reversal.Interval),
			Steering:         c.Reversal.Steering,
			Throttle:         c.Reversal.Throttle,
			Brake:            c.Reversal.Brake,
			ConfirmThreshold: c.Reversal.ConfirmThreshold,
		},
		Kick: KickProfile{
			Enabled:   c.Kick.Enabled,
			DurationS: c.Kick.Duration.Seconds(),
			Throttle:  c.Kick.Throttle,
			Gear:      int(c.Kick.Gear),
			Seed:      c.Kick.Seed,
		},
	}
}

// LoadProfile reads a profile from disk. An empty path yields the defaults.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read file: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes data over DefaultProfile and validates the result.
// Unknown keys are rejected so a typo cannot silently keep a default.
func ParseProfile(data []byte) (Profile, error) {
	p := DefaultProfile()
	p.Meta.Name = ""

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("unmarshal: %w", err)
	}
	if p.Meta.Name == "" {
		return Profile{}, fmt.Errorf("profile needs meta.name")
	}
	if _, err := p.Config(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Config converts the profile into loop parameters and validates them.
func (p Profile) Config() (drift.Config, error) {
	th := p.Thermal
	c := drift.Config{
		Law:          drift.LawKind(p.Law),
		TickInterval: fromMS(p.TickMS),
		MaxTicks:     p.MaxTicks,
		Secondary:    drift.SecondarySignal(p.Secondary),
		LawGear:      drift.Gear(p.LawGear),
		WeightedSum: drift.WeightedSumConfig{
			TargetYawRate: math.Abs(p.WeightedSum.TargetYawRate),
			Aggression:    p.WeightedSum.Aggression,
			Throttle:      p.WeightedSum.Throttle.law(),
		},
		PID: drift.PIDConfig{
			TargetYawRate: p.PID.TargetYawRate,
			Kp:            p.PID.Kp,
			Ki:            p.PID.Ki,
			Kd:            p.PID.Kd,
			IntegralLimit: p.PID.IntegralLimit,
			MinDt:         fromMS(p.PID.MinDtMS),
			Throttle:      p.PID.Throttle.law(),
		},
		Thermal: drift.ThermalConfig{
			CriticalTemp:  th.CriticalC,
			ResumeTemp:    th.ResumeC,
			Mode:          drift.CoolingMode(th.Mode),
			FixedDelay:    fromSeconds(th.FixedDelayS),
			Dwell:         fromSeconds(th.DwellS),
			MaxWait:       fromSeconds(th.MaxWaitS),
			PollInterval:  fromMS(th.PollMS),
			SafeCommand:   th.Safe.command(),
			StopCommand:   th.Stop.command(),
			After:         drift.PostCooldown(th.After),
			ResumeCommand: th.Resume.command(),
		},
		Reversal: drift.ReversalConfig{
			EveryTicks:       p.Reversal.EveryTicks,
			MaxAttempts:      p.Reversal.MaxAttempts,
			Interval:         fromMS(p.Reversal.IntervalMS),
			Steering:         p.Reversal.Steering,
			Throttle:         p.Reversal.Throttle,
			Brake:            p.Reversal.Brake,
			ConfirmThreshold: p.Reversal.ConfirmThreshold,
		},
		Kick: drift.KickConfig{
			Enabled:  p.Kick.Enabled,
			Duration: fromSeconds(p.Kick.DurationS),
			Throttle: p.Kick.Throttle,
			Gear:     drift.Gear(p.Kick.Gear),
			Seed:     p.Kick.Seed,
		},
		DiagnosticsEvery: fromSeconds(p.DiagnosticsS),
	}
	if err := c.Validate(); err != nil {
		return drift.Config{}, fmt.Errorf("profile %q: %w", p.Meta.Name, err)
	}
	return c, nil
}

// TargetYawRate is the target of the selected law, signed for PID.
func (p Profile) TargetYawRate() float64 {
	if drift.LawKind(p.Law) == drift.LawPID {
		return p.PID.TargetYawRate
	}
	return p.WeightedSum.TargetYawRate
}

func (t ThrottleProfile) law() drift.ThrottleLaw {
	return drift.ThrottleLaw{ErrorThreshold: t.ErrorThreshold, Floor: t.Floor, Gain: t.Gain}
}

func throttleProfile(t drift.ThrottleLaw) ThrottleProfile {
	return ThrottleProfile{ErrorThreshold: t.ErrorThreshold, Floor: t.Floor, Gain: t.Gain}
}

func (c CommandProfile) command() drift.Command {
	return drift.Command{Steering: c.Steering, Throttle: c.Throttle, Brake: c.Brake, Gear: drift.Gear(c.Gear)}
}

func commandProfile(c drift.Command) CommandProfile {
	return CommandProfile{Steering: c.Steering, Throttle: c.Throttle, Brake: c.Brake, Gear: int(c.Gear)}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func fromMS(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Millisecond)))
}

func fromSeconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}
