package drift

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestDefaultConfig_Stable(t *testing.T) {
	want := ThermalConfig{
		CriticalTemp:  115,
		ResumeTemp:    91,
		Mode:          CoolWaitTemperature,
		FixedDelay:    10 * time.Second,
		Dwell:         5 * time.Second,
		MaxWait:       10 * time.Minute,
		PollInterval:  50 * time.Millisecond,
		SafeCommand:   Command{Throttle: 0.2, Gear: 3},
		StopCommand:   Command{Brake: 1},
		After:         AfterCooldownReverse,
		ResumeCommand: Command{Throttle: 1},
	}
	if diff := cmp.Diff(want, DefaultConfig().Thermal); diff != "" {
		t.Errorf("thermal defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"law", func(c *Config) { c.Law = "lqr" }, "law"},
		{"tick", func(c *Config) { c.TickInterval = 0 }, "tick interval"},
		{"max ticks", func(c *Config) { c.MaxTicks = -1 }, "max ticks"},
		{"secondary", func(c *Config) { c.Secondary = "roll" }, "secondary"},
		{"pid dt", func(c *Config) { c.PID.MinDt = 0 }, "min dt"},
		{"floor", func(c *Config) { c.WeightedSum.Throttle.Floor = 1.5 }, "floor"},
		{"gain", func(c *Config) { c.PID.Throttle.Gain = -1 }, "gain"},
		{"resume above critical", func(c *Config) { c.Thermal.ResumeTemp = 120 }, "resume temp"},
		{"cooling mode", func(c *Config) { c.Thermal.Mode = "fan" }, "cooling mode"},
		{"fixed delay", func(c *Config) {
			c.Thermal.Mode = CoolFixedDelay
			c.Thermal.FixedDelay = 0
		}, "fixed_delay"},
		{"after", func(c *Config) { c.Thermal.After = "park" }, "post-cooldown"},
		{"max wait", func(c *Config) { c.Thermal.MaxWait = 0 }, "max wait"},
		{"poll", func(c *Config) { c.Thermal.PollInterval = 0 }, "poll interval"},
		{"cadence", func(c *Config) { c.Reversal.EveryTicks = -5 }, "cadence"},
		{"attempts", func(c *Config) { c.Reversal.MaxAttempts = 0 }, "max attempts"},
		{"confirm", func(c *Config) { c.Reversal.ConfirmThreshold = 0.1 }, "confirm threshold"},
		{"kick", func(c *Config) { c.Kick.Duration = 0 }, "kick duration"},
		{"diagnostics", func(c *Config) { c.DiagnosticsEvery = -time.Second }, "diagnostics interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 0
	cfg.Reversal.MaxAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick interval")
	assert.Contains(t, err.Error(), "max attempts")
}

func TestConfig_DisabledKickNeedsNoDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kick.Enabled = false
	cfg.Kick.Duration = 0
	assert.NoError(t, cfg.Validate())
}
