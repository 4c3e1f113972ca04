package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drift-control-core/closed_loop/drift"
)

func TestDefaultProfileMatchesDefaultConfig(t *testing.T) {
	got, err := DefaultProfile().Config()
	require.NoError(t, err)

	if diff := cmp.Diff(drift.DefaultConfig(), got); diff != "" {
		t.Errorf("default profile config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseProfile_OverridesKeepDefaults(t *testing.T) {
	p, err := ParseProfile([]byte(`{
		"meta": {"name": "hot_track"},
		"law": "pid",
		"pid": {"target_yaw_rate": 1.5, "kp": 0.8},
		"thermal": {"critical_c": 108, "resume_c": 88, "stop_command": {"brake": 0.6}}
	}`))
	require.NoError(t, err)

	cfg, err := p.Config()
	require.NoError(t, err)

	want := drift.DefaultConfig()
	want.Law = drift.LawPID
	want.PID.TargetYawRate = 1.5
	want.PID.Kp = 0.8
	want.Thermal.CriticalTemp = 108
	want.Thermal.ResumeTemp = 88
	want.Thermal.StopCommand = drift.Command{Brake: 0.6}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "hot_track", p.Meta.Name)
	assert.Equal(t, 1.5, p.TargetYawRate())
}

func TestParseProfile_WeightedSumTargetIsMagnitude(t *testing.T) {
	p, err := ParseProfile([]byte(`{"meta": {"name": "neg"}, "weighted_sum": {"target_yaw_rate": -2.5}}`))
	require.NoError(t, err)

	cfg, err := p.Config()
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.WeightedSum.TargetYawRate)
}

func TestParseProfile_Durations(t *testing.T) {
	p, err := ParseProfile([]byte(`{
		"meta": {"name": "timing"},
		"tick_ms": 33.3,
		"thermal": {"mode": "fixed_delay", "fixed_delay_s": 7.5, "poll_ms": 20},
		"kick": {"duration_s": 1.25}
	}`))
	require.NoError(t, err)

	cfg, err := p.Config()
	require.NoError(t, err)
	assert.Equal(t, 33300*time.Microsecond, cfg.TickInterval)
	assert.Equal(t, drift.CoolFixedDelay, cfg.Thermal.Mode)
	assert.Equal(t, 7500*time.Millisecond, cfg.Thermal.FixedDelay)
	assert.Equal(t, 20*time.Millisecond, cfg.Thermal.PollInterval)
	assert.Equal(t, 1250*time.Millisecond, cfg.Kick.Duration)
}

func TestParseProfile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"malformed", `{"meta": `, "unmarshal"},
		{"unknown key", `{"meta": {"name": "x"}, "tick_msec": 20}`, "tick_msec"},
		{"unknown nested key", `{"meta": {"name": "x"}, "thermal": {"critical": 110}}`, "critical"},
		{"missing name", `{"law": "pid"}`, "meta.name"},
		{"unknown law", `{"meta": {"name": "x"}, "law": "mpc"}`, "law: unknown"},
		{"resume above critical", `{"meta": {"name": "x"}, "thermal": {"resume_c": 120}}`, "resume temp"},
		{"unknown cooling mode", `{"meta": {"name": "x"}, "thermal": {"mode": "coast"}}`, "cooling mode"},
		{"negative cadence", `{"meta": {"name": "x"}, "reversal": {"every_ticks": -1}}`, "reversal cadence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadProfile_EmptyPathIsDefault(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), p)
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestShippedProfilesLoad(t *testing.T) {
	paths, err := filepath.Glob("../config/profiles/*.json")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			p, err := LoadProfile(path)
			require.NoError(t, err)
			assert.NotEmpty(t, p.Meta.Description)

			_, err = p.Config()
			assert.NoError(t, err)
		})
	}
}

func TestProfileFromConfigRoundTrip(t *testing.T) {
	cfg := drift.DefaultConfig()
	cfg.Law = drift.LawPID
	cfg.Secondary = drift.SecondaryLinAccelX
	cfg.Thermal.Mode = drift.CoolFixedDelay
	cfg.Thermal.After = drift.AfterCooldownKick
	cfg.Reversal.EveryTicks = 0
	cfg.MaxTicks = 1200

	got, err := ProfileFromConfig("round_trip", cfg).Config()
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
