package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drift-control-core/closed_loop/drift"
	"drift-control-core/utils"
)

func main() {
	var (
		iface       = flag.String("iface", "vcan0", "SocketCAN interface name")
		mapPath     = flag.String("map", "config/can/drift_map.csv", "Path to the CAN map CSV")
		profilePath = flag.String("profile", "", "Profile JSON file (defaults when empty)")
		staleAfter  = flag.Duration("stale-after", DefaultPlatformConfig().StaleAfter, "Telemetry older than this is stale")
		dbPath      = flag.String("db", "drift_runs.db", "SQLite run log (empty disables recording)")
		reportDir   = flag.String("report-dir", "", "Write PNG and HTML run reports here")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9102")
		logLevel    = flag.String("log", "info", "trace|debug|info|warn|error|critical")

		law          = flag.String("law", "", "Override the law: weighted_sum|pid")
		targetYaw    = flag.Float64("target-yaw", 0, "Override the target yaw rate of the selected law (rad/s)")
		tickMS       = flag.Float64("tick-ms", 0, "Override the tick interval (ms)")
		maxTicks     = flag.Int("max-ticks", 0, "Override the tick budget (0 keeps the profile's)")
		criticalTemp = flag.Float64("critical-temp", 0, "Override the critical water temperature (C)")
		resumeTemp   = flag.Float64("resume-temp", 0, "Override the resume water temperature (C)")
		cooling      = flag.String("cooling", "", "Override the cooling mode: wait_temperature|fixed_delay")
		reverseEvery = flag.Int("reverse-every", 0, "Override the periodic reversal cadence in ticks (0 disables)")
		dryRun       = flag.Bool("dry-run", false, "Compute and record commands without transmitting them")
	)
	flag.Parse()

	log, err := utils.NewFileLogger("closed_loop.log", utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open closed_loop.log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	profile, err := LoadProfile(*profilePath)
	if err != nil {
		log.Critical("Profile %q: %v", *profilePath, err)
		os.Exit(1)
	}

	// Only flags given on the command line override the profile.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "law":
			profile.Law = *law
		case "target-yaw":
			if drift.LawKind(profile.Law) == drift.LawPID {
				profile.PID.TargetYawRate = *targetYaw
			} else {
				profile.WeightedSum.TargetYawRate = *targetYaw
			}
		case "tick-ms":
			profile.TickMS = *tickMS
		case "max-ticks":
			profile.MaxTicks = *maxTicks
		case "critical-temp":
			profile.Thermal.CriticalC = *criticalTemp
		case "resume-temp":
			profile.Thermal.ResumeC = *resumeTemp
		case "cooling":
			profile.Thermal.Mode = *cooling
		case "reverse-every":
			profile.Reversal.EveryTicks = *reverseEvery
		case "dry-run":
			profile.DryRun = *dryRun
		}
	})

	platform := DefaultPlatformConfig()
	platform.StaleAfter = *staleAfter

	cfg := RunnerConfig{
		Interface:   *iface,
		MapPath:     *mapPath,
		Profile:     profile,
		Platform:    platform,
		RecordPath:  *dbPath,
		ReportDir:   *reportDir,
		MetricsAddr: *metricsAddr,
	}
	if cfg.ReportDir != "" && cfg.RecordPath == "" {
		log.Critical("Startup failed: -report-dir needs -db")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	start := time.Now()
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}
}
