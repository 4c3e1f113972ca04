package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"drift-control-core/closed_loop/drift"
	"drift-control-core/closed_loop/metrics"
	"drift-control-core/closed_loop/recorder"
	"drift-control-core/closed_loop/report"
	"drift-control-core/utils"
)

type RunnerConfig struct {
	Interface string
	MapPath   string
	Profile   Profile
	Platform  PlatformConfig

	RecordPath  string // sqlite run log; empty disables recording
	ReportDir   string // PNG + HTML report after the run; needs RecordPath
	MetricsAddr string // Prometheus listen address; empty disables
}

type Runner struct {
	cfg      RunnerConfig
	log      *utils.Logger
	reader   utils.CANReader
	writer   utils.CANWriter
	platform *CANPlatform
	session  *drift.Session
	store    *recorder.Store
	rec      *recorder.RunRecorder
}

// NewRunner loads the CAN map, opens the bus and wires the session.
func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	cmap, err := utils.LoadCANMap(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}

	writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
	if err != nil {
		writer.Close()
		return nil, err
	}

	r, err := newRunner(cfg, cmap, reader, writer, log)
	if err != nil {
		reader.Close()
		writer.Close()
		return nil, err
	}
	return r, nil
}

func newRunner(cfg RunnerConfig, cmap *utils.CANMap, reader utils.CANReader, writer utils.CANWriter, log *utils.Logger, opts ...drift.Option) (*Runner, error) {
	dcfg, err := cfg.Profile.Config()
	if err != nil {
		return nil, err
	}

	platform, err := NewCANPlatform(cfg.Platform, cmap, reader, writer, log)
	if err != nil {
		return nil, fmt.Errorf("platform: %w", err)
	}

	r := &Runner{cfg: cfg, log: log, reader: reader, writer: writer, platform: platform}

	observers := drift.Observers{metrics.Observer{Law: dcfg.Law}}
	if cfg.RecordPath != "" {
		r.store, err = recorder.Open(cfg.RecordPath)
		if err != nil {
			return nil, fmt.Errorf("recorder: %w", err)
		}
		r.rec, err = recorder.NewRunRecorder(r.store, recorder.Run{
			Law:           dcfg.Law,
			TargetYawRate: cfg.Profile.TargetYawRate(),
			Profile:       cfg.Profile.Meta.Name,
		}, log)
		if err != nil {
			r.store.Close()
			return nil, fmt.Errorf("recorder: %w", err)
		}
		observers = append(observers, r.rec)
	}

	var p drift.Platform = platform
	if cfg.Profile.DryRun {
		log.Warn("Dry run: commands are computed and recorded but not transmitted")
		p = drift.DryRun(platform)
	}

	opts = append([]drift.Option{drift.WithObserver(observers)}, opts...)
	r.session, err = drift.NewSession(dcfg, p, log, opts...)
	if err != nil {
		if r.store != nil {
			r.store.Close()
		}
		return nil, err
	}
	return r, nil
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}

// Run drives the session while the RX pump and the metrics endpoint run
// alongside it. It returns when the session ends; the helpers are stopped
// with it. Reports are written afterwards whatever the outcome.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting drift run: profile=%s iface=%s cmd_frame=%s dry_run=%v record=%q",
		r.cfg.Profile.Meta.Name, r.cfg.Interface, r.cfg.Platform.CommandFrame, r.cfg.Profile.DryRun, r.cfg.RecordPath)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := r.platform.Receive(gctx); gctx.Err() == nil {
			return err
		}
		return nil
	})

	if r.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, r.cfg.MetricsAddr, r.log)
		})
	}

	g.Go(func() error {
		defer stop()
		return r.session.Run(gctx)
	})

	err := g.Wait()

	rx, tx := r.platform.Counters()
	r.log.Info("Completed run: ticks=%d frames_rx=%d frames_tx=%d", r.session.Ticks(), rx, tx)
	if r.rec != nil {
		if dropped, werr := r.rec.Dropped(); dropped > 0 {
			r.log.Warn("Recorder dropped %d writes; first error: %v", dropped, werr)
		}
		if rerr := r.writeReports(); rerr != nil {
			r.log.Error("Report failed: %v", rerr)
		}
	}
	return err
}

func (r *Runner) writeReports() error {
	if r.cfg.ReportDir == "" {
		return nil
	}
	run := r.rec.Run()
	rows, err := r.store.Ticks(run.ID)
	if err != nil {
		return err
	}
	s := report.FromTicks(fmt.Sprintf("%s (%s)", run.Profile, run.Law), run.TargetYawRate, rows)
	if s.Len() == 0 {
		r.log.Warn("No ticks recorded; skipping report")
		return nil
	}

	if err := os.MkdirAll(r.cfg.ReportDir, 0o755); err != nil {
		return err
	}
	pngPath := filepath.Join(r.cfg.ReportDir, run.ID+".png")
	if err := report.SavePNG(pngPath, s); err != nil {
		return err
	}
	htmlPath := filepath.Join(r.cfg.ReportDir, run.ID+".html")
	if err := report.SaveHTML(htmlPath, s); err != nil {
		return err
	}
	r.log.Info("Report written: %s, %s", pngPath, htmlPath)
	return nil
}

func serveMetrics(ctx context.Context, addr string, log *utils.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("Metrics server shutdown: %v", err)
		}
	}()

	log.Info("Metrics server listening on %s", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
