package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/antenna-tracker/core"
	"github.com/signalsfoundry/antenna-tracker/internal/config"
	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/internal/mount"
	"github.com/signalsfoundry/antenna-tracker/internal/observability"
	"github.com/signalsfoundry/antenna-tracker/internal/recorder"
	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

func newTrackCmd(opts *rootOptions) *cobra.Command {
	var simulate bool
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track the configured target for the configured duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runTrack(cmd, cfg, simulate)
		},
	}
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Use the simulated mount and a virtual clock; runs instantly.")
	return cmd
}

func runTrack(cmd *cobra.Command, cfg config.Config, simulate bool) error {
	log := newLogger(cmd, cfg)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := cfg.TargetDescriptor()
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	tracing := cfg.TracingConfig()
	tracing.Output = cmd.ErrOrStderr()
	shutdownTracing, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.WithoutCancel(ctx), shutdownTracing, log)

	var collector *observability.TrackerCollector
	if cfg.Metrics.Addr != "" {
		collector, err = observability.NewTrackerCollector(nil)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		if srv := serveMetrics(cfg.Metrics.Addr, collector, log); srv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	resolver := core.NewResolver(core.NewMeeusEphemeris(catalog))
	transformer, err := core.NewTransformer(cfg.ObserverLocation(), cfg.MountLimits())
	if err != nil {
		return err
	}

	mode := timectrl.RealTime
	if simulate {
		mode = timectrl.Accelerated
	}
	clock := timectrl.New(mode, time.Now().UTC())

	commander, closeMount, err := openMount(ctx, cfg, clock, simulate, log)
	if err != nil {
		return err
	}
	defer closeMount()

	supOpts := []core.SupervisorOption{
		core.WithLogger(log),
		core.WithClock(clock),
		core.WithMaxRestarts(cfg.Tracking.MaxRestarts),
	}
	if collector != nil {
		supOpts = append(supOpts, core.WithMetrics(collector))
	}
	supervisor, err := core.NewSupervisor(resolver, transformer, commander, cfg.Tracking.MinPeriod, supOpts...)
	if err != nil {
		return err
	}

	report, err := supervisor.Run(ctx, target, cfg.Tracking.Duration)
	if err != nil {
		return err
	}

	if err := saveSession(context.WithoutCancel(ctx), cfg, report, log); err != nil {
		log.Error(ctx, "failed to record session", logging.Err(err))
	}
	printReport(cmd, report)

	switch report.Status {
	case core.StatusCompleted, core.StatusInterrupted:
		return nil
	default:
		return report.Err()
	}
}

func openMount(ctx context.Context, cfg config.Config, clock timectrl.Clock, simulate bool, log logging.Logger) (core.PointingCommander, func(), error) {
	if simulate || cfg.Mount.Driver == config.DriverSimulator {
		sim := mount.NewSimulator(clock, cfg.MountLimits(),
			mount.WithSlewRate(cfg.Mount.SlewRate),
			mount.WithSimulatorLogger(log),
		)
		return sim, func() {}, nil
	}

	mc, err := mount.NewMQTTCommander(cfg.MQTTConfig(), log)
	if err != nil {
		return nil, nil, err
	}
	if err := mc.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect mount: %w", err)
	}
	return mc, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mc.Close(closeCtx); err != nil {
			log.Warn(closeCtx, "mount disconnect failed", logging.Err(err))
		}
	}, nil
}

func saveSession(ctx context.Context, cfg config.Config, report core.Report, log logging.Logger) error {
	var loc recorder.Locator
	if cfg.Provenance.Enabled {
		loc = recorder.NewHTTPLocator(cfg.Provenance.Endpoint, cfg.Provenance.Timeout)
	}
	prov := recorder.Lookup(ctx, loc, log)

	session := recorder.FromReport(report, cfg.ObserverLocation(), cfg.MountLimits(), prov)
	session.Notes = cfg.Recorder.Notes

	var sinks recorder.Multi
	if cfg.Recorder.Database != "" {
		if err := os.MkdirAll(cfg.Recorder.Directory, 0o755); err != nil {
			return fmt.Errorf("create recorder directory: %w", err)
		}
		db, err := recorder.OpenSQLite(databasePath(cfg.Recorder))
		if err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, db)
	}
	if cfg.Recorder.TagFile {
		sinks = append(sinks, recorder.TagFileWriter{Dir: cfg.Recorder.Directory})
	}
	if err := sinks.Save(ctx, session); err != nil {
		return err
	}
	log.Info(ctx, "session recorded",
		logging.String("session_id", session.ID),
		logging.Int("records", len(session.Records)),
		logging.Any("provenance_degraded", prov.Degraded),
	)
	return nil
}

func databasePath(opts config.RecorderOptions) string {
	if filepath.IsAbs(opts.Database) {
		return opts.Database
	}
	return filepath.Join(opts.Directory, opts.Database)
}

func printReport(cmd *cobra.Command, r core.Report) {
	cmd.Printf("Session: %s\n", r.SessionID)
	if r.Target != nil {
		cmd.Printf("Target: %s\n", r.Target)
	}
	cmd.Printf("Status: %s\n", r.Status)
	cmd.Printf("Attempts: %d\n", r.Attempts)
	cmd.Printf("Records: %d\n", len(r.Records))
	cmd.Printf("Tracked: %s of %s\n", r.Budget.Elapsed.Round(time.Millisecond), r.Budget.Requested)
	if r.Violation != nil {
		cmd.Printf("Violation: %v\n", r.Violation)
	}
	var ce *core.CaptureError
	if err := r.Err(); errors.As(err, &ce) {
		cmd.Printf("Last failure: %v\n", ce)
	}
}

func serveMetrics(addr string, collector *observability.TrackerCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
