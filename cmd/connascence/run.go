package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connascence/internal/core/analysis"
	"connascence/internal/core/app"
	"connascence/internal/core/config"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/data/history"
	"connascence/internal/shared/observability"
	"connascence/internal/shared/version"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	trendLookback = 30 * 24 * time.Hour
	trendWindow   = 24 * time.Hour

	historyQueueSize = 64
)

var nowFunc = time.Now

// run is main without the process exit, returning the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return analysis.OutcomeForError(err).ExitCode()
	}
	if opts.version {
		fmt.Fprintf(stdout, "connascence v%s\n", version.Version)
		return 0
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return analysis.OutcomeForError(err).ExitCode()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName, version.Version)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	if cfg.Observability.MetricsAddr != "" {
		srv := serveMetrics(cfg.Observability.MetricsAddr)
		defer func() { _ = srv.Close() }()
	}

	var engineOpts []app.Option
	var store *history.Store
	if cfg.History.Enabled || opts.trend {
		store, err = history.Open(cfg.History.Path, cfg.History.BusyTimeout)
		if err != nil {
			slog.Error("failed to open history store", "path", cfg.History.Path, "error", err)
			return analysis.OutcomeFatalError.ExitCode()
		}
		defer store.Close()
		if cfg.History.Enabled {
			recorder := history.NewRecorder(history.NewAdapter(store, cfg.History.Retention), historyQueueSize)
			defer recorder.Close()
			engineOpts = append(engineOpts, app.WithHistory(recorder))
		}
	}
	if opts.trend {
		return printTrend(stdout, store, cfg.History.ProjectKey)
	}

	engine, err := app.New(cfg, engineOpts...)
	if err != nil {
		slog.Error("failed to initialize engine", "error", err)
		return analysis.OutcomeForError(err).ExitCode()
	}
	defer func() { _ = engine.Close(context.Background()) }()

	roots := cfg.WatchPaths
	if len(opts.args) > 0 {
		roots = opts.args
	}
	mode, _ := analysis.ParseMode(cfg.Analysis.Mode)

	switch mode {
	case analysis.ModeStreaming, analysis.ModeHybrid:
		return watch(ctx, stdout, engine, roots, mode, opts.limit)
	default:
		res, err := engine.AnalyzeProject(ctx, roots, analysis.ModeBatch)
		if err != nil {
			slog.Error("analysis failed", "error", err)
			return analysis.OutcomeForError(err).ExitCode()
		}
		printResult(stdout, res, opts.limit)
		return res.Outcome().ExitCode()
	}
}

// loadConfig falls back to defaults only when the default path is missing;
// an explicit -config must exist.
func loadConfig(opts cliOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if opts.configPath != defaultConfigPath || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		slog.Info("no config file, using defaults", "path", opts.configPath)
		cfg = config.Default()
		config.ApplyEnvOverrides(cfg)
		if errs := config.Validate(cfg); len(errs) > 0 {
			return nil, coreerrors.Wrap(errors.Join(errs...), coreerrors.CodeConfiguration, "invalid environment overrides")
		}
	}
	if opts.mode != "" {
		cfg.Analysis.Mode = opts.mode
	}
	return cfg, nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}

// watch keeps a session open until ctx ends and prints each delta. The exit
// code reflects the last result seen.
func watch(ctx context.Context, stdout io.Writer, engine *app.Engine, roots []string, mode analysis.Mode, limit int) int {
	var (
		session *app.Session
		last    *analysis.Result
	)
	if mode == analysis.ModeHybrid {
		res, s, err := engine.StartHybrid(ctx, roots)
		if err != nil {
			slog.Error("analysis failed", "error", err)
			return analysis.OutcomeForError(err).ExitCode()
		}
		session, last = s, res
	} else {
		ss, err := engine.StartStreaming(ctx, roots)
		if err != nil {
			slog.Error("analysis failed", "error", err)
			return analysis.OutcomeForError(err).ExitCode()
		}
		session = ss.(*app.Session)
		last = session.Result()
	}
	printResult(stdout, last, limit)
	fmt.Fprintf(stdout, "watching %d root(s), session %s; interrupt to stop\n", len(roots), session.ID())

	for d := range session.Deltas() {
		last = d.Result
		printDelta(stdout, d)
	}
	return last.Outcome().ExitCode()
}
