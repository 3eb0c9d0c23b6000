package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/controlloop"
	"hddfancontrol/internal/daemon"
	"hddfancontrol/internal/events"
	"hddfancontrol/internal/hardware"
	"hddfancontrol/internal/history"
	"hddfancontrol/internal/logging"
	"hddfancontrol/internal/preflight"
)

const (
	logPrefix      = "hddfancontrol"
	restoreTimeout = 5 * time.Second
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// ConfigPath is recorded with the run in the history journal.
	ConfigPath string
}

// Run starts the fan control daemon and blocks until SIGINT, SIGTERM or
// cmdCtx ends. Fans are left at the shutdown duty (or restored) on return.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if probe := preflight.ProbeDaemon(cfg); probe.Running {
		return fmt.Errorf("%w (%s)", daemon.ErrAlreadyRunning, probe.Detail)
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("%s-%s-%s.log", logPrefix, startedAt.UTC().Format("20060102T150405Z"), runID[:8]))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	logDependencySnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	binding, err := hardware.Build(signalCtx, cfg, logger, hardware.Options{})
	if err != nil {
		logger.Error("bind hardware", logging.Error(err), logging.String(logging.FieldEventType, "hardware_bind_failed"))
		return err
	}

	sinks := []events.Sink{events.NewLogSink(logger)}
	var hist *runHistory
	if cfg.History.Enabled {
		if hist = openHistory(logger, cfg, runID); hist != nil {
			defer hist.close(logger)
			sinks = append(sinks, hist.journal)
		}
	}

	loopOpts := controlloop.OptionsFromConfig(cfg)
	loopOpts.Sink = events.Multi(sinks...)
	loopOpts.Logger = logger
	loop, err := controlloop.New(binding.Topology, loopOpts)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, loop, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	pidPath := cfg.PIDPath()
	d.OnLocked(func() error {
		if err := writePIDFile(pidPath); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update %s.log link: %v\n", logPrefix, err)
		}
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
			logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logPrefix + "-*.log", Exclude: []string{logPath}},
		)
		if hist != nil {
			hist.begin(signalCtx, logger, cfg, startedAt, opts.ConfigPath)
		}
		return nil
	})
	logger.Info("hddfancontrol daemon starting",
		logging.String(logging.FieldEventType, "daemon_starting"),
		logging.Int("drives", len(cfg.Drives)),
		logging.Int("fans", len(cfg.Fans)),
		logging.Int("groups", len(cfg.Groups)),
		logging.String("log_path", logPath),
	)
	err = d.Run(signalCtx)
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		// lost the lock to an instance started after the probe; its pid file,
		// log pointer and history run are left alone
		return err
	}
	defer removePIDFile(pidPath)
	if err != nil {
		logger.Error("daemon stopped with error", logging.Error(err))
		if rerr := binding.Restore(context.Background(), restoreTimeout); rerr != nil {
			logger.Warn("restore fans after failure", logging.Error(rerr))
		}
		return err
	}
	logger.Info("hddfancontrol daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return nil
}

// runHistory is the journal of one daemon run. The run row is only written
// by begin, after the instance lock is held.
type runHistory struct {
	store   *history.Store
	journal *history.Journal
	runID   string
	begun   bool
}

func openHistory(logger *slog.Logger, cfg *config.Config, runID string) *runHistory {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logging.WarnWithContext(logger, "history journal unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or disable [history]"),
			logging.String(logging.FieldImpact, "events are logged but not journaled"),
		)
		return nil
	}
	return &runHistory{store: store, journal: history.NewJournal(store, runID, logger, 0), runID: runID}
}

func (h *runHistory) begin(ctx context.Context, logger *slog.Logger, cfg *config.Config, startedAt time.Time, configPath string) {
	if cfg.History.RetentionDays > 0 {
		cutoff := startedAt.AddDate(0, 0, -cfg.History.RetentionDays)
		if removed, err := h.store.Prune(ctx, cutoff); err != nil {
			logger.Warn("prune history", logging.Error(err))
		} else if removed > 0 {
			logger.Debug("history pruned", logging.Int("runs", int(removed)))
		}
	}
	if err := h.store.BeginRun(ctx, h.runID, startedAt, configPath); err != nil {
		logging.WarnWithContext(logger, "history journal unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "events are logged but not journaled"),
		)
		// a closed journal ignores further events
		h.journal.Close()
		return
	}
	h.begun = true
}

func (h *runHistory) close(logger *slog.Logger) {
	h.journal.Close()
	if h.begun {
		if err := h.store.EndRun(context.Background(), h.runID, time.Now()); err != nil {
			logger.Warn("close history run", logging.Error(err))
		}
	}
	_ = h.store.Close()
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logPrefix+".log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

// removePIDFile removes path only while it still names this process.
func removePIDFile(path string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		return
	}
	_ = os.Remove(path)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs, logging.Bool(status.Name+"_available", status.Available))
	}
	attrs = append(attrs, logging.Bool("history_enabled", cfg.History.Enabled), logging.Bool("hotplug_enabled", cfg.Hotplug.Enabled))
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, r := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run hddfancontrol check for details"),
		)
	}
}
