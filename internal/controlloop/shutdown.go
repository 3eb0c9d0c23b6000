package controlloop

import (
	"context"

	"hddfancontrol/internal/logging"
)

// applyShutdown leaves the fans in a safe state: the shutdown duty, or the
// settings found at startup when restore is enabled. It uses its own
// deadline since the run context is already done.
func (l *Loop) applyShutdown() {
	l.setState(StateShuttingDown)

	restore := l.opts.RestoreOnExit
	results := fanOut(context.Background(), l.opts.Workers, l.opts.Timeout, len(l.fans), func(i int) func(context.Context) (string, error) {
		f := l.fans[i]
		if restore && f.spec.Restore != nil {
			return exclusive(f.gate, f.spec.ID, func(ctx context.Context) (string, error) {
				return "restored", f.spec.Restore(ctx)
			})
		}
		return exclusive(f.gate, f.spec.ID, func(ctx context.Context) (string, error) {
			_, err := f.spec.Writer.WriteDuty(ctx, l.opts.ShutdownDuty)
			return "shutdown_duty", err
		})
	})
	for i, f := range l.fans {
		r := results[i]
		if r.err != nil {
			logging.ErrorWithContext(l.logger, "failed to apply shutdown posture", "shutdown_write_failed",
				logging.Unit(f.spec.ID),
				logging.Error(r.err),
				logging.String(logging.FieldErrorHint, "set the fan manually; it keeps its last duty"),
			)
			continue
		}
		if r.value == "shutdown_duty" {
			f.applied, f.hasApplied = l.opts.ShutdownDuty, true
		}
		l.logger.Info("fan shutdown posture applied",
			logging.Unit(f.spec.ID),
			logging.String("posture", r.value),
			logging.Int("duty", int(l.opts.ShutdownDuty)),
		)
	}

	l.setState(StateStopped)
	l.publish(l.opts.Now())
}
