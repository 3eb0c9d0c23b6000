package events

import (
	"log/slog"

	"hddfancontrol/internal/hw"
	"hddfancontrol/internal/logging"
)

// LogSink renders events as structured log records. Routine ticks are logged
// at debug level; failures and degradation are warnings.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink writing through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.NewComponentLogger(logger, "control")}
}

func (s *LogSink) Emit(e Event) {
	attrs := eventAttrs(e)
	switch e.Kind {
	case KindTickCompleted:
		s.logger.Debug("tick completed", logging.Args(attrs...)...)
	case KindDutyChanged:
		s.logger.Info("duty changed", logging.Args(attrs...)...)
	case KindLoopState:
		s.logger.Info("loop "+e.State, logging.Args(attrs...)...)
	case KindDriveStandby:
		s.logger.Info("drive entered standby", logging.Args(attrs...)...)
	case KindDriveActive:
		s.logger.Info("drive active", logging.Args(attrs...)...)
	case KindSensorRecovered, KindFanRecovered, KindUnitRecovered:
		s.logger.Info(string(e.Kind), logging.Args(attrs...)...)
	case KindSensorFailed:
		logging.WarnWithContext(s.logger, "sensor read failed", string(e.Kind),
			append(attrs, logging.String(logging.FieldErrorHint, sensorHint(e.Err)))...)
	case KindProbeFailed:
		logging.WarnWithContext(s.logger, "power probe failed", string(e.Kind),
			append(attrs, logging.String(logging.FieldImpact, "drive treated per unknown_power_state"))...)
	case KindFanWriteFailed:
		logging.WarnWithContext(s.logger, "pwm write failed", string(e.Kind),
			append(attrs, logging.String(logging.FieldErrorHint, "check pwm path permissions and that the hwmon driver is loaded"))...)
	case KindFanStalled:
		logging.WarnWithContext(s.logger, "fan stalled", string(e.Kind),
			append(attrs,
				logging.Alert("fan_stall"),
				logging.String(logging.FieldErrorHint, "fan reports 0 rpm while driven; check cabling and start value"))...)
	case KindUnitDegraded:
		logging.ErrorWithContext(s.logger, "unit degraded, forcing maximum duty", string(e.Kind),
			append(attrs, logging.Alert("degraded"))...)
	default:
		s.logger.Info(string(e.Kind), logging.Args(attrs...)...)
	}
}

func eventAttrs(e Event) []logging.Attr {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, string(e.Kind))}
	if e.Unit != "" {
		attrs = append(attrs, logging.Unit(e.Unit))
	}
	if e.Tick > 0 {
		attrs = append(attrs, logging.Uint64(logging.FieldTick, e.Tick))
	}
	if e.State != "" && e.Kind != KindLoopState {
		attrs = append(attrs, logging.String("state", e.State))
	}
	if e.Reason != "" {
		attrs = append(attrs, logging.String("reason", e.Reason))
	}
	switch e.Kind {
	case KindDutyChanged:
		attrs = append(attrs, logging.Int("duty", int(e.Duty)), logging.Int("prev_duty", int(e.PrevDuty)))
	case KindTickCompleted, KindUnitDegraded:
		attrs = append(attrs, logging.Int("duty", int(e.Duty)))
	}
	if e.HasTemp {
		attrs = append(attrs, logging.Float64("temp_c", e.Temp.Float()))
	}
	if e.RPM > 0 || e.Kind == KindFanStalled {
		attrs = append(attrs, logging.Int("rpm", e.RPM))
	}
	if e.Failures > 0 {
		attrs = append(attrs, logging.Int("failures", e.Failures))
	}
	if e.Duration > 0 {
		attrs = append(attrs, logging.Duration("duration", e.Duration))
	}
	if e.Err != nil {
		attrs = append(attrs, logging.Error(e.Err), logging.String("error_kind", hw.Kind(e.Err)))
	}
	return attrs
}

func sensorHint(err error) string {
	switch hw.Kind(err) {
	case "timeout":
		return "the read exceeded operation_timeout; the drive or tool may be hung"
	case "parse_error":
		return "tool output was not understood; check the tool version"
	default:
		return "check the device path and that the temperature tool is installed"
	}
}
