package hwmon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"hddfancontrol/internal/hw"
)

const (
	rawMax        = 255
	enableManual  = 1
	rpmDisabledID = "none"
)

var pwmName = regexp.MustCompile(`^pwm(\d+)$`)

// FanOptions configures a PWM output.
type FanOptions struct {
	PWMPath string
	// RPMPath overrides the tachometer path. Empty resolves fanN_input next to
	// pwmN; "none" disables read-back.
	RPMPath   string
	Start     int
	Stop      int
	NeverStop bool
}

type savedSettings struct {
	pwm    int64
	enable int64
	// hasEnable is false for channels without a pwmN_enable attribute.
	hasEnable bool
}

// Fan is one hwmon PWM channel.
type Fan struct {
	id         string
	pwmPath    string
	enablePath string
	rpmPath    string
	start      int
	stop       int
	neverStop  bool
	saved      savedSettings

	mu     sync.Mutex
	manual bool
}

// OpenFan checks the channel and records its current settings so Restore can
// put them back. It does not write anything.
func OpenFan(id string, opts FanOptions) (*Fan, error) {
	pwmPath := filepath.Clean(opts.PWMPath)
	value, err := readInt(pwmPath)
	if err != nil {
		return nil, hw.Wrap(hw.ErrWrite, id, "open "+pwmPath, err)
	}
	f := &Fan{
		id:         id,
		pwmPath:    pwmPath,
		enablePath: pwmPath + "_enable",
		start:      opts.Start,
		stop:       opts.Stop,
		neverStop:  opts.NeverStop,
		saved:      savedSettings{pwm: value},
	}
	if enable, err := readInt(f.enablePath); err == nil {
		f.saved.enable = enable
		f.saved.hasEnable = true
		f.manual = enable == enableManual
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, hw.Wrap(hw.ErrWrite, id, "read "+f.enablePath, err)
	}

	switch rpm := strings.TrimSpace(opts.RPMPath); rpm {
	case rpmDisabledID:
	case "":
		f.rpmPath = ResolveRPMPath(pwmPath)
	default:
		f.rpmPath = rpm
	}
	return f, nil
}

// ResolveRPMPath returns the fanN_input matching pwmN, or "" when absent.
func ResolveRPMPath(pwmPath string) string {
	m := pwmName.FindStringSubmatch(filepath.Base(pwmPath))
	if m == nil {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(pwmPath), "fan"+m[1]+"_input")
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

func (f *Fan) ID() string      { return f.id }
func (f *Fan) PWMPath() string { return f.pwmPath }
func (f *Fan) HasRPM() bool    { return f.rpmPath != "" }

// RawFor maps a duty onto the raw PWM scale. Zero duty stops the fan unless
// NeverStop is set; any other duty lands between the stop value and 255.
func (f *Fan) RawFor(duty hw.Duty) int {
	duty = duty.Clamp(hw.MinDuty, hw.MaxDuty)
	if duty == 0 {
		if f.neverStop {
			return f.stop
		}
		return 0
	}
	return f.stop + (rawMax-f.stop)*int(duty)/100
}

// WriteDuty commands duty. A fan reading 0 RPM whose target lies below the
// start value receives the start value first and the result is marked Boosted.
func (f *Fan) WriteDuty(ctx context.Context, duty hw.Duty) (hw.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureManual(ctx); err != nil {
		return hw.WriteResult{}, err
	}

	raw := f.RawFor(duty)
	boosted := false
	if raw > 0 && raw < f.start && f.rpmPath != "" {
		if rpm, err := readInt(f.rpmPath); err == nil && rpm == 0 {
			raw = f.start
			boosted = true
		}
	}
	if err := f.writeRaw(ctx, raw); err != nil {
		return hw.WriteResult{}, err
	}
	return hw.WriteResult{Raw: raw, Boosted: boosted}, nil
}

// WriteRaw writes a raw 0-255 value, bypassing the duty mapping.
func (f *Fan) WriteRaw(ctx context.Context, raw int) error {
	if raw < 0 || raw > rawMax {
		return hw.Wrap(hw.ErrWrite, f.id, fmt.Sprintf("raw value %d out of range", raw), nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureManual(ctx); err != nil {
		return err
	}
	return f.writeRaw(ctx, raw)
}

func (f *Fan) writeRaw(ctx context.Context, raw int) error {
	if err := writeSysfs(ctx, f.pwmPath, fmt.Sprint(raw)); err != nil {
		f.manual = false
		return hw.Wrap(hw.ErrWrite, f.id, "write "+f.pwmPath, err)
	}
	return nil
}

func (f *Fan) ensureManual(ctx context.Context) error {
	if !f.saved.hasEnable {
		return nil
	}
	if f.manual {
		if current, err := readInt(f.enablePath); err == nil && current == enableManual {
			return nil
		}
	}
	if err := writeSysfs(ctx, f.enablePath, fmt.Sprint(enableManual)); err != nil {
		return hw.Wrap(hw.ErrWrite, f.id, "enable manual control", err)
	}
	f.manual = true
	return nil
}

// ReadRPM reads the tachometer.
func (f *Fan) ReadRPM(ctx context.Context) (int, error) {
	if f.rpmPath == "" {
		return 0, hw.Wrap(hw.ErrUnreadable, f.id, "no tachometer", nil)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rpm, err := readInt(f.rpmPath)
	if err != nil {
		return 0, hw.Wrap(hw.ErrUnreadable, f.id, "read "+f.rpmPath, err)
	}
	return int(rpm), nil
}

// Restore writes back the pwm and enable values seen by OpenFan.
func (f *Fan) Restore(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved.hasEnable && f.saved.enable != enableManual {
		// automatic modes ignore the pwm value, so only the mode is restored
		if err := writeSysfs(ctx, f.enablePath, fmt.Sprint(f.saved.enable)); err != nil {
			return hw.Wrap(hw.ErrWrite, f.id, "restore enable", err)
		}
		f.manual = false
		return nil
	}
	if err := writeSysfs(ctx, f.pwmPath, fmt.Sprint(f.saved.pwm)); err != nil {
		return hw.Wrap(hw.ErrWrite, f.id, "restore pwm", err)
	}
	return nil
}
