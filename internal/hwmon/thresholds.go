package hwmon

import (
	"context"
	"errors"
	"time"

	"github.com/asecurityteam/rolling"
)

// ThresholdOptions tunes FindThresholds.
type ThresholdOptions struct {
	// Step is the raw PWM decrement/increment per probe.
	Step int
	// Settle is how long to wait after each write before sampling.
	Settle time.Duration
	// Samples is the number of RPM readings averaged per probe.
	Samples        int
	SampleInterval time.Duration
	// Sleep waits between operations; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Progress is called after every probe when set.
	Progress func(raw int, rpm float64)
}

// Thresholds are the measured PWM limits of a fan.
type Thresholds struct {
	// Stop is the lowest raw value that keeps a spinning fan turning.
	Stop int
	// Start is the lowest raw value that spins up a stopped fan.
	Start  int
	MaxRPM float64
}

var ErrNoRotation = errors.New("fan does not spin at full speed")

func (o ThresholdOptions) withDefaults() ThresholdOptions {
	if o.Step <= 0 {
		o.Step = 5
	}
	if o.Settle <= 0 {
		o.Settle = 5 * time.Second
	}
	if o.Samples <= 0 {
		o.Samples = 3
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = time.Second
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FindThresholds ramps the fan down from full speed until it stops, then up
// from zero until it starts again, averaging the tachometer at each step. The
// original settings are restored before returning.
func FindThresholds(ctx context.Context, f *Fan, opts ThresholdOptions) (result Thresholds, err error) {
	if !f.HasRPM() {
		return Thresholds{}, errors.New("fan has no tachometer")
	}
	opts = opts.withDefaults()
	defer func() {
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := f.Restore(restoreCtx); rerr != nil && err == nil {
			err = rerr
		}
	}()

	probe := func(raw int) (float64, error) {
		if err := f.WriteRaw(ctx, raw); err != nil {
			return 0, err
		}
		if err := opts.Sleep(ctx, opts.Settle); err != nil {
			return 0, err
		}
		avg, err := averageRPM(ctx, f, opts)
		if err == nil && opts.Progress != nil {
			opts.Progress(raw, avg)
		}
		return avg, err
	}

	result.MaxRPM, err = probe(rawMax)
	if err != nil {
		return result, err
	}
	if result.MaxRPM == 0 {
		return result, ErrNoRotation
	}

	result.Stop = 0
	for raw := rawMax - opts.Step; raw >= 0; raw -= opts.Step {
		rpm, err := probe(raw)
		if err != nil {
			return result, err
		}
		if rpm == 0 {
			result.Stop = min(raw+opts.Step, rawMax)
			break
		}
	}

	result.Start = rawMax
	for raw := 0; raw <= rawMax; raw += opts.Step {
		rpm, err := probe(raw)
		if err != nil {
			return result, err
		}
		if rpm > 0 {
			result.Start = raw
			break
		}
	}
	return result, nil
}

func averageRPM(ctx context.Context, f *Fan, opts ThresholdOptions) (float64, error) {
	window := rolling.NewPointPolicy(rolling.NewWindow(opts.Samples))
	for i := 0; i < opts.Samples; i++ {
		if i > 0 {
			if err := opts.Sleep(ctx, opts.SampleInterval); err != nil {
				return 0, err
			}
		}
		rpm, err := f.ReadRPM(ctx)
		if err != nil {
			return 0, err
		}
		window.Append(float64(rpm))
	}
	return window.Reduce(rolling.Avg), nil
}
