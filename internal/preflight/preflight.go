package preflight

import (
	"context"

	"hddfancontrol/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	for _, f := range cfg.Fans {
		results = append(results, CheckPWMWritable("Fan "+f.ID, f.PWM))
	}

	checkedHddtemp := map[string]bool{}
	for _, d := range cfg.Drives {
		results = append(results, CheckDeviceNode("Drive "+d.ID, d.Device))
		// auto selection only falls back to hddtemp, so only explicit use is checked
		if d.TempMethod == "hddtemp" && !checkedHddtemp[d.HddtempAddr] {
			checkedHddtemp[d.HddtempAddr] = true
			results = append(results, CheckHddtemp(ctx, d.HddtempAddr))
		}
	}
	return results
}

// Failed filters results down to the failures.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
