package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"hddfancontrol/internal/hw"
)

// smartctl exit status bits
const (
	smartBitCmdLine = 1 << 0
	smartBitOpen    = 1 << 1
)

// SmartctlReader runs `smartctl -n standby -A --json`. The -n standby flag makes
// smartctl skip drives that are spun down instead of waking them.
type SmartctlReader struct {
	ID     string
	Device string
	Binary string
}

type smartctlReport struct {
	Smartctl struct {
		ExitStatus int `json:"exit_status"`
		Messages   []struct {
			String   string `json:"string"`
			Severity string `json:"severity"`
		} `json:"messages"`
	} `json:"smartctl"`
	PowerMode   string `json:"power_mode"`
	Temperature *struct {
		Current *int `json:"current"`
	} `json:"temperature"`
}

func (r *SmartctlReader) ReadTemp(ctx context.Context) (hw.Temp, error) {
	binary := r.Binary
	if binary == "" {
		binary = "smartctl"
	}
	out, runErr := runTool(ctx, binary, "-n", "standby", "-A", "--json=c", r.Device)
	if ctx.Err() != nil {
		return 0, hw.Wrap(hw.ErrTimeout, r.ID, "smartctl", ctx.Err())
	}
	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	} else if runErr != nil {
		return 0, hw.Wrap(hw.ErrUnreadable, r.ID, "smartctl", runErr)
	}
	return ParseSmartctl(r.ID, out, exitCode)
}

// ParseSmartctl interprets smartctl JSON output and its exit code.
func ParseSmartctl(id string, out []byte, exitCode int) (hw.Temp, error) {
	var report smartctlReport
	if err := json.Unmarshal(out, &report); err != nil {
		if exitCode&smartBitOpen != 0 && asleepText(out) {
			return 0, hw.Wrap(hw.ErrDeviceAsleep, id, "smartctl", nil)
		}
		return 0, hw.Wrap(hw.ErrParse, id, "smartctl", err)
	}
	if report.Temperature != nil && report.Temperature.Current != nil {
		return hw.Celsius(float64(*report.Temperature.Current)), nil
	}
	if exitCode&smartBitOpen != 0 {
		for _, m := range report.Smartctl.Messages {
			if asleepText([]byte(m.String)) {
				return 0, hw.Wrap(hw.ErrDeviceAsleep, id, "smartctl", nil)
			}
		}
		if asleepText([]byte(report.PowerMode)) {
			return 0, hw.Wrap(hw.ErrDeviceAsleep, id, "smartctl", nil)
		}
	}
	if exitCode&(smartBitCmdLine|smartBitOpen) != 0 {
		return 0, hw.Wrap(hw.ErrUnreadable, id, "smartctl", fmt.Errorf("exit status %d", exitCode))
	}
	return 0, hw.Wrap(hw.ErrParse, id, "smartctl", errors.New("report has no temperature"))
}

func asleepText(b []byte) bool {
	upper := bytes.ToUpper(b)
	return bytes.Contains(upper, []byte("STANDBY")) || bytes.Contains(upper, []byte("SLEEP"))
}
