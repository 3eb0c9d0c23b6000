package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"hddfancontrol/internal/config"
)

// Requirement defines an external tool the daemon may run.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Requirements lists the tools cfg relies on. A tool becomes mandatory once a
// drive names it explicitly; under automatic selection it is optional.
func Requirements(cfg *config.Config) []Requirement {
	hdparm := Requirement{Name: "hdparm", Command: "hdparm", Description: "Power state probe and temperature fallback", Optional: true}
	smartctl := Requirement{Name: "smartctl", Command: "smartctl", Description: "SMART temperature fallback", Optional: true}
	if cfg != nil {
		for _, d := range cfg.Drives {
			if d.PowerProbe == "hdparm" || d.TempMethod == "hdparm" {
				hdparm.Optional = false
			}
			if d.TempMethod == "smartctl" {
				smartctl.Optional = false
			}
		}
	}
	return []Requirement{hdparm, smartctl}
}

// CheckDrivetemp reports whether the drivetemp kernel module is loaded.
// sysRoot replaces /sys when non-empty.
func CheckDrivetemp(sysRoot string) Status {
	if sysRoot == "" {
		sysRoot = "/sys"
	}
	path := filepath.Join(sysRoot, "module", "drivetemp")
	status := Status{
		Name:        "drivetemp",
		Command:     path,
		Description: "Kernel hwmon driver for SATA drive temperatures",
		Optional:    true,
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		status.Available = true
		return status
	}
	status.Detail = "module not loaded (modprobe drivetemp)"
	return status
}
