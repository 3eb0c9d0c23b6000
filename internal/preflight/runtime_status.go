package preflight

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"hddfancontrol/internal/config"
)

// DaemonProbe reports whether a daemon instance holds the lock.
type DaemonProbe struct {
	Running bool
	PID     int
	Detail  string
}

// ProbeDaemon checks the instance lock without disturbing a running daemon.
// A free lock is taken and released immediately.
func ProbeDaemon(cfg *config.Config) DaemonProbe {
	if cfg == nil {
		return DaemonProbe{Detail: "Unknown"}
	}
	if _, err := os.Stat(cfg.LockPath()); errors.Is(err, os.ErrNotExist) {
		return DaemonProbe{Detail: "Not running"}
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryRLock()
	if err != nil {
		return DaemonProbe{Detail: fmt.Sprintf("lock check failed: %v", err)}
	}
	if locked {
		_ = lock.Unlock()
		return DaemonProbe{Detail: "Not running"}
	}
	probe := DaemonProbe{Running: true, Detail: "Running"}
	if raw, err := os.ReadFile(cfg.PIDPath()); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(raw))); err == nil {
			probe.PID = pid
			probe.Detail = fmt.Sprintf("Running (pid %d)", pid)
		}
	}
	return probe
}
