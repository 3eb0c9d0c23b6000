package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/deps"
	"hddfancontrol/internal/drive"
)

const hddtempDialTimeout = 3 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckPWMWritable verifies that a PWM attribute exists and that this process
// may write it. The enable attribute is checked too when present.
func CheckPWMWritable(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "pwm path not configured"}
	}
	for _, p := range []string{path, path + "_enable"} {
		if _, err := os.Stat(p); err != nil {
			if p != path && os.IsNotExist(err) {
				continue
			}
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", p, err)}
		}
		if err := unix.Access(p, unix.W_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not writable: %v)", p, err)}
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable)", path)}
}

// CheckDeviceNode verifies that a drive resolves to a block device.
func CheckDeviceNode(name, device string) Result {
	resolved, err := drive.ResolveDevice(device)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", resolved, err)}
	}
	if info.Mode()&os.ModeDevice == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a device node)", resolved)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckHddtemp verifies that the hddtemp daemon accepts connections.
func CheckHddtemp(ctx context.Context, addr string) Result {
	const name = "hddtemp daemon"
	if strings.TrimSpace(addr) == "" {
		return Result{Name: name, Detail: "missing address"}
	}
	dialer := net.Dialer{Timeout: hddtempDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: summarizeDialError(addr, err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: addr + " (reachable)"}
}

// CheckSystemDeps evaluates external tools and kernel support for cfg. Both
// the daemon and the CLI use it so the requirement list lives in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	return append(statuses, deps.CheckDrivetemp(""))
}

func summarizeDialError(addr string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return addr + " (connection timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return addr + " (connection timed out)"
	}
	return fmt.Sprintf("%s (%v)", addr, err)
}
