package drive

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ResolveDevice follows symlinks such as /dev/disk/by-id/* to the kernel
// device node. Bare names are looked up under /dev and /dev/disk/by-id.
func ResolveDevice(device string) (string, error) {
	return resolveDeviceAt(device, "/dev", "/dev/disk/by-id")
}

func resolveDeviceAt(device, devBase, byIDBase string) (string, error) {
	device = strings.TrimSpace(device)
	if filepath.IsAbs(device) {
		resolved, err := filepath.EvalSymlinks(device)
		if err != nil {
			return "", fmt.Errorf("resolve device %s: %w", device, err)
		}
		return resolved, nil
	}
	candidates := []string{filepath.Join(devBase, device), filepath.Join(byIDBase, device)}
	for _, candidate := range candidates {
		if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
			return resolved, nil
		}
	}
	_, err := filepath.EvalSymlinks(candidates[0])
	return "", fmt.Errorf("resolve device %s: %w", device, err)
}

// KernelName returns the block device name of a device node ("sda" for
// /dev/sda).
func KernelName(devicePath string) string {
	return filepath.Base(devicePath)
}

// runTool runs an external tool and returns its combined output. The exit
// error is returned alongside the output because hdparm and smartctl report
// useful state through non-zero exits.
func runTool(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
