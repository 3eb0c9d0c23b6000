package drive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"hddfancontrol/internal/hw"
	"hddfancontrol/internal/hwmon"
)

var nvmeNamespace = regexp.MustCompile(`^(nvme\d+)n\d+$`)

// DrivetempReader reads the hwmon temperature exposed for a block device by
// the drivetemp (SATA) or nvme drivers. The hwmon directory is looked up on
// every read since its index changes when the driver rebinds.
type DrivetempReader struct {
	ID      string
	Device  string
	SysRoot string
}

var errNoHwmon = errors.New("no hwmon temperature input")

func (r *DrivetempReader) ReadTemp(ctx context.Context) (hw.Temp, error) {
	path, err := r.InputPath()
	if err != nil {
		return 0, hw.Wrap(hw.ErrUnreadable, r.ID, "drivetemp", err)
	}
	return hwmon.NewTempInput(r.ID, path).ReadTemp(ctx)
}

// InputPath locates the temperature attribute for the device.
func (r *DrivetempReader) InputPath() (string, error) {
	root := r.SysRoot
	if root == "" {
		root = "/sys"
	}
	name := KernelName(r.Device)
	patterns := []string{filepath.Join(root, "class/block", name, "device/hwmon/hwmon*/temp*_input")}
	if m := nvmeNamespace.FindStringSubmatch(name); m != nil {
		patterns = append(patterns, filepath.Join(root, "class/nvme", m[1], "hwmon*/temp*_input"))
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		return preferTemp1(matches), nil
	}
	return "", fmt.Errorf("%w for %s", errNoHwmon, name)
}

// preferTemp1 picks temp1_input (the composite temperature) when present.
func preferTemp1(paths []string) string {
	sort.Strings(paths)
	for _, p := range paths {
		if strings.HasSuffix(p, "/temp1_input") {
			return p
		}
	}
	return paths[0]
}
