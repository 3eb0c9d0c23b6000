package drive

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"hddfancontrol/internal/hw"
)

// Methods in the order automatic selection tries them.
const (
	MethodDrivetemp = "drivetemp"
	MethodHdparm    = "hdparm"
	MethodSmartctl  = "smartctl"
	MethodHddtemp   = "hddtemp"
	MethodAuto      = "auto"
)

// ReaderOptions carries what the readers need besides the device.
type ReaderOptions struct {
	ID          string
	Device      string
	HddtempAddr string
	SysRoot     string
	// ProbeTimeout bounds each trial read during automatic selection.
	ProbeTimeout time.Duration
}

// NewTempReader builds the reader for method and returns the method actually
// chosen. Automatic selection prefers drivetemp, then `hdparm -H` when it
// answers, then smartctl, then the hddtemp daemon when reachable.
func NewTempReader(ctx context.Context, method string, opts ReaderOptions) (hw.TempReader, string, error) {
	switch method {
	case MethodDrivetemp:
		return &DrivetempReader{ID: opts.ID, Device: opts.Device, SysRoot: opts.SysRoot}, method, nil
	case MethodHdparm:
		return &HdparmTempReader{ID: opts.ID, Device: opts.Device}, method, nil
	case MethodSmartctl:
		return &SmartctlReader{ID: opts.ID, Device: opts.Device}, method, nil
	case MethodHddtemp:
		return &HddtempReader{ID: opts.ID, Device: opts.Device, Address: opts.HddtempAddr}, method, nil
	case MethodAuto, "":
		return autoSelect(ctx, opts)
	default:
		return nil, "", fmt.Errorf("unknown temperature method %q", method)
	}
}

func autoSelect(ctx context.Context, opts ReaderOptions) (hw.TempReader, string, error) {
	dt := &DrivetempReader{ID: opts.ID, Device: opts.Device, SysRoot: opts.SysRoot}
	if _, err := dt.InputPath(); err == nil {
		return dt, MethodDrivetemp, nil
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	trial := func(r hw.TempReader) bool {
		_, err := hw.Call(ctx, timeout, r.ReadTemp)
		return err == nil
	}
	if _, err := exec.LookPath("hdparm"); err == nil {
		if r := (&HdparmTempReader{ID: opts.ID, Device: opts.Device}); trial(r) {
			return r, MethodHdparm, nil
		}
	}
	if _, err := exec.LookPath("smartctl"); err == nil {
		return &SmartctlReader{ID: opts.ID, Device: opts.Device}, MethodSmartctl, nil
	}
	if opts.HddtempAddr != "" {
		if r := (&HddtempReader{ID: opts.ID, Device: opts.Device, Address: opts.HddtempAddr}); trial(r) {
			return r, MethodHddtemp, nil
		}
	}
	return nil, "", fmt.Errorf("%s: no usable temperature method (drivetemp, hdparm, smartctl, hddtemp)", opts.ID)
}

// NewPowerProber builds the configured power probe.
func NewPowerProber(kind, id, device string) (hw.PowerProber, error) {
	switch kind {
	case "hdparm", "":
		return &HdparmProber{ID: id, Device: device}, nil
	case "ata":
		return &ATAProber{ID: id, Device: device}, nil
	case "none":
		return NoProber{ID: id}, nil
	default:
		return nil, fmt.Errorf("unknown power probe %q", kind)
	}
}
