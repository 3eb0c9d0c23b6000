package drive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"

	"hddfancontrol/internal/hw"
)

// HdparmProber runs `hdparm -C`, which issues CHECK POWER MODE and does not
// spin the drive up.
type HdparmProber struct {
	ID     string
	Device string
	Binary string
}

func (p *HdparmProber) ProbePower(ctx context.Context) (hw.PowerState, error) {
	binary := p.Binary
	if binary == "" {
		binary = "hdparm"
	}
	out, runErr := runTool(ctx, binary, "-C", p.Device)
	if ctx.Err() != nil {
		return hw.PowerUnknown, hw.Wrap(hw.ErrTimeout, p.ID, "hdparm -C", ctx.Err())
	}
	state, err := ParseHdparmState(out)
	if err != nil {
		if runErr != nil {
			err = errors.Join(err, runErr)
		}
		return hw.PowerUnknown, hw.Wrap(hw.ErrProbeUnavailable, p.ID, "hdparm -C", err)
	}
	return state, nil
}

var errNoStateLine = errors.New(`no "drive state is" line`)

// ParseHdparmState reads the output of `hdparm -C`.
func ParseHdparmState(out []byte) (hw.PowerState, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(strings.ToLower(line), "drive state is:")
		if idx < 0 {
			continue
		}
		value := strings.ToLower(strings.TrimSpace(line[idx+len("drive state is:"):]))
		switch {
		case strings.Contains(value, "standby"),
			strings.Contains(value, "sleeping"),
			strings.Contains(value, "spindown"):
			return hw.PowerStandby, nil
		case strings.Contains(value, "active"),
			strings.Contains(value, "idle"),
			strings.Contains(value, "spinup"):
			return hw.PowerActive, nil
		default:
			return hw.PowerUnknown, errors.New("drive reports state " + value)
		}
	}
	return hw.PowerUnknown, errNoStateLine
}

// NoProber is used for drives configured without a power probe. Every probe
// reports PowerUnknown; the loop's unknown-state policy decides what that
// means.
type NoProber struct {
	ID string
}

func (p NoProber) ProbePower(context.Context) (hw.PowerState, error) {
	return hw.PowerUnknown, hw.Wrap(hw.ErrProbeUnavailable, p.ID, "no power probe configured", nil)
}
