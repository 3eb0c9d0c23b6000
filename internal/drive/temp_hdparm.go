package drive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	"hddfancontrol/internal/hw"
)

// HdparmTempReader uses `hdparm -H`, supported by Hitachi/HGST drives, which
// answers without spinning the drive up.
type HdparmTempReader struct {
	ID     string
	Device string
	Binary string
}

func (r *HdparmTempReader) ReadTemp(ctx context.Context) (hw.Temp, error) {
	binary := r.Binary
	if binary == "" {
		binary = "hdparm"
	}
	out, runErr := runTool(ctx, binary, "-H", r.Device)
	if ctx.Err() != nil {
		return 0, hw.Wrap(hw.ErrTimeout, r.ID, "hdparm -H", ctx.Err())
	}
	temp, err := ParseHdparmTemp(out)
	if err != nil {
		if runErr != nil {
			return 0, hw.Wrap(hw.ErrUnreadable, r.ID, "hdparm -H", errors.Join(err, runErr))
		}
		return 0, hw.Wrap(hw.ErrParse, r.ID, "hdparm -H", err)
	}
	return temp, nil
}

const hdparmTempPrefix = "drive temperature (celsius) is:"

// ParseHdparmTemp reads the output of `hdparm -H`.
func ParseHdparmTemp(out []byte) (hw.Temp, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToLower(line), hdparmTempPrefix) {
			continue
		}
		value := strings.TrimSpace(line[len(hdparmTempPrefix):])
		celsius, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, err
		}
		return hw.Celsius(celsius), nil
	}
	return 0, errors.New("no temperature line in hdparm output")
}
