package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"hddfancontrol/internal/hw"
)

// HddtempReader queries a running hddtemp daemon over TCP. The daemon answers
// every connection with all of its drives as |dev|model|temp|unit| records.
type HddtempReader struct {
	ID      string
	Device  string
	Address string
}

// HddtempRecord is one drive entry from the daemon.
type HddtempRecord struct {
	Device string
	Model  string
	Value  string
	Unit   string
}

func (r *HddtempReader) ReadTemp(ctx context.Context) (hw.Temp, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", r.Address)
	if err != nil {
		return 0, hw.Wrap(hw.ErrUnreadable, r.ID, "dial hddtemp "+r.Address, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	payload, err := io.ReadAll(conn)
	if err != nil {
		if ctx.Err() != nil {
			return 0, hw.Wrap(hw.ErrTimeout, r.ID, "read hddtemp", err)
		}
		return 0, hw.Wrap(hw.ErrUnreadable, r.ID, "read hddtemp", err)
	}
	records := ParseHddtemp(string(payload))
	for _, rec := range records {
		if sameDevice(rec.Device, r.Device) {
			return rec.Temp(r.ID)
		}
	}
	return 0, hw.Wrap(hw.ErrUnreadable, r.ID, "hddtemp", fmt.Errorf("daemon does not report %s", r.Device))
}

// ParseHddtemp splits a daemon response into records.
func ParseHddtemp(payload string) []HddtempRecord {
	fields := strings.Split(payload, "|")
	var records []HddtempRecord
	// the payload starts and ends with "|" and records are joined by "||"
	for offset := 1; offset+3 < len(fields); offset += 5 {
		records = append(records, HddtempRecord{
			Device: fields[offset],
			Model:  fields[offset+1],
			Value:  fields[offset+2],
			Unit:   fields[offset+3],
		})
	}
	return records
}

// Temp converts the record value. SLP means the daemon saw the drive asleep.
func (rec HddtempRecord) Temp(id string) (hw.Temp, error) {
	switch strings.ToUpper(rec.Value) {
	case "SLP":
		return 0, hw.Wrap(hw.ErrDeviceAsleep, id, "hddtemp", nil)
	case "UNK", "NA", "ERR", "NOS":
		return 0, hw.Wrap(hw.ErrUnreadable, id, "hddtemp", errors.New("daemon reports "+rec.Value))
	}
	value, err := strconv.ParseFloat(rec.Value, 64)
	if err != nil {
		return 0, hw.Wrap(hw.ErrParse, id, "hddtemp", err)
	}
	if strings.EqualFold(rec.Unit, "F") {
		value = (value - 32) * 5 / 9
	}
	return hw.Celsius(value), nil
}

func sameDevice(reported, configured string) bool {
	if reported == configured {
		return true
	}
	return KernelName(reported) == KernelName(configured)
}
