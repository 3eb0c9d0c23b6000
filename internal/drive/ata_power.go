package drive

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"hddfancontrol/internal/hw"
)

const (
	sgIO           = 0x2285
	sgDxferNone    = -1
	sgInterfaceID  = 'S'
	sgTimeoutMS    = 5000
	senseLen       = 32
	ataPassThru16  = 0x85
	ataCheckPower  = 0xe5
	protoNonData   = 3 << 1
	checkCondition = 0x20
)

// sgIOHdr mirrors struct sg_io_hdr from <scsi/sg.h>.
type sgIOHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         unsafe.Pointer
	cmdp           unsafe.Pointer
	sbp            unsafe.Pointer
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         unsafe.Pointer
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

// ATAProber issues ATA CHECK POWER MODE through an ATA PASS-THROUGH(16) SCSI
// command. It needs read access to the device node and works for SATA drives
// behind libata.
type ATAProber struct {
	ID     string
	Device string
}

func (p *ATAProber) ProbePower(ctx context.Context) (hw.PowerState, error) {
	if err := ctx.Err(); err != nil {
		return hw.PowerUnknown, err
	}
	fd, err := unix.Open(p.Device, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return hw.PowerUnknown, hw.Wrap(hw.ErrProbeUnavailable, p.ID, "open "+p.Device, err)
	}
	defer unix.Close(fd)

	cdb := [16]byte{0: ataPassThru16, 1: protoNonData, 2: checkCondition, 14: ataCheckPower}
	var sense [senseLen]byte
	hdr := sgIOHdr{
		interfaceID:    sgInterfaceID,
		dxferDirection: sgDxferNone,
		cmdLen:         uint8(len(cdb)),
		mxSbLen:        senseLen,
		cmdp:           unsafe.Pointer(&cdb[0]),
		sbp:            unsafe.Pointer(&sense[0]),
		timeout:        sgTimeoutMS,
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), sgIO, uintptr(unsafe.Pointer(&hdr)))
	runtime.KeepAlive(&cdb)
	runtime.KeepAlive(&sense)
	if errno != 0 {
		return hw.PowerUnknown, hw.Wrap(hw.ErrProbeUnavailable, p.ID, "SG_IO", errno)
	}
	state, err := ParsePowerModeSense(sense[:hdr.sbLenWr])
	if err != nil {
		return hw.PowerUnknown, hw.Wrap(hw.ErrProbeUnavailable, p.ID, "CHECK POWER MODE", err)
	}
	return state, nil
}

// ParsePowerModeSense extracts the CHECK POWER MODE count register from the
// sense data returned with CK_COND set and maps it to a power state.
func ParsePowerModeSense(sense []byte) (hw.PowerState, error) {
	if len(sense) < 1 {
		return hw.PowerUnknown, errors.New("no sense data")
	}
	var count byte
	switch sense[0] & 0x7f {
	case 0x72, 0x73:
		// descriptor format: ATA Status Return descriptor (0x09) follows the header
		if len(sense) < 8+14 || sense[8] != 0x09 {
			return hw.PowerUnknown, fmt.Errorf("unexpected sense descriptor % x", sense)
		}
		count = sense[8+5]
	case 0x70, 0x71:
		if len(sense) < 7 {
			return hw.PowerUnknown, fmt.Errorf("short fixed sense % x", sense)
		}
		count = sense[6]
	default:
		return hw.PowerUnknown, fmt.Errorf("unsupported sense response code %#x", sense[0])
	}
	return PowerModeState(count), nil
}

// PowerModeState maps a CHECK POWER MODE count value.
func PowerModeState(count byte) hw.PowerState {
	switch count {
	case 0x00, 0x01, 0x40:
		return hw.PowerStandby
	default:
		return hw.PowerActive
	}
}
