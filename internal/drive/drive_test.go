package drive

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"hddfancontrol/internal/hw"
	"hddfancontrol/internal/testsupport"
)

func TestParseHdparmState(t *testing.T) {
	cases := []struct {
		out  string
		want hw.PowerState
		err  bool
	}{
		{"\n/dev/sda:\n drive state is:  active/idle\n", hw.PowerActive, false},
		{"\n/dev/sda:\n drive state is:  standby\n", hw.PowerStandby, false},
		{"\n/dev/sdb:\n drive state is:  sleeping\n", hw.PowerStandby, false},
		{"\n/dev/sdc:\n drive state is:  idle_b\n", hw.PowerActive, false},
		{"\n/dev/sdc:\n drive state is:  NVcache_spindown\n", hw.PowerStandby, false},
		{"\n/dev/sdd:\n drive state is:  unknown\n", hw.PowerUnknown, true},
		{"/dev/sde: No such file or directory\n", hw.PowerUnknown, true},
	}
	for _, tc := range cases {
		got, err := ParseHdparmState([]byte(tc.out))
		if got != tc.want || (err != nil) != tc.err {
			t.Errorf("ParseHdparmState(%q) = %v, %v", tc.out, got, err)
		}
	}
}

func TestHdparmProberRunsTool(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "bin")
	script := testsupport.StubBinary(t, bin, "hdparm-standby", `printf '\n%s:\n drive state is:  standby\n' "$2"`)
	p := &HdparmProber{ID: "sda", Device: "/dev/sda", Binary: script}
	state, err := p.ProbePower(context.Background())
	if err != nil || state != hw.PowerStandby {
		t.Fatalf("ProbePower = %v, %v", state, err)
	}

	failing := testsupport.StubBinary(t, bin, "hdparm-missing", `echo "$2: No such file or directory"; exit 2`)
	p = &HdparmProber{ID: "sdz", Device: "/dev/sdz", Binary: failing}
	state, err = p.ProbePower(context.Background())
	if state != hw.PowerUnknown || !errors.Is(err, hw.ErrProbeUnavailable) {
		t.Fatalf("failing probe = %v, %v", state, err)
	}
}

func TestNoProberReportsUnknown(t *testing.T) {
	state, err := NoProber{ID: "nvme0"}.ProbePower(context.Background())
	if state != hw.PowerUnknown || !errors.Is(err, hw.ErrProbeUnavailable) {
		t.Fatalf("got %v, %v", state, err)
	}
}

func TestParsePowerModeSense(t *testing.T) {
	descriptor := func(count byte) []byte {
		s := make([]byte, 22)
		s[0] = 0x72
		s[7] = 14
		s[8] = 0x09
		s[9] = 0x0c
		s[13] = count
		return s
	}
	cases := []struct {
		sense []byte
		want  hw.PowerState
	}{
		{descriptor(0x00), hw.PowerStandby},
		{descriptor(0x40), hw.PowerStandby},
		{descriptor(0x80), hw.PowerActive},
		{descriptor(0xff), hw.PowerActive},
		{[]byte{0x70, 0, 0, 0, 0, 0, 0x00}, hw.PowerStandby},
		{[]byte{0x70, 0, 0, 0, 0, 0, 0xff}, hw.PowerActive},
	}
	for _, tc := range cases {
		got, err := ParsePowerModeSense(tc.sense)
		if err != nil || got != tc.want {
			t.Errorf("ParsePowerModeSense(% x) = %v, %v", tc.sense, got, err)
		}
	}
	if _, err := ParsePowerModeSense(nil); err == nil {
		t.Fatal("expected error for empty sense")
	}
	if _, err := ParsePowerModeSense([]byte{0x72, 0, 0, 0, 0, 0, 0, 0, 0x01}); err == nil {
		t.Fatal("expected error for foreign descriptor")
	}
}

func TestParseHdparmTemp(t *testing.T) {
	out := "\n/dev/sda:\n drive temperature (celsius) is:  38\n drive temperature in range:  yes\n"
	got, err := ParseHdparmTemp([]byte(out))
	if err != nil || got != 380 {
		t.Fatalf("ParseHdparmTemp = %v, %v", got, err)
	}
	if _, err := ParseHdparmTemp([]byte("SG_IO: bad/missing sense data")); err == nil {
		t.Fatal("expected error")
	}
}

func TestHdparmTempReaderClassifiesUnsupportedDrive(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "bin")
	script := testsupport.StubBinary(t, bin, "hdparm-h", `echo "SG_IO: bad/missing sense data"; exit 5`)
	r := &HdparmTempReader{ID: "sda", Device: "/dev/sda", Binary: script}
	if _, err := r.ReadTemp(context.Background()); !errors.Is(err, hw.ErrUnreadable) {
		t.Fatalf("expected unreadable, got %v", err)
	}
}

func TestParseSmartctl(t *testing.T) {
	ok := `{"smartctl":{"exit_status":0},"temperature":{"current":41}}`
	if got, err := ParseSmartctl("sda", []byte(ok), 0); err != nil || got != 410 {
		t.Fatalf("ok report = %v, %v", got, err)
	}
	// SMART threshold bits do not hide a valid temperature
	if got, err := ParseSmartctl("sda", []byte(ok), 0x40); err != nil || got != 410 {
		t.Fatalf("warning report = %v, %v", got, err)
	}

	asleep := `{"smartctl":{"exit_status":2,"messages":[{"string":"Device is in STANDBY mode, exit(2)","severity":"information"}]}}`
	if _, err := ParseSmartctl("sda", []byte(asleep), 2); !errors.Is(err, hw.ErrDeviceAsleep) {
		t.Fatalf("expected asleep, got %v", err)
	}
	if _, err := ParseSmartctl("sda", []byte("Device is in STANDBY mode, exit(2)\n"), 2); !errors.Is(err, hw.ErrDeviceAsleep) {
		t.Fatalf("expected asleep for plain text, got %v", err)
	}

	openFailed := `{"smartctl":{"exit_status":2,"messages":[{"string":"Smartctl open device: /dev/sdz failed: No such device","severity":"error"}]}}`
	if _, err := ParseSmartctl("sdz", []byte(openFailed), 2); !errors.Is(err, hw.ErrUnreadable) {
		t.Fatalf("expected unreadable, got %v", err)
	}
	if _, err := ParseSmartctl("sda", []byte(`{"smartctl":{"exit_status":0}}`), 0); !errors.Is(err, hw.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if _, err := ParseSmartctl("sda", []byte("garbage"), 0); !errors.Is(err, hw.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestParseHddtemp(t *testing.T) {
	payload := "|/dev/sda|WDC WD40EFRX|38|C||/dev/sdb|ST4000VN008|SLP|*||/dev/sdc|HGST|104|F|"
	records := ParseHddtemp(payload)
	if len(records) != 3 {
		t.Fatalf("records = %+v", records)
	}
	if got, err := records[0].Temp("sda"); err != nil || got != 380 {
		t.Fatalf("sda = %v, %v", got, err)
	}
	if _, err := records[1].Temp("sdb"); !errors.Is(err, hw.ErrDeviceAsleep) {
		t.Fatalf("sdb = %v", err)
	}
	if got, err := records[2].Temp("sdc"); err != nil || got != 400 {
		t.Fatalf("sdc = %v, %v", got, err)
	}
	if _, err := (HddtempRecord{Value: "UNK"}).Temp("x"); !errors.Is(err, hw.ErrUnreadable) {
		t.Fatalf("UNK = %v", err)
	}
}

func TestHddtempReaderQueriesDaemon(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("|/dev/sda|WDC|36|C||/dev/sdb|ST|SLP|*|"))
			conn.Close()
		}
	}()

	r := &HddtempReader{ID: "sda", Device: "/dev/sda", Address: ln.Addr().String()}
	if got, err := r.ReadTemp(context.Background()); err != nil || got != 360 {
		t.Fatalf("sda = %v, %v", got, err)
	}
	r = &HddtempReader{ID: "sdb", Device: "sdb", Address: ln.Addr().String()}
	if _, err := r.ReadTemp(context.Background()); !errors.Is(err, hw.ErrDeviceAsleep) {
		t.Fatalf("sdb = %v", err)
	}
	r = &HddtempReader{ID: "sdx", Device: "/dev/sdx", Address: ln.Addr().String()}
	if _, err := r.ReadTemp(context.Background()); !errors.Is(err, hw.ErrUnreadable) {
		t.Fatalf("sdx = %v", err)
	}
}

func TestDrivetempReaderFindsHwmon(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "class/block/sda/device/hwmon/hwmon4")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, value := range map[string]string{"temp1_input": "39000\n", "temp2_input": "20000\n"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	r := &DrivetempReader{ID: "sda", Device: "/dev/sda", SysRoot: root}
	if got, err := r.ReadTemp(context.Background()); err != nil || got != 390 {
		t.Fatalf("ReadTemp = %v, %v", got, err)
	}

	missing := &DrivetempReader{ID: "sdb", Device: "/dev/sdb", SysRoot: root}
	if _, err := missing.ReadTemp(context.Background()); !errors.Is(err, hw.ErrUnreadable) {
		t.Fatalf("expected unreadable, got %v", err)
	}
}

func TestDrivetempReaderNVMeController(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "class/nvme/nvme0/hwmon2")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "temp1_input"), []byte("45850\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := &DrivetempReader{ID: "nvme", Device: "/dev/nvme0n1", SysRoot: root}
	if got, err := r.ReadTemp(context.Background()); err != nil || got != 459 {
		t.Fatalf("ReadTemp = %v, %v", got, err)
	}
}

func TestResolveDeviceFollowsByIDLinks(t *testing.T) {
	dev := t.TempDir()
	byID := filepath.Join(dev, "disk", "by-id")
	if err := os.MkdirAll(byID, 0o755); err != nil {
		t.Fatal(err)
	}
	node := filepath.Join(dev, "sdc")
	if err := os.WriteFile(node, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../../sdc", filepath.Join(byID, "ata-DISK_1")); err != nil {
		t.Fatal(err)
	}
	got, err := resolveDeviceAt("ata-DISK_1", dev, byID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want, _ := filepath.EvalSymlinks(node)
	if got != want {
		t.Fatalf("resolved %q, want %q", got, want)
	}
	if _, err := resolveDeviceAt("missing", dev, byID); err == nil {
		t.Fatal("expected error for missing device")
	}
}

func TestNewTempReaderExplicitMethods(t *testing.T) {
	opts := ReaderOptions{ID: "sda", Device: "/dev/sda", HddtempAddr: "127.0.0.1:7634"}
	for _, method := range []string{MethodDrivetemp, MethodHdparm, MethodSmartctl, MethodHddtemp} {
		r, chosen, err := NewTempReader(context.Background(), method, opts)
		if err != nil || r == nil || chosen != method {
			t.Fatalf("%s: %v %v %v", method, r, chosen, err)
		}
	}
	if _, _, err := NewTempReader(context.Background(), "laser", opts); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestNewTempReaderAutoPrefersDrivetemp(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "class/block/sda/device/hwmon/hwmon1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "temp1_input"), []byte("30000"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, chosen, err := NewTempReader(context.Background(), MethodAuto, ReaderOptions{ID: "sda", Device: "/dev/sda", SysRoot: root})
	if err != nil || chosen != MethodDrivetemp {
		t.Fatalf("auto chose %q, %v", chosen, err)
	}
}

func TestNewPowerProber(t *testing.T) {
	for kind, want := range map[string]any{"hdparm": &HdparmProber{}, "ata": &ATAProber{}, "none": NoProber{}} {
		p, err := NewPowerProber(kind, "sda", "/dev/sda")
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		switch want.(type) {
		case *HdparmProber:
			if _, ok := p.(*HdparmProber); !ok {
				t.Fatalf("%s: got %T", kind, p)
			}
		case *ATAProber:
			if _, ok := p.(*ATAProber); !ok {
				t.Fatalf("%s: got %T", kind, p)
			}
		case NoProber:
			if _, ok := p.(NoProber); !ok {
				t.Fatalf("%s: got %T", kind, p)
			}
		}
	}
	if _, err := NewPowerProber("crystal-ball", "sda", "/dev/sda"); err == nil {
		t.Fatal("expected error")
	}
}
