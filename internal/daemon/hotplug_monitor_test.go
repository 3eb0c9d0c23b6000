package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"hddfancontrol/internal/config"
)

func monitorFor(t *testing.T, wakes *int) *hotplugMonitor {
	t.Helper()
	cfg := &config.Config{Drives: []config.Drive{
		{ID: "bay1", Device: "/dev/hddfancontrol-test-sdq"},
		{ID: "bay2", Device: "/dev/hddfancontrol-test-sdr"},
	}}
	m := newHotplugMonitor(cfg, nil, func() { *wakes++ })
	if m == nil {
		t.Fatal("expected monitor")
	}
	return m
}

func TestNewHotplugMonitorWithoutDrives(t *testing.T) {
	if m := newHotplugMonitor(nil, nil, nil); m != nil {
		t.Fatal("expected nil monitor for nil config")
	}
	if m := newHotplugMonitor(&config.Config{}, nil, nil); m != nil {
		t.Fatal("expected nil monitor without drives")
	}
	var m *hotplugMonitor
	if m.Running() {
		t.Fatal("nil monitor reports running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("nil monitor Run: %v", err)
	}
}

func TestBuildMatcher(t *testing.T) {
	var wakes int
	matcher := monitorFor(t, &wakes).buildMatcher()

	disk := map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "disk", "DEVNAME": "/dev/sda"}
	for _, action := range []netlink.KObjAction{netlink.ADD, netlink.REMOVE, netlink.CHANGE} {
		if !matcher.Evaluate(netlink.UEvent{Action: action, Env: disk}) {
			t.Errorf("expected %s on a disk to match", action)
		}
	}
	partition := map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "partition", "DEVNAME": "/dev/sda1"}
	if matcher.Evaluate(netlink.UEvent{Action: netlink.ADD, Env: partition}) {
		t.Error("expected partition events to be rejected")
	}
	usb := map[string]string{"SUBSYSTEM": "usb", "DEVTYPE": "usb_device"}
	if matcher.Evaluate(netlink.UEvent{Action: netlink.ADD, Env: usb}) {
		t.Error("expected non-block events to be rejected")
	}
}

func TestHandleEventWakesForConfiguredDrives(t *testing.T) {
	var wakes int
	m := monitorFor(t, &wakes)

	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "/dev/hddfancontrol-test-sdq"}})
	if wakes != 1 {
		t.Fatalf("wakes = %d after configured drive event", wakes)
	}
	m.handleEvent(netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{"DEVPATH": "/devices/pci0000:00/ata3/block/hddfancontrol-test-sdr"}})
	if wakes != 2 {
		t.Fatalf("wakes = %d after DEVPATH-only event", wakes)
	}
	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "/dev/sdz"}})
	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{}})
	if wakes != 2 {
		t.Fatalf("unrelated events woke the loop: %d", wakes)
	}
}
