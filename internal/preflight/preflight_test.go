package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gofrs/flock"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckPWMWritable(t *testing.T) {
	chip := testsupport.NewChip(t)
	pwm := chip.Set("pwm1", 128)
	if r := CheckPWMWritable("rear", pwm); !r.Passed {
		t.Fatalf("expected writable pwm, got %s", r.Detail)
	}
	chip.Set("pwm1_enable", 2)
	if r := CheckPWMWritable("rear", pwm); !r.Passed {
		t.Fatalf("expected writable enable, got %s", r.Detail)
	}
	if r := CheckPWMWritable("rear", chip.Path("pwm7")); r.Passed {
		t.Fatal("expected failure for missing pwm")
	}
	if r := CheckPWMWritable("rear", ""); r.Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckDeviceNodeRejectsRegularFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "sda")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckDeviceNode("Drive sda", f); r.Passed {
		t.Fatal("expected failure for regular file")
	}
	if r := CheckDeviceNode("Drive sdz", filepath.Join(t.TempDir(), "sdz")); r.Passed {
		t.Fatal("expected failure for missing device")
	}
}

func TestCheckHddtemp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	if r := CheckHddtemp(context.Background(), ln.Addr().String()); !r.Passed {
		t.Fatalf("expected reachable, got %s", r.Detail)
	}
	if r := CheckHddtemp(context.Background(), ""); r.Passed {
		t.Fatal("expected failure without address")
	}

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := closed.Addr().String()
	closed.Close()
	if r := CheckHddtemp(context.Background(), addr); r.Passed {
		t.Fatal("expected failure for closed port")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ChecksEveryDevice(t *testing.T) {
	chip := testsupport.NewChip(t)
	pwm := chip.Set("pwm1", 0)
	cfg := testsupport.NewConfig(t,
		testsupport.WithFan(config.Fan{ID: "rear", PWM: pwm}),
		testsupport.WithDrive(config.Drive{ID: "a", Device: "/nonexistent/sda", TempMethod: "hddtemp", HddtempAddr: "127.0.0.1:1"}),
		testsupport.WithDrive(config.Drive{ID: "b", Device: "/nonexistent/sdb", TempMethod: "hddtemp", HddtempAddr: "127.0.0.1:1"}),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	// state, log, fan, two drives and one shared hddtemp address
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d: %+v", len(results), results)
	}
	failed := Failed(results)
	if len(failed) != 3 {
		t.Fatalf("expected 3 failures (two drives, hddtemp), got %+v", failed)
	}
	for _, r := range results[:3] {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestProbeDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if p := ProbeDaemon(cfg); p.Running {
		t.Fatal("expected not running without state dir")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	if p := ProbeDaemon(cfg); p.Running {
		t.Fatal("expected not running with free lock")
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer lock.Unlock()
	if err := os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(4242)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := ProbeDaemon(cfg)
	if !p.Running || p.PID != 4242 {
		t.Fatalf("probe = %+v", p)
	}
}
