package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/hw"
)

const minimalConfig = `
[paths]
state_dir = "%s"
log_dir = "%s"

[[drive]]
id = "sda"
device = "/dev/sda"

[[fan]]
id = "rear"
pwm = "/sys/class/hwmon/hwmon3/pwm2"

[[group]]
id = "bays"
sensors = ["sda"]
fans = ["rear"]
points = [{ temp = 30.0, duty = 20 }, { temp = 45.0, duty = 50 }, { temp = 60.0, duty = 100 }]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hddfancontrol.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func minimal(t *testing.T) string {
	dir := t.TempDir()
	return strings.Replace(strings.Replace(minimalConfig, "%s", filepath.Join(dir, "state"), 1), "%s", filepath.Join(dir, "log"), 1)
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := config.Default()
	if cfg.Control.PollInterval != 60 {
		t.Fatalf("poll interval = %d", cfg.Control.PollInterval)
	}
	if cfg.Control.FailureTolerance != 3 || cfg.Control.ShutdownDuty != 100 {
		t.Fatalf("unexpected control defaults: %+v", cfg.Control)
	}
	if cfg.Control.UnknownPowerState != config.UnknownAsActive {
		t.Fatalf("unknown power state = %q", cfg.Control.UnknownPowerState)
	}
	if !cfg.History.Enabled || !cfg.Hotplug.Enabled {
		t.Fatal("expected history and hotplug enabled by default")
	}
}

func TestLoadMinimalConfigFillsDefaults(t *testing.T) {
	path := writeConfig(t, minimal(t))
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved %q exists=%v", resolved, exists)
	}
	d := cfg.Drives[0]
	if d.TempMethod != "auto" || d.PowerProbe != "hdparm" || d.HddtempAddr != "127.0.0.1:7634" {
		t.Fatalf("drive defaults not applied: %+v", d)
	}
	g := cfg.Groups[0]
	if g.MaxDuty != 100 || g.DeadbandValue() != 5 || g.Interpolation != "linear" {
		t.Fatalf("group defaults not applied: %+v", g)
	}
	curve, err := g.Curve()
	if err != nil {
		t.Fatalf("Curve: %v", err)
	}
	if got := curve.Duty(hw.Celsius(46)); got != 53 {
		t.Fatalf("curve at 46°C = %d", got)
	}
	if cfg.LockPath() != filepath.Join(cfg.Paths.StateDir, "hddfancontrol.lock") {
		t.Fatalf("lock path = %q", cfg.LockPath())
	}
}

func TestLoadMissingFileHasNoGroups(t *testing.T) {
	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestLoadRejectsInvalidConfigurations(t *testing.T) {
	cases := map[string]struct {
		from, to string
	}{
		"inverted curve": {
			`points = [{ temp = 30.0, duty = 20 }, { temp = 45.0, duty = 50 }, { temp = 60.0, duty = 100 }]`,
			`points = [{ temp = 60.0, duty = 20 }, { temp = 45.0, duty = 50 }]`,
		},
		"decreasing duty": {
			`{ temp = 60.0, duty = 100 }`,
			`{ temp = 60.0, duty = 40 }`,
		},
		"unknown fan": {
			`fans = ["rear"]`,
			`fans = ["front"]`,
		},
		"unknown sensor": {
			`sensors = ["sda"]`,
			`sensors = ["sdz"]`,
		},
		"bad temp method": {
			`device = "/dev/sda"`,
			"device = \"/dev/sda\"\ntemp_method = \"ir-camera\"",
		},
		"unknown key": {
			`[[fan]]`,
			"[[fan]]\nspeed = 3",
		},
		"zero poll interval": {
			`[paths]`,
			"[control]\npoll_interval = 0\n\n[paths]",
		},
		"bad unknown policy": {
			`[paths]`,
			"[control]\nunknown_power_state = \"maybe\"\n\n[paths]",
		},
		"pwm out of range": {
			`pwm = "/sys/class/hwmon/hwmon3/pwm2"`,
			"pwm = \"/sys/class/hwmon/hwmon3/pwm2\"\nstart_value = 300",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			body := minimal(t)
			if !strings.Contains(body, tc.from) {
				t.Fatalf("fixture does not contain %q", tc.from)
			}
			path := writeConfig(t, strings.Replace(body, tc.from, tc.to, 1))
			_, _, _, err := config.Load(path)
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadDefaultsCurveWhenPointsOmitted(t *testing.T) {
	body := strings.Replace(minimal(t),
		`points = [{ temp = 30.0, duty = 20 }, { temp = 45.0, duty = 50 }, { temp = 60.0, duty = 100 }]`,
		"min_duty = 10", 1)
	cfg, _, _, err := config.Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	points := cfg.Groups[0].Points
	if len(points) != 2 || points[0].Duty != 20 || points[1].Duty != 100 {
		t.Fatalf("unexpected default points: %+v", points)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected CreateSample to refuse overwriting")
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if len(cfg.Groups) != 1 || cfg.Groups[0].Hysteresis != 2.0 {
		t.Fatalf("unexpected sample groups: %+v", cfg.Groups)
	}
}

func TestExpandPathHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := config.ExpandPath("~/state")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "state") {
		t.Fatalf("ExpandPath = %q", got)
	}
}
