package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"hddfancontrol/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns a default config whose state and log directories live in a
// per-test temp directory. Options are applied in order.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Hotplug.Enabled = false

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDrive adds a drive.
func WithDrive(d config.Drive) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Drives = append(b.cfg.Drives, d)
	}
}

// WithSensor adds a generic hwmon sensor.
func WithSensor(s config.Sensor) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sensors = append(b.cfg.Sensors, s)
	}
}

// WithFan adds a fan.
func WithFan(f config.Fan) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fans = append(b.cfg.Fans, f)
	}
}

// WithGroup adds a fan group.
func WithGroup(g config.Group) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Groups = append(b.cfg.Groups, g)
	}
}

// WithControl mutates the control section.
func WithControl(fn func(*config.Control)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Control)
	}
}

// WithStubbedBinaries writes stub executables that exit 0 and prepends them to
// PATH. Without names the drive tools are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"hdparm", "smartctl"}
		}
		for _, name := range names {
			StubBinary(b.t, filepath.Join(b.baseDir, "bin"), name, "exit 0")
		}
	}
}

// StubBinary writes a /bin/sh script named name into dir and prepends dir to
// PATH for the rest of the test.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	script := []byte("#!/bin/sh\n" + body + "\n")
	if err := os.WriteFile(target, script, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	path := os.Getenv("PATH")
	if !hasPathPrefix(path, dir) {
		t.Setenv("PATH", dir+string(os.PathListSeparator)+path)
	}
	return target
}

func hasPathPrefix(path, dir string) bool {
	return len(path) >= len(dir) && path[:len(dir)] == dir
}

// BaseDir returns the temp directory backing cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
