package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliEnv struct {
	base       string
	stateDir   string
	logDir     string
	configPath string
	// fanPWM is the pwm path of the base fan.
	fanPWM string
}

// baseDevices is the smallest device set that passes validation. Nothing in
// it is opened unless a test runs the daemon.
const baseDevices = `[[sensor]]
id = "board"
path = "/nonexistent/temp1_input"

[[fan]]
id = "rear"
pwm = %q

[[group]]
id = "bays"
sensors = ["board"]
fans = ["rear"]
`

// newCLIEnv writes a configuration whose directories live under a temp dir.
// extra is appended verbatim after the base device set.
func newCLIEnv(t *testing.T, extra string) *cliEnv {
	t.Helper()
	base := t.TempDir()
	env := &cliEnv{
		base:       base,
		stateDir:   filepath.Join(base, "state"),
		logDir:     filepath.Join(base, "logs"),
		configPath: filepath.Join(base, "hddfancontrol.toml"),
		fanPWM:     "/nonexistent/pwm1",
	}
	env.writeConfig(t, extra)
	return env
}

func (e *cliEnv) writeConfig(t *testing.T, extra string) {
	t.Helper()
	content := fmt.Sprintf("[paths]\nstate_dir = %q\nlog_dir = %q\n\n[hotplug]\nenabled = false\n\n%s\n%s", e.stateDir, e.logDir, fmt.Sprintf(baseDevices, e.fanPWM), extra)
	if err := os.WriteFile(e.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
