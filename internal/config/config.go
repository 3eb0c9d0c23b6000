package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrInvalid marks configuration errors. The daemon refuses to start when a
// load fails with it.
var ErrInvalid = errors.New("invalid configuration")

const (
	UnknownAsActive  = "active"
	UnknownAsStandby = "standby"
)

// Paths holds filesystem locations.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging configures log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Control tunes the control loop. Durations are in seconds.
type Control struct {
	PollInterval      int    `toml:"poll_interval"`
	OperationTimeout  int    `toml:"operation_timeout"`
	FailureTolerance  int    `toml:"failure_tolerance"`
	StallTicks        int    `toml:"stall_ticks"`
	RefreshInterval   int    `toml:"refresh_interval"`
	UnknownPowerState string `toml:"unknown_power_state"`
	ShutdownDuty      int    `toml:"shutdown_duty"`
	RestoreOnExit     bool   `toml:"restore_on_exit"`
	Workers           int    `toml:"workers"`
	WakePollInterval  int    `toml:"wake_poll_interval"`
	WakeWindow        int    `toml:"wake_window"`
	BoostPollInterval int    `toml:"boost_poll_interval"`
}

func seconds(v int) time.Duration { return time.Duration(v) * time.Second }

func (c Control) Poll() time.Duration           { return seconds(c.PollInterval) }
func (c Control) Timeout() time.Duration        { return seconds(c.OperationTimeout) }
func (c Control) Refresh() time.Duration        { return seconds(c.RefreshInterval) }
func (c Control) WakePoll() time.Duration       { return seconds(c.WakePollInterval) }
func (c Control) WakeWindowSpan() time.Duration { return seconds(c.WakeWindow) }
func (c Control) BoostPoll() time.Duration      { return seconds(c.BoostPollInterval) }

// History configures the event journal.
type History struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// Hotplug configures the udev monitor.
type Hotplug struct {
	Enabled bool `toml:"enabled"`
}

// Drive is a storage device whose temperature feeds fan groups.
type Drive struct {
	ID          string `toml:"id"`
	Device      string `toml:"device"`
	TempMethod  string `toml:"temp_method"`
	PowerProbe  string `toml:"power_probe"`
	HddtempAddr string `toml:"hddtemp_addr"`
}

// Sensor is a generic hwmon temperature input.
type Sensor struct {
	ID   string `toml:"id"`
	Path string `toml:"path"`
}

// Fan is a PWM output.
type Fan struct {
	ID  string `toml:"id"`
	PWM string `toml:"pwm"`
	// RPM is the fan*_input path. Empty resolves it next to the pwm file;
	// "none" disables speed read-back.
	RPM        string `toml:"rpm"`
	StartValue int    `toml:"start_value"`
	StopValue  int    `toml:"stop_value"`
	NeverStop  bool   `toml:"never_stop"`
}

// CurvePoint is one control point of a group curve.
type CurvePoint struct {
	Temp float64 `toml:"temp"`
	Duty int     `toml:"duty"`
}

// Group binds sensors to fans through a curve.
type Group struct {
	ID            string       `toml:"id"`
	Sensors       []string     `toml:"sensors"`
	Fans          []string     `toml:"fans"`
	MinDuty       int          `toml:"min_duty"`
	MaxDuty       int          `toml:"max_duty"`
	Deadband      *int         `toml:"deadband"`
	Hysteresis    float64      `toml:"hysteresis"`
	Interpolation string       `toml:"interpolation"`
	Points        []CurvePoint `toml:"points"`
}

// DeadbandValue returns the configured dead-band or the default.
func (g Group) DeadbandValue() int {
	if g.Deadband == nil {
		return defaultDeadband
	}
	return *g.Deadband
}

// Config is the complete daemon configuration. It is immutable once loaded.
type Config struct {
	Paths   Paths    `toml:"paths"`
	Logging Logging  `toml:"logging"`
	Control Control  `toml:"control"`
	History History  `toml:"history"`
	Hotplug Hotplug  `toml:"hotplug"`
	Drives  []Drive  `toml:"drive"`
	Sensors []Sensor `toml:"sensor"`
	Fans    []Fan    `toml:"fan"`
	Groups  []Group  `toml:"group"`
}

const (
	systemConfigPath  = "/etc/hddfancontrol.toml"
	projectConfigName = "hddfancontrol.toml"
)

// DefaultConfigPath returns the system configuration location.
func DefaultConfigPath() string {
	return systemConfigPath
}

// Load locates, parses, normalizes and validates a configuration file. It
// returns the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("%w: parse config: %s", ErrInvalid, strict.String())
			}
			return nil, "", false, fmt.Errorf("%w: parse config: %w", ErrInvalid, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// ResolvePath returns the file Load would read for path and whether it exists.
func ResolvePath(path string) (string, bool, error) {
	return resolveConfigPath(path)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{systemConfigPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return systemConfigPath, false, nil
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "hddfancontrol.lock")
}

// PIDPath is where the daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "hddfancontrol.pid")
}

// HistoryPath is the sqlite journal location.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DriveByID looks up a drive.
func (c *Config) DriveByID(id string) (Drive, bool) {
	for _, d := range c.Drives {
		if d.ID == id {
			return d, true
		}
	}
	return Drive{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if strings.HasPrefix(pathValue, "~/") {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath applies the configuration path expansion rules.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample configuration to path. It refuses
// to overwrite an existing file.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	file, err := os.OpenFile(expanded, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(sampleConfig); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample.
func SampleConfig() string {
	return sampleConfig
}
