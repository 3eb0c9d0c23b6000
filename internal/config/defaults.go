package config

const (
	defaultStateDir = "/var/lib/hddfancontrol"
	defaultLogDir   = "/var/log/hddfancontrol"

	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultLogRetention  = 30
	defaultHistoryRetain = 7

	defaultPollInterval      = 60
	defaultOperationTimeout  = 10
	defaultFailureTolerance  = 3
	defaultStallTicks        = 3
	defaultShutdownDuty      = 100
	defaultWorkers           = 4
	defaultWakePollInterval  = 20
	defaultWakeWindow        = 300
	defaultBoostPollInterval = 10

	defaultTempMethod  = "auto"
	defaultPowerProbe  = "hdparm"
	defaultHddtempAddr = "127.0.0.1:7634"

	defaultInterpolation = "linear"
	defaultMaxDuty       = 100
	defaultDeadband      = 5
	defaultLowTemp       = 30.0
	defaultHighTemp      = 50.0
	defaultLowDuty       = 20
)

// Default returns a configuration with every tunable at its default and no
// devices.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
		Control: Control{
			PollInterval:      defaultPollInterval,
			OperationTimeout:  defaultOperationTimeout,
			FailureTolerance:  defaultFailureTolerance,
			StallTicks:        defaultStallTicks,
			UnknownPowerState: UnknownAsActive,
			ShutdownDuty:      defaultShutdownDuty,
			Workers:           defaultWorkers,
			WakePollInterval:  defaultWakePollInterval,
			WakeWindow:        defaultWakeWindow,
			BoostPollInterval: defaultBoostPollInterval,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetain,
		},
		Hotplug: Hotplug{Enabled: true},
	}
}
