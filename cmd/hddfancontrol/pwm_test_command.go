package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/hwmon"
	"hddfancontrol/internal/preflight"
)

func newPWMTestCommand(ctx *commandContext) *cobra.Command {
	var pwmPath string
	var rpmPath string
	var opts hwmon.ThresholdOptions

	cmd := &cobra.Command{
		Use:   "pwm-test [fan-id]",
		Short: "Measure the start and stop PWM values of a fan",
		Long: "Ramp a fan down from full speed until it stops, then up until it starts,\n" +
			"averaging its tachometer at every step. The fan's original settings are\n" +
			"restored afterwards. Stop the daemon first.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fanCfg, err := selectFan(cfg, args, pwmPath, rpmPath)
			if err != nil {
				return err
			}
			if probe := preflight.ProbeDaemon(cfg); probe.Running {
				return fmt.Errorf("daemon is running (%s); stop it before testing fans", probe.Detail)
			}

			fan, err := hwmon.OpenFan(fanCfg.ID, hwmon.FanOptions{PWMPath: fanCfg.PWM, RPMPath: fanCfg.RPM})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Testing fan %s (%s)\n", fanCfg.ID, fan.PWMPath())
			opts.Progress = func(raw int, rpm float64) {
				fmt.Fprintf(out, "  pwm %3d: %6.0f rpm\n", raw, rpm)
			}

			result, err := hwmon.FindThresholds(cmd.Context(), fan, opts)
			if errors.Is(err, hwmon.ErrNoRotation) {
				return fmt.Errorf("fan %s: %w; check wiring and the rpm path", fanCfg.ID, err)
			}
			if err != nil {
				return fmt.Errorf("fan %s: %w", fanCfg.ID, err)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(
				[]column{label("Fan"), reading("Stop value"), reading("Start value"), reading("Max RPM")},
				[][]string{{fanCfg.ID, strconv.Itoa(result.Stop), strconv.Itoa(result.Start), fmt.Sprintf("%.0f", result.MaxRPM)}},
			))
			fmt.Fprintf(out, "\nSuggested [[fan]] settings:\n  stop_value = %d\n  start_value = %d\n", result.Stop, result.Start)
			return nil
		},
	}
	cmd.Flags().StringVar(&pwmPath, "pwm", "", "PWM file to test instead of a configured fan")
	cmd.Flags().StringVar(&rpmPath, "rpm", "", "Tachometer file (defaults to the fanN_input next to the PWM file)")
	cmd.Flags().IntVar(&opts.Step, "step", 5, "Raw PWM change per probe")
	cmd.Flags().DurationVar(&opts.Settle, "settle", 5*time.Second, "Wait after each change before sampling")
	cmd.Flags().IntVar(&opts.Samples, "samples", 3, "Tachometer readings averaged per probe")
	cmd.Flags().DurationVar(&opts.SampleInterval, "sample-interval", time.Second, "Delay between tachometer readings")
	return cmd
}

func selectFan(cfg *config.Config, args []string, pwmPath, rpmPath string) (config.Fan, error) {
	if pwmPath != "" {
		id := "manual"
		if len(args) == 1 {
			id = args[0]
		}
		return config.Fan{ID: id, PWM: pwmPath, RPM: rpmPath}, nil
	}
	if len(args) == 0 {
		return config.Fan{}, errors.New("name a configured fan or pass --pwm")
	}
	for _, f := range cfg.Fans {
		if f.ID == args[0] {
			if rpmPath != "" {
				f.RPM = rpmPath
			}
			return f, nil
		}
	}
	return config.Fan{}, fmt.Errorf("fan %q is not configured", args[0])
}
