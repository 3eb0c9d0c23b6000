package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/drive"
	"hddfancontrol/internal/hw"
)

type driveView struct {
	ID     string `json:"id"`
	Device string `json:"device"`
	Power  string `json:"power"`
	Method string `json:"method"`
	Temp   string `json:"temp"`
	Error  string `json:"error,omitempty"`
}

func newDrivesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "drives",
		Short: "Show power state and temperature of configured drives",
		Long: "Probe every configured drive. Drives in standby are reported as such and\n" +
			"are not read, so this command never spins a drive up.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			views := make([]driveView, 0, len(cfg.Drives))
			for _, d := range cfg.Drives {
				views = append(views, inspectDrive(cmd.Context(), d, cfg.Control.Timeout()))
			}
			if jsonOutput {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No drives configured")
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{v.ID, v.Device, stateLabel(v.Power), v.Method, v.Temp, v.Error})
			}
			fmt.Fprintln(out, renderTable(
				[]column{label("Drive"), label("Device"), label("Power"), label("Method"), reading("Temp"), label("Error")},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func inspectDrive(ctx context.Context, d config.Drive, timeout time.Duration) driveView {
	view := driveView{ID: d.ID, Device: d.Device, Power: hw.PowerUnknown.String(), Method: d.TempMethod, Temp: "-"}
	device, err := drive.ResolveDevice(d.Device)
	if err != nil {
		view.Error = err.Error()
		return view
	}
	view.Device = device

	prober, err := drive.NewPowerProber(d.PowerProbe, d.ID, device)
	if err != nil {
		view.Error = err.Error()
		return view
	}
	state, err := hw.Call(ctx, timeout, prober.ProbePower)
	if err == nil {
		view.Power = state.String()
	}
	if state == hw.PowerStandby {
		return view
	}

	reader, method, err := drive.NewTempReader(ctx, d.TempMethod, drive.ReaderOptions{
		ID:           d.ID,
		Device:       device,
		HddtempAddr:  d.HddtempAddr,
		ProbeTimeout: timeout,
	})
	if err != nil {
		view.Error = err.Error()
		return view
	}
	view.Method = method
	temp, err := hw.Call(ctx, timeout, reader.ReadTemp)
	if err != nil {
		view.Error = fmt.Sprintf("%s: %v", hw.Kind(err), err)
		return view
	}
	view.Temp = temp.String()
	return view
}
