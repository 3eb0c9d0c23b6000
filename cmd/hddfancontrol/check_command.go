package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify tools, devices and paths without touching the fans",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failures := renderChecks(cmd, out, cfg, shouldColorize(out))
			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

// renderChecks prints dependency and device checks and returns the number of
// required checks that failed.
func renderChecks(cmd *cobra.Command, out io.Writer, cfg *config.Config, colorize bool) int {
	failures := 0
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		kind := statusOK
		message := status.Command
		if !status.Available {
			message = status.Detail
			kind = statusError
			if status.Optional {
				kind = statusWarn
			} else {
				failures++
			}
		}
		fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Devices and paths", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, r := range preflight.RunAll(cmd.Context(), cfg) {
		kind := statusOK
		if !r.Passed {
			kind = statusError
			failures++
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	fmt.Fprintln(out)
	return failures
}
