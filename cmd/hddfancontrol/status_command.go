package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hddfancontrol/internal/config"
	"hddfancontrol/internal/events"
	"hddfancontrol/internal/history"
	"hddfancontrol/internal/preflight"
)

const defaultStatusEvents = 10

type groupView struct {
	Group   string    `json:"group"`
	Duty    int       `json:"duty"`
	TempC   *float64  `json:"temp_c,omitempty"`
	Reason  string    `json:"reason"`
	Updated time.Time `json:"updated"`
}

type eventView struct {
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`
	Unit   string    `json:"unit,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

type statusView struct {
	Running   bool        `json:"running"`
	Daemon    string      `json:"daemon"`
	PID       int         `json:"pid,omitempty"`
	RunID     string      `json:"run_id,omitempty"`
	StartedAt time.Time   `json:"started_at,omitzero"`
	StoppedAt time.Time   `json:"stopped_at,omitzero"`
	LastTick  time.Time   `json:"last_tick,omitzero"`
	MaxDuty   *int        `json:"max_duty,omitempty"`
	MaxTempC  *float64    `json:"max_temp_c,omitempty"`
	Groups    []groupView `json:"groups"`
	Events    []eventView `json:"events"`
	History   string      `json:"history"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, group duties and recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			view, err := collectStatus(cmd.Context(), cfg, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, view)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			renderStatus(out, view, colorize)
			if !skipChecks {
				renderChecks(cmd, out, cfg, colorize)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "events", "n", defaultStatusEvents, "Number of recent events to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&skipChecks, "no-checks", false, "Skip dependency and device checks")
	return cmd
}

// collectStatus reads the history journal without creating it.
func collectStatus(ctx context.Context, cfg *config.Config, limit int) (statusView, error) {
	probe := preflight.ProbeDaemon(cfg)
	view := statusView{Running: probe.Running, Daemon: probe.Detail, PID: probe.PID, Groups: []groupView{}, Events: []eventView{}}

	if !cfg.History.Enabled {
		view.History = "disabled"
		return view, nil
	}
	path := cfg.HistoryPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			view.History = "no journal yet"
			return view, nil
		}
		return view, fmt.Errorf("stat history: %w", err)
	}
	store, err := history.Open(path)
	if err != nil {
		return view, err
	}
	defer store.Close()
	view.History = path

	run, err := store.LatestRun(ctx)
	if err != nil || run == nil {
		return view, err
	}
	view.RunID = run.ID
	view.StartedAt = run.StartedAt
	view.StoppedAt = run.StoppedAt

	if sample, err := store.LatestSample(ctx, run.ID); err != nil {
		return view, err
	} else if sample != nil {
		view.LastTick = sample.Time
		duty := int(sample.Duty)
		view.MaxDuty = &duty
		if sample.HasTemp {
			temp := sample.Temp.Float()
			view.MaxTempC = &temp
		}
	}

	duties, err := store.LatestGroupDuties(ctx, run.ID)
	if err != nil {
		return view, err
	}
	for _, e := range duties {
		g := groupView{Group: e.Unit, Duty: int(e.Duty), Reason: e.Reason, Updated: e.Time}
		if e.HasTemp {
			temp := e.Temp.Float()
			g.TempC = &temp
		}
		view.Groups = append(view.Groups, g)
	}

	if limit > 0 {
		recent, err := store.RecentEvents(ctx, run.ID, limit)
		if err != nil {
			return view, err
		}
		for _, e := range recent {
			view.Events = append(view.Events, eventView{Time: e.Time, Kind: string(e.Kind), Unit: e.Unit, Detail: entryDetail(e)})
		}
	}
	return view, nil
}

func entryDetail(e history.Entry) string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Kind == events.KindDutyChanged:
		return fmt.Sprintf("%s -> %s (%s)", e.PrevDuty, e.Duty, stateLabel(e.Reason))
	case e.State != "":
		return stateLabel(e.State)
	case e.Duration > 0:
		return e.Duration.Round(time.Second).String()
	default:
		return ""
	}
}

func renderStatus(out io.Writer, view statusView, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	daemonKind := statusWarn
	if view.Running {
		daemonKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", daemonKind, view.Daemon, colorize))
	fmt.Fprintln(out, renderStatusLine("History", statusInfo, view.History, colorize))
	if view.RunID != "" {
		run := "started " + relativeTime(view.StartedAt)
		if !view.StoppedAt.IsZero() {
			run += ", stopped " + relativeTime(view.StoppedAt)
		}
		fmt.Fprintln(out, renderStatusLine("Last run", statusInfo, run, colorize))
	}
	if !view.LastTick.IsZero() {
		tick := relativeTime(view.LastTick)
		if view.MaxDuty != nil {
			tick += fmt.Sprintf(", max duty %d%%", *view.MaxDuty)
		}
		if view.MaxTempC != nil {
			tick += fmt.Sprintf(", hottest %.1f°C", *view.MaxTempC)
		}
		fmt.Fprintln(out, renderStatusLine("Last tick", statusInfo, tick, colorize))
	}
	fmt.Fprintln(out)

	if len(view.Groups) > 0 {
		rows := make([][]string, 0, len(view.Groups))
		for _, g := range view.Groups {
			temp := "-"
			if g.TempC != nil {
				temp = fmt.Sprintf("%.1f°C", *g.TempC)
			}
			rows = append(rows, []string{g.Group, fmt.Sprintf("%d%%", g.Duty), temp, stateLabel(g.Reason), relativeTime(g.Updated)})
		}
		fmt.Fprintln(out, renderTable(
			[]column{label("Group"), reading("Duty"), reading("Temp"), label("Reason"), label("Updated")},
			rows,
		))
		fmt.Fprintln(out)
	}

	if len(view.Events) > 0 {
		rows := make([][]string, 0, len(view.Events))
		for _, e := range view.Events {
			rows = append(rows, []string{relativeTime(e.Time), stateLabel(e.Kind), e.Unit, e.Detail})
		}
		fmt.Fprintln(out, renderTable([]column{label("When"), label("Event"), label("Unit"), label("Detail")}, rows))
		fmt.Fprintln(out)
	}
}
