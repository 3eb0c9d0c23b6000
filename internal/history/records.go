package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hddfancontrol/internal/events"
	"hddfancontrol/internal/hw"
)

// Run is one daemon lifetime.
type Run struct {
	ID         string
	StartedAt  time.Time
	StoppedAt  time.Time
	ConfigPath string
}

// Running reports whether the run has not recorded a stop. A daemon killed
// without cleanup leaves its run open.
func (r Run) Running() bool { return r.StoppedAt.IsZero() }

// Entry is a journaled event.
type Entry struct {
	RunID    string
	Time     time.Time
	Tick     uint64
	Kind     events.Kind
	Unit     string
	State    string
	Reason   string
	Duty     hw.Duty
	PrevDuty hw.Duty
	Temp     hw.Temp
	HasTemp  bool
	RPM      int
	Failures int
	Duration time.Duration
	Error    string
}

// Sample is a tick summary.
type Sample struct {
	RunID    string
	Time     time.Time
	Tick     uint64
	Duty     hw.Duty
	Temp     hw.Temp
	HasTemp  bool
	Duration time.Duration
}

// BeginRun records the start of a daemon run.
func (s *Store) BeginRun(ctx context.Context, runID string, startedAt time.Time, configPath string) error {
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, started_at, config_path) VALUES (?, ?, ?)`,
		runID, formatTime(startedAt), configPath,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// EndRun records the stop time of a run.
func (s *Store) EndRun(ctx context.Context, runID string, stoppedAt time.Time) error {
	res, err := s.exec(ctx, `UPDATE runs SET stopped_at = ? WHERE id = ?`, formatTime(stoppedAt), runID)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end run: unknown run %s", runID)
	}
	return nil
}

func nullTemp(t hw.Temp, ok bool) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(t), Valid: ok}
}

// Record stores one event. Tick summaries become samples.
func (s *Store) Record(ctx context.Context, runID string, e events.Event) error {
	if e.Kind == events.KindTickCompleted {
		_, err := s.exec(ctx,
			`INSERT INTO samples (run_id, ts, tick, duty, temp_tenths, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, formatTime(e.Time), e.Tick, int(e.Duty), nullTemp(e.Temp, e.HasTemp), e.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("record sample: %w", err)
		}
		return nil
	}
	errText := ""
	if e.Err != nil {
		errText = e.Err.Error()
	}
	_, err := s.exec(ctx,
		`INSERT INTO events (run_id, ts, tick, kind, unit, state, reason, duty, prev_duty, temp_tenths, rpm, failures, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, formatTime(e.Time), e.Tick, string(e.Kind), e.Unit, e.State, e.Reason,
		int(e.Duty), int(e.PrevDuty), nullTemp(e.Temp, e.HasTemp), e.RPM, e.Failures, e.Duration.Milliseconds(), errText,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run, or nil when the journal
// is empty.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, stopped_at, config_path FROM runs ORDER BY started_at DESC LIMIT 1`)
	var (
		run        Run
		started    sql.NullString
		stopped    sql.NullString
		configPath sql.NullString
	)
	if err := row.Scan(&run.ID, &started, &stopped, &configPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest run: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.StoppedAt = parseTime(stopped)
	run.ConfigPath = configPath.String
	return &run, nil
}

const entryColumns = "run_id, ts, tick, kind, unit, state, reason, duty, prev_duty, temp_tenths, rpm, failures, duration_ms, error"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		e        Entry
		ts       sql.NullString
		kind     string
		duty     int
		prevDuty int
		temp     sql.NullInt64
		duration int64
	)
	if err := scanner.Scan(&e.RunID, &ts, &e.Tick, &kind, &e.Unit, &e.State, &e.Reason,
		&duty, &prevDuty, &temp, &e.RPM, &e.Failures, &duration, &e.Error); err != nil {
		return Entry{}, err
	}
	e.Time = parseTime(ts)
	e.Kind = events.Kind(kind)
	e.Duty, e.PrevDuty = hw.Duty(duty), hw.Duty(prevDuty)
	if temp.Valid {
		e.Temp, e.HasTemp = hw.Temp(temp.Int64), true
	}
	e.Duration = time.Duration(duration) * time.Millisecond
	return e, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentEvents returns up to limit events of run, newest first.
func (s *Store) RecentEvents(ctx context.Context, runID string, limit int) ([]Entry, error) {
	entries, err := s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return entries, nil
}

// LatestGroupDuties returns the last duty_changed entry of every group in
// run, ordered by group id.
func (s *Store) LatestGroupDuties(ctx context.Context, runID string) ([]Entry, error) {
	entries, err := s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM events
		 WHERE id IN (SELECT MAX(id) FROM events WHERE run_id = ? AND kind = ? GROUP BY unit)
		 ORDER BY unit`, runID, string(events.KindDutyChanged))
	if err != nil {
		return nil, fmt.Errorf("latest group duties: %w", err)
	}
	return entries, nil
}

// LatestSample returns the last tick summary of run, or nil.
func (s *Store) LatestSample(ctx context.Context, runID string) (*Sample, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, ts, tick, duty, temp_tenths, duration_ms FROM samples
		 WHERE run_id = ? ORDER BY rowid DESC LIMIT 1`, runID)
	var (
		sample   Sample
		ts       sql.NullString
		duty     int
		temp     sql.NullInt64
		duration int64
	)
	if err := row.Scan(&sample.RunID, &ts, &sample.Tick, &duty, &temp, &duration); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest sample: %w", err)
	}
	sample.Time = parseTime(ts)
	sample.Duty = hw.Duty(duty)
	if temp.Valid {
		sample.Temp, sample.HasTemp = hw.Temp(temp.Int64), true
	}
	sample.Duration = time.Duration(duration) * time.Millisecond
	return &sample, nil
}

// Prune deletes runs that stopped before cutoff along with their events and
// samples. Open runs are kept.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM runs WHERE stopped_at IS NOT NULL AND stopped_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
