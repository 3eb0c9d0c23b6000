package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hddfancontrol/internal/events"
	"hddfancontrol/internal/hw"
	"hddfancontrol/internal/logging"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	if err := store.BeginRun(ctx, "run-1", base, "/etc/hddfancontrol.toml"); err != nil {
		t.Fatal(err)
	}

	record := func(e events.Event) {
		t.Helper()
		if err := store.Record(ctx, "run-1", e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	record(events.Event{Time: base, Kind: events.KindDutyChanged, Tick: 1, Unit: "bays", Duty: 20, PrevDuty: 100, Reason: "curve", Temp: 280, HasTemp: true})
	record(events.Event{Time: base.Add(time.Minute), Kind: events.KindDutyChanged, Tick: 2, Unit: "bays", Duty: 53, PrevDuty: 20, Reason: "curve", Temp: 460, HasTemp: true})
	record(events.Event{Time: base.Add(time.Minute), Kind: events.KindDutyChanged, Tick: 2, Unit: "nvme", Duty: 30, PrevDuty: 100, Reason: "curve"})
	record(events.Event{Time: base.Add(time.Minute), Kind: events.KindSensorFailed, Tick: 2, Unit: "sdb", Failures: 1, Err: hw.Wrap(hw.ErrTimeout, "sdb", "smartctl", nil)})
	record(events.Event{Time: base.Add(time.Minute), Kind: events.KindTickCompleted, Tick: 2, Duty: 53, Temp: 460, HasTemp: true, Duration: 1500 * time.Millisecond})

	run, err := store.LatestRun(ctx)
	if err != nil || run == nil {
		t.Fatalf("LatestRun = %v, %v", run, err)
	}
	if run.ID != "run-1" || !run.Running() || !run.StartedAt.Equal(base) {
		t.Fatalf("run = %+v", run)
	}

	groups, err := store.LatestGroupDuties(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].Unit != "bays" || groups[0].Duty != 53 || groups[0].Temp != 460 {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[1].Unit != "nvme" || groups[1].HasTemp {
		t.Fatalf("nvme = %+v", groups[1])
	}

	recent, err := store.RecentEvents(ctx, "run-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Kind != events.KindSensorFailed || recent[0].Error == "" {
		t.Fatalf("recent = %+v", recent)
	}

	sample, err := store.LatestSample(ctx, "run-1")
	if err != nil || sample == nil {
		t.Fatalf("LatestSample = %v, %v", sample, err)
	}
	if sample.Tick != 2 || sample.Duty != 53 || sample.Duration != 1500*time.Millisecond {
		t.Fatalf("sample = %+v", sample)
	}
}

func TestEmptyJournal(t *testing.T) {
	store := openTemp(t)
	run, err := store.LatestRun(context.Background())
	if err != nil || run != nil {
		t.Fatalf("LatestRun on empty journal = %v, %v", run, err)
	}
	sample, err := store.LatestSample(context.Background(), "none")
	if err != nil || sample != nil {
		t.Fatalf("LatestSample on empty journal = %v, %v", sample, err)
	}
}

func TestPruneKeepsOpenRuns(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	for _, id := range []string{"old", "open"} {
		if err := store.BeginRun(ctx, id, base, ""); err != nil {
			t.Fatal(err)
		}
		if err := store.Record(ctx, id, events.Event{Time: base, Kind: events.KindLoopState, State: "running"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.EndRun(ctx, "old", base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	n, err := store.Prune(ctx, base.Add(48*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	if entries, _ := store.RecentEvents(ctx, "old", 10); len(entries) != 0 {
		t.Fatalf("events of pruned run remain: %+v", entries)
	}
	if entries, _ := store.RecentEvents(ctx, "open", 10); len(entries) != 1 {
		t.Fatalf("open run events = %+v", entries)
	}
	if err := store.EndRun(ctx, "missing", base); err == nil {
		t.Fatal("EndRun on unknown run should fail")
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestJournalFlushesOnClose(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	if err := store.BeginRun(ctx, "run-2", base, ""); err != nil {
		t.Fatal(err)
	}
	journal := NewJournal(store, "run-2", logging.NewNop(), 64)
	for i := range 10 {
		journal.Emit(events.Event{Time: base.Add(time.Duration(i) * time.Second), Kind: events.KindDutyChanged, Unit: "bays", Duty: hw.Duty(20 + i)})
	}
	journal.Close()
	journal.Close()
	journal.Emit(events.Event{Kind: events.KindDutyChanged, Unit: "late"})

	var count int
	if err := store.db.QueryRow("SELECT COUNT(1) FROM events WHERE run_id = ?", "run-2").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 10 {
		t.Fatalf("journaled %d events, want 10", count)
	}
}

func TestParseTimeToleratesGarbage(t *testing.T) {
	if !parseTime(sql.NullString{String: "yesterday", Valid: true}).IsZero() {
		t.Fatal("expected zero time")
	}
	if got := parseTime(sql.NullString{String: formatTime(base), Valid: true}); !got.Equal(base) {
		t.Fatalf("round trip = %v", got)
	}
}
