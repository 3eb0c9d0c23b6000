package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"hddfancontrol/internal/hw"
	"hddfancontrol/internal/logging"
)

func TestMultiSkipsNilSinks(t *testing.T) {
	var a, b Recorder
	sink := Multi(&a, nil, &b)
	sink.Emit(Event{Kind: KindDutyChanged, Unit: "bays", Duty: 40})
	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Fatalf("events not delivered to both sinks: %d %d", len(a.Events), len(b.Events))
	}
	if Multi() != Discard || Multi(nil) != Discard {
		t.Fatal("empty Multi should discard")
	}
	if single, ok := Multi(&a).(*Recorder); !ok || single != &a {
		t.Fatal("single sink should be returned as is")
	}
}

func TestMultiAcceptsSinkFuncs(t *testing.T) {
	var got []Kind
	sink := Multi(SinkFunc(func(e Event) { got = append(got, e.Kind) }), nil)
	sink.Emit(Event{Kind: KindFanStalled})
	Discard.Emit(Event{Kind: KindFanStalled})
	if len(got) != 1 || got[0] != KindFanStalled {
		t.Fatalf("got %v", got)
	}
}

func TestRecorderOfKind(t *testing.T) {
	var r Recorder
	r.Emit(Event{Kind: KindTickCompleted})
	r.Emit(Event{Kind: KindDutyChanged})
	r.Emit(Event{Kind: KindTickCompleted})
	if got := len(r.OfKind(KindTickCompleted)); got != 2 {
		t.Fatalf("OfKind = %d", got)
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	handler, err := logging.NewHandler(&buf, "json", slog.LevelDebug, false)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(handler)
	sink := NewLogSink(logger)

	sink.Emit(Event{Kind: KindTickCompleted, Tick: 3, Duty: 50})
	sink.Emit(Event{Kind: KindDutyChanged, Unit: "bays", Duty: 53, PrevDuty: 20, Reason: "curve", Temp: 460, HasTemp: true})
	sink.Emit(Event{Kind: KindSensorFailed, Unit: "sda", Failures: 2, Err: hw.Wrap(hw.ErrTimeout, "sda", "smartctl", errors.New("deadline"))})
	sink.Emit(Event{Kind: KindUnitDegraded, Unit: "rear", Duty: 100})

	lines := decodeLines(t, &buf)
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "debug" || lines[1]["level"] != "info" {
		t.Fatalf("unexpected levels: %v %v", lines[0]["level"], lines[1]["level"])
	}
	if lines[1]["unit"] != "bays" || lines[1]["duty"] != float64(53) || lines[1]["temp_c"] != 46.0 {
		t.Fatalf("duty change fields: %v", lines[1])
	}
	if lines[2]["level"] != "warn" || lines[2]["error_kind"] != "timeout" || lines[2]["impact"] == nil {
		t.Fatalf("sensor failure fields: %v", lines[2])
	}
	if lines[3]["level"] != "error" || lines[3]["alert"] != "degraded" {
		t.Fatalf("degraded fields: %v", lines[3])
	}
	if lines[1]["component"] != "control" {
		t.Fatalf("component = %v", lines[1]["component"])
	}
}
