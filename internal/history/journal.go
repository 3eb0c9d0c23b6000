package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"hddfancontrol/internal/events"
	"hddfancontrol/internal/logging"
)

const (
	defaultJournalBuffer = 256
	journalWriteTimeout  = 5 * time.Second
)

// Journal is an events.Sink that writes to a Store from its own goroutine so
// the control loop never waits on disk. Events arriving while the buffer is
// full are dropped and counted.
type Journal struct {
	store  *Store
	runID  string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan events.Event
	done   chan struct{}

	dropped atomic.Int64
	failed  atomic.Int64
}

// NewJournal starts a writer for runID. buffer <= 0 selects the default.
func NewJournal(store *Store, runID string, logger *slog.Logger, buffer int) *Journal {
	if buffer <= 0 {
		buffer = defaultJournalBuffer
	}
	j := &Journal{
		store:  store,
		runID:  runID,
		logger: logging.NewComponentLogger(logger, "history"),
		ch:     make(chan events.Event, buffer),
		done:   make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *Journal) Emit(e events.Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.ch <- e:
	default:
		j.dropped.Add(1)
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for e := range j.ch {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		err := j.store.Record(ctx, j.runID, e)
		cancel()
		if err != nil {
			// only the first failure is logged to keep a broken disk from flooding the log
			if j.failed.Add(1) == 1 {
				logging.WarnWithContext(j.logger, "history write failed", "history_write_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check free space and permissions of "+j.store.Path()),
					logging.String(logging.FieldImpact, "events are missing from status output"),
				)
			}
		}
	}
}

// Close stops accepting events and waits until buffered ones are written.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.done
		return
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()
	<-j.done

	if dropped, failed := j.dropped.Load(), j.failed.Load(); dropped > 0 || failed > 0 {
		j.logger.Warn("history journal incomplete",
			logging.Int("dropped", int(dropped)),
			logging.Int("failed", int(failed)),
			logging.String(logging.FieldEventType, "history_incomplete"),
		)
	}
}
