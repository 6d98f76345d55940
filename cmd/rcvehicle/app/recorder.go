package app

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/rc-vehicle/internal/control"
	"github.com/roman-kulish/rc-vehicle/internal/storage"
	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
)

const drainTimeout = 5 * time.Second

// WithRecorderLogger sets the logger for the recorder
func WithRecorderLogger(logger *slog.Logger) func(*Recorder) {
	return func(r *Recorder) {
		r.logger = logger.With(slog.String("component", "recorder"))
	}
}

// WithMaxBatchSize sets the maximum number of log entries stored within a single
// database transaction.
func WithMaxBatchSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		if size > 0 {
			r.maxBatchSize = size
		}
	}
}

// WithFlushInterval sets how often buffered log entries are written
func WithFlushInterval(interval time.Duration) func(*Recorder) {
	return func(r *Recorder) {
		if interval > 0 {
			r.flushInterval = interval
		}
	}
}

// Recorder persists snapshots and log entries of the control loop into a session of the
// flight recorder. The control loop never waits for it: when the queue is full, records
// are dropped and counted.
type Recorder struct {
	store     storage.Store
	sessionID int64
	logger    *slog.Logger

	maxBatchSize  int
	flushInterval time.Duration

	snapshots chan telemetry.Snapshot
	events    chan control.Event
	dropped   atomic.Uint64
}

// NewRecorder creates a recorder writing into sessionID with room for queueSize pending
// records of each kind.
func NewRecorder(store storage.Store, sessionID int64, queueSize int, options ...func(*Recorder)) *Recorder {
	r := Recorder{
		store:         store,
		sessionID:     sessionID,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxBatchSize:  defaultRecorderBatch,
		flushInterval: defaultFlushInterval,
		snapshots:     make(chan telemetry.Snapshot, queueSize),
		events:        make(chan control.Event, queueSize),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

func (r *Recorder) RecordTelemetry(s telemetry.Snapshot) {
	select {
	case r.snapshots <- s:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) RecordEvent(e control.Event) {
	select {
	case r.events <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of records dropped because the queue was full
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run writes queued records until ctx is cancelled, then drains whatever is still queued.
// Writes in flight are not interrupted by the cancellation.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	storeCtx := context.WithoutCancel(ctx)
	pending := make([]storage.Event, 0, r.maxBatchSize)

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(storeCtx, drainTimeout)
			defer cancel()

			r.drain(drainCtx, pending)
			return nil

		case s := <-r.snapshots:
			r.storeTelemetry(storeCtx, s)

		case e := <-r.events:
			pending = append(pending, storage.Event{Timestamp: e.Time, Message: e.Message})
			if len(pending) >= r.maxBatchSize {
				pending = r.flush(storeCtx, pending)
			}

		case <-ticker.C:
			pending = r.flush(storeCtx, pending)
		}
	}
}

func (r *Recorder) drain(ctx context.Context, pending []storage.Event) {
	for {
		select {
		case s := <-r.snapshots:
			r.storeTelemetry(ctx, s)

		case e := <-r.events:
			pending = append(pending, storage.Event{Timestamp: e.Time, Message: e.Message})
			if len(pending) >= r.maxBatchSize {
				pending = r.flush(ctx, pending)
			}

		default:
			r.flush(ctx, pending)
			if n := r.Dropped(); n > 0 {
				r.logger.Warn("recorder dropped records", slog.Uint64("dropped", n))
			}
			return
		}
	}
}

func (r *Recorder) storeTelemetry(ctx context.Context, s telemetry.Snapshot) {
	if _, err := r.store.StoreTelemetry(ctx, r.sessionID, s); err != nil {
		r.logger.Error("storing telemetry", slog.String("error", err.Error()))
	}
}

// flush stores pending entries and returns the emptied slice
func (r *Recorder) flush(ctx context.Context, pending []storage.Event) []storage.Event {
	if len(pending) == 0 {
		return pending
	}
	if err := r.store.StoreEvents(ctx, r.sessionID, pending); err != nil {
		r.logger.Error("storing log entries", slog.Int("count", len(pending)), slog.String("error", err.Error()))
	}
	return pending[:0]
}
