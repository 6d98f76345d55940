package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// TelemetryReader provides an iterator-based interface for reading recorded telemetry
// with optional time filtering.
type TelemetryReader interface {
	// Session returns metadata about the session this reader is accessing.
	Session() *Session

	// Next advances the iterator and returns true if there is another record
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current record in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *TelemetryRecord

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures a telemetry reader with filtering criteria.
type ReaderOption func(*SqliteTelemetryReader)

// WithStartTime excludes records taken before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteTelemetryReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes records taken after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteTelemetryReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteTelemetryReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

var _ TelemetryReader = (*SqliteTelemetryReader)(nil)

// SqliteTelemetryReader implements TelemetryReader for SQLite database backend.
type SqliteTelemetryReader struct {
	db *sql.DB

	sessionID int64
	session   *Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	current *TelemetryRecord
	rows    *sql.Rows
	err     error
}

func newSqliteTelemetryReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteTelemetryReader, error) {
	r := &SqliteTelemetryReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteTelemetryReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "validating filters", fn: r.validateFilters},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqliteTelemetryReader) loadSession(ctx context.Context) (err error) {
	r.session, err = loadSession(ctx, r.db, r.sessionID)
	return
}

func (r *SqliteTelemetryReader) validateFilters(context.Context) error {
	if r.startTime != nil && r.endTime != nil && r.startTime.After(*r.endTime) {
		return fmt.Errorf("start time %s is after end time %s", r.startTime, r.endTime)
	}
	return nil
}

func (r *SqliteTelemetryReader) initQuery(ctx context.Context) (err error) {
	var from, to int64 = math.MinInt64, math.MaxInt64
	if r.startTime != nil {
		from = r.startTime.UTC().UnixNano()
	}
	if r.endTime != nil {
		to = r.endTime.UTC().UnixNano()
	}

	r.rows, err = r.db.QueryContext(ctx, selectTelemetrySQL, r.sessionID, from, to)
	return
}

func (r *SqliteTelemetryReader) Session() *Session {
	return r.session
}

func (r *SqliteTelemetryReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		r.current = nil
		return false
	}

	var data telemetryData
	r.err = r.rows.Scan(
		&data.ID,
		&data.Timestamp,
		&data.Seq,
		&data.State,
		&data.AccelX,
		&data.AccelY,
		&data.AccelZ,
		&data.GyroX,
		&data.GyroY,
		&data.GyroZ,
	)
	if r.err != nil {
		r.err = fmt.Errorf("scanning telemetry: %w", r.err)
		return false
	}

	data.SessionID = r.sessionID
	r.current = fromTelemetryData(&data)
	return true
}

func (r *SqliteTelemetryReader) Current() *TelemetryRecord {
	return r.current
}

func (r *SqliteTelemetryReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *SqliteTelemetryReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.current = nil
		r.rows = nil
		return err
	}
	return nil
}
