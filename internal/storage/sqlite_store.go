package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
)

var _ Store = (*SqliteStore)(nil)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the Sqlite database at dbPath. Connections are
// opened lazily, the schema is created with the first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(ctx context.Context, db *sql.DB, sql string) error {
	_, err := db.ExecContext(ctx, sql)
	return err
}

func (s *SqliteStore) getWriteDB(ctx context.Context) (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(ctx, db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_busy_timeout=5000"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, vehicle string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB(ctx)
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, vehicle, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}
	return loadSession(ctx, db, id)
}

func loadSession(ctx context.Context, db *sql.DB, id int64) (session *Session, err error) {
	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var sess Session
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, id).Scan(&sess.ID, &sess.StartTime, &sess.Vehicle, &config); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}
	if config.Valid {
		sess.Config = &config.String
	}

	return &sess, nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.Vehicle, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, &sess)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreTelemetry(ctx context.Context, sessionID int64, snapshot telemetry.Snapshot) (telemetryID int64, err error) {
	db, err := s.getWriteDB(ctx)
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertTelemetrySQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	data := toTelemetryData(sessionID, snapshot)

	result, err := stmt.ExecContext(
		ctx,
		data.SessionID,
		data.Timestamp,
		data.Seq,
		data.State,
		data.AccelX,
		data.AccelY,
		data.AccelZ,
		data.GyroX,
		data.GyroY,
		data.GyroZ,
	)
	if err != nil {
		err = fmt.Errorf("inserting telemetry: %w", err)
		return
	}

	telemetryID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting telemetry ID: %w", err)
	}
	return
}

func (s *SqliteStore) StoreEvents(ctx context.Context, sessionID int64, events []Event) (err error) {
	if len(events) == 0 {
		return
	}

	db, err := s.getWriteDB(ctx)
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(events)*3)

	var sb strings.Builder
	sb.WriteString(insertEventSQL)

	for i, e := range events {
		values = append(values, sessionID, toUnixNano(e.Timestamp), e.Message)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?)")
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting events: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) Events(ctx context.Context, sessionID int64) (events []Event, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectEventsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying events: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var ts int64
		var e Event
		if err = rows.Scan(&ts, &e.Message); err != nil {
			err = fmt.Errorf("scanning event: %w", err)
			return
		}
		e.Timestamp = fromUnixNano(ts)
		events = append(events, e)
	}
	err = rows.Err()
	return
}

// ReadTelemetry creates a reader iterating over the telemetry of a session in time order.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - sessionID: Unique identifier of the session to read from
//   - opts: Optional filters (WithStartTime, WithEndTime, WithTimeRange)
//
// The returned reader must be closed after use to release database resources.
// Returns error if reader creation fails or session doesn't exist.
func (s *SqliteStore) ReadTelemetry(ctx context.Context, sessionID int64, opts ...ReaderOption) (*SqliteTelemetryReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteTelemetryReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(context.Background(), s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
