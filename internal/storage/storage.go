// Package storage records vehicle sessions, telemetry and log entries for post-run analysis.
// It is write-mostly while the vehicle runs and is never used to restore state.
package storage

import (
	"context"

	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
)

// Store provides an interface for the flight recorder storage.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession starts a new recording session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - vehicle: Name of the vehicle being recorded
	//   - config: Optional configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, vehicle string, config any) (sessionID int64, err error)

	// Session retrieves a specific session by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique session identifier
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: If retrieval fails, the session does not exist or context is cancelled
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all sessions stored in the database, ordered by start time.
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreTelemetry saves a telemetry snapshot for a specific session.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session this snapshot belongs to
	//   - s: Snapshot taken by the telemetry sampler
	//
	// Returns:
	//   - telemetryID: Unique identifier for the stored record
	//   - error: If storage fails or context is cancelled
	StoreTelemetry(ctx context.Context, sessionID int64, s telemetry.Snapshot) (telemetryID int64, err error)

	// StoreEvents saves log entries in a single transaction.
	StoreEvents(ctx context.Context, sessionID int64, events []Event) error

	// Events returns the log entries of a session in the order they were produced.
	Events(ctx context.Context, sessionID int64) ([]Event, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}
