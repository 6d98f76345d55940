package storage

import (
	"time"

	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
)

// Session is a single run of the vehicle, from process start to shutdown
type Session struct {
	ID        int64
	StartTime time.Time
	Vehicle   string
	Config    *string // configuration the vehicle was started with, JSON encoded
}

// Event is a log entry produced by the control loop
type Event struct {
	Timestamp time.Time
	Message   string
}

// TelemetryRecord is a stored telemetry snapshot
type TelemetryRecord struct {
	ID        int64
	SessionID int64
	telemetry.Snapshot
}
