package control

import (
	"time"

	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
)

// Event is a single log entry as appended to the log buffer
type Event struct {
	Time    time.Time
	Message string
}

// Recorder receives every new snapshot and log entry. Implementations must not block
// the control loop.
type Recorder interface {
	RecordTelemetry(snapshot telemetry.Snapshot)
	RecordEvent(event Event)
}

type nopRecorder struct{}

func (nopRecorder) RecordTelemetry(telemetry.Snapshot) {}

func (nopRecorder) RecordEvent(Event) {}
