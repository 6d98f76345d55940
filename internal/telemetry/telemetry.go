package telemetry

import (
	"fmt"
	"time"

	"github.com/roman-kulish/rc-vehicle/internal/imu"
)

const (
	StateInitializing State = "initializing"
	StateUnavailable  State = "unavailable"
	StateReady        State = "ready"
	StateSampled      State = "sampled"
)

const snapshotFormat = "Accel: X=%.2f Y=%.2f Z=%.2f m/s²\nGyro: X=%.2f Y=%.2f Z=%.2f rad/s"

var stateText = map[State]string{
	StateInitializing: "Initializing...",
	StateUnavailable:  "IMU not detected!",
	StateReady:        "IMU initialized!",
}

// State is the lifecycle of a snapshot
type State string

// Snapshot is the last known reading of the inertial sensor
type Snapshot struct {
	State     State       `json:"state"`
	Timestamp time.Time   `json:"timestamp,omitzero"` // Timestamp of the reading
	Accel     *imu.Vector `json:"accel,omitempty"`    // Acceleration in m/s²
	Gyro      *imu.Vector `json:"gyro,omitempty"`     // Angular rate in rad/s
	Seq       uint64      `json:"seq"`                // Number of readings taken so far
}

// Text renders the snapshot the way it is served to the operator
func (s Snapshot) Text() string {
	if s.State != StateSampled || s.Accel == nil || s.Gyro == nil {
		return stateText[s.State]
	}

	return fmt.Sprintf(snapshotFormat,
		s.Accel.X, s.Accel.Y, s.Accel.Z,
		s.Gyro.X, s.Gyro.Y, s.Gyro.Z)
}

func (s Snapshot) String() string {
	return s.Text()
}
