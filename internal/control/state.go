package control

import (
	"context"

	"github.com/roman-kulish/rc-vehicle/internal/drive"
	"github.com/roman-kulish/rc-vehicle/internal/logsink"
	"github.com/roman-kulish/rc-vehicle/internal/motor"
	"github.com/roman-kulish/rc-vehicle/internal/radio"
	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
)

// Sampler is the telemetry source driven by the scheduler
type Sampler interface {
	telemetry.Provider
	Init(ctx context.Context) error
	Sample(ctx context.Context) bool
}

// State is everything owned by the control loop. Only the scheduler goroutine
// may touch it once Run has started.
type State struct {
	Mixer   *drive.Mixer
	Output  *motor.Output
	Log     *logsink.Buffer
	Sampler Sampler
	Radio   radio.Radio // optional
	UI      []byte

	// Input is the last operator input, missing axes of a request are taken from it
	Input drive.Input
}
