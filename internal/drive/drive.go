// Package drive maps a two-axis operator input onto differential motor speeds.
package drive

import "fmt"

const (
	InputMin = -100
	InputMax = 100

	SpeedMin = -255
	SpeedMax = 255

	// DefaultSteeringLimit is the steering bias applied at full stick deflection
	DefaultSteeringLimit = 128

	// ThrustBidirectional maps the thrust axis onto [-255, 255], centre stick is stop
	ThrustBidirectional ThrustMode = "bidirectional"

	// ThrustForwardOnly maps the thrust axis onto [0, 255], bottom stick is stop
	ThrustForwardOnly ThrustMode = "forward-only"
)

var validThrustModes = map[ThrustMode]struct{}{
	ThrustBidirectional: {},
	ThrustForwardOnly:   {},
}

type ThrustMode string

func (m ThrustMode) String() string {
	return string(m)
}

func (m ThrustMode) Validate() error {
	if _, ok := validThrustModes[m]; !ok {
		return fmt.Errorf("invalid thrust mode: '%s'", m)
	}
	return nil
}

// Input is a single operator stick position. X is steering, Y is thrust.
type Input struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Speed is a signed motor speed: the sign encodes direction, the magnitude the duty cycle.
// A Speed is always within [SpeedMin, SpeedMax].
type Speed int16

// NewSpeed returns v saturated to the valid speed range.
func NewSpeed(v int) Speed {
	return Speed(Clamp(v, SpeedMin, SpeedMax))
}

// Negate returns the speed with its direction inverted.
func (s Speed) Negate() Speed {
	return -s
}

// Duty returns the magnitude of the speed as an 8-bit duty cycle.
func (s Speed) Duty() uint8 {
	if s < 0 {
		return uint8(-s)
	}
	return uint8(s)
}

// Command is a pair of motor speeds computed from one Input.
type Command struct {
	Left  Speed `json:"left"`
	Right Speed `json:"right"`
}

// WithThrustMode sets how the thrust axis is interpreted.
func WithThrustMode(mode ThrustMode) func(*Mixer) {
	return func(m *Mixer) {
		m.thrustMode = mode
	}
}

// WithSteeringLimit sets the steering bias at full deflection.
func WithSteeringLimit(limit int) func(*Mixer) {
	return func(m *Mixer) {
		m.steeringLimit = Clamp(limit, 0, SpeedMax)
	}
}

// Mixer implements a differential-drive mix with saturation.
type Mixer struct {
	thrustMode    ThrustMode
	steeringLimit int
}

// NewMixer creates a Mixer in bidirectional thrust mode
func NewMixer(options ...func(*Mixer)) *Mixer {
	m := Mixer{
		thrustMode:    ThrustBidirectional,
		steeringLimit: DefaultSteeringLimit,
	}

	for _, option := range options {
		option(&m)
	}

	return &m
}

// Mix converts in into per-motor speeds. Out of range axes are clamped, never rejected.
// Full thrust with no steering drives both motors equally, steering with no thrust
// turns the vehicle in place.
func (m *Mixer) Mix(in Input) Command {
	x := Clamp(in.X, InputMin, InputMax)
	y := Clamp(in.Y, InputMin, InputMax)

	thrustMin := SpeedMin
	if m.thrustMode == ThrustForwardOnly {
		thrustMin = 0
	}

	thrust := Rescale(y, InputMin, InputMax, thrustMin, SpeedMax)
	steering := Rescale(x, InputMin, InputMax, -m.steeringLimit, m.steeringLimit)

	return Command{
		Left:  NewSpeed(thrust - steering),
		Right: NewSpeed(thrust + steering),
	}
}

// Rescale linearly maps v from [inMin, inMax] onto [outMin, outMax] using integer
// arithmetic truncated toward zero. v is not clamped.
func Rescale(v, inMin, inMax, outMin, outMax int) int {
	if inMax == inMin {
		return outMin
	}
	return (v-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// Clamp constrains v to [lo, hi].
func Clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
