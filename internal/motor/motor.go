// Package motor drives two motor channels from signed speeds, honouring per-channel reversal.
package motor

import (
	"errors"
	"fmt"

	"github.com/roman-kulish/rc-vehicle/internal/drive"
)

const (
	Left Channel = iota
	Right
)

const (
	Forward Direction = iota
	Reverse
)

// DefaultPWMFrequency is the PWM carrier frequency in Hz
const DefaultPWMFrequency = 5000

type Channel int

func (c Channel) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

type Direction int

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Driver is the hardware side of a motor controller: a phase (direction) output and an
// 8-bit PWM enable output per channel.
type Driver interface {
	SetDirection(ch Channel, dir Direction) error
	SetDutyCycle(ch Channel, duty uint8) error
}

// Reversal inverts the interpreted direction of a channel to compensate for the way the
// motor is mounted.
type Reversal struct {
	Left  bool `json:"reverseLeft" yaml:"reverseLeft"`
	Right bool `json:"reverseRight" yaml:"reverseRight"`
}

// DefaultReversal reflects the stock chassis where the left motor is mounted mirrored.
func DefaultReversal() Reversal {
	return Reversal{Left: true, Right: false}
}

func (r Reversal) flag(ch Channel) bool {
	if ch == Left {
		return r.Left
	}
	return r.Right
}

// State is what was last written to a single channel.
type State struct {
	Speed     drive.Speed `json:"speed"` // speed after reversal
	Direction Direction   `json:"direction"`
	Duty      uint8       `json:"duty"`
}

// Applied is the state of both channels after a command.
type Applied struct {
	Left  State `json:"left"`
	Right State `json:"right"`
}

// WithReversal sets the initial reversal configuration.
func WithReversal(r Reversal) func(*Output) {
	return func(o *Output) {
		o.reversal = r
	}
}

// Output applies drive commands to a Driver. It is not safe for concurrent use, the
// control loop is its only caller.
type Output struct {
	driver   Driver
	reversal Reversal

	last    drive.Command
	hasLast bool
	applied Applied
}

// NewOutput creates an Output with the default reversal configuration.
func NewOutput(driver Driver, options ...func(*Output)) *Output {
	o := Output{
		driver:   driver,
		reversal: DefaultReversal(),
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// Apply writes cmd to both channels. Both directions are set before either duty cycle so
// the channels change within the same cycle.
func (o *Output) Apply(cmd drive.Command) (Applied, error) {
	o.last = cmd
	o.hasLast = true

	applied := Applied{
		Left:  resolve(cmd.Left, o.reversal.flag(Left)),
		Right: resolve(cmd.Right, o.reversal.flag(Right)),
	}

	var errs []error
	if err := o.driver.SetDirection(Left, applied.Left.Direction); err != nil {
		errs = append(errs, fmt.Errorf("setting %s direction: %w", Left, err))
	}
	if err := o.driver.SetDirection(Right, applied.Right.Direction); err != nil {
		errs = append(errs, fmt.Errorf("setting %s direction: %w", Right, err))
	}
	if err := o.driver.SetDutyCycle(Left, applied.Left.Duty); err != nil {
		errs = append(errs, fmt.Errorf("setting %s duty cycle: %w", Left, err))
	}
	if err := o.driver.SetDutyCycle(Right, applied.Right.Duty); err != nil {
		errs = append(errs, fmt.Errorf("setting %s duty cycle: %w", Right, err))
	}

	o.applied = applied
	return applied, errors.Join(errs...)
}

// SetReversal replaces the reversal configuration. If a command was applied before, it is
// applied again so the outputs reflect the new configuration right away.
func (o *Output) SetReversal(r Reversal) (Applied, error) {
	o.reversal = r
	if !o.hasLast {
		return o.applied, nil
	}
	return o.Apply(o.last)
}

// Reversal returns the current reversal configuration.
func (o *Output) Reversal() Reversal {
	return o.reversal
}

// Applied returns the state last written to the driver.
func (o *Output) Applied() Applied {
	return o.applied
}

// Stop sets both duty cycles to zero. Directions are left untouched.
func (o *Output) Stop() error {
	o.applied.Left.Duty, o.applied.Left.Speed = 0, 0
	o.applied.Right.Duty, o.applied.Right.Speed = 0, 0
	o.last = drive.Command{}

	return errors.Join(
		o.driver.SetDutyCycle(Left, 0),
		o.driver.SetDutyCycle(Right, 0),
	)
}

func resolve(speed drive.Speed, reversed bool) State {
	if reversed {
		speed = speed.Negate()
	}

	dir := Forward
	if speed < 0 {
		dir = Reverse
	}

	return State{
		Speed:     speed,
		Direction: dir,
		Duty:      speed.Duty(),
	}
}
