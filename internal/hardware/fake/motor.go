// Package fake implements simulated hardware for running the vehicle without a board.
package fake

import (
	"sync"

	"github.com/roman-kulish/rc-vehicle/internal/motor"
)

// ChannelState is the last value written to a simulated motor channel.
type ChannelState struct {
	Direction motor.Direction
	Duty      uint8
	Writes    int
}

// MotorDriver records the phase and duty writes of both channels.
type MotorDriver struct {
	mu       sync.Mutex
	channels map[motor.Channel]*ChannelState
}

func NewMotorDriver() *MotorDriver {
	return &MotorDriver{
		channels: map[motor.Channel]*ChannelState{
			motor.Left:  {},
			motor.Right: {},
		},
	}
}

func (d *MotorDriver) SetDirection(ch motor.Channel, dir motor.Direction) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := d.channel(ch)
	state.Direction = dir
	state.Writes++
	return nil
}

func (d *MotorDriver) SetDutyCycle(ch motor.Channel, duty uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := d.channel(ch)
	state.Duty = duty
	state.Writes++
	return nil
}

// Channel returns a copy of the channel state.
func (d *MotorDriver) Channel(ch motor.Channel) ChannelState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.channel(ch)
}

// expects to already have lock acquired.
func (d *MotorDriver) channel(ch motor.Channel) *ChannelState {
	state, ok := d.channels[ch]
	if !ok {
		state = &ChannelState{}
		d.channels[ch] = state
	}
	return state
}
