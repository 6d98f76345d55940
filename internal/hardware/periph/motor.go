package periph

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"

	"github.com/roman-kulish/rc-vehicle/internal/motor"
)

// MotorPins names the GPIO lines of a phase/enable H-bridge channel.
type MotorPins struct {
	Phase  string `yaml:"phase" json:"phase"`
	Enable string `yaml:"enable" json:"enable"`
}

type channelPins struct {
	phase  gpio.PinOut
	enable gpio.PinOut
}

// WithFrequency sets the PWM carrier frequency in Hz.
func WithFrequency(hz int) func(*MotorDriver) {
	return func(d *MotorDriver) {
		if hz > 0 {
			d.frequency = physic.Frequency(hz) * physic.Hertz
		}
	}
}

// MotorDriver drives a dual phase/enable motor controller. Phase pins carry the
// direction and enable pins carry the PWM duty.
type MotorDriver struct {
	frequency physic.Frequency
	channels  map[motor.Channel]channelPins
}

func NewMotorDriver(left, right MotorPins, options ...func(*MotorDriver)) (*MotorDriver, error) {
	if err := Init(); err != nil {
		return nil, err
	}

	d := MotorDriver{
		frequency: physic.Frequency(motor.DefaultPWMFrequency) * physic.Hertz,
		channels:  make(map[motor.Channel]channelPins, 2),
	}
	for _, option := range options {
		option(&d)
	}

	for ch, pins := range map[motor.Channel]MotorPins{motor.Left: left, motor.Right: right} {
		phase, err := lookupPin(pins.Phase)
		if err != nil {
			return nil, fmt.Errorf("periph: %s phase: %w", ch, err)
		}
		enable, err := lookupPin(pins.Enable)
		if err != nil {
			return nil, fmt.Errorf("periph: %s enable: %w", ch, err)
		}
		d.channels[ch] = channelPins{phase: phase, enable: enable}
	}
	return &d, nil
}

func (d *MotorDriver) SetDirection(ch motor.Channel, dir motor.Direction) error {
	pins, ok := d.channels[ch]
	if !ok {
		return fmt.Errorf("periph: unknown motor channel %s", ch)
	}
	level := gpio.High
	if dir == motor.Reverse {
		level = gpio.Low
	}
	return pins.phase.Out(level)
}

func (d *MotorDriver) SetDutyCycle(ch motor.Channel, duty uint8) error {
	pins, ok := d.channels[ch]
	if !ok {
		return fmt.Errorf("periph: unknown motor channel %s", ch)
	}
	return pins.enable.PWM(DutyFromByte(duty), d.frequency)
}

// Halt stops PWM on every enable pin.
func (d *MotorDriver) Halt() error {
	var errs []error
	for _, pins := range d.channels {
		errs = append(errs, pins.enable.Halt())
	}
	return errors.Join(errs...)
}

// DutyFromByte scales an 8-bit duty to the periph duty range.
func DutyFromByte(duty uint8) gpio.Duty {
	return gpio.Duty(uint64(duty) * uint64(gpio.DutyMax) / 255)
}

func lookupPin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, errors.New("pin name is empty")
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no pin found for %q", name)
	}
	return pin, nil
}
