// Package periph binds the vehicle to real board peripherals through periph.io.
package periph

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the host drivers once per process.
func Init() error {
	initOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			initErr = fmt.Errorf("periph: host init: %w", err)
		}
	})
	return initErr
}

// I2CDevice is an opened device on an I²C bus. Close releases the bus.
type I2CDevice struct {
	*i2c.Dev
	bus i2c.BusCloser
}

// OpenI2C opens the named bus ("" selects the first one available) and addresses
// the device at addr.
func OpenI2C(busName string, addr uint16) (*I2CDevice, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("periph: open i2c bus %q: %w", busName, err)
	}
	return &I2CDevice{Dev: &i2c.Dev{Bus: bus, Addr: addr}, bus: bus}, nil
}

func (d *I2CDevice) Close() error {
	return d.bus.Close()
}
