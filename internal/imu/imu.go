// Package imu defines the inertial sensor contract used by the telemetry sampler and an
// ICM-20948 register driver implementing it.
package imu

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrBusTimeout is returned when a bus transaction does not complete in time
	ErrBusTimeout = errors.New("bus transaction timed out")

	// ErrUnexpectedDevice is returned when the device identity register does not match
	ErrUnexpectedDevice = errors.New("unexpected device")

	// ErrNotInitialized is returned when reading a sensor that was never initialized
	ErrNotInitialized = errors.New("sensor not initialized")
)

// Vector is a three-axis measurement.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Reading is a single sensor sample.
type Reading struct {
	Accel Vector `json:"accel"` // m/s²
	Gyro  Vector `json:"gyro"`  // rad/s
}

// Sensor is an inertial sensor.
type Sensor interface {
	Initialize(ctx context.Context) error
	ReadOnce(ctx context.Context) (Reading, error)
}

// Bus is a register-level bus transaction: write w, then read len(r) bytes into r.
// periph.io i2c.Dev satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

// guardedBus runs transactions on a bus which cannot be interrupted, giving up when
// the context is done. At most one transaction is outstanding: while a transaction that
// timed out has not returned, new ones fail immediately with ErrBusTimeout, so a stuck
// bus holds a single goroutine no matter how often it is read.
type guardedBus struct {
	bus Bus

	mu      sync.Mutex
	pending chan struct{} // closed once the last started transaction returned
}

func newGuardedBus(bus Bus) *guardedBus {
	return &guardedBus{bus: bus}
}

func (b *guardedBus) tx(ctx context.Context, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.pending != nil {
		select {
		case <-b.pending:
		default:
			b.mu.Unlock()
			return fmt.Errorf("%w: previous transaction still in progress", ErrBusTimeout)
		}
	}

	// read into a private buffer so a late transaction cannot race with the caller
	buf := make([]byte, len(r))
	result := make(chan error, 1)
	finished := make(chan struct{})
	b.pending = finished
	b.mu.Unlock()

	go func() {
		defer close(finished)
		result <- b.bus.Tx(w, buf)
	}()

	select {
	case err := <-result:
		if err != nil {
			return err
		}
		copy(r, buf)
		return nil

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrBusTimeout, ctx.Err())
		}
		return ctx.Err()
	}
}
