package imu

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"
)

const (
	// ICM20948Address is the default I2C address (AD0 low)
	ICM20948Address = 0x68

	// ICM20948AltAddress is the I2C address with AD0 wired high
	ICM20948AltAddress = 0x69

	// DefaultReadTimeout bounds every bus transaction
	DefaultReadTimeout = 20 * time.Millisecond

	icmWhoAmIValue = 0xEA

	// user bank 0 registers
	regWhoAmI     = 0x00
	regPwrMgmt1   = 0x06
	regPwrMgmt2   = 0x07
	regAccelXOutH = 0x2D // accel X/Y/Z followed by gyro X/Y/Z, big endian
	regBankSel    = 0x7F

	pwrMgmt1ClockAuto = 0x01 // sleep bit cleared, best available clock
	pwrMgmt1Sleep     = 0x41

	// default full scale ranges: ±2 g, ±250 dps
	accelLSBPerG    = 16384.0
	gyroLSBPerDPS   = 131.0
	standardGravity = 9.80665
)

// WithReadTimeout bounds every bus transaction of the sensor.
func WithReadTimeout(timeout time.Duration) func(*ICM20948) {
	return func(s *ICM20948) {
		s.timeout = timeout
	}
}

// WithLogger sets the logger for the sensor
func WithLogger(logger *slog.Logger) func(*ICM20948) {
	return func(s *ICM20948) {
		s.logger = logger.With(slog.String("sensor", "icm20948"))
	}
}

// ICM20948 reads acceleration and angular rate from an InvenSense ICM-20948 in its
// default full scale configuration. The magnetometer is not used.
type ICM20948 struct {
	bus     *guardedBus
	timeout time.Duration
	logger  *slog.Logger

	initialized bool
}

// NewICM20948 creates a sensor on bus. The bus must already be addressed to the device.
func NewICM20948(bus Bus, options ...func(*ICM20948)) *ICM20948 {
	s := ICM20948{
		bus:     newGuardedBus(bus),
		timeout: DefaultReadTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Initialize checks the device identity and wakes it up with accel and gyro enabled.
func (s *ICM20948) Initialize(ctx context.Context) error {
	if err := s.writeByte(ctx, regBankSel, 0); err != nil {
		return fmt.Errorf("selecting register bank: %w", err)
	}

	id, err := s.readBlock(ctx, regWhoAmI, 1)
	if err != nil {
		return fmt.Errorf("reading device identity: %w", err)
	}
	if id[0] != icmWhoAmIValue {
		return fmt.Errorf("%w: identity 0x%02X, expected 0x%02X", ErrUnexpectedDevice, id[0], icmWhoAmIValue)
	}

	if err = s.writeByte(ctx, regPwrMgmt1, pwrMgmt1ClockAuto); err != nil {
		return fmt.Errorf("waking up device: %w", err)
	}
	if err = s.writeByte(ctx, regPwrMgmt2, 0); err != nil {
		return fmt.Errorf("enabling accel and gyro: %w", err)
	}

	s.initialized = true
	s.logger.Debug("sensor initialized")
	return nil
}

// ReadOnce performs a single burst read of acceleration and angular rate.
func (s *ICM20948) ReadOnce(ctx context.Context) (Reading, error) {
	if !s.initialized {
		return Reading{}, ErrNotInitialized
	}

	raw, err := s.readBlock(ctx, regAccelXOutH, 12)
	if err != nil {
		return Reading{}, fmt.Errorf("reading sensor data: %w", err)
	}

	return Reading{
		Accel: toVector(raw[0:6], standardGravity/accelLSBPerG),
		Gyro:  toVector(raw[6:12], (math.Pi/180)/gyroLSBPerDPS),
	}, nil
}

// Close puts the device back to sleep.
func (s *ICM20948) Close(ctx context.Context) error {
	if !s.initialized {
		return nil
	}
	s.initialized = false
	return s.writeByte(ctx, regPwrMgmt1, pwrMgmt1Sleep)
}

func (s *ICM20948) readBlock(ctx context.Context, register byte, length int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data := make([]byte, length)
	if err := s.bus.tx(ctx, []byte{register}, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *ICM20948) writeByte(ctx context.Context, register, value byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.bus.tx(ctx, []byte{register, value}, nil)
}

func toVector(data []byte, scale float64) Vector {
	return Vector{
		X: float64(int16(binary.BigEndian.Uint16(data[0:2]))) * scale,
		Y: float64(int16(binary.BigEndian.Uint16(data[2:4]))) * scale,
		Z: float64(int16(binary.BigEndian.Uint16(data[4:6]))) * scale,
	}
}
