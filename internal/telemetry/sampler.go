// Package telemetry samples the inertial sensor into snapshots served to the operator.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/roman-kulish/rc-vehicle/internal/imu"
)

// DefaultErrorLogInterval limits how often repeated read errors are logged
const DefaultErrorLogInterval = 5 * time.Second

// WithLogger sets the logger for the sampler
func WithLogger(logger *slog.Logger) func(*Sampler) {
	return func(s *Sampler) {
		s.logger = logger.With(slog.String("component", "telemetry"))
	}
}

// WithClock sets the clock used to timestamp snapshots
func WithClock(c clock.Clock) func(*Sampler) {
	return func(s *Sampler) {
		s.clock = c
	}
}

// Sampler turns sensor reads into snapshots. The cadence is owned by the caller, every
// Sample call reads the sensor once. Sampler is not safe for concurrent use.
type Sampler struct {
	sensor imu.Sensor
	clock  clock.Clock
	logger *slog.Logger

	snapshot  Snapshot
	readErrs  uint64
	errLogger rate.Sometimes
}

// NewSampler creates a sampler in the initializing state
func NewSampler(sensor imu.Sensor, options ...func(*Sampler)) *Sampler {
	s := Sampler{
		sensor:    sensor,
		clock:     clock.New(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		snapshot:  Snapshot{State: StateInitializing},
		errLogger: rate.Sometimes{First: 1, Interval: DefaultErrorLogInterval},
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Init initializes the sensor once. A failure is terminal: the snapshot stays
// unavailable until the process restarts.
func (s *Sampler) Init(ctx context.Context) error {
	if s.snapshot.State != StateInitializing {
		return nil
	}

	if s.sensor == nil {
		s.snapshot = Snapshot{State: StateUnavailable}
		s.logger.Warn("no inertial sensor configured")
		return imu.ErrNotInitialized
	}

	if err := s.sensor.Initialize(ctx); err != nil {
		s.snapshot = Snapshot{State: StateUnavailable}
		s.logger.Error("inertial sensor not detected", slog.String("error", err.Error()))
		return err
	}

	s.snapshot = Snapshot{State: StateReady}
	s.logger.Info("inertial sensor initialized")
	return nil
}

// Sample reads the sensor and replaces the snapshot. A failed read keeps the previous
// snapshot. It reports whether the snapshot was replaced.
func (s *Sampler) Sample(ctx context.Context) bool {
	if s.snapshot.State == StateInitializing || s.snapshot.State == StateUnavailable {
		return false
	}

	reading, err := s.sensor.ReadOnce(ctx)
	if err != nil {
		s.readErrs++
		s.errLogger.Do(func() {
			s.logger.Warn("reading inertial sensor",
				slog.String("error", err.Error()),
				slog.Uint64("failures", s.readErrs))
		})
		return false
	}

	accel, gyro := reading.Accel, reading.Gyro
	s.snapshot = Snapshot{
		State:     StateSampled,
		Timestamp: s.clock.Now(),
		Accel:     &accel,
		Gyro:      &gyro,
		Seq:       s.snapshot.Seq + 1,
	}
	return true
}

// Get returns the current snapshot
func (s *Sampler) Get() Snapshot {
	return s.snapshot
}

// ReadErrors returns the number of failed sensor reads
func (s *Sampler) ReadErrors() uint64 {
	return s.readErrs
}
