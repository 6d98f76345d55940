package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/roman-kulish/rc-vehicle/internal/imu"
)

const standardGravity = 9.80665

// IMU produces a slow synthetic wobble around a level, stationary attitude.
type IMU struct {
	mu      sync.Mutex
	start   time.Time
	now     func() time.Time
	failed  bool
	initErr error
}

// NewIMU creates a simulated sensor. A non-nil initErr makes Initialize fail.
func NewIMU(initErr error) *IMU {
	return &IMU{now: time.Now, initErr: initErr}
}

func (s *IMU) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initErr != nil {
		s.failed = true
		return s.initErr
	}
	s.start = s.now()
	return ctx.Err()
}

func (s *IMU) ReadOnce(ctx context.Context) (imu.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed || s.start.IsZero() {
		return imu.Reading{}, imu.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return imu.Reading{}, err
	}

	phase := s.now().Sub(s.start).Seconds()
	return imu.Reading{
		Accel: imu.Vector{
			X: 0.2 * math.Sin(phase),
			Y: 0.2 * math.Cos(phase),
			Z: standardGravity,
		},
		Gyro: imu.Vector{
			X: 0.05 * math.Sin(2*phase),
			Y: 0.05 * math.Cos(2*phase),
			Z: 0.1 * math.Sin(phase/2),
		},
	}, nil
}
