package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roman-kulish/rc-vehicle/internal/imu"
)

type stubSensor struct {
	initErr error
	readErr error
	reading imu.Reading
	reads   int
}

func (s *stubSensor) Initialize(context.Context) error {
	return s.initErr
}

func (s *stubSensor) ReadOnce(context.Context) (imu.Reading, error) {
	s.reads++
	return s.reading, s.readErr
}

func TestSampler_Lifecycle(t *testing.T) {
	mock := clock.NewMock()
	sensor := &stubSensor{reading: imu.Reading{
		Accel: imu.Vector{X: 0.1, Y: -0.25, Z: 9.81},
		Gyro:  imu.Vector{X: 0, Y: 0.012, Z: -1.5},
	}}
	s := NewSampler(sensor, WithClock(mock))

	if got := s.Get().Text(); got != "Initializing..." {
		t.Errorf("Expected initializing sentinel, got %q", got)
	}
	if s.Sample(context.Background()) {
		t.Error("Sample before Init should be a no-op")
	}

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init: %v", err)
	}
	if got := s.Get().Text(); got != "IMU initialized!" {
		t.Errorf("Expected initialized message, got %q", got)
	}

	mock.Add(100 * time.Millisecond)
	if !s.Sample(context.Background()) {
		t.Fatal("Expected snapshot to be replaced")
	}

	expected := "Accel: X=0.10 Y=-0.25 Z=9.81 m/s²\nGyro: X=0.00 Y=0.01 Z=-1.50 rad/s"
	snap := s.Get()
	if got := snap.Text(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
	if !snap.Timestamp.Equal(mock.Now()) || snap.Seq != 1 {
		t.Errorf("Unexpected snapshot metadata: %+v", snap)
	}
}

func TestSampler_UnavailableIsTerminal(t *testing.T) {
	sensor := &stubSensor{initErr: errors.New("no ack")}
	s := NewSampler(sensor)

	if err := s.Init(context.Background()); err == nil {
		t.Fatal("Expected init error")
	}
	// no retry on a second Init either
	sensor.initErr = nil
	_ = s.Init(context.Background())

	for i := 0; i < 3; i++ {
		if s.Sample(context.Background()) {
			t.Fatal("Unavailable sensor must not be sampled")
		}
	}
	if sensor.reads != 0 {
		t.Errorf("Expected no sensor reads, got %d", sensor.reads)
	}
	if got := s.Get().Text(); got != "IMU not detected!" {
		t.Errorf("Expected unavailable sentinel, got %q", got)
	}
}

func TestSampler_NoSensor(t *testing.T) {
	s := NewSampler(nil)
	if err := s.Init(context.Background()); !errors.Is(err, imu.ErrNotInitialized) {
		t.Fatalf("Expected ErrNotInitialized, got %v", err)
	}
	if s.Get().State != StateUnavailable {
		t.Errorf("Expected unavailable state, got %s", s.Get().State)
	}
}

func TestSampler_ReadErrorKeepsSnapshot(t *testing.T) {
	sensor := &stubSensor{reading: imu.Reading{Accel: imu.Vector{Z: 1}}}
	s := NewSampler(sensor, WithClock(clock.NewMock()))
	_ = s.Init(context.Background())
	s.Sample(context.Background())

	before := s.Get().Text()

	sensor.readErr = imu.ErrBusTimeout
	sensor.reading = imu.Reading{Accel: imu.Vector{Z: 2}}
	if s.Sample(context.Background()) {
		t.Fatal("Failed read must not replace the snapshot")
	}

	if after := s.Get().Text(); after != before {
		t.Errorf("Expected stale snapshot %q, got %q", before, after)
	}
	if s.ReadErrors() != 1 {
		t.Errorf("Expected 1 read error, got %d", s.ReadErrors())
	}
}
