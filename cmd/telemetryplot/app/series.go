package app

import (
	"math"
	"time"

	"github.com/roman-kulish/rc-vehicle/internal/imu"
	"github.com/roman-kulish/rc-vehicle/internal/storage"
)

// Point is a single plotted reading
type Point struct {
	Timestamp time.Time
	Accel     float64 // magnitude in m/s²
	Gyro      float64 // magnitude in rad/s
}

// Bounds is the value range of a series
type Bounds struct {
	Min, Max float64
}

func (b *Bounds) update(v float64) {
	b.Min = min(b.Min, v)
	b.Max = max(b.Max, v)
}

// Span returns the range of the bounds, never zero so it can be divided by
func (b Bounds) Span() float64 {
	if span := b.Max - b.Min; span > 0 {
		return span
	}
	return 1
}

type TelemetrySeries struct {
	TimestampStart, TimestampEnd time.Time
	AccelBounds, GyroBounds      Bounds
	Points                       []Point
	Skipped                      int
}

func NewTelemetrySeries() *TelemetrySeries {
	return &TelemetrySeries{
		AccelBounds: Bounds{Min: math.MaxFloat64, Max: -math.MaxFloat64},
		GyroBounds:  Bounds{Min: math.MaxFloat64, Max: -math.MaxFloat64},
		Points:      make([]Point, 0),
	}
}

// Update adds a stored record to the series. Records without a sampled reading are
// counted and skipped.
func (s *TelemetrySeries) Update(rec *storage.TelemetryRecord) {
	if rec.Accel == nil || rec.Gyro == nil || rec.Timestamp.IsZero() {
		s.Skipped++
		return
	}

	if s.TimestampStart.IsZero() || s.TimestampStart.After(rec.Timestamp) {
		s.TimestampStart = rec.Timestamp
	}
	if s.TimestampEnd.IsZero() || s.TimestampEnd.Before(rec.Timestamp) {
		s.TimestampEnd = rec.Timestamp
	}

	p := Point{
		Timestamp: rec.Timestamp,
		Accel:     magnitude(*rec.Accel),
		Gyro:      magnitude(*rec.Gyro),
	}
	s.AccelBounds.update(p.Accel)
	s.GyroBounds.update(p.Gyro)
	s.Points = append(s.Points, p)
}

func (s *TelemetrySeries) Empty() bool {
	return len(s.Points) == 0
}

// Duration returns the time covered by the series, never zero
func (s *TelemetrySeries) Duration() time.Duration {
	if d := s.TimestampEnd.Sub(s.TimestampStart); d > 0 {
		return d
	}
	return time.Second
}

func magnitude(v imu.Vector) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}
