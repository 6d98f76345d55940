package app

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/roman-kulish/rc-vehicle/internal/imu"
	"github.com/roman-kulish/rc-vehicle/internal/storage"
	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
)

func record(ts time.Time, accel, gyro imu.Vector) *storage.TelemetryRecord {
	return &storage.TelemetryRecord{
		Snapshot: telemetry.Snapshot{
			State:     telemetry.StateSampled,
			Timestamp: ts,
			Accel:     &accel,
			Gyro:      &gyro,
		},
	}
}

func TestTelemetrySeries_Update(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	series := NewTelemetrySeries()

	series.Update(record(start.Add(time.Second), imu.Vector{X: 3, Y: 4}, imu.Vector{Z: 1}))
	series.Update(record(start, imu.Vector{Z: 2}, imu.Vector{X: 2}))
	series.Update(&storage.TelemetryRecord{Snapshot: telemetry.Snapshot{State: telemetry.StateUnavailable}})

	if len(series.Points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(series.Points))
	}
	if series.Skipped != 1 {
		t.Errorf("Expected 1 skipped record, got %d", series.Skipped)
	}
	if series.Points[0].Accel != 5 {
		t.Errorf("Expected acceleration magnitude 5, got %f", series.Points[0].Accel)
	}
	if !series.TimestampStart.Equal(start) || series.Duration() != time.Second {
		t.Errorf("Unexpected time span: %s, %s", series.TimestampStart, series.Duration())
	}
	if series.AccelBounds != (Bounds{Min: 2, Max: 5}) {
		t.Errorf("Unexpected acceleration bounds: %+v", series.AccelBounds)
	}
	if series.GyroBounds != (Bounds{Min: 1, Max: 2}) {
		t.Errorf("Unexpected angular rate bounds: %+v", series.GyroBounds)
	}
}

func TestBounds_Span(t *testing.T) {
	if span := (Bounds{Min: 1, Max: 1}).Span(); span != 1 {
		t.Errorf("Expected a flat series to span 1, got %f", span)
	}
	if span := (Bounds{Min: -2, Max: 3}).Span(); span != 5 {
		t.Errorf("Expected span 5, got %f", span)
	}
}

func TestTelemetryRenderer_Render(t *testing.T) {
	renderer, err := NewTelemetryRenderer(RenderConfig{
		Location:    time.UTC,
		Width:       400,
		PanelHeight: 120,
	})
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}

	if _, err = renderer.Render(NewTelemetrySeries()); !errors.Is(err, errNoData) {
		t.Errorf("Expected errNoData for an empty series, got %v", err)
	}

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	series := NewTelemetrySeries()
	for i := 0; i < 100; i++ {
		v := math.Sin(float64(i) / 10)
		series.Update(record(start.Add(time.Duration(i)*100*time.Millisecond),
			imu.Vector{X: v, Z: 9.81}, imu.Vector{Z: v}))
	}

	img, err := renderer.Render(series)
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	wantW := defaultLeftBorder + 400 + defaultRightBorder
	wantH := defaultTopBorder + 2*120 + defaultPanelGap + defaultBottomBorder
	if size := img.Bounds().Size(); size.X != wantW || size.Y != wantH {
		t.Errorf("Expected %dx%d image, got %dx%d", wantW, wantH, size.X, size.Y)
	}

	// both panels must have plotted pixels in the series colours
	for i := 0; i < 2; i++ {
		top := defaultTopBorder + i*(120+defaultPanelGap)
		area := image.Rect(defaultLeftBorder+1, top+1, defaultLeftBorder+399, top+119)
		want := color.RGBAModel.Convert(seriesColor(i, 2))
		if !containsColor(img, area, want) {
			t.Errorf("Expected panel %d to contain a plotted series", i)
		}
	}
}

func TestNewTelemetryRenderer_TooSmall(t *testing.T) {
	if _, err := NewTelemetryRenderer(RenderConfig{Width: 10, PanelHeight: 10}); err == nil {
		t.Error("Expected an error for a plot below the minimum size")
	}
}

func TestDrawLine(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	drawLine(img, image.Point{X: 1, Y: 1}, image.Point{X: 8, Y: 5}, color.Black)

	for _, p := range []image.Point{{X: 1, Y: 1}, {X: 8, Y: 5}} {
		if img.RGBAAt(p.X, p.Y) != (color.RGBA{A: 0xff}) {
			t.Errorf("Expected endpoint %v to be drawn", p)
		}
	}

	// a continuous segment sets one pixel per column on a shallow slope
	for x := 1; x <= 8; x++ {
		found := false
		for y := 0; y < 10; y++ {
			if img.RGBAAt(x, y).A != 0 {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected a pixel in column %d", x)
		}
	}
}

func TestCalculateNiceTimeStep(t *testing.T) {
	tests := []struct {
		duration time.Duration
		width    int
		want     time.Duration
	}{
		{duration: 3 * time.Second, width: 1200, want: time.Second},
		{duration: time.Minute, width: 1200, want: 10 * time.Second},
		{duration: time.Hour, width: 1200, want: 10 * time.Minute},
		{duration: 48 * time.Hour, width: 1200, want: 2 * time.Hour},
		{duration: time.Minute, width: 10, want: time.Minute},
	}

	for _, tt := range tests {
		if got := calculateNiceTimeStep(tt.duration, tt.width); got != tt.want {
			t.Errorf("calculateNiceTimeStep(%s, %d): expected %s, got %s", tt.duration, tt.width, tt.want, got)
		}
	}
}

func containsColor(img *image.RGBA, area image.Rectangle, want color.Color) bool {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if img.RGBAAt(x, y) == want {
				return true
			}
		}
	}
	return false
}
