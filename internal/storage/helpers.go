package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/roman-kulish/rc-vehicle/internal/imu"
	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && !errors.Is(cErr, sql.ErrTxDone) {
		*err = cErr
	}
}

func toTelemetryData(sessionID int64, s telemetry.Snapshot) *telemetryData {
	data := telemetryData{
		SessionID: sessionID,
		Timestamp: toUnixNano(s.Timestamp),
		Seq:       int64(s.Seq),
		State:     string(s.State),
	}
	if s.Accel != nil {
		data.AccelX = toSQLNullFloat(s.Accel.X)
		data.AccelY = toSQLNullFloat(s.Accel.Y)
		data.AccelZ = toSQLNullFloat(s.Accel.Z)
	}
	if s.Gyro != nil {
		data.GyroX = toSQLNullFloat(s.Gyro.X)
		data.GyroY = toSQLNullFloat(s.Gyro.Y)
		data.GyroZ = toSQLNullFloat(s.Gyro.Z)
	}
	return &data
}

func fromTelemetryData(data *telemetryData) *TelemetryRecord {
	rec := TelemetryRecord{
		ID:        data.ID,
		SessionID: data.SessionID,
		Snapshot: telemetry.Snapshot{
			State:     telemetry.State(data.State),
			Timestamp: fromUnixNano(data.Timestamp),
			Seq:       uint64(data.Seq),
		},
	}
	if data.AccelX.Valid && data.AccelY.Valid && data.AccelZ.Valid {
		rec.Accel = &imu.Vector{X: data.AccelX.Float64, Y: data.AccelY.Float64, Z: data.AccelZ.Float64}
	}
	if data.GyroX.Valid && data.GyroY.Valid && data.GyroZ.Valid {
		rec.Gyro = &imu.Vector{X: data.GyroX.Float64, Y: data.GyroY.Float64, Z: data.GyroZ.Float64}
	}
	return &rec
}

func toSQLNullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
