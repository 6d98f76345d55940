package storage

import (
	"database/sql"
)

type telemetryData struct {
	ID        int64
	SessionID int64
	Timestamp int64
	Seq       int64
	State     string
	AccelX    sql.NullFloat64
	AccelY    sql.NullFloat64
	AccelZ    sql.NullFloat64
	GyroX     sql.NullFloat64
	GyroY     sql.NullFloat64
	GyroZ     sql.NullFloat64
}
