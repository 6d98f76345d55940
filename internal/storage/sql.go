package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_telemetry_session_timestamp ON telemetry (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_session_timestamp ON events (session_id, timestamp);`

	insertSessionSQL = `
INSERT INTO sessions (start_time,
                      vehicle,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	selectSessionSQL = `
SELECT 
    id, 
    start_time, 
    vehicle, 
    config 
FROM sessions 
WHERE 
    id = ?`

	selectSessionsSQL = `
SELECT 
    id, 
    start_time, 
    vehicle, 
    config 
FROM sessions
ORDER BY start_time, id`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       timestamp,
                       seq,
                       state,
                       accel_x,
                       accel_y,
                       accel_z,
                       gyro_x,
                       gyro_y,
                       gyro_z)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertEventSQL = `
INSERT INTO events (session_id,
                    timestamp,
                    message)
VALUES `

	selectEventsSQL = `
SELECT 
    timestamp, 
    message 
FROM events 
WHERE 
    session_id = ? 
ORDER BY timestamp, id`

	selectTelemetrySQL = `
SELECT 
    id, 
    timestamp, 
    seq, 
    state, 
    accel_x, 
    accel_y, 
    accel_z, 
    gyro_x, 
    gyro_y, 
    gyro_z 
FROM telemetry 
WHERE 
    session_id = ? 
    AND timestamp >= ? 
    AND timestamp <= ? 
ORDER BY timestamp, id`
)
