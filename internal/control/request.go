package control

import (
	"context"
	"errors"
)

const (
	OpControl   Op = "control"
	OpReverse   Op = "reverse"
	OpLog       Op = "log"
	OpTelemetry Op = "telemetry"
	OpSignal    Op = "signal"
	OpUI        Op = "ui"

	// OpAnnounce appends Message to the log, it is not exposed to the operator
	OpAnnounce Op = "announce"
)

const (
	FormatText Format = ""
	FormatJSON Format = "json"
)

const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeJSON = "application/json"

	// BodyOK acknowledges a request with side effects
	BodyOK = "OK"

	// BodyUnavailable is returned when the signal strength cannot be read
	BodyUnavailable = "unavailable"
)

var (
	ErrUnknownOp = errors.New("unknown operation")
	ErrStopped   = errors.New("scheduler stopped")
)

// Op is the operation requested from the control loop
type Op string

// Format selects the representation of a telemetry response
type Format string

// Request is a parsed operator request. A nil field was absent and leaves the
// corresponding value unchanged.
type Request struct {
	Op Op

	X *int // steering axis
	Y *int // thrust axis

	Left  *bool // reverse left motor
	Right *bool // reverse right motor

	Format Format

	Message string // log entry of an announce request

	// Malformed lists parameters which were present but could not be parsed.
	// They are treated as absent.
	Malformed []string
}

type Response struct {
	Body        string
	ContentType string
}

type envelope struct {
	ctx   context.Context // the caller's context, a request whose caller gave up is dropped
	req   Request
	reply chan result
}

type result struct {
	resp Response
	err  error
}

func textResponse(body string) Response {
	return Response{Body: body, ContentType: ContentTypeText}
}
