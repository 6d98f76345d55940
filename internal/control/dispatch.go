package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/roman-kulish/rc-vehicle/internal/drive"
)

// DefaultSignalTimeout bounds a single radio read
const DefaultSignalTimeout = 50 * time.Millisecond

type handlerFunc func(ctx context.Context, req Request) (Response, error)

// dispatcher runs request handlers against the control state. It is owned by the
// scheduler goroutine.
type dispatcher struct {
	state    *State
	clock    clock.Clock
	logger   *slog.Logger
	recorder Recorder

	signalTimeout time.Duration
	signalErrLog  rate.Sometimes
	handlers      map[Op]handlerFunc
}

func newDispatcher(state *State, clk clock.Clock, logger *slog.Logger, recorder Recorder) *dispatcher {
	d := dispatcher{
		state:         state,
		clock:         clk,
		logger:        logger,
		recorder:      recorder,
		signalTimeout: DefaultSignalTimeout,
		signalErrLog:  rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}

	d.handlers = map[Op]handlerFunc{
		OpControl:   d.control,
		OpReverse:   d.reverse,
		OpLog:       d.log,
		OpTelemetry: d.telemetry,
		OpSignal:    d.signal,
		OpUI:        d.ui,
		OpAnnounce:  d.announce,
	}

	return &d
}

func (d *dispatcher) dispatch(ctx context.Context, req Request) (Response, error) {
	if len(req.Malformed) > 0 {
		d.logger.Warn("ignoring malformed request parameters",
			slog.String("op", string(req.Op)),
			slog.Any("parameters", req.Malformed))
	}

	handler, ok := d.handlers[req.Op]
	if !ok {
		return Response{}, fmt.Errorf("%w: '%s'", ErrUnknownOp, req.Op)
	}
	return handler(ctx, req)
}

func (d *dispatcher) control(_ context.Context, req Request) (Response, error) {
	if req.X == nil && req.Y == nil {
		return textResponse(BodyOK), nil
	}

	in := d.state.Input
	if req.X != nil {
		in.X = drive.Clamp(*req.X, drive.InputMin, drive.InputMax)
	}
	if req.Y != nil {
		in.Y = drive.Clamp(*req.Y, drive.InputMin, drive.InputMax)
	}
	d.state.Input = in
	d.entry(fmt.Sprintf("Joystick X: %d, Y: %d", in.X, in.Y))

	applied, err := d.state.Output.Apply(d.state.Mixer.Mix(in))
	if err != nil {
		d.logger.Error("updating motors", slog.String("error", err.Error()))
	}
	d.entry(fmt.Sprintf("Motors updated - Left: %d, Right: %d", applied.Left.Speed, applied.Right.Speed))

	return textResponse(BodyOK), nil
}

func (d *dispatcher) reverse(_ context.Context, req Request) (Response, error) {
	r := d.state.Output.Reversal()
	if req.Left != nil {
		r.Left = *req.Left
	}
	if req.Right != nil {
		r.Right = *req.Right
	}

	if _, err := d.state.Output.SetReversal(r); err != nil {
		d.logger.Error("re-applying motor command", slog.String("error", err.Error()))
	}
	d.entry(fmt.Sprintf("Reverse Left: %d, Reverse Right: %d", btoi(r.Left), btoi(r.Right)))

	return textResponse(BodyOK), nil
}

func (d *dispatcher) log(context.Context, Request) (Response, error) {
	return textResponse(d.state.Log.String()), nil
}

func (d *dispatcher) telemetry(_ context.Context, req Request) (Response, error) {
	snapshot := d.state.Sampler.Get()
	if req.Format != FormatJSON {
		return textResponse(snapshot.Text()), nil
	}

	b, err := json.Marshal(snapshot)
	if err != nil {
		return Response{}, fmt.Errorf("encoding snapshot: %w", err)
	}
	return Response{Body: string(b), ContentType: ContentTypeJSON}, nil
}

func (d *dispatcher) signal(ctx context.Context, _ Request) (Response, error) {
	if d.state.Radio == nil {
		return textResponse(BodyUnavailable), nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.signalTimeout)
	defer cancel()

	dbm, err := d.state.Radio.SignalStrength(ctx)
	if err != nil {
		d.signalErrLog.Do(func() {
			d.logger.Warn("reading signal strength", slog.String("error", err.Error()))
		})
		return textResponse(BodyUnavailable), nil
	}
	return textResponse(fmt.Sprintf("%d", dbm)), nil
}

func (d *dispatcher) ui(context.Context, Request) (Response, error) {
	return Response{Body: string(d.state.UI), ContentType: ContentTypeHTML}, nil
}

func (d *dispatcher) announce(_ context.Context, req Request) (Response, error) {
	if req.Message != "" {
		d.entry(req.Message)
	}
	return textResponse(BodyOK), nil
}

// entry appends message to the log buffer and hands it to the recorder
func (d *dispatcher) entry(message string) {
	d.state.Log.Append(message)
	d.recorder.RecordEvent(Event{Time: d.clock.Now(), Message: message})
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
