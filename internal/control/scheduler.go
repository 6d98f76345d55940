// Package control implements the cooperative control loop: a single goroutine which
// services operator requests and samples telemetry at a fixed cadence.
package control

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// DefaultSampleInterval is the telemetry sampling cadence
	DefaultSampleInterval = 100 * time.Millisecond

	// DefaultQueueSize is the number of requests which may wait for the loop
	DefaultQueueSize = 16
)

// WithLogger sets the logger for the scheduler
func WithLogger(logger *slog.Logger) func(*Scheduler) {
	return func(s *Scheduler) {
		s.logger = logger.With(slog.String("component", "control"))
	}
}

// WithClock sets the clock driving the sampling cadence
func WithClock(c clock.Clock) func(*Scheduler) {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithSampleInterval sets the minimum time between two telemetry samples
func WithSampleInterval(interval time.Duration) func(*Scheduler) {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithRecorder sets the recorder receiving snapshots and log entries
func WithRecorder(r Recorder) func(*Scheduler) {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithQueueSize sets how many submitted requests may wait for the loop
func WithQueueSize(size int) func(*Scheduler) {
	return func(s *Scheduler) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// Scheduler owns the control state. Requests arrive through Submit from any
// goroutine and are serviced one per iteration, in arrival order, by the goroutine
// calling Run (or Step). Sampling and request servicing never overlap.
type Scheduler struct {
	state     *State
	clock     clock.Clock
	logger    *slog.Logger
	recorder  Recorder
	interval  time.Duration
	queueSize int

	dispatcher *dispatcher
	requests   chan envelope
	held       *envelope // received while waiting, serviced by the next iteration
	lastSample time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler for state. State must have Mixer, Output, Log and
// Sampler set.
func NewScheduler(state *State, options ...func(*Scheduler)) *Scheduler {
	s := Scheduler{
		state:     state,
		clock:     clock.New(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:  nopRecorder{},
		interval:  DefaultSampleInterval,
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
	}

	for _, option := range options {
		option(&s)
	}

	s.requests = make(chan envelope, s.queueSize)
	s.dispatcher = newDispatcher(state, s.clock, s.logger, s.recorder)

	return &s
}

// Submit hands req to the control loop and waits for the response.
func (s *Scheduler) Submit(ctx context.Context, req Request) (Response, error) {
	env := envelope{ctx: ctx, req: req, reply: make(chan result, 1)}

	select {
	case s.requests <- env:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-s.done:
		return Response{}, ErrStopped
	}

	select {
	case res := <-env.reply:
		return res.resp, res.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-s.done:
		return Response{}, ErrStopped
	}
}

// Pending returns the number of queued requests not yet picked up by the loop
func (s *Scheduler) Pending() int {
	return len(s.requests)
}

// Step runs a single iteration: it services at most one pending request and then
// samples telemetry if the interval has elapsed since the last sample. It never
// waits for a request.
func (s *Scheduler) Step(ctx context.Context) {
	if s.held != nil {
		env := *s.held
		s.held = nil
		s.serve(ctx, env)
	} else {
		select {
		case env := <-s.requests:
			s.serve(ctx, env)
		default:
		}
	}

	s.sampleIfDue(ctx)
}

// Run initializes telemetry and loops until ctx is cancelled. Between iterations it
// waits for the next request or the next sample deadline. On return both motors are
// stopped.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.stopOnce.Do(func() { close(s.done) })
	defer s.halt()

	if err := s.state.Sampler.Init(ctx); err != nil {
		s.logger.Warn("telemetry unavailable", slog.String("error", err.Error()))
	}

	s.logger.Info("control loop started", slog.Duration("sampleInterval", s.interval))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.Step(ctx)

		if len(s.requests) > 0 {
			continue
		}

		wait := s.interval - s.clock.Since(s.lastSample)
		if wait <= 0 {
			continue
		}

		timer := s.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case env := <-s.requests:
			timer.Stop()
			s.held = &env
		}
	}
}

func (s *Scheduler) serve(ctx context.Context, env envelope) {
	// a stale stick position must not reach the motors
	if err := env.ctx.Err(); err != nil {
		s.logger.Debug("dropping abandoned request", slog.String("op", string(env.req.Op)))
		env.reply <- result{err: err}
		return
	}

	resp, err := s.dispatcher.dispatch(ctx, env.req)
	env.reply <- result{resp: resp, err: err}
}

func (s *Scheduler) sampleIfDue(ctx context.Context) {
	now := s.clock.Now()
	if !s.lastSample.IsZero() && now.Sub(s.lastSample) < s.interval {
		return
	}
	s.lastSample = now

	if s.state.Sampler.Sample(ctx) {
		s.recorder.RecordTelemetry(s.state.Sampler.Get())
	}
}

func (s *Scheduler) halt() {
	if err := s.state.Output.Stop(); err != nil {
		s.logger.Error("stopping motors", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("motors stopped")
}
