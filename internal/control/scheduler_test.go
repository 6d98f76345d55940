package control

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"

	"github.com/roman-kulish/rc-vehicle/internal/drive"
	"github.com/roman-kulish/rc-vehicle/internal/hardware/fake"
	"github.com/roman-kulish/rc-vehicle/internal/imu"
	"github.com/roman-kulish/rc-vehicle/internal/logsink"
	"github.com/roman-kulish/rc-vehicle/internal/motor"
	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
)

type countingSensor struct {
	initErr error
	reads   int
}

func (s *countingSensor) Initialize(context.Context) error {
	return s.initErr
}

func (s *countingSensor) ReadOnce(context.Context) (imu.Reading, error) {
	s.reads++
	v := float64(s.reads)
	return imu.Reading{
		Accel: imu.Vector{X: v, Y: -v, Z: 9.81},
		Gyro:  imu.Vector{X: v / 10, Y: 0, Z: 0},
	}, nil
}

type failingRadio struct{}

func (failingRadio) SignalStrength(context.Context) (int, error) {
	return 0, errors.New("no such interface")
}

type memRecorder struct {
	mu        sync.Mutex
	snapshots []telemetry.Snapshot
	events    []string
}

func (r *memRecorder) RecordTelemetry(s telemetry.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *memRecorder) RecordEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Message)
}

type fixture struct {
	scheduler *Scheduler
	state     *State
	driver    *fake.MotorDriver
	sensor    *countingSensor
	clock     *clock.Mock
	recorder  *memRecorder
}

func newFixture(t *testing.T, sensor *countingSensor) *fixture {
	t.Helper()

	buf, err := logsink.NewBuffer(logsink.DefaultCapacity)
	if err != nil {
		t.Fatalf("Failed to create log buffer: %v", err)
	}

	mock := clock.NewMock()
	driver := fake.NewMotorDriver()
	state := &State{
		Mixer:   drive.NewMixer(),
		Output:  motor.NewOutput(driver),
		Log:     buf,
		Sampler: telemetry.NewSampler(sensor, telemetry.WithClock(mock)),
		Radio:   fake.NewRadio(-57),
		UI:      []byte("<html></html>"),
	}
	recorder := &memRecorder{}

	return &fixture{
		scheduler: NewScheduler(state, WithClock(mock), WithRecorder(recorder)),
		state:     state,
		driver:    driver,
		sensor:    sensor,
		clock:     mock,
		recorder:  recorder,
	}
}

// do submits req and runs a single iteration of the loop to service it
func (f *fixture) do(t *testing.T, req Request) (Response, error) {
	t.Helper()

	type outcome struct {
		resp Response
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		resp, err := f.scheduler.Submit(context.Background(), req)
		ch <- outcome{resp, err}
	}()

	deadline := time.Now().Add(time.Second)
	for f.scheduler.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Request was never queued")
		}
		time.Sleep(time.Millisecond)
	}

	f.scheduler.Step(context.Background())
	out := <-ch
	return out.resp, out.err
}

func (f *fixture) mustDo(t *testing.T, req Request) Response {
	t.Helper()

	resp, err := f.do(t, req)
	if err != nil {
		t.Fatalf("Failed to service %s request: %v", req.Op, err)
	}
	return resp
}

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}

func TestScheduler_Control(t *testing.T) {
	f := newFixture(t, &countingSensor{})

	resp := f.mustDo(t, Request{Op: OpControl, X: intPtr(0), Y: intPtr(100)})
	if resp.Body != BodyOK {
		t.Errorf("Expected OK, got %q", resp.Body)
	}

	// left motor is reversed by default
	wantLog := "Joystick X: 0, Y: 100\nMotors updated - Left: -255, Right: 255\n"
	if got := f.state.Log.String(); got != wantLog {
		t.Errorf("Unexpected log:\n%s", cmp.Diff(wantLog, got))
	}

	left := f.driver.Channel(motor.Left)
	if left.Direction != motor.Reverse || left.Duty != 255 {
		t.Errorf("Unexpected left channel: %+v", left)
	}
	right := f.driver.Channel(motor.Right)
	if right.Direction != motor.Forward || right.Duty != 255 {
		t.Errorf("Unexpected right channel: %+v", right)
	}
}

func TestScheduler_PartialControl(t *testing.T) {
	f := newFixture(t, &countingSensor{})

	f.mustDo(t, Request{Op: OpControl, Y: intPtr(100)})
	f.mustDo(t, Request{Op: OpControl, X: intPtr(100)})

	if diff := cmp.Diff(drive.Input{X: 100, Y: 100}, f.state.Input); diff != "" {
		t.Errorf("Unexpected remembered input (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(f.state.Log.String(), "Joystick X: 100, Y: 100\nMotors updated - Left: -127, Right: 255\n") {
		t.Errorf("Unexpected log tail: %q", f.state.Log.String())
	}

	before := f.state.Log.String()
	f.mustDo(t, Request{Op: OpControl})
	if after := f.state.Log.String(); after != before {
		t.Errorf("Control request without axes should not log, got %q", after)
	}
}

func TestScheduler_ControlClampsInput(t *testing.T) {
	f := newFixture(t, &countingSensor{})

	f.mustDo(t, Request{Op: OpControl, X: intPtr(-500), Y: intPtr(0)})

	if f.state.Input.X != drive.InputMin {
		t.Errorf("Expected X clamped to %d, got %d", drive.InputMin, f.state.Input.X)
	}
	if !strings.Contains(f.state.Log.String(), "Joystick X: -100, Y: 0") {
		t.Errorf("Unexpected log: %q", f.state.Log.String())
	}
}

func TestScheduler_MalformedParametersAreAbsent(t *testing.T) {
	f := newFixture(t, &countingSensor{})

	resp := f.mustDo(t, Request{Op: OpControl, Y: intPtr(-100), Malformed: []string{"x"}})
	if resp.Body != BodyOK {
		t.Errorf("Expected OK, got %q", resp.Body)
	}
	if f.state.Input.X != 0 || f.state.Input.Y != -100 {
		t.Errorf("Unexpected input: %+v", f.state.Input)
	}
}

func TestScheduler_Reverse(t *testing.T) {
	f := newFixture(t, &countingSensor{})

	f.mustDo(t, Request{Op: OpControl, X: intPtr(0), Y: intPtr(100)})
	f.mustDo(t, Request{Op: OpReverse, Left: boolPtr(false)})

	if diff := cmp.Diff(motor.Reversal{}, f.state.Output.Reversal()); diff != "" {
		t.Errorf("Unexpected reversal (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(f.state.Log.String(), "Reverse Left: 0, Reverse Right: 0\n") {
		t.Errorf("Unexpected log tail: %q", f.state.Log.String())
	}
	if left := f.driver.Channel(motor.Left); left.Direction != motor.Forward {
		t.Errorf("Expected last command re-applied with left forward, got %+v", left)
	}

	// a reversal request without flags still logs the current configuration
	f.mustDo(t, Request{Op: OpReverse})
	if n := strings.Count(f.state.Log.String(), "Reverse Left: 0, Reverse Right: 0"); n != 2 {
		t.Errorf("Expected 2 reversal entries, got %d", n)
	}

	f.mustDo(t, Request{Op: OpReverse, Right: boolPtr(true)})
	f.mustDo(t, Request{Op: OpReverse, Right: boolPtr(false)})
	if right := f.driver.Channel(motor.Right); right.Direction != motor.Forward || right.Duty != 255 {
		t.Errorf("Double toggle should restore the right channel, got %+v", right)
	}
}

func TestScheduler_Queries(t *testing.T) {
	f := newFixture(t, &countingSensor{})
	if err := f.state.Sampler.Init(context.Background()); err != nil {
		t.Fatalf("Failed to initialize sampler: %v", err)
	}

	if resp := f.mustDo(t, Request{Op: OpUI}); resp.Body != "<html></html>" || resp.ContentType != ContentTypeHTML {
		t.Errorf("Unexpected UI response: %+v", resp)
	}
	if resp := f.mustDo(t, Request{Op: OpSignal}); resp.Body != "-57" {
		t.Errorf("Expected -57, got %q", resp.Body)
	}

	f.state.Radio = failingRadio{}
	if resp := f.mustDo(t, Request{Op: OpSignal}); resp.Body != BodyUnavailable {
		t.Errorf("Expected %q, got %q", BodyUnavailable, resp.Body)
	}
	f.state.Radio = nil
	if resp := f.mustDo(t, Request{Op: OpSignal}); resp.Body != BodyUnavailable {
		t.Errorf("Expected %q, got %q", BodyUnavailable, resp.Body)
	}

	f.state.Log.Append("hello")
	if resp := f.mustDo(t, Request{Op: OpLog}); resp.Body != "hello\n" {
		t.Errorf("Expected log contents, got %q", resp.Body)
	}

	resp := f.mustDo(t, Request{Op: OpTelemetry, Format: FormatJSON})
	if resp.ContentType != ContentTypeJSON {
		t.Errorf("Expected JSON content type, got %q", resp.ContentType)
	}
	var snapshot telemetry.Snapshot
	if err := json.Unmarshal([]byte(resp.Body), &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snapshot.State != telemetry.StateSampled || snapshot.Accel == nil {
		t.Errorf("Unexpected snapshot: %+v", snapshot)
	}
}

func TestScheduler_UnknownOp(t *testing.T) {
	f := newFixture(t, &countingSensor{})

	if _, err := f.do(t, Request{Op: "launch"}); !errors.Is(err, ErrUnknownOp) {
		t.Errorf("Expected ErrUnknownOp, got %v", err)
	}
}

func TestScheduler_SampleCadence(t *testing.T) {
	f := newFixture(t, &countingSensor{})
	ctx := context.Background()
	if err := f.state.Sampler.Init(ctx); err != nil {
		t.Fatalf("Failed to initialize sampler: %v", err)
	}

	f.scheduler.Step(ctx)
	first := f.state.Sampler.Get()
	if first.Seq != 1 {
		t.Fatalf("Expected first sample on the first step, got seq %d", first.Seq)
	}

	for i := 0; i < 9; i++ {
		f.clock.Add(10 * time.Millisecond)
		f.scheduler.Step(ctx)
		if got := f.state.Sampler.Get(); got.Text() != first.Text() || got.Seq != 1 {
			t.Fatalf("Snapshot changed between ticks at %v: %q", f.clock.Now(), got.Text())
		}
	}

	f.clock.Add(10 * time.Millisecond)
	f.scheduler.Step(ctx)
	if got := f.state.Sampler.Get(); got.Seq != 2 {
		t.Errorf("Expected second sample after the interval, got seq %d", got.Seq)
	}
	if f.sensor.reads != 2 {
		t.Errorf("Expected 2 sensor reads, got %d", f.sensor.reads)
	}
	if len(f.recorder.snapshots) != 2 {
		t.Errorf("Expected 2 recorded snapshots, got %d", len(f.recorder.snapshots))
	}
}

func TestScheduler_UnavailableSensor(t *testing.T) {
	f := newFixture(t, &countingSensor{initErr: imu.ErrUnexpectedDevice})
	ctx := context.Background()

	if err := f.state.Sampler.Init(ctx); err == nil {
		t.Fatal("Expected initialization error")
	}

	for i := 0; i < 5; i++ {
		f.scheduler.Step(ctx)
		f.clock.Add(DefaultSampleInterval)
	}

	resp := f.mustDo(t, Request{Op: OpTelemetry})
	if resp.Body != "IMU not detected!" {
		t.Errorf("Expected sentinel, got %q", resp.Body)
	}
	if f.sensor.reads != 0 {
		t.Errorf("Unavailable sensor should never be read, got %d reads", f.sensor.reads)
	}
}

func TestScheduler_RecordsLogEntries(t *testing.T) {
	f := newFixture(t, &countingSensor{})

	f.mustDo(t, Request{Op: OpControl, X: intPtr(100), Y: intPtr(0)})
	f.mustDo(t, Request{Op: OpReverse, Left: boolPtr(false), Right: boolPtr(true)})

	want := []string{
		"Joystick X: 100, Y: 0",
		"Motors updated - Left: 128, Right: 128",
		"Reverse Left: 0, Reverse Right: 1",
	}
	if diff := cmp.Diff(want, f.recorder.events); diff != "" {
		t.Errorf("Unexpected recorded events (-want +got):\n%s", diff)
	}
}

func TestScheduler_Run(t *testing.T) {
	f := newFixture(t, &countingSensor{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.scheduler.Run(ctx)
	}()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), time.Second)
	defer reqCancel()

	resp, err := f.scheduler.Submit(reqCtx, Request{Op: OpControl, X: intPtr(0), Y: intPtr(100)})
	if err != nil {
		t.Fatalf("Failed to submit: %v", err)
	}
	if resp.Body != BodyOK {
		t.Errorf("Expected OK, got %q", resp.Body)
	}

	cancel()
	select {
	case err = <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if left, right := f.driver.Channel(motor.Left), f.driver.Channel(motor.Right); left.Duty != 0 || right.Duty != 0 {
		t.Errorf("Expected motors stopped, got left %+v right %+v", left, right)
	}
	if f.state.Sampler.Get().State == telemetry.StateInitializing {
		t.Error("Expected Run to initialize telemetry")
	}

	if _, err = f.scheduler.Submit(reqCtx, Request{Op: OpLog}); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped after Run returned, got %v", err)
	}
}

func TestScheduler_StepServesHeldRequestFirst(t *testing.T) {
	f := newFixture(t, &countingSensor{})
	ctx := context.Background()

	held := envelope{ctx: ctx, req: Request{Op: OpControl, X: intPtr(0), Y: intPtr(100)}, reply: make(chan result, 1)}
	queued := envelope{ctx: ctx, req: Request{Op: OpReverse, Left: boolPtr(false)}, reply: make(chan result, 1)}
	f.scheduler.held = &held
	f.scheduler.requests <- queued

	f.scheduler.Step(ctx)

	select {
	case res := <-held.reply:
		if res.err != nil {
			t.Fatalf("Failed to service held request: %v", res.err)
		}
	default:
		t.Fatal("Expected the held request to be serviced")
	}
	select {
	case <-queued.reply:
		t.Fatal("Expected a single request per iteration")
	default:
	}
	if n := f.scheduler.Pending(); n != 1 {
		t.Errorf("Expected 1 pending request, got %d", n)
	}

	f.scheduler.Step(ctx)
	if res := <-queued.reply; res.err != nil {
		t.Fatalf("Failed to service queued request: %v", res.err)
	}
}

func TestScheduler_DropsAbandonedRequest(t *testing.T) {
	f := newFixture(t, &countingSensor{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := envelope{ctx: ctx, req: Request{Op: OpControl, X: intPtr(0), Y: intPtr(100)}, reply: make(chan result, 1)}
	f.scheduler.requests <- env
	f.scheduler.Step(context.Background())

	if res := <-env.reply; !errors.Is(res.err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", res.err)
	}
	if left := f.driver.Channel(motor.Left); left.Writes != 0 || left.Duty != 0 {
		t.Errorf("Expected motors untouched, got %+v", left)
	}
	if got := f.state.Log.String(); got != "" {
		t.Errorf("Expected an empty log, got %q", got)
	}
	if f.state.Input != (drive.Input{}) {
		t.Errorf("Expected input unchanged, got %+v", f.state.Input)
	}
}

func TestScheduler_Announce(t *testing.T) {
	f := newFixture(t, &countingSensor{})

	f.mustDo(t, Request{Op: OpAnnounce, Message: "Web server running"})
	f.mustDo(t, Request{Op: OpAnnounce})

	if got := f.state.Log.String(); got != "Web server running\n" {
		t.Errorf("Unexpected log: %q", got)
	}

	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	if diff := cmp.Diff([]string{"Web server running"}, f.recorder.events); diff != "" {
		t.Errorf("Recorded events mismatch (-want +got):\n%s", diff)
	}
}
