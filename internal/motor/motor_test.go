package motor

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/roman-kulish/rc-vehicle/internal/drive"
)

type write struct {
	Channel   Channel
	Direction *Direction
	Duty      *uint8
}

type recordingDriver struct {
	writes []write
	err    error
}

func (d *recordingDriver) SetDirection(ch Channel, dir Direction) error {
	d.writes = append(d.writes, write{Channel: ch, Direction: &dir})
	return d.err
}

func (d *recordingDriver) SetDutyCycle(ch Channel, duty uint8) error {
	d.writes = append(d.writes, write{Channel: ch, Duty: &duty})
	return d.err
}

func ptr[T any](v T) *T {
	return &v
}

func TestOutput_Apply(t *testing.T) {
	d := &recordingDriver{}
	o := NewOutput(d, WithReversal(Reversal{}))

	applied, err := o.Apply(drive.Command{Left: -128, Right: 200})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := Applied{
		Left:  State{Speed: -128, Direction: Reverse, Duty: 128},
		Right: State{Speed: 200, Direction: Forward, Duty: 200},
	}
	if diff := cmp.Diff(expected, applied); diff != "" {
		t.Errorf("Applied mismatch (-want +got):\n%s", diff)
	}

	// directions first, then duty cycles
	writes := []write{
		{Channel: Left, Direction: ptr(Reverse)},
		{Channel: Right, Direction: ptr(Forward)},
		{Channel: Left, Duty: ptr(uint8(128))},
		{Channel: Right, Duty: ptr(uint8(200))},
	}
	if diff := cmp.Diff(writes, d.writes); diff != "" {
		t.Errorf("Driver writes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(expected, o.Applied()); diff != "" {
		t.Errorf("Applied state mismatch (-want +got):\n%s", diff)
	}
}

func TestOutput_DefaultReversal(t *testing.T) {
	o := NewOutput(&recordingDriver{})

	if r := o.Reversal(); r != (Reversal{Left: true, Right: false}) {
		t.Fatalf("Unexpected default reversal: %+v", r)
	}

	applied, _ := o.Apply(drive.Command{Left: 255, Right: 255})
	if applied.Left.Direction != Reverse || applied.Left.Duty != 255 {
		t.Errorf("Left channel should be reversed: %+v", applied.Left)
	}
	if applied.Right.Direction != Forward || applied.Right.Duty != 255 {
		t.Errorf("Right channel should not be reversed: %+v", applied.Right)
	}
}

func TestOutput_ReversalToggle(t *testing.T) {
	cmd := drive.Command{Left: 100, Right: -50}

	for _, speed := range []drive.Speed{0, 1, -1, 255, -255} {
		cmd.Left = speed

		o := NewOutput(&recordingDriver{}, WithReversal(Reversal{}))
		original, _ := o.Apply(cmd)

		toggled, err := o.SetReversal(Reversal{Left: true})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if toggled.Left.Speed != -original.Left.Speed {
			t.Errorf("speed %d: left channel should be negated, got %+v", speed, toggled.Left)
		}
		if toggled.Right != original.Right {
			t.Errorf("speed %d: right channel should be unaffected, got %+v", speed, toggled.Right)
		}

		restored, _ := o.SetReversal(Reversal{})
		if diff := cmp.Diff(original, restored); diff != "" {
			t.Errorf("speed %d: double toggle should restore the original (-want +got):\n%s", speed, diff)
		}
	}
}

func TestOutput_SetReversalBeforeApply(t *testing.T) {
	d := &recordingDriver{}
	o := NewOutput(d)

	if _, err := o.SetReversal(Reversal{Right: true}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(d.writes) != 0 {
		t.Errorf("Expected no driver writes before the first command, got %d", len(d.writes))
	}
}

func TestOutput_DriverErrors(t *testing.T) {
	d := &recordingDriver{err: errors.New("bus fault")}
	o := NewOutput(d)

	applied, err := o.Apply(drive.Command{Left: 10, Right: 10})
	if err == nil {
		t.Fatal("Expected driver error")
	}
	if len(d.writes) != 4 {
		t.Errorf("All channels should still be written, got %d writes", len(d.writes))
	}
	if applied.Right.Duty != 10 {
		t.Errorf("Applied state should be reported despite errors: %+v", applied)
	}
}

func TestOutput_Stop(t *testing.T) {
	d := &recordingDriver{}
	o := NewOutput(d, WithReversal(Reversal{}))
	_, _ = o.Apply(drive.Command{Left: 80, Right: 90})

	if err := o.Stop(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	applied := o.Applied()
	if applied.Left.Duty != 0 || applied.Right.Duty != 0 {
		t.Errorf("Expected zero duty after stop, got %+v", applied)
	}
	last := d.writes[len(d.writes)-1]
	if last.Duty == nil || *last.Duty != 0 {
		t.Errorf("Expected a zero duty write, got %+v", last)
	}
}
