package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// event is a single recorded line transition
type event struct {
	line  string
	value int
}

type recorder struct {
	events []event
}

type fakeLine struct {
	name   string
	rec    *recorder
	fail   bool
	closed bool
}

func (f *fakeLine) SetValue(v int) error {
	if f.fail {
		return errors.New("line busy")
	}
	f.rec.events = append(f.rec.events, event{line: f.name, value: v})
	return nil
}

func (f *fakeLine) Close() error {
	f.closed = true
	return nil
}

func newFakeRegister() (*ShiftRegister, *recorder, []*fakeLine) {
	rec := &recorder{}
	lines := []*fakeLine{
		{name: "data", rec: rec},
		{name: "clock", rec: rec},
		{name: "latch", rec: rec},
	}
	reg := NewShiftRegisterFromPins(
		NewPinFromLine(17, lines[0]),
		NewPinFromLine(27, lines[1]),
		NewPinFromLine(22, lines[2]),
	)
	return reg, rec, lines
}

func TestPinSetValueCoerces(t *testing.T) {
	rec := &recorder{}
	pin := NewPinFromLine(5, &fakeLine{name: "p", rec: rec})

	require.NoError(t, pin.SetValue(7))
	require.NoError(t, pin.SetValue(0))
	assert.Equal(t, []event{{"p", 1}, {"p", 0}}, rec.events)
	assert.Equal(t, 5, pin.Number())
}

func TestPinPulse(t *testing.T) {
	rec := &recorder{}
	pin := NewPinFromLine(5, &fakeLine{name: "p", rec: rec})

	require.NoError(t, pin.Pulse(0))
	assert.Equal(t, []event{{"p", 1}, {"p", 0}}, rec.events)
}

func TestShiftRegisterWriteBits(t *testing.T) {
	reg, rec, _ := newFakeRegister()

	require.NoError(t, reg.WriteBits([]int{1, 0}))
	assert.Equal(t, []event{
		{"latch", 0},
		{"data", 1}, {"clock", 1}, {"clock", 0},
		{"data", 0}, {"clock", 1}, {"clock", 0},
		{"latch", 1}, {"latch", 0},
	}, rec.events)
}

func TestShiftRegisterWriteError(t *testing.T) {
	reg, _, lines := newFakeRegister()
	lines[1].fail = true

	assert.Error(t, reg.WriteBits([]int{1}))
}

func TestShiftRegisterClose(t *testing.T) {
	reg, _, lines := newFakeRegister()

	require.NoError(t, reg.Close())
	for _, l := range lines {
		assert.True(t, l.closed, l.name)
	}
}
