package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// ShiftRegister drives a chain of serial-in parallel-out shift registers
// (74HC595 style) through data, clock and latch lines
type ShiftRegister struct {
	data  *Pin
	clock *Pin
	latch *Pin
	mu    sync.Mutex
}

// NewShiftRegister requests the three lines on chip
func NewShiftRegister(chip string, dataPin, clockPin, latchPin int) (*ShiftRegister, error) {
	data, err := NewPin(chip, dataPin)
	if err != nil {
		return nil, err
	}
	clock, err := NewPin(chip, clockPin)
	if err != nil {
		data.Close()
		return nil, err
	}
	latch, err := NewPin(chip, latchPin)
	if err != nil {
		data.Close()
		clock.Close()
		return nil, err
	}
	return NewShiftRegisterFromPins(data, clock, latch), nil
}

// NewShiftRegisterFromPins builds a shift register from existing pins
func NewShiftRegisterFromPins(data, clock, latch *Pin) *ShiftRegister {
	return &ShiftRegister{
		data:  data,
		clock: clock,
		latch: latch,
	}
}

// WriteBits shifts bits out in order and latches them onto the outputs
func (s *ShiftRegister) WriteBits(bits []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.latch.SetValue(0); err != nil {
		return err
	}
	for i, b := range bits {
		if err := s.data.SetValue(b); err != nil {
			return fmt.Errorf("bit %d: %w", i, err)
		}
		if err := s.clock.Pulse(0); err != nil {
			return fmt.Errorf("bit %d: %w", i, err)
		}
	}
	return s.latch.Pulse(0)
}

// Close releases all three lines
func (s *ShiftRegister) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Join(s.data.Close(), s.clock.Close(), s.latch.Close())
}
