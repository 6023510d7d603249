package gpio

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Line is a single requested output line
type Line interface {
	SetValue(value int) error
	Close() error
}

// Pin represents a GPIO output pin on a character device chip
type Pin struct {
	number int
	line   Line
	mu     sync.Mutex
}

// NewPin requests the line at offset number on chip as an output driven low
func NewPin(chip string, number int) (*Pin, error) {
	line, err := gpiocdev.RequestLine(chip, number, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("failed to request line %d on %s: %w", number, chip, err)
	}
	return NewPinFromLine(number, line), nil
}

// NewPinFromLine wraps an already requested line
func NewPinFromLine(number int, line Line) *Pin {
	return &Pin{
		number: number,
		line:   line,
	}
}

// Number returns the line offset of the pin
func (p *Pin) Number() int {
	return p.number
}

// Close releases the line
func (p *Pin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.line.Close(); err != nil {
		log.Printf("Warning: failed to release GPIO line %d: %v", p.number, err)
		return err
	}
	return nil
}

// SetValue sets the value of the pin (0 or 1)
func (p *Pin) SetValue(value int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if value != 0 {
		value = 1
	}
	if err := p.line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set line %d: %w", p.number, err)
	}
	return nil
}

// Pulse drives the pin high for duration and then low again
func (p *Pin) Pulse(duration time.Duration) error {
	if err := p.SetValue(1); err != nil {
		return err
	}
	if duration > 0 {
		time.Sleep(duration)
	}
	return p.SetValue(0)
}
