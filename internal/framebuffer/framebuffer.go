// Package framebuffer holds the live monochrome pixel grid shared by the
// websocket handlers and the frame poller.
package framebuffer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fkcurrie/led-matrix-painter/internal/types"
)

const (
	// On is the encoded value of a lit pixel
	On = "7"
	// Off is the encoded value of a dark pixel
	Off = "0"
)

// FrameBuffer represents a fixed size binary pixel grid
type FrameBuffer struct {
	width  int
	height int
	mu     sync.Mutex
	frame  []int
}

// New creates a new framebuffer with every pixel off
func New(width, height int) (*FrameBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", width, height)
	}

	return &FrameBuffer{
		width:  width,
		height: height,
		frame:  make([]int, width*height),
	}, nil
}

// GetDimensions returns the dimensions of the grid
func (f *FrameBuffer) GetDimensions() (width, height int) {
	return f.width, f.height
}

// Len returns the number of pixels in the grid
func (f *FrameBuffer) Len() int {
	return f.width * f.height
}

// Read returns the dimensions and a copy of the frame
func (f *FrameBuffer) Read() types.State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return types.State{
		Width:  f.width,
		Height: f.height,
		Frame:  append([]int(nil), f.frame...),
	}
}

// ReadRaw returns a copy of the frame
func (f *FrameBuffer) ReadRaw() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]int(nil), f.frame...)
}

// ReadEncoded returns the frame as comma separated values, 7 for a lit pixel
// and 0 for a dark one, in row-major order.
func (f *FrameBuffer) ReadEncoded() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Encode(f.frame)
}

// SetPixel sets the pixel at (x, y). Coordinates outside the grid are ignored.
func (f *FrameBuffer) SetPixel(x, y, value int) types.Result {
	if !f.inBounds(x, y) {
		return types.NoOp
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.frame[y*f.width+x] = bit(value)
	return types.Applied
}

// TogglePixel flips the pixel at (x, y). Coordinates outside the grid are ignored.
func (f *FrameBuffer) TogglePixel(x, y int) types.Result {
	if !f.inBounds(x, y) {
		return types.NoOp
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i := y*f.width + x
	f.frame[i] ^= 1
	return types.Applied
}

// SetFrame replaces the whole frame. Arrays whose length is not width*height
// are ignored.
func (f *FrameBuffer) SetFrame(frame []int) types.Result {
	if frame == nil || len(frame) != f.Len() {
		return types.NoOp
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, v := range frame {
		f.frame[i] = bit(v)
	}
	return types.Applied
}

// Clear turns every pixel off
func (f *FrameBuffer) Clear() {
	f.fill(0)
}

// Fill turns every pixel on
func (f *FrameBuffer) Fill() {
	f.fill(1)
}

func (f *FrameBuffer) fill(v int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.frame {
		f.frame[i] = v
	}
}

func (f *FrameBuffer) inBounds(x, y int) bool {
	return x >= 0 && x < f.width && y >= 0 && y < f.height
}

// Encode renders frame in the comma separated 3-bit grayscale form read by
// the microcontroller
func Encode(frame []int) string {
	var b strings.Builder
	b.Grow(len(frame) * 2)
	for i, v := range frame {
		if i > 0 {
			b.WriteByte(',')
		}
		if v != 0 {
			b.WriteString(On)
		} else {
			b.WriteString(Off)
		}
	}
	return b.String()
}

// Normalize coerces every element of frame to 0 or 1 and returns a new
// slice. It returns nil if frame does not hold exactly n elements.
func Normalize(frame []int, n int) []int {
	if frame == nil || len(frame) != n {
		return nil
	}
	out := make([]int, n)
	for i, v := range frame {
		out[i] = bit(v)
	}
	return out
}

func bit(v int) int {
	if v != 0 {
		return 1
	}
	return 0
}
