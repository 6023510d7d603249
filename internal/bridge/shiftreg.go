package bridge

// BitWriter clocks a sequence of bits out to hardware
type BitWriter interface {
	WriteBits(bits []int) error
}

// ShiftRegisterSink writes each pushed frame to a shift register chain, one
// bit per pixel in row-major order
type ShiftRegisterSink struct {
	w BitWriter
}

// NewShiftRegisterSink creates a sink writing to w
func NewShiftRegisterSink(w BitWriter) *ShiftRegisterSink {
	return &ShiftRegisterSink{w: w}
}

// Push decodes the frame and writes its bits
func (s *ShiftRegisterSink) Push(encoded string) error {
	return s.w.WriteBits(Decode(encoded))
}
