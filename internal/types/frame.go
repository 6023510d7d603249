package types

// Result is the outcome kind of a mutation request
type Result int

const (
	// NoOp means the request was rejected or had nothing to do
	NoOp Result = iota
	// Applied means the request changed (or rewrote) state
	Applied
)

// String returns the string representation of the result
func (r Result) String() string {
	switch r {
	case NoOp:
		return "noop"
	case Applied:
		return "applied"
	default:
		return "unknown"
	}
}

// State is a snapshot of the framebuffer with its dimensions
type State struct {
	Width  int   `json:"w" msgpack:"w"`
	Height int   `json:"h" msgpack:"h"`
	Frame  []int `json:"frame" msgpack:"frame"`
}

// Icon is a named, persisted frame
type Icon struct {
	Name  string `json:"name" msgpack:"name"`
	Frame []int  `json:"frame" msgpack:"frame"`
}

// FrameSource is anything that can report the current frame in the
// comma separated 3-bit grayscale encoding
type FrameSource interface {
	ReadEncoded() string
}
