package router

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Payload is an inbound event body after decoding
type Payload map[string]any

// DecodePayload accepts a JSON object, JSON text or raw bytes. Anything
// empty or unparsable decodes to an empty payload.
func DecodePayload(data any) Payload {
	switch v := data.(type) {
	case Payload:
		return v
	case map[string]any:
		return v
	case string:
		return parsePayload([]byte(v))
	case []byte:
		return parsePayload(v)
	case json.RawMessage:
		return parsePayload(v)
	default:
		return Payload{}
	}
}

func parsePayload(data []byte) Payload {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Payload{}
	}
	var p map[string]any
	if err := json.Unmarshal(data, &p); err != nil || p == nil {
		return Payload{}
	}
	return p
}

// Request is the typed form of an inbound event
type Request interface {
	isRequest()
}

// Empty is a request for an event that carries no fields
type Empty struct{}

// Ignore is a request that failed validation
type Ignore struct {
	Reason string
}

// SetXYRequest sets or toggles a single pixel
type SetXYRequest struct {
	X, Y   int
	Value  *int
	Toggle bool
}

// SetFrameRequest replaces the whole frame
type SetFrameRequest struct {
	Frame []int
}

// SaveIconRequest saves Frame, or the live frame when Frame is nil
type SaveIconRequest struct {
	Name  string
	Frame []int
}

// IconRequest names an icon to load or delete
type IconRequest struct {
	Name string
}

// DrawTextRequest renders text into the frame
type DrawTextRequest struct {
	Text string
	X, Y int
}

// ImportSVGRequest rasterizes an SVG document into the frame
type ImportSVGRequest struct {
	SVG string
}

func (Empty) isRequest()            {}
func (Ignore) isRequest()           {}
func (SetXYRequest) isRequest()     {}
func (SetFrameRequest) isRequest()  {}
func (SaveIconRequest) isRequest()  {}
func (IconRequest) isRequest()      {}
func (DrawTextRequest) isRequest()  {}
func (ImportSVGRequest) isRequest() {}

// Decode turns the payload of the named event into a typed request
func Decode(event string, data any) Request {
	p := DecodePayload(data)

	switch event {
	case EventGetInitialState, EventGetIcons, EventClear, EventFill:
		return Empty{}
	case EventSetXY:
		return decodeSetXY(p)
	case EventSetFrame:
		return decodeSetFrame(p)
	case EventSaveIcon:
		return decodeSaveIcon(p)
	case EventLoadIcon, EventDeleteIcon:
		name, ok := toName(p["name"])
		if !ok {
			return Ignore{Reason: "name is not a string"}
		}
		return IconRequest{Name: name}
	case EventDrawText:
		return decodeDrawText(p)
	case EventImportSVG:
		doc, _ := p["svg"].(string)
		if strings.TrimSpace(doc) == "" {
			return Ignore{Reason: "missing svg document"}
		}
		return ImportSVGRequest{SVG: doc}
	default:
		return Ignore{Reason: "unknown event"}
	}
}

func decodeSetXY(p Payload) Request {
	x, okX := toInt(p["x"])
	y, okY := toInt(p["y"])
	if !okX || !okY {
		return Ignore{Reason: "unparsable coordinates"}
	}

	req := SetXYRequest{X: x, Y: y}
	if raw, present := p["value"]; present {
		v, ok := toInt(raw)
		if !ok {
			return Ignore{Reason: "unparsable value"}
		}
		req.Value = &v
		return req
	}
	req.Toggle = truthy(p["toggle"])
	return req
}

func decodeSetFrame(p Payload) Request {
	frame, ok := toFrame(p["frame"])
	if !ok {
		return Ignore{Reason: "missing or wrong-length frame"}
	}
	return SetFrameRequest{Frame: frame}
}

func decodeSaveIcon(p Payload) Request {
	name, ok := toName(p["name"])
	if !ok {
		return Ignore{Reason: "name is not a string"}
	}

	req := SaveIconRequest{Name: name}
	raw := p["frame"]
	if !truthy(raw) {
		return req
	}
	frame, ok := toFrame(raw)
	if !ok {
		if _, isList := raw.([]any); isList {
			return Ignore{Reason: "unparsable frame"}
		}
		// Present but not a list: the store rejects it and only the
		// sanitized name survives.
		frame = []int{}
	}
	req.Frame = frame
	return req
}

func decodeDrawText(p Payload) Request {
	text, _ := p["text"].(string)
	if text == "" {
		return Ignore{Reason: "missing text"}
	}
	req := DrawTextRequest{Text: text}
	if v, ok := toInt(p["x"]); ok {
		req.X = v
	}
	if v, ok := toInt(p["y"]); ok {
		req.Y = v
	}
	return req
}

// toInt coerces JSON numbers (truncated toward zero), booleans and integer
// strings to int
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return toInt(f)
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// toFrame coerces a JSON array to a frame. Any cell that is not coercible
// fails the whole frame.
func toFrame(v any) ([]int, bool) {
	switch arr := v.(type) {
	case []int:
		return append([]int(nil), arr...), true
	case []any:
		frame := make([]int, len(arr))
		for i, cell := range arr {
			n, ok := toInt(cell)
			if !ok {
				return nil, false
			}
			frame[i] = n
		}
		return frame, true
	default:
		return nil, false
	}
}

func toName(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", true
	case string:
		return s, true
	default:
		return "", false
	}
}

// truthy follows JSON truthiness: false, 0, "", null, [] and {} are false
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case []int:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
