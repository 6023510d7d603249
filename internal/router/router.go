// Package router binds named client events to framebuffer and icon store
// operations and publishes the resulting state through a Bus.
//
// Addressing is part of the protocol: get_initial_state and get_icons reply
// to the requester only, every accepted mutation is broadcast to all
// clients. Rejected requests produce no broadcast at all.
package router

import (
	"log/slog"

	"github.com/fkcurrie/led-matrix-painter/internal/types"
)

// Frame is the framebuffer surface the router mutates
type Frame interface {
	GetDimensions() (width, height int)
	Read() types.State
	ReadRaw() []int
	SetPixel(x, y, value int) types.Result
	TogglePixel(x, y int) types.Result
	SetFrame(frame []int) types.Result
	Clear()
	Fill()
}

// IconStore is the persistence surface the router uses
type IconStore interface {
	List() []types.Icon
	Save(name string, frame []int) string
	Load(name string) ([]int, bool)
	Delete(name string) bool
}

// Renderer rasterizes text and SVG documents into frames
type Renderer interface {
	Text(text string, x, y int) ([]int, error)
	SVG(doc string) ([]int, error)
}

// Outcome reports what a dispatched event did
type Outcome struct {
	Result types.Result
	Reason string
}

func applied() Outcome { return Outcome{Result: types.Applied} }

func noop(reason string) Outcome { return Outcome{Result: types.NoOp, Reason: reason} }

// Option configures a Router
type Option func(*Router)

// WithLogger sets the logger used for rejected requests and icon activity
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRenderer enables the draw_text and import_svg events
func WithRenderer(renderer Renderer) Option {
	return func(r *Router) {
		r.renderer = renderer
	}
}

// Router dispatches inbound events
type Router struct {
	frame    Frame
	icons    IconStore
	bus      Bus
	renderer Renderer
	logger   *slog.Logger
}

// New creates a router publishing through bus
func New(frame Frame, icons IconStore, bus Bus, opts ...Option) *Router {
	r := &Router{
		frame:  frame,
		icons:  icons,
		bus:    bus,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")
	return r
}

// Register subscribes the router to every inbound event on its bus
func (r *Router) Register() {
	for _, event := range Events {
		event := event
		r.bus.Subscribe(event, func(client Client, payload any) {
			r.Dispatch(client, event, payload)
		})
	}
}

// Dispatch decodes and applies a single event. client may be nil for events
// that arrive from a source without a reply channel; replies addressed to a
// nil client are broadcast.
func (r *Router) Dispatch(client Client, event string, payload any) Outcome {
	req := Decode(event, payload)
	if ignore, ok := req.(Ignore); ok {
		r.logger.Debug("request ignored", "event", event, "reason", ignore.Reason)
		return noop(ignore.Reason)
	}

	var out Outcome
	switch event {
	case EventGetInitialState:
		r.sendState(client)
		r.sendIcons(client)
		out = applied()
	case EventGetIcons:
		r.sendIcons(client)
		out = applied()
	case EventSetXY:
		out = r.setXY(req.(SetXYRequest))
	case EventSetFrame:
		out = r.setFrame(req.(SetFrameRequest))
	case EventClear:
		r.frame.Clear()
		r.sendState(nil)
		out = applied()
	case EventFill:
		r.frame.Fill()
		r.sendState(nil)
		out = applied()
	case EventSaveIcon:
		out = r.saveIcon(req.(SaveIconRequest))
	case EventLoadIcon:
		out = r.loadIcon(req.(IconRequest))
	case EventDeleteIcon:
		out = r.deleteIcon(req.(IconRequest))
	case EventDrawText:
		out = r.drawText(req.(DrawTextRequest))
	case EventImportSVG:
		out = r.importSVG(req.(ImportSVGRequest))
	default:
		out = noop("unknown event")
	}

	if out.Result == types.NoOp {
		r.logger.Debug("request had no effect", "event", event, "reason", out.Reason)
	}
	return out
}

func (r *Router) setXY(req SetXYRequest) Outcome {
	width, height := r.frame.GetDimensions()
	if req.X < 0 || req.X >= width || req.Y < 0 || req.Y >= height {
		return noop("coordinates out of range")
	}

	var result types.Result
	switch {
	case req.Value != nil:
		result = r.frame.SetPixel(req.X, req.Y, *req.Value)
	case req.Toggle:
		result = r.frame.TogglePixel(req.X, req.Y)
	default:
		result = r.frame.SetPixel(req.X, req.Y, 1)
	}
	if result == types.NoOp {
		return noop("coordinates out of range")
	}

	r.sendState(nil)
	return applied()
}

func (r *Router) setFrame(req SetFrameRequest) Outcome {
	width, height := r.frame.GetDimensions()
	if len(req.Frame) != width*height || r.frame.SetFrame(req.Frame) == types.NoOp {
		r.logger.Info("set_frame rejected: missing or wrong-length frame", "length", len(req.Frame), "want", width*height)
		return noop("wrong-length frame")
	}

	r.sendState(nil)
	return applied()
}

func (r *Router) saveIcon(req SaveIconRequest) Outcome {
	frame := req.Frame
	if frame == nil {
		frame = r.frame.ReadRaw()
	}

	name := r.icons.Save(req.Name, frame)
	r.logger.Info("icon saved", "name", name)
	r.sendIcons(nil)
	return applied()
}

func (r *Router) loadIcon(req IconRequest) Outcome {
	frame, ok := r.icons.Load(req.Name)
	if !ok {
		r.logger.Info("icon load failed", "name", req.Name)
		return noop("icon not found")
	}
	if r.frame.SetFrame(frame) == types.NoOp {
		r.logger.Warn("stored icon does not fit the frame", "name", req.Name, "length", len(frame))
		return noop("icon does not fit the frame")
	}

	r.sendState(nil)
	return applied()
}

func (r *Router) deleteIcon(req IconRequest) Outcome {
	if !r.icons.Delete(req.Name) {
		return noop("icon not found")
	}

	r.logger.Info("icon deleted", "name", req.Name)
	r.sendIcons(nil)
	return applied()
}

func (r *Router) drawText(req DrawTextRequest) Outcome {
	if r.renderer == nil {
		return noop("rendering disabled")
	}
	frame, err := r.renderer.Text(req.Text, req.X, req.Y)
	if err != nil {
		r.logger.Warn("failed to render text", "error", err)
		return noop("render failed")
	}
	if r.frame.SetFrame(frame) == types.NoOp {
		return noop("rendered frame does not fit")
	}

	r.sendState(nil)
	return applied()
}

func (r *Router) importSVG(req ImportSVGRequest) Outcome {
	if r.renderer == nil {
		return noop("rendering disabled")
	}
	frame, err := r.renderer.SVG(req.SVG)
	if err != nil {
		r.logger.Info("svg import rejected", "error", err)
		return noop("unparsable svg")
	}
	if r.frame.SetFrame(frame) == types.NoOp {
		return noop("rendered frame does not fit")
	}

	r.sendState(nil)
	return applied()
}

func (r *Router) sendState(client Client) {
	r.bus.Publish(BroadcastState, r.frame.Read(), client)
}

func (r *Router) sendIcons(client Client) {
	r.bus.Publish(BroadcastIcons, r.icons.List(), client)
}
