package router

// Event names understood by the router and the broadcasts it emits
const (
	EventGetInitialState = "get_initial_state"
	EventGetIcons        = "get_icons"
	EventSetXY           = "set_xy"
	EventSetFrame        = "set_frame"
	EventClear           = "clear"
	EventFill            = "fill"
	EventSaveIcon        = "save_icon"
	EventLoadIcon        = "load_icon"
	EventDeleteIcon      = "delete_icon"
	EventDrawText        = "draw_text"
	EventImportSVG       = "import_svg"

	BroadcastState = "state_update"
	BroadcastIcons = "icons_list"
)

// Events lists every inbound event in registration order
var Events = []string{
	EventGetInitialState,
	EventGetIcons,
	EventSetXY,
	EventSetFrame,
	EventClear,
	EventFill,
	EventSaveIcon,
	EventLoadIcon,
	EventDeleteIcon,
	EventDrawText,
	EventImportSVG,
}

// Client identifies the sender of an inbound event
type Client interface {
	ID() string
}

// Handler receives an inbound event payload from a client. The payload may
// be a decoded JSON object, JSON text, raw bytes or nil.
type Handler func(client Client, payload any)

// Bus is the publish/subscribe transport the router is wired to
type Bus interface {
	// Subscribe registers h for the named inbound event
	Subscribe(event string, h Handler)
	// Publish sends payload under the event name to client, or to every
	// connected client when client is nil
	Publish(event string, payload any, client Client)
}
