package log

import "time"

// MaxFrameData is the number of frame bytes kept in a FrameEvent.
const MaxFrameData = 4096

// Event is one protocol capture record.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the device address.
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload; one of these is set.
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn is a message from the device.
	DirectionIn Direction = 0
	// DirectionOut is a message to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the WebSocket frame layer.
	LayerTransport Layer = 0
	// LayerWire is the decoded message layer.
	LayerWire Layer = 1
	// LayerSession is the command session layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage is a device message.
	CategoryMessage Category = 0
	// CategoryControl is a ping or an ack.
	CategoryControl Category = 1
	// CategoryState is a state change.
	CategoryState Category = 2
	// CategoryError is an error.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw WebSocket frame.
type FrameEvent struct {
	// Size is the full frame payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the frame payload, truncated to MaxFrameData.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates Data was cut.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Binary is set for binary frames.
	Binary bool `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent builds a FrameEvent from a payload, truncating as needed.
func NewFrameEvent(data []byte, binary bool) *FrameEvent {
	fe := &FrameEvent{Size: len(data), Binary: binary}
	if len(data) > MaxFrameData {
		fe.Data = append([]byte(nil), data[:MaxFrameData]...)
		fe.Truncated = true
	} else {
		fe.Data = append([]byte(nil), data...)
	}
	return fe
}

// MessageEvent summarizes a decoded message.
type MessageEvent struct {
	// Kind distinguishes JSON from binary messages.
	Kind MessageKind `cbor:"1,keyasint"`

	// Keys are the top-level JSON keys, sorted.
	Keys []string `cbor:"2,keyasint,omitempty"`

	// FrameType is the binary frame type byte.
	FrameType *uint8 `cbor:"3,keyasint,omitempty"`

	// FrameFlags is the binary frame flags byte.
	FrameFlags *uint8 `cbor:"4,keyasint,omitempty"`
}

// MessageKind is the encoding of a device message.
type MessageKind uint8

const (
	// MessageKindJSON is a JSON text message.
	MessageKindJSON MessageKind = 0
	// MessageKindBinary is a typed binary message.
	MessageKindBinary MessageKind = 1
)

// String returns the kind name.
func (k MessageKind) String() string {
	switch k {
	case MessageKindJSON:
		return "JSON"
	case MessageKindBinary:
		return "BINARY"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the WebSocket connection.
	StateEntityConnection StateEntity = 0
	// StateEntitySession is the command session.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being done.
	Context string `cbor:"3,keyasint,omitempty"`
}
