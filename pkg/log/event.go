package log

import (
	"time"
)

// Event is one captured protocol event. CBOR encoding uses integer keys
// for compactness in log files.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// StationID is the charging station identity.
	StationID string `cbor:"2,keyasint"`

	// Direction indicates message flow relative to the station.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Type-specific payload (exactly one is set).
	Frame       *FrameEvent       `cbor:"5,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"6,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"7,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a frame received from the CSMS.
	DirectionIn Direction = 0
	// DirectionOut indicates a frame sent to the CSMS.
	DirectionOut Direction = 1
	// DirectionInternal indicates a local event with no wire counterpart.
	DirectionInternal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol frame (CALL/CALLRESULT/CALLERROR).
	CategoryMessage Category = 0
	// CategoryState indicates an EVSE or connection state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxFrameData caps how many raw frame bytes a FrameEvent retains.
const MaxFrameData = 4096

// FrameEvent captures one OCPP envelope on the wire.
type FrameEvent struct {
	// MessageType is the envelope kind (2=CALL, 3=CALLRESULT, 4=CALLERROR).
	MessageType uint8 `cbor:"1,keyasint"`

	// CorrelationID pairs requests with replies.
	CorrelationID string `cbor:"2,keyasint"`

	// Action is the OCPP action (CALL frames only).
	Action string `cbor:"3,keyasint,omitempty"`

	// ErrorCode is the protocol error code (CALLERROR frames only).
	ErrorCode string `cbor:"4,keyasint,omitempty"`

	// Size is the frame size in bytes before truncation.
	Size int `cbor:"5,keyasint"`

	// Data is the raw JSON frame (may be truncated for large frames).
	Data []byte `cbor:"6,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures EVSE and connection lifecycle changes.
type StateChangeEvent struct {
	// EvseID is the affected EVSE, or 0 for station-level changes.
	EvseID int `cbor:"1,keyasint,omitempty"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures protocol-level errors.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what was being processed.
	Context string `cbor:"2,keyasint,omitempty"`
}

// NewFrameEvent builds a CategoryMessage event from a raw frame,
// truncating retained data to MaxFrameData bytes.
func NewFrameEvent(stationID string, dir Direction, msgType uint8, correlationID, action, errorCode string, data []byte) Event {
	frame := &FrameEvent{
		MessageType:   msgType,
		CorrelationID: correlationID,
		Action:        action,
		ErrorCode:     errorCode,
		Size:          len(data),
	}
	if len(data) > MaxFrameData {
		frame.Data = append([]byte(nil), data[:MaxFrameData]...)
		frame.Truncated = true
	} else {
		frame.Data = append([]byte(nil), data...)
	}
	return Event{
		Timestamp: time.Now(),
		StationID: stationID,
		Direction: dir,
		Category:  CategoryMessage,
		Frame:     frame,
	}
}

// NewStateEvent builds a CategoryState event.
func NewStateEvent(stationID string, evseID int, oldState, newState, reason string) Event {
	return Event{
		Timestamp: time.Now(),
		StationID: stationID,
		Direction: DirectionInternal,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			EvseID:   evseID,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

// NewErrorEvent builds a CategoryError event.
func NewErrorEvent(stationID string, dir Direction, message, context string) Event {
	return Event{
		Timestamp: time.Now(),
		StationID: stationID,
		Direction: dir,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Message: message,
			Context: context,
		},
	}
}
