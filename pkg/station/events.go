package station

import (
	"time"
)

// EventType identifies the kind of station event.
type EventType uint8

const (
	// EventConnected - the CSMS connection was established.
	EventConnected EventType = iota

	// EventDisconnected - the CSMS connection was lost or closed.
	EventDisconnected

	// EventBootAccepted - the CSMS accepted the boot notification.
	EventBootAccepted

	// EventStatusChanged - an EVSE changed status.
	EventStatusChanged

	// EventSessionStarted - charging began on an EVSE.
	EventSessionStarted

	// EventSessionStopped - a session ended on an EVSE.
	EventSessionStopped

	// EventMeterTick - one metering tick was applied.
	EventMeterTick

	// EventFaultRaised - a fault was injected on an EVSE.
	EventFaultRaised

	// EventFaultCleared - a fault was cleared on an EVSE.
	EventFaultCleared

	// EventRemoteCommand - a CSMS-initiated command was handled.
	EventRemoteCommand
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "Connected"
	case EventDisconnected:
		return "Disconnected"
	case EventBootAccepted:
		return "BootAccepted"
	case EventStatusChanged:
		return "StatusChanged"
	case EventSessionStarted:
		return "SessionStarted"
	case EventSessionStopped:
		return "SessionStopped"
	case EventMeterTick:
		return "MeterTick"
	case EventFaultRaised:
		return "FaultRaised"
	case EventFaultCleared:
		return "FaultCleared"
	case EventRemoteCommand:
		return "RemoteCommand"
	default:
		return "Unknown"
	}
}

// Event is a notification from the station to its consumers. Fields
// beyond Type and Timestamp are populated per event type.
type Event struct {
	// Type is the event kind.
	Type EventType

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// EvseID is the affected EVSE, zero for station-wide events.
	EvseID int

	// OldStatus and NewStatus accompany StatusChanged.
	OldStatus Status
	NewStatus Status

	// Session accompanies SessionStarted, SessionStopped and MeterTick.
	Session *SessionSnapshot

	// StopReason accompanies SessionStopped.
	StopReason string

	// TemperatureC and PowerKW accompany MeterTick.
	TemperatureC float64
	PowerKW      float64

	// Fault accompanies FaultRaised and FaultCleared.
	Fault *Fault

	// Command and CommandStatus accompany RemoteCommand.
	Command       string
	CommandStatus string

	// Err carries the failure for Disconnected events, nil when the
	// disconnect was locally initiated.
	Err error
}

// EventHandler receives station events. Handlers run on their own
// goroutine and must not call back into the station synchronously
// while holding other locks.
type EventHandler func(event Event)

// emitEvent delivers an event to all registered handlers. Caller must
// not hold the station lock state the handlers might need to observe
// mid-change; events are emitted after the transition completes.
func (s *Station) emitEvent(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.handlerMu.Lock()
	handlers := append([]EventHandler(nil), s.handlers...)
	s.handlerMu.Unlock()

	for _, handler := range handlers {
		go handler(event)
	}
}

// OnEvent registers an event handler.
func (s *Station) OnEvent(handler EventHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, handler)
}
