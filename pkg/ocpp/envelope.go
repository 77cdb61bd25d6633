package ocpp

import (
	"encoding/json"
	"fmt"
)

// MessageTypeID identifies the envelope kind on the wire.
type MessageTypeID int

const (
	// MessageTypeCall is a request that expects exactly one reply.
	MessageTypeCall MessageTypeID = 2

	// MessageTypeCallResult is the success reply to a CALL.
	MessageTypeCallResult MessageTypeID = 3

	// MessageTypeCallError is the error reply to a CALL.
	MessageTypeCallError MessageTypeID = 4
)

// String returns the envelope kind name.
func (t MessageTypeID) String() string {
	switch t {
	case MessageTypeCall:
		return "CALL"
	case MessageTypeCallResult:
		return "CALLRESULT"
	case MessageTypeCallError:
		return "CALLERROR"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode is a protocol-level error code carried in a CALLERROR.
type ErrorCode string

const (
	// ErrorNotImplemented - the requested action is not known by the receiver.
	ErrorNotImplemented ErrorCode = "NotImplemented"

	// ErrorNotSupported - the action is recognized but not supported.
	ErrorNotSupported ErrorCode = "NotSupported"

	// ErrorFormationViolation - the payload is syntactically incorrect or
	// violates the action's required-field contract.
	ErrorFormationViolation ErrorCode = "FormationViolation"

	// ErrorProtocolError - the payload is incomplete for the action.
	ErrorProtocolError ErrorCode = "ProtocolError"

	// ErrorInternalError - the receiver failed while processing.
	ErrorInternalError ErrorCode = "InternalError"

	// ErrorGenericError - any error not covered by a more specific code.
	ErrorGenericError ErrorCode = "GenericError"
)

// Frame is a decoded OCPP envelope: *Call, *CallResult, or *CallError.
type Frame interface {
	// MessageType returns the envelope kind.
	MessageType() MessageTypeID

	// CorrelationID returns the message's correlation id.
	CorrelationID() string
}

// Call is a request envelope.
type Call struct {
	ID      string
	Action  Action
	Payload json.RawMessage
}

// MessageType returns MessageTypeCall.
func (c *Call) MessageType() MessageTypeID { return MessageTypeCall }

// CorrelationID returns the call's correlation id.
func (c *Call) CorrelationID() string { return c.ID }

// UnmarshalPayload decodes the call payload into v.
func (c *Call) UnmarshalPayload(v any) error {
	if len(c.Payload) == 0 {
		return fmt.Errorf("call %s has no payload", c.Action)
	}
	if err := json.Unmarshal(c.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", c.Action, err)
	}
	return nil
}

// CallResult is a success reply envelope.
type CallResult struct {
	ID      string
	Payload json.RawMessage
}

// MessageType returns MessageTypeCallResult.
func (r *CallResult) MessageType() MessageTypeID { return MessageTypeCallResult }

// CorrelationID returns the correlation id of the CALL being answered.
func (r *CallResult) CorrelationID() string { return r.ID }

// UnmarshalPayload decodes the result payload into v.
func (r *CallResult) UnmarshalPayload(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("result %s has no payload", r.ID)
	}
	return json.Unmarshal(r.Payload, v)
}

// CallError is an error reply envelope.
type CallError struct {
	ID          string
	Code        ErrorCode
	Description string
	Details     json.RawMessage
}

// MessageType returns MessageTypeCallError.
func (e *CallError) MessageType() MessageTypeID { return MessageTypeCallError }

// CorrelationID returns the correlation id of the CALL being answered.
func (e *CallError) CorrelationID() string { return e.ID }

// MalformedMessageError reports an undecodable inbound frame.
// No reply is possible because no correlation id could be extracted.
type MalformedMessageError struct {
	Reason string
}

// Error returns the error message.
func (e *MalformedMessageError) Error() string {
	return "malformed message: " + e.Reason
}

// IsMalformed reports whether err is a *MalformedMessageError.
func IsMalformed(err error) bool {
	_, ok := err.(*MalformedMessageError)
	return ok
}
