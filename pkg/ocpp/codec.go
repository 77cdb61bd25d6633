package ocpp

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// emptyPayload is used when a CALL or CALLRESULT carries no payload.
// OCPP-J requires the payload element to be present even when empty.
var emptyPayload = json.RawMessage(`{}`)

// EncodeCall encodes a CALL envelope with a freshly generated correlation
// id and returns both the id and the wire bytes.
func EncodeCall(action Action, payload any) (string, []byte, error) {
	id := uuid.NewString()
	data, err := EncodeCallWithID(id, action, payload)
	if err != nil {
		return "", nil, err
	}
	return id, data, nil
}

// EncodeCallWithID encodes a CALL envelope using the supplied correlation id.
func EncodeCallWithID(id string, action Action, payload any) ([]byte, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", action, err)
	}
	return json.Marshal([]any{int(MessageTypeCall), id, string(action), raw})
}

// EncodeResult encodes a CALLRESULT envelope answering the given correlation id.
func EncodeResult(id string, payload any) ([]byte, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode result payload: %w", err)
	}
	return json.Marshal([]any{int(MessageTypeCallResult), id, raw})
}

// EncodeError encodes a CALLERROR envelope answering the given correlation id.
// A nil details map is encoded as an empty object.
func EncodeError(id string, code ErrorCode, description string, details any) ([]byte, error) {
	raw, err := marshalPayload(details)
	if err != nil {
		return nil, fmt.Errorf("encode error details: %w", err)
	}
	return json.Marshal([]any{int(MessageTypeCallError), id, string(code), description, raw})
}

// Decode parses a raw frame into a *Call, *CallResult, or *CallError.
// It returns a *MalformedMessageError for non-array input, wrong arity,
// or an unknown message type id.
func Decode(data []byte) (Frame, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, &MalformedMessageError{Reason: "not a JSON array"}
	}
	if len(elems) < 3 {
		return nil, &MalformedMessageError{Reason: fmt.Sprintf("array too short: %d elements", len(elems))}
	}

	var msgType int
	if err := json.Unmarshal(elems[0], &msgType); err != nil {
		return nil, &MalformedMessageError{Reason: "message type id is not an integer"}
	}

	var id string
	if err := json.Unmarshal(elems[1], &id); err != nil {
		return nil, &MalformedMessageError{Reason: "correlation id is not a string"}
	}

	switch MessageTypeID(msgType) {
	case MessageTypeCall:
		if len(elems) != 4 {
			return nil, &MalformedMessageError{Reason: fmt.Sprintf("CALL arity %d, want 4", len(elems))}
		}
		var action string
		if err := json.Unmarshal(elems[2], &action); err != nil {
			return nil, &MalformedMessageError{Reason: "action is not a string"}
		}
		return &Call{ID: id, Action: Action(action), Payload: elems[3]}, nil

	case MessageTypeCallResult:
		if len(elems) != 3 {
			return nil, &MalformedMessageError{Reason: fmt.Sprintf("CALLRESULT arity %d, want 3", len(elems))}
		}
		return &CallResult{ID: id, Payload: elems[2]}, nil

	case MessageTypeCallError:
		if len(elems) != 5 {
			return nil, &MalformedMessageError{Reason: fmt.Sprintf("CALLERROR arity %d, want 5", len(elems))}
		}
		var code, description string
		if err := json.Unmarshal(elems[2], &code); err != nil {
			return nil, &MalformedMessageError{Reason: "error code is not a string"}
		}
		if err := json.Unmarshal(elems[3], &description); err != nil {
			return nil, &MalformedMessageError{Reason: "error description is not a string"}
		}
		return &CallError{ID: id, Code: ErrorCode(code), Description: description, Details: elems[4]}, nil

	default:
		return nil, &MalformedMessageError{Reason: fmt.Sprintf("unknown message type id %d", msgType)}
	}
}

// marshalPayload marshals a payload, substituting an empty object for nil
// and passing through pre-encoded json.RawMessage values.
func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return emptyPayload, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		if len(raw) == 0 {
			return emptyPayload, nil
		}
		return raw, nil
	}
	return json.Marshal(payload)
}
