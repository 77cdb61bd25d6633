// Package ocpp implements the OCPP 2.0.1 JSON message envelope and the
// typed payloads exchanged between a charging station and a CSMS.
//
// The wire format is an ordered JSON array:
//
//	CALL:       [2, "<correlationId>", "<action>", {payload}]
//	CALLRESULT: [3, "<correlationId>", {payload}]
//	CALLERROR:  [4, "<correlationId>", "<code>", "<description>", {details}]
//
// Decoding is strict: non-array input, wrong arity, or an unknown
// message type id yields a *MalformedMessageError. Callers are expected
// to log and discard such frames; there is no correlation id to reply to.
package ocpp
