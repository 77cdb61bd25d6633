// Package csms provides the transport between the charging station and
// its CSMS endpoint: a WebSocket client for a real CSMS, and an
// in-process simulator that answers every CALL with a canned Accepted
// response after a fixed delay.
//
// Both implement Transport, so the station engine is indifferent to
// whether it is talking to a live endpoint or the loopback.
package csms
