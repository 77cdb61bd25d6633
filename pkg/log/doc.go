// Package log provides structured capture of protocol activity: every
// frame sent to or received from the CSMS, every EVSE status change, and
// every protocol-level error.
//
// Events are written through the Logger interface. FileLogger persists
// events as a CBOR stream for later replay with Reader; SlogAdapter
// mirrors events to a slog.Logger for development; MultiLogger fans an
// event out to several sinks at once.
//
// Reader applies a Filter while replaying: by station, direction,
// category, OCPP action, or a time window. A zero Filter matches every
// event.
package log
