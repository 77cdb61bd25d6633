// Package station implements the charge-point side of OCPP 2.0.1 for a
// simulated charging station: the per-EVSE charging state machine, the
// metering loop that drives the physics simulation, the dispatcher for
// CSMS-initiated commands, and the station lifecycle (boot, heartbeat,
// connect/disconnect).
//
// The Station is the single writer of all EVSE state. Local operator
// commands and inbound CSMS calls mutate EVSEs through the same
// methods, serialized by the station mutex, so a metering tick never
// observes a half-applied transition. Presentation layers subscribe to
// events with OnEvent and never touch EVSE state directly.
package station
