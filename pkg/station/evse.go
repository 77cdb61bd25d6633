package station

import (
	"time"
)

// Status is the charge-point status of one EVSE.
type Status uint8

const (
	// StatusAvailable - idle, ready for a session.
	StatusAvailable Status = iota

	// StatusPreparing - authorization granted, ramp-up pending.
	StatusPreparing

	// StatusCharging - metering loop active.
	StatusCharging

	// StatusFinishing - session ended, settle delay pending.
	StatusFinishing

	// StatusFaulted - a fault is present; requires an explicit clear.
	StatusFaulted

	// StatusUnavailable - disabled by the operator or the CSMS.
	StatusUnavailable

	// StatusReserved - reserved for a future session.
	StatusReserved

	// StatusSuspendedEV - charging suspended by the vehicle.
	StatusSuspendedEV

	// StatusSuspendedEVSE - charging suspended by the EVSE.
	StatusSuspendedEVSE
)

// String returns the OCPP status name.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusPreparing:
		return "Preparing"
	case StatusCharging:
		return "Charging"
	case StatusFinishing:
		return "Finishing"
	case StatusFaulted:
		return "Faulted"
	case StatusUnavailable:
		return "Unavailable"
	case StatusReserved:
		return "Reserved"
	case StatusSuspendedEV:
		return "SuspendedEV"
	case StatusSuspendedEVSE:
		return "SuspendedEVSE"
	default:
		return "Unknown"
	}
}

// ConnectorType is the physical connector standard of an EVSE.
type ConnectorType string

const (
	ConnectorCCS2    ConnectorType = "CCS2"
	ConnectorCHAdeMO ConnectorType = "CHAdeMO"
	ConnectorType2   ConnectorType = "Type2"
	ConnectorTesla   ConnectorType = "Tesla"
	ConnectorGBT     ConnectorType = "GB/T"
)

// FaultCode is the fixed fault taxonomy reportable by an EVSE.
type FaultCode string

const (
	FaultGroundFailure        FaultCode = "GroundFailure"
	FaultHighTemperature      FaultCode = "HighTemperature"
	FaultOverCurrentFailure   FaultCode = "OverCurrentFailure"
	FaultPowerMeterFailure    FaultCode = "PowerMeterFailure"
	FaultEVCommunicationError FaultCode = "EVCommunicationError"
	FaultConnectorLockFailure FaultCode = "ConnectorLockFailure"
	FaultInternalError        FaultCode = "InternalError"
)

// Fault is an active hardware fault on an EVSE. Faults are never cleared
// by the simulation; only an explicit clear restores the EVSE.
type Fault struct {
	// Code is the fault classification.
	Code FaultCode

	// Info is free-text diagnostic detail.
	Info string

	// RaisedAt is when the fault was injected.
	RaisedAt time.Time
}

// EVSE is one physical connector. All fields are owned by the station
// and mutated only under the station mutex.
//
// Invariants: status Charging or Preparing implies session != nil;
// status Faulted implies fault != nil; at most one of session and fault
// is non-nil.
type EVSE struct {
	id        int
	connector ConnectorType

	status      Status
	session     *Session
	fault       *Fault
	temperature float64
	powerKW     float64

	// Metering loop and pending transition timers. Owned by the
	// station; cancelled synchronously on stop/fault/disconnect.
	loop        *meterLoop
	rampTimer   *time.Timer
	settleTimer *time.Timer
}

// newEVSE creates an idle EVSE at ambient temperature.
func newEVSE(id int, connector ConnectorType, ambientC float64) *EVSE {
	return &EVSE{
		id:          id,
		connector:   connector,
		status:      StatusAvailable,
		temperature: ambientC,
	}
}

// Snapshot is a consistent copy of an EVSE's observable state.
type Snapshot struct {
	ID           int
	Connector    ConnectorType
	Status       Status
	TemperatureC float64
	PowerKW      float64

	// Session is a copy of the active session, nil when idle.
	Session *SessionSnapshot

	// Fault is a copy of the active fault, nil when healthy.
	Fault *Fault
}

// snapshot copies the EVSE's observable state. Caller holds the lock.
func (e *EVSE) snapshot() Snapshot {
	snap := Snapshot{
		ID:           e.id,
		Connector:    e.connector,
		Status:       e.status,
		TemperatureC: e.temperature,
		PowerKW:      e.powerKW,
	}
	if e.session != nil {
		s := e.session.snapshot()
		snap.Session = &s
	}
	if e.fault != nil {
		f := *e.fault
		snap.Fault = &f
	}
	return snap
}

// cancelTimersLocked stops any pending ramp-up or settle transition.
// Caller holds the station lock.
func (e *EVSE) cancelTimersLocked() {
	if e.rampTimer != nil {
		e.rampTimer.Stop()
		e.rampTimer = nil
	}
	if e.settleTimer != nil {
		e.settleTimer.Stop()
		e.settleTimer = nil
	}
}
