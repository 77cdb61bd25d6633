package ocpp

// Action names an OCPP operation carried in a CALL envelope.
type Action string

// Actions sent by the charging station.
const (
	ActionBootNotification   Action = "BootNotification"
	ActionStatusNotification Action = "StatusNotification"
	ActionHeartbeat          Action = "Heartbeat"
	ActionAuthorize          Action = "Authorize"
	ActionTransactionEvent   Action = "TransactionEvent"
	ActionMeterValues        Action = "MeterValues"
	ActionNotifyEvent        Action = "NotifyEvent"
)

// Actions accepted from the CSMS. Anything else is answered with a
// CALLERROR carrying ErrorNotImplemented.
const (
	ActionRequestStartTransaction Action = "RequestStartTransaction"
	ActionRequestStopTransaction  Action = "RequestStopTransaction"
	ActionReset                   Action = "Reset"
	ActionChangeAvailability      Action = "ChangeAvailability"
	ActionTriggerMessage          Action = "TriggerMessage"
)
