package ocpp

// GenericStatus is the Accepted/Rejected status used by most responses.
type GenericStatus string

const (
	StatusAccepted GenericStatus = "Accepted"
	StatusRejected GenericStatus = "Rejected"
)

// RegistrationStatus is the CSMS's verdict on a BootNotification.
type RegistrationStatus string

const (
	RegistrationAccepted RegistrationStatus = "Accepted"
	RegistrationPending  RegistrationStatus = "Pending"
	RegistrationRejected RegistrationStatus = "Rejected"
)

// AuthorizationStatus is the verdict on an id token.
type AuthorizationStatus string

const (
	AuthorizationAccepted AuthorizationStatus = "Accepted"
	AuthorizationInvalid  AuthorizationStatus = "Invalid"
	AuthorizationBlocked  AuthorizationStatus = "Blocked"
)

// BootReason explains why the station is (re)booting.
type BootReason string

const (
	BootReasonPowerUp          BootReason = "PowerUp"
	BootReasonRemoteReset      BootReason = "RemoteReset"
	BootReasonApplicationReset BootReason = "ApplicationReset"
)

// TransactionEventType distinguishes transaction lifecycle reports.
type TransactionEventType string

const (
	TransactionEventStarted TransactionEventType = "Started"
	TransactionEventUpdated TransactionEventType = "Updated"
	TransactionEventEnded   TransactionEventType = "Ended"
)

// TriggerReason explains what caused a TransactionEvent.
type TriggerReason string

const (
	TriggerReasonAuthorized           TriggerReason = "Authorized"
	TriggerReasonChargingStateChanged TriggerReason = "ChargingStateChanged"
	TriggerReasonMeterValuePeriodic   TriggerReason = "MeterValuePeriodic"
	TriggerReasonRemoteStop           TriggerReason = "RemoteStop"
	TriggerReasonStopAuthorized       TriggerReason = "StopAuthorized"
	TriggerReasonAbnormalCondition    TriggerReason = "AbnormalCondition"
)

// StopReason explains why a transaction ended.
type StopReason string

const (
	StopReasonLocal              StopReason = "Local"
	StopReasonRemote             StopReason = "Remote"
	StopReasonEVDisconnected     StopReason = "EVDisconnected"
	StopReasonEnergyLimitReached StopReason = "EnergyLimitReached"
	StopReasonSOCLimitReached    StopReason = "SOCLimitReached"
	StopReasonGroundFault        StopReason = "GroundFault"
	StopReasonOther              StopReason = "Other"
	StopReasonPowerLoss          StopReason = "PowerLoss"
)

// OperationalStatus is the requested availability in ChangeAvailability.
type OperationalStatus string

const (
	OperationalStatusInoperative OperationalStatus = "Inoperative"
	OperationalStatusOperative   OperationalStatus = "Operative"
)

// ResetType selects the scope of a Reset request.
type ResetType string

const (
	ResetImmediate ResetType = "Immediate"
	ResetOnIdle    ResetType = "OnIdle"
)

// MessageTrigger names the report requested by TriggerMessage.
type MessageTrigger string

const (
	TriggerBootNotification   MessageTrigger = "BootNotification"
	TriggerHeartbeat          MessageTrigger = "Heartbeat"
	TriggerStatusNotification MessageTrigger = "StatusNotification"
	TriggerMeterValues        MessageTrigger = "MeterValues"
)

// EventTrigger classifies a NotifyEvent report.
type EventTrigger string

const (
	EventTriggerAlerting EventTrigger = "Alerting"
	EventTriggerDelta    EventTrigger = "Delta"
)
