package ocpp

import (
	"errors"
	"time"
)

// Payload validation errors. Inbound CSMS requests are validated at the
// protocol boundary so handlers never see a half-formed payload.
var (
	ErrMissingEvseID            = errors.New("evseId is required")
	ErrMissingIDToken           = errors.New("idToken is required")
	ErrMissingTransactionID     = errors.New("transactionId is required")
	ErrMissingOperationalStatus = errors.New("operationalStatus is required")
	ErrMissingResetType         = errors.New("type is required")
	ErrMissingTrigger           = errors.New("requestedMessage is required")
)

// ChargingStationInfo describes the station in a BootNotification.
type ChargingStationInfo struct {
	Model           string `json:"model"`
	VendorName      string `json:"vendorName"`
	SerialNumber    string `json:"serialNumber,omitempty"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
}

// BootNotificationRequest announces the station to the CSMS.
type BootNotificationRequest struct {
	Reason          BootReason          `json:"reason"`
	ChargingStation ChargingStationInfo `json:"chargingStation"`
}

// BootNotificationResponse carries the CSMS clock and heartbeat interval.
type BootNotificationResponse struct {
	CurrentTime time.Time          `json:"currentTime"`
	Interval    int                `json:"interval"`
	Status      RegistrationStatus `json:"status"`
}

// HeartbeatRequest has no fields.
type HeartbeatRequest struct{}

// HeartbeatResponse carries the CSMS clock.
type HeartbeatResponse struct {
	CurrentTime time.Time `json:"currentTime"`
}

// StatusNotificationRequest reports a connector status change.
type StatusNotificationRequest struct {
	Timestamp       time.Time `json:"timestamp"`
	ConnectorStatus string    `json:"connectorStatus"`
	EvseID          int       `json:"evseId"`
	ConnectorID     int       `json:"connectorId"`
}

// IDToken is an authorization credential.
type IDToken struct {
	IDToken string `json:"idToken"`
	Type    string `json:"type"`
}

// IDTokenInfo is the CSMS's verdict on an IDToken.
type IDTokenInfo struct {
	Status AuthorizationStatus `json:"status"`
}

// AuthorizeRequest asks the CSMS to authorize an id token.
type AuthorizeRequest struct {
	IDToken IDToken `json:"idToken"`
}

// AuthorizeResponse carries the authorization verdict.
type AuthorizeResponse struct {
	IDTokenInfo IDTokenInfo `json:"idTokenInfo"`
}

// SampledValue is one measurement inside a MeterValue.
type SampledValue struct {
	Value     float64 `json:"value"`
	Measurand string  `json:"measurand"`
	Unit      string  `json:"unit,omitempty"`
}

// MeterValue groups sampled values taken at the same instant.
type MeterValue struct {
	Timestamp    time.Time      `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

// Measurands reported by the metering loop.
const (
	MeasurandEnergyActiveImportRegister = "Energy.Active.Import.Register"
	MeasurandPowerActiveImport          = "Power.Active.Import"
	MeasurandCurrentImport              = "Current.Import"
	MeasurandSoC                        = "SoC"
	MeasurandTemperature                = "Temperature"
)

// MeterValuesRequest is a periodic telemetry report.
type MeterValuesRequest struct {
	EvseID     int          `json:"evseId"`
	MeterValue []MeterValue `json:"meterValue"`
}

// TransactionInfo identifies a transaction in a TransactionEvent.
type TransactionInfo struct {
	TransactionID string     `json:"transactionId"`
	ChargingState string     `json:"chargingState,omitempty"`
	StoppedReason StopReason `json:"stoppedReason,omitempty"`
}

// EVSEInfo identifies the EVSE and connector a report refers to.
type EVSEInfo struct {
	ID          int `json:"id"`
	ConnectorID int `json:"connectorId,omitempty"`
}

// TransactionEventRequest reports a transaction lifecycle change.
type TransactionEventRequest struct {
	EventType       TransactionEventType `json:"eventType"`
	Timestamp       time.Time            `json:"timestamp"`
	TriggerReason   TriggerReason        `json:"triggerReason"`
	SeqNo           int                  `json:"seqNo"`
	TransactionInfo TransactionInfo      `json:"transactionInfo"`
	Evse            *EVSEInfo            `json:"evse,omitempty"`
	IDToken         *IDToken             `json:"idToken,omitempty"`
	MeterValue      []MeterValue         `json:"meterValue,omitempty"`
}

// TransactionEventResponse may carry an updated token verdict; the
// emulator ignores everything in it.
type TransactionEventResponse struct {
	IDTokenInfo *IDTokenInfo `json:"idTokenInfo,omitempty"`
}

// EventData describes one reported event in a NotifyEvent.
type EventData struct {
	EventID     int          `json:"eventId"`
	Timestamp   time.Time    `json:"timestamp"`
	Trigger     EventTrigger `json:"trigger"`
	ActualValue string       `json:"actualValue"`
	TechInfo    string       `json:"techInfo,omitempty"`
	Cleared     bool         `json:"cleared,omitempty"`
	Component   struct {
		Name string    `json:"name"`
		Evse *EVSEInfo `json:"evse,omitempty"`
	} `json:"component"`
}

// NotifyEventRequest reports fault and diagnostic events.
type NotifyEventRequest struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	SeqNo       int         `json:"seqNo"`
	EventData   []EventData `json:"eventData"`
}

// RequestStartTransactionRequest is a CSMS-initiated session start.
type RequestStartTransactionRequest struct {
	EvseID        int     `json:"evseId"`
	RemoteStartID int     `json:"remoteStartId"`
	IDToken       IDToken `json:"idToken"`
}

// Validate checks the required-field contract.
func (r *RequestStartTransactionRequest) Validate() error {
	if r.EvseID <= 0 {
		return ErrMissingEvseID
	}
	if r.IDToken.IDToken == "" {
		return ErrMissingIDToken
	}
	return nil
}

// RequestStartTransactionResponse carries the verdict and, when accepted,
// the transaction id assigned by the station.
type RequestStartTransactionResponse struct {
	Status        GenericStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
}

// RequestStopTransactionRequest is a CSMS-initiated session stop.
type RequestStopTransactionRequest struct {
	TransactionID string `json:"transactionId"`
}

// Validate checks the required-field contract.
func (r *RequestStopTransactionRequest) Validate() error {
	if r.TransactionID == "" {
		return ErrMissingTransactionID
	}
	return nil
}

// RequestStopTransactionResponse carries the verdict.
type RequestStopTransactionResponse struct {
	Status GenericStatus `json:"status"`
}

// ResetRequest asks the station to reboot.
type ResetRequest struct {
	Type ResetType `json:"type"`
}

// Validate checks the required-field contract.
func (r *ResetRequest) Validate() error {
	if r.Type == "" {
		return ErrMissingResetType
	}
	return nil
}

// ResetResponse carries the verdict.
type ResetResponse struct {
	Status GenericStatus `json:"status"`
}

// ChangeAvailabilityRequest enables or disables an EVSE. A nil Evse
// addresses the whole station.
type ChangeAvailabilityRequest struct {
	OperationalStatus OperationalStatus `json:"operationalStatus"`
	Evse              *EVSEInfo         `json:"evse,omitempty"`
}

// Validate checks the required-field contract.
func (r *ChangeAvailabilityRequest) Validate() error {
	if r.OperationalStatus == "" {
		return ErrMissingOperationalStatus
	}
	return nil
}

// ChangeAvailabilityResponse carries the verdict.
type ChangeAvailabilityResponse struct {
	Status GenericStatus `json:"status"`
}

// TriggerMessageRequest asks the station to (re)send a report.
type TriggerMessageRequest struct {
	RequestedMessage MessageTrigger `json:"requestedMessage"`
	Evse             *EVSEInfo      `json:"evse,omitempty"`
}

// Validate checks the required-field contract.
func (r *TriggerMessageRequest) Validate() error {
	if r.RequestedMessage == "" {
		return ErrMissingTrigger
	}
	return nil
}

// TriggerMessageResponse carries the verdict.
type TriggerMessageResponse struct {
	Status GenericStatus `json:"status"`
}
