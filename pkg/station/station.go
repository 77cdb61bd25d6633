package station

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cpsim-project/ocppsim-go/pkg/csms"
	"github.com/cpsim-project/ocppsim-go/pkg/log"
	"github.com/cpsim-project/ocppsim-go/pkg/ocpp"
)

// Station is a simulated OCPP 2.0.1 charging station. It owns all EVSE
// state and serializes every mutation, whether it originates from a
// local operator command, an inbound CSMS call, a metering tick, or a
// transition timer, behind a single mutex.
type Station struct {
	mu sync.Mutex

	config    Config
	evses     []*EVSE
	transport csms.Transport

	connected bool
	booted    bool

	// pending maps correlation ids of outstanding CALLs to their
	// actions. Entries are removed when the reply arrives and dropped
	// wholesale on disconnect; CALLs are never retried.
	pending map[string]ocpp.Action

	heartbeatStop     chan struct{}
	heartbeatInterval time.Duration
	bootTimer         *time.Timer

	seqNo   int
	eventID int

	logger         *slog.Logger
	protocolLogger log.Logger

	handlerMu sync.Mutex
	handlers  []EventHandler
}

// New creates a station from the given configuration and transport.
func New(config Config, transport csms.Transport) (*Station, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidConfig)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	protocolLogger := config.ProtocolLogger
	if protocolLogger == nil {
		protocolLogger = log.NoopLogger{}
	}

	s := &Station{
		config:            config,
		transport:         transport,
		pending:           make(map[string]ocpp.Action),
		heartbeatInterval: config.HeartbeatInterval,
		logger:            logger,
		protocolLogger:    protocolLogger,
	}
	s.evses = buildEVSEs(config)
	return s, nil
}

func buildEVSEs(config Config) []*EVSE {
	evses := make([]*EVSE, config.ConnectorCount)
	for i := range evses {
		evses[i] = newEVSE(i+1, config.ConnectorType, config.AmbientC)
		evses[i].status = StatusUnavailable
	}
	return evses
}

// Config returns a copy of the current configuration.
func (s *Station) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Connected reports whether the CSMS connection is up.
func (s *Station) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Snapshots returns a consistent copy of every EVSE's state.
func (s *Station) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := make([]Snapshot, len(s.evses))
	for i, e := range s.evses {
		snaps[i] = e.snapshot()
	}
	return snaps
}

// EVSE returns a snapshot of the EVSE with the given id.
func (s *Station) EVSE(id int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.evseLocked(id)
	if e == nil {
		return Snapshot{}, ErrEVSENotFound
	}
	return e.snapshot(), nil
}

// evseLocked finds an EVSE by id. Caller holds the lock.
func (s *Station) evseLocked(id int) *EVSE {
	for _, e := range s.evses {
		if e.id == id {
			return e
		}
	}
	return nil
}

// Connect establishes the CSMS connection. EVSEs become Available and,
// after the simulated boot delay, the station announces itself with a
// BootNotification followed by a status report per EVSE.
func (s *Station) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return ErrAlreadyConnected
	}

	if err := s.transport.Connect(ctx, &transportHandler{station: s}); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	s.connected = true
	s.booted = false
	s.heartbeatInterval = s.config.HeartbeatInterval

	for _, e := range s.evses {
		if e.status == StatusUnavailable {
			s.setStatusLocked(e, StatusAvailable, "connected")
		}
	}

	s.protocolLogger.Log(log.NewStateEvent(s.config.StationID, 0, "Disconnected", "Connected", ""))
	s.logger.Info("connected to csms", "stationId", s.config.StationID)

	s.bootTimer = time.AfterFunc(s.config.BootDelay, func() {
		s.announceBoot(ocpp.BootReasonPowerUp)
	})

	s.emitEvent(Event{Type: EventConnected})
	return nil
}

// Disconnect closes the CSMS connection. Active sessions are force
// stopped and every EVSE becomes Unavailable. Outstanding CALLs are
// dropped, never retried.
func (s *Station) Disconnect() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}

	s.shutdownLocked(ocpp.StopReasonLocal)
	s.connected = false
	s.pending = make(map[string]ocpp.Action)

	s.protocolLogger.Log(log.NewStateEvent(s.config.StationID, 0, "Connected", "Disconnected", "local"))
	s.logger.Info("disconnected from csms", "stationId", s.config.StationID)
	s.mu.Unlock()

	err := s.transport.Close()
	s.emitEvent(Event{Type: EventDisconnected})
	return err
}

// shutdownLocked stops the heartbeat, the boot timer, and every active
// session, and marks all EVSEs Unavailable. Faulted EVSEs keep their
// status and fault; only an explicit clear recovers them. Caller holds
// the lock.
func (s *Station) shutdownLocked(reason ocpp.StopReason) {
	if s.bootTimer != nil {
		s.bootTimer.Stop()
		s.bootTimer = nil
	}
	s.stopHeartbeatLocked()
	s.booted = false

	for _, e := range s.evses {
		if e.session != nil {
			s.endSessionLocked(e, reason, ocpp.TriggerReasonAbnormalCondition)
		}
		e.cancelTimersLocked()
		if e.status != StatusUnavailable && e.status != StatusFaulted {
			s.setStatusLocked(e, StatusUnavailable, "shutdown")
		}
	}
}

// announceBoot sends the BootNotification, reports every EVSE's status,
// and starts the heartbeat.
func (s *Station) announceBoot(reason ocpp.BootReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return
	}
	s.bootTimer = nil
	s.booted = true

	s.sendCallLocked(ocpp.ActionBootNotification, ocpp.BootNotificationRequest{
		Reason: reason,
		ChargingStation: ocpp.ChargingStationInfo{
			Model:           s.config.Model,
			VendorName:      s.config.Vendor,
			SerialNumber:    s.config.SerialNumber,
			FirmwareVersion: s.config.FirmwareVersion,
		},
	})

	for _, e := range s.evses {
		s.sendStatusNotificationLocked(e)
	}

	s.startHeartbeatLocked()
	s.logger.Info("boot announced", "reason", string(reason))
}

// startHeartbeatLocked (re)starts the heartbeat loop with the current
// interval. Caller holds the lock.
func (s *Station) startHeartbeatLocked() {
	s.stopHeartbeatLocked()
	if s.heartbeatInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	s.heartbeatStop = stop
	go s.heartbeatLoop(stop, s.heartbeatInterval)
}

// stopHeartbeatLocked stops the heartbeat loop. Caller holds the lock.
func (s *Station) stopHeartbeatLocked() {
	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
		s.heartbeatStop = nil
	}
}

func (s *Station) heartbeatLoop(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.connected && s.booted {
				s.sendCallLocked(ocpp.ActionHeartbeat, ocpp.HeartbeatRequest{})
			}
			s.mu.Unlock()
		}
	}
}

// sendCallLocked encodes and sends a CALL, registering it as pending.
// Caller holds the lock. Send failures are logged and the frame is
// dropped; the connection-level error surfaces via OnDisconnect.
func (s *Station) sendCallLocked(action ocpp.Action, payload any) string {
	id, data, err := ocpp.EncodeCall(action, payload)
	if err != nil {
		s.logger.Error("encode call", "action", string(action), "err", err)
		return ""
	}

	s.pending[id] = action
	s.protocolLogger.Log(log.NewFrameEvent(s.config.StationID, log.DirectionOut,
		uint8(ocpp.MessageTypeCall), id, string(action), "", data))

	if err := s.transport.Send(data); err != nil {
		s.logger.Warn("send call", "action", string(action), "err", err)
	}
	return id
}

// SendCall sends a manually composed CALL to the CSMS and returns its
// correlation id. The payload may be any JSON-marshalable value or a
// pre-encoded json.RawMessage.
func (s *Station) SendCall(action ocpp.Action, payload any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}
	id := s.sendCallLocked(action, payload)
	if id == "" {
		return "", fmt.Errorf("encode call %s", action)
	}
	return id, nil
}

// sendResultLocked encodes and sends a CALLRESULT. Caller holds the lock.
func (s *Station) sendResultLocked(id string, payload any) {
	data, err := ocpp.EncodeResult(id, payload)
	if err != nil {
		s.logger.Error("encode result", "id", id, "err", err)
		return
	}

	s.protocolLogger.Log(log.NewFrameEvent(s.config.StationID, log.DirectionOut,
		uint8(ocpp.MessageTypeCallResult), id, "", "", data))

	if err := s.transport.Send(data); err != nil {
		s.logger.Warn("send result", "id", id, "err", err)
	}
}

// sendErrorLocked encodes and sends a CALLERROR. Caller holds the lock.
func (s *Station) sendErrorLocked(id string, code ocpp.ErrorCode, description string) {
	data, err := ocpp.EncodeError(id, code, description, nil)
	if err != nil {
		s.logger.Error("encode error", "id", id, "err", err)
		return
	}

	s.protocolLogger.Log(log.NewFrameEvent(s.config.StationID, log.DirectionOut,
		uint8(ocpp.MessageTypeCallError), id, "", string(code), data))

	if err := s.transport.Send(data); err != nil {
		s.logger.Warn("send error", "id", id, "err", err)
	}
}

// sendStatusNotificationLocked reports an EVSE's current status to the
// CSMS. Caller holds the lock.
func (s *Station) sendStatusNotificationLocked(e *EVSE) {
	s.sendCallLocked(ocpp.ActionStatusNotification, ocpp.StatusNotificationRequest{
		Timestamp:       time.Now().UTC(),
		ConnectorStatus: e.status.String(),
		EvseID:          e.id,
		ConnectorID:     1,
	})
}

// setStatusLocked transitions an EVSE to a new status, records the
// change, and reports it to the CSMS when booted. Caller holds the lock.
func (s *Station) setStatusLocked(e *EVSE, status Status, reason string) {
	if e.status == status {
		return
	}
	old := e.status
	e.status = status

	s.protocolLogger.Log(log.NewStateEvent(s.config.StationID, e.id,
		old.String(), status.String(), reason))
	s.logger.Debug("evse status", "evseId", e.id, "old", old.String(), "new", status.String(), "reason", reason)

	if s.connected && s.booted {
		s.sendStatusNotificationLocked(e)
	}

	s.emitEvent(Event{
		Type:      EventStatusChanged,
		EvseID:    e.id,
		OldStatus: old,
		NewStatus: status,
	})
}

// nextSeqNoLocked returns the next transaction event sequence number.
func (s *Station) nextSeqNoLocked() int {
	s.seqNo++
	return s.seqNo
}

// nextEventIDLocked returns the next notify-event id.
func (s *Station) nextEventIDLocked() int {
	s.eventID++
	return s.eventID
}

// HandleInbound processes one raw frame as received from the CSMS.
// The transport feeds it; consumers may also inject frames directly,
// for instance to replay captured traffic. Undecodable frames are
// logged and discarded without a reply.
func (s *Station) HandleInbound(data []byte) {
	frame, err := ocpp.Decode(data)
	if err != nil {
		s.mu.Lock()
		s.protocolLogger.Log(log.NewErrorEvent(s.config.StationID, log.DirectionIn,
			err.Error(), "decode inbound frame"))
		s.logger.Warn("malformed frame discarded", "err", err)
		s.mu.Unlock()
		return
	}

	switch f := frame.(type) {
	case *ocpp.Call:
		s.dispatch(f, data)
	case *ocpp.CallResult:
		s.handleCallResult(f, data)
	case *ocpp.CallError:
		s.handleCallError(f, data)
	}
}

// handleCallResult correlates a CALLRESULT with its pending CALL.
func (s *Station) handleCallResult(result *ocpp.CallResult, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.pending[result.ID]
	if !ok {
		s.logger.Warn("result for unknown call", "id", result.ID)
		return
	}
	delete(s.pending, result.ID)

	s.protocolLogger.Log(log.NewFrameEvent(s.config.StationID, log.DirectionIn,
		uint8(ocpp.MessageTypeCallResult), result.ID, string(action), "", data))

	switch action {
	case ocpp.ActionBootNotification:
		var resp ocpp.BootNotificationResponse
		if err := result.UnmarshalPayload(&resp); err != nil {
			s.logger.Warn("decode boot response", "err", err)
			return
		}
		if resp.Status != ocpp.RegistrationAccepted {
			s.logger.Warn("boot not accepted", "status", string(resp.Status))
			return
		}
		if resp.Interval > 0 {
			interval := time.Duration(resp.Interval) * time.Second
			if interval != s.heartbeatInterval {
				s.heartbeatInterval = interval
				s.startHeartbeatLocked()
				s.logger.Info("heartbeat interval set by csms", "interval", interval.String())
			}
		}
		s.emitEvent(Event{Type: EventBootAccepted})
	}
}

// handleCallError logs a CALLERROR answering a pending CALL. The call
// is not retried.
func (s *Station) handleCallError(callErr *ocpp.CallError, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.pending[callErr.ID]
	if !ok {
		s.logger.Warn("error for unknown call", "id", callErr.ID)
		return
	}
	delete(s.pending, callErr.ID)

	s.protocolLogger.Log(log.NewFrameEvent(s.config.StationID, log.DirectionIn,
		uint8(ocpp.MessageTypeCallError), callErr.ID, string(action), string(callErr.Code), data))
	s.logger.Warn("call rejected by csms",
		"action", string(action), "code", string(callErr.Code), "description", callErr.Description)
}

// handleTransportDisconnect reacts to a connection loss reported by the
// transport. A nil error means the close was locally initiated and
// Disconnect already did the cleanup.
func (s *Station) handleTransportDisconnect(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	// The transport is already gone; clearing connected first keeps the
	// shutdown from writing transaction reports to a dead connection.
	s.connected = false
	s.shutdownLocked(ocpp.StopReasonPowerLoss)
	s.pending = make(map[string]ocpp.Action)

	s.protocolLogger.Log(log.NewStateEvent(s.config.StationID, 0, "Connected", "Disconnected", err.Error()))
	s.logger.Warn("connection lost", "err", err)
	s.mu.Unlock()

	s.emitEvent(Event{Type: EventDisconnected, Err: err})
}

// UpdateConfig applies a partial configuration change. Electrical and
// connector changes are rejected while connected; a connector count
// change rebuilds the EVSE set.
func (s *Station) UpdateConfig(update ConfigUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.electrical() && s.connected {
		return ErrConnected
	}

	next := s.config
	if update.MaxPowerKW != nil {
		next.MaxPowerKW = *update.MaxPowerKW
	}
	if update.VoltageV != nil {
		next.VoltageV = *update.VoltageV
	}
	if update.BatteryCapacityKWh != nil {
		next.BatteryCapacityKWh = *update.BatteryCapacityKWh
	}
	if update.ConnectorCount != nil {
		next.ConnectorCount = *update.ConnectorCount
	}
	if update.ConnectorType != nil {
		next.ConnectorType = *update.ConnectorType
	}
	if update.ChargeMode != nil {
		next.ChargeMode = *update.ChargeMode
	}
	if update.DefaultSocStart != nil {
		next.DefaultSocStart = *update.DefaultSocStart
	}
	if update.DefaultSocEnd != nil {
		next.DefaultSocEnd = *update.DefaultSocEnd
	}
	if update.DefaultDuration != nil {
		next.DefaultDurationMinutes = *update.DefaultDuration
	}
	if update.MeterReportTicks != nil {
		next.MeterReportTicks = *update.MeterReportTicks
	}

	if err := next.Validate(); err != nil {
		return err
	}

	rebuild := next.ConnectorCount != s.config.ConnectorCount ||
		next.ConnectorType != s.config.ConnectorType
	s.config = next
	if rebuild {
		s.evses = buildEVSEs(next)
	}
	return nil
}

// transportHandler adapts the transport callbacks to the station.
type transportHandler struct {
	station *Station
}

func (h *transportHandler) OnMessage(data []byte) {
	h.station.HandleInbound(data)
}

func (h *transportHandler) OnDisconnect(err error) {
	h.station.handleTransportDisconnect(err)
}

// Compile-time interface satisfaction check.
var _ csms.Handler = (*transportHandler)(nil)
