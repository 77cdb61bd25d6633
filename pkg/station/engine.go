package station

import (
	"time"

	"github.com/cpsim-project/ocppsim-go/pkg/ocpp"
	"github.com/cpsim-project/ocppsim-go/pkg/physics"
)

// meterLoop identifies one run of the metering goroutine. A tick only
// mutates the EVSE while the EVSE still points at the same loop, so
// clearing evse.loop under the lock cancels the loop synchronously:
// after the clearing call returns, no further tick can touch the EVSE.
type meterLoop struct {
	cancel chan struct{}
}

// StartSession begins a charging session on an EVSE. The EVSE enters
// Preparing, an authorization request goes to the CSMS, and charging
// starts after the ramp-up delay. Zero session parameters fall back to
// the configured defaults.
func (s *Station) StartSession(evseID int, params SessionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	e := s.evseLocked(evseID)
	if e == nil {
		return ErrEVSENotFound
	}
	if e.status != StatusAvailable {
		return ErrInvalidTransition
	}

	return s.startSessionLocked(e, params, 0)
}

// startSessionLocked validates the parameters, creates the session,
// moves the EVSE to Preparing, and schedules the ramp-up. Caller holds
// the lock and has verified the EVSE is Available. On error no state
// has changed.
func (s *Station) startSessionLocked(e *EVSE, params SessionParams, remoteStartID int) error {
	if params.IDTag == "" {
		params.IDTag = "LOCAL"
	}
	if params.SocStart <= 0 {
		params.SocStart = s.config.DefaultSocStart
	}
	if params.SocEnd <= 0 {
		params.SocEnd = s.config.DefaultSocEnd
	}
	if params.DurationSeconds <= 0 {
		params.DurationSeconds = s.config.DefaultDurationMinutes * 60
	}
	if err := params.validate(); err != nil {
		return err
	}

	session := newSession(params)
	session.RemoteStartID = remoteStartID
	e.session = session

	s.setStatusLocked(e, StatusPreparing, "session requested")

	s.sendCallLocked(ocpp.ActionAuthorize, ocpp.AuthorizeRequest{
		IDToken: ocpp.IDToken{IDToken: params.IDTag, Type: "ISO14443"},
	})

	e.rampTimer = time.AfterFunc(s.config.RampUpDelay, func() {
		s.beginCharging(e.id)
	})
	return nil
}

// beginCharging moves a Preparing EVSE into Charging and starts the
// metering loop. A session stopped during ramp-up makes this a no-op.
func (s *Station) beginCharging(evseID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.evseLocked(evseID)
	if e == nil || e.status != StatusPreparing || e.session == nil {
		return
	}
	e.rampTimer = nil

	now := time.Now().UTC()
	e.session.begin(s.config.BatteryCapacityKWh, now)
	e.powerKW = s.config.MaxPowerKW * s.multiplierLocked(e)

	s.setStatusLocked(e, StatusCharging, "ramp-up complete")

	s.sendCallLocked(ocpp.ActionTransactionEvent, ocpp.TransactionEventRequest{
		EventType:     ocpp.TransactionEventStarted,
		Timestamp:     now,
		TriggerReason: ocpp.TriggerReasonAuthorized,
		SeqNo:         s.nextSeqNoLocked(),
		TransactionInfo: ocpp.TransactionInfo{
			TransactionID: e.session.TransactionID,
			ChargingState: "Charging",
		},
		Evse:    &ocpp.EVSEInfo{ID: e.id, ConnectorID: 1},
		IDToken: &ocpp.IDToken{IDToken: e.session.IDTag, Type: "ISO14443"},
	})

	s.startLoopLocked(e)

	snap := e.session.snapshot()
	s.emitEvent(Event{Type: EventSessionStarted, EvseID: e.id, Session: &snap})
}

// startLoopLocked starts the metering goroutine. Caller holds the lock.
func (s *Station) startLoopLocked(e *EVSE) {
	l := &meterLoop{cancel: make(chan struct{})}
	e.loop = l
	go s.runLoop(e, l)
}

// stopLoopLocked cancels the metering goroutine. Caller holds the lock;
// once this returns no further tick will mutate the EVSE.
func (s *Station) stopLoopLocked(e *EVSE) {
	if e.loop == nil {
		return
	}
	close(e.loop.cancel)
	e.loop = nil
}

func (s *Station) runLoop(e *EVSE, l *meterLoop) {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.cancel:
			return
		case <-ticker.C:
			if !s.tick(e, l) {
				return
			}
		}
	}
}

// tick applies one metering step. It reports false once the loop has
// been superseded or the session completed.
func (s *Station) tick(e *EVSE, l *meterLoop) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.loop != l || e.session == nil {
		return false
	}

	multiplier := s.multiplierLocked(e)
	powerKW := s.config.MaxPowerKW * multiplier

	done := e.session.advance(multiplier)
	e.temperature = physics.NextTemperature(e.temperature, powerKW, s.config.MaxPowerKW, s.config.AmbientC)
	e.powerKW = powerKW

	snap := e.session.snapshot()
	s.emitEvent(Event{
		Type:         EventMeterTick,
		EvseID:       e.id,
		Session:      &snap,
		TemperatureC: e.temperature,
		PowerKW:      powerKW,
	})

	if e.session.ticks%s.config.MeterReportTicks == 0 {
		s.sendCallLocked(ocpp.ActionMeterValues, ocpp.MeterValuesRequest{
			EvseID:     e.id,
			MeterValue: s.meterValuesLocked(e),
		})
	}

	if done {
		s.completeSessionLocked(e)
		return false
	}
	return true
}

// multiplierLocked computes the combined power multiplier for an EVSE's
// session. Caller holds the lock.
func (s *Station) multiplierLocked(e *EVSE) float64 {
	if s.config.ChargeMode == ChargeModeLinear {
		return 1.0
	}
	return physics.PowerCurveMultiplier(e.session.Soc) *
		physics.TemperatureDerating(e.temperature)
}

// meterValuesLocked builds the sampled values for a metering report.
// Caller holds the lock.
func (s *Station) meterValuesLocked(e *EVSE) []ocpp.MeterValue {
	return []ocpp.MeterValue{{
		Timestamp: time.Now().UTC(),
		SampledValue: []ocpp.SampledValue{
			{Value: e.session.EnergyKWh * 1000, Measurand: ocpp.MeasurandEnergyActiveImportRegister, Unit: "Wh"},
			{Value: e.powerKW, Measurand: ocpp.MeasurandPowerActiveImport, Unit: "kW"},
			{Value: e.powerKW * 1000 / s.config.VoltageV, Measurand: ocpp.MeasurandCurrentImport, Unit: "A"},
			{Value: e.session.Soc, Measurand: ocpp.MeasurandSoC, Unit: "Percent"},
			{Value: e.temperature, Measurand: ocpp.MeasurandTemperature, Unit: "Celsius"},
		},
	}}
}

// completeSessionLocked ends a session that reached its target state of
// charge. Caller holds the lock.
func (s *Station) completeSessionLocked(e *EVSE) {
	e.loop = nil
	s.finishSessionLocked(e, ocpp.StopReasonSOCLimitReached, ocpp.TriggerReasonChargingStateChanged)
}

// StopSession ends the session on an EVSE by local command. Valid from
// Preparing and Charging.
func (s *Station) StopSession(evseID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.evseLocked(evseID)
	if e == nil {
		return ErrEVSENotFound
	}
	if e.session == nil {
		return ErrNoActiveSession
	}
	if e.status != StatusPreparing && e.status != StatusCharging &&
		e.status != StatusSuspendedEV && e.status != StatusSuspendedEVSE {
		return ErrInvalidTransition
	}

	s.stopLoopLocked(e)
	e.cancelTimersLocked()
	s.finishSessionLocked(e, ocpp.StopReasonLocal, ocpp.TriggerReasonStopAuthorized)
	return nil
}

// finishSessionLocked reports the end of a session, clears it, moves
// the EVSE to Finishing, and schedules the settle transition back to
// Available. Caller holds the lock and has already stopped the loop.
func (s *Station) finishSessionLocked(e *EVSE, reason ocpp.StopReason, trigger ocpp.TriggerReason) {
	session := e.session
	snap := session.snapshot()

	if session.started && s.connected {
		s.sendCallLocked(ocpp.ActionTransactionEvent, ocpp.TransactionEventRequest{
			EventType:     ocpp.TransactionEventEnded,
			Timestamp:     time.Now().UTC(),
			TriggerReason: trigger,
			SeqNo:         s.nextSeqNoLocked(),
			TransactionInfo: ocpp.TransactionInfo{
				TransactionID: session.TransactionID,
				StoppedReason: reason,
			},
			Evse:       &ocpp.EVSEInfo{ID: e.id, ConnectorID: 1},
			MeterValue: s.meterValuesLocked(e),
		})
	}

	e.session = nil
	e.powerKW = 0

	s.setStatusLocked(e, StatusFinishing, "session ended: "+string(reason))

	e.settleTimer = time.AfterFunc(s.config.SettleDelay, func() {
		s.settle(e.id)
	})

	s.emitEvent(Event{
		Type:       EventSessionStopped,
		EvseID:     e.id,
		Session:    &snap,
		StopReason: string(reason),
	})
}

// endSessionLocked force-stops a session without the Finishing phase,
// used during shutdown and faults. Caller holds the lock.
func (s *Station) endSessionLocked(e *EVSE, reason ocpp.StopReason, trigger ocpp.TriggerReason) {
	s.stopLoopLocked(e)
	e.cancelTimersLocked()

	session := e.session
	if session == nil {
		return
	}
	snap := session.snapshot()

	if session.started && s.connected {
		s.sendCallLocked(ocpp.ActionTransactionEvent, ocpp.TransactionEventRequest{
			EventType:     ocpp.TransactionEventEnded,
			Timestamp:     time.Now().UTC(),
			TriggerReason: trigger,
			SeqNo:         s.nextSeqNoLocked(),
			TransactionInfo: ocpp.TransactionInfo{
				TransactionID: session.TransactionID,
				StoppedReason: reason,
			},
			Evse:       &ocpp.EVSEInfo{ID: e.id, ConnectorID: 1},
			MeterValue: s.meterValuesLocked(e),
		})
	}

	e.session = nil
	e.powerKW = 0

	s.emitEvent(Event{
		Type:       EventSessionStopped,
		EvseID:     e.id,
		Session:    &snap,
		StopReason: string(reason),
	})
}

// settle moves a Finishing EVSE back to Available.
func (s *Station) settle(evseID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.evseLocked(evseID)
	if e == nil || e.status != StatusFinishing {
		return
	}
	e.settleTimer = nil
	s.setStatusLocked(e, StatusAvailable, "settled")
}

// InjectFault raises a fault on an EVSE. An active session is force
// stopped, the EVSE enters Faulted, and the fault is reported to the
// CSMS. Faults persist until explicitly cleared.
func (s *Station) InjectFault(evseID int, code FaultCode, info string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.evseLocked(evseID)
	if e == nil {
		return ErrEVSENotFound
	}
	if e.status == StatusFaulted || e.status == StatusUnavailable {
		return ErrInvalidTransition
	}

	if e.session != nil {
		reason := ocpp.StopReasonOther
		if code == FaultGroundFailure {
			reason = ocpp.StopReasonGroundFault
		}
		s.endSessionLocked(e, reason, ocpp.TriggerReasonAbnormalCondition)
	}

	fault := &Fault{Code: code, Info: info, RaisedAt: time.Now().UTC()}
	e.fault = fault

	s.setStatusLocked(e, StatusFaulted, string(code))

	if s.connected && s.booted {
		s.sendNotifyEventLocked(e, fault, false)
	}

	f := *fault
	s.emitEvent(Event{Type: EventFaultRaised, EvseID: e.id, Fault: &f})
	return nil
}

// ClearFault clears the fault on a Faulted EVSE and returns it to
// Available.
func (s *Station) ClearFault(evseID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.evseLocked(evseID)
	if e == nil {
		return ErrEVSENotFound
	}
	if e.status != StatusFaulted || e.fault == nil {
		return ErrInvalidTransition
	}

	fault := e.fault
	e.fault = nil
	e.temperature = s.config.AmbientC

	s.setStatusLocked(e, StatusAvailable, "fault cleared")

	if s.connected && s.booted {
		s.sendNotifyEventLocked(e, fault, true)
	}

	f := *fault
	s.emitEvent(Event{Type: EventFaultCleared, EvseID: e.id, Fault: &f})
	return nil
}

// sendNotifyEventLocked reports a fault, or its clearing, to the CSMS.
// Caller holds the lock.
func (s *Station) sendNotifyEventLocked(e *EVSE, fault *Fault, cleared bool) {
	trigger := ocpp.EventTriggerAlerting
	if cleared {
		trigger = ocpp.EventTriggerDelta
	}

	event := ocpp.EventData{
		EventID:     s.nextEventIDLocked(),
		Timestamp:   time.Now().UTC(),
		Trigger:     trigger,
		ActualValue: string(fault.Code),
		TechInfo:    fault.Info,
		Cleared:     cleared,
	}
	event.Component.Name = "Connector"
	event.Component.Evse = &ocpp.EVSEInfo{ID: e.id, ConnectorID: 1}

	s.sendCallLocked(ocpp.ActionNotifyEvent, ocpp.NotifyEventRequest{
		GeneratedAt: time.Now().UTC(),
		SeqNo:       s.nextSeqNoLocked(),
		EventData:   []ocpp.EventData{event},
	})
}

// SetAvailability switches an EVSE between Available and Unavailable by
// local command. Making a busy EVSE inoperative force-stops its session.
func (s *Station) SetAvailability(evseID int, operative bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.evseLocked(evseID)
	if e == nil {
		return ErrEVSENotFound
	}
	return s.setAvailabilityLocked(e, operative)
}

// setAvailabilityLocked applies an availability change. Caller holds
// the lock.
func (s *Station) setAvailabilityLocked(e *EVSE, operative bool) error {
	if operative {
		if e.status != StatusUnavailable {
			return ErrInvalidTransition
		}
		s.setStatusLocked(e, StatusAvailable, "operative")
		return nil
	}

	if e.status == StatusUnavailable {
		return nil
	}
	if e.status == StatusFaulted {
		return ErrInvalidTransition
	}
	if e.session != nil {
		s.endSessionLocked(e, ocpp.StopReasonOther, ocpp.TriggerReasonAbnormalCondition)
	}
	e.cancelTimersLocked()
	s.setStatusLocked(e, StatusUnavailable, "inoperative")
	return nil
}
