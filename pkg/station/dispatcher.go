package station

import (
	"time"

	"github.com/cpsim-project/ocppsim-go/pkg/log"
	"github.com/cpsim-project/ocppsim-go/pkg/ocpp"
)

// dispatch answers one inbound CALL. Every CALL gets exactly one reply:
// a CALLRESULT from its handler, or a CALLERROR when the action is
// unknown or the payload violates the action's contract.
func (s *Station) dispatch(call *ocpp.Call, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.protocolLogger.Log(log.NewFrameEvent(s.config.StationID, log.DirectionIn,
		uint8(ocpp.MessageTypeCall), call.ID, string(call.Action), "", data))
	s.logger.Debug("csms call", "action", string(call.Action), "id", call.ID)

	var status string
	switch call.Action {
	case ocpp.ActionRequestStartTransaction:
		status = s.handleRequestStart(call)
	case ocpp.ActionRequestStopTransaction:
		status = s.handleRequestStop(call)
	case ocpp.ActionReset:
		status = s.handleReset(call)
	case ocpp.ActionChangeAvailability:
		status = s.handleChangeAvailability(call)
	case ocpp.ActionTriggerMessage:
		status = s.handleTriggerMessage(call)
	default:
		s.sendErrorLocked(call.ID, ocpp.ErrorNotImplemented,
			"action not implemented: "+string(call.Action))
		status = string(ocpp.ErrorNotImplemented)
	}

	s.emitEvent(Event{
		Type:          EventRemoteCommand,
		Command:       string(call.Action),
		CommandStatus: status,
	})
}

// rejectMalformed answers a CALL whose payload failed decoding or
// validation. Caller holds the lock.
func (s *Station) rejectMalformed(call *ocpp.Call, err error) string {
	s.sendErrorLocked(call.ID, ocpp.ErrorFormationViolation, err.Error())
	return string(ocpp.ErrorFormationViolation)
}

func (s *Station) handleRequestStart(call *ocpp.Call) string {
	var req ocpp.RequestStartTransactionRequest
	if err := call.UnmarshalPayload(&req); err != nil {
		return s.rejectMalformed(call, err)
	}
	if err := req.Validate(); err != nil {
		return s.rejectMalformed(call, err)
	}

	e := s.evseLocked(req.EvseID)
	if e == nil || e.status != StatusAvailable {
		s.sendResultLocked(call.ID, ocpp.RequestStartTransactionResponse{
			Status: ocpp.StatusRejected,
		})
		return string(ocpp.StatusRejected)
	}

	if err := s.startSessionLocked(e, SessionParams{IDTag: req.IDToken.IDToken}, req.RemoteStartID); err != nil {
		s.sendResultLocked(call.ID, ocpp.RequestStartTransactionResponse{
			Status: ocpp.StatusRejected,
		})
		return string(ocpp.StatusRejected)
	}
	s.sendResultLocked(call.ID, ocpp.RequestStartTransactionResponse{
		Status:        ocpp.StatusAccepted,
		TransactionID: e.session.TransactionID,
	})
	return string(ocpp.StatusAccepted)
}

func (s *Station) handleRequestStop(call *ocpp.Call) string {
	var req ocpp.RequestStopTransactionRequest
	if err := call.UnmarshalPayload(&req); err != nil {
		return s.rejectMalformed(call, err)
	}
	if err := req.Validate(); err != nil {
		return s.rejectMalformed(call, err)
	}

	for _, e := range s.evses {
		if e.session == nil || e.session.TransactionID != req.TransactionID {
			continue
		}
		s.stopLoopLocked(e)
		e.cancelTimersLocked()
		s.finishSessionLocked(e, ocpp.StopReasonRemote, ocpp.TriggerReasonRemoteStop)
		s.sendResultLocked(call.ID, ocpp.RequestStopTransactionResponse{
			Status: ocpp.StatusAccepted,
		})
		return string(ocpp.StatusAccepted)
	}

	s.sendResultLocked(call.ID, ocpp.RequestStopTransactionResponse{
		Status: ocpp.StatusRejected,
	})
	return string(ocpp.StatusRejected)
}

// handleReset accepts the reset, force-stops every session, and after
// the simulated reboot delay announces itself again with a RemoteReset
// boot notification. Resets are always accepted; OnIdle behaves like an
// immediate reset in this simulation since no EV is physically plugged
// in.
func (s *Station) handleReset(call *ocpp.Call) string {
	var req ocpp.ResetRequest
	if err := call.UnmarshalPayload(&req); err != nil {
		return s.rejectMalformed(call, err)
	}
	if err := req.Validate(); err != nil {
		return s.rejectMalformed(call, err)
	}

	s.sendResultLocked(call.ID, ocpp.ResetResponse{Status: ocpp.StatusAccepted})

	s.stopHeartbeatLocked()
	s.booted = false
	for _, e := range s.evses {
		if e.session != nil {
			s.endSessionLocked(e, ocpp.StopReasonPowerLoss, ocpp.TriggerReasonAbnormalCondition)
		}
		e.cancelTimersLocked()
		if e.status != StatusFaulted {
			s.setStatusLocked(e, StatusUnavailable, "rebooting")
		}
	}
	s.pending = make(map[string]ocpp.Action)
	s.logger.Info("resetting", "type", string(req.Type))

	s.bootTimer = time.AfterFunc(s.config.ResetDelay, func() {
		s.mu.Lock()
		if s.connected {
			for _, e := range s.evses {
				if e.status == StatusUnavailable {
					s.setStatusLocked(e, StatusAvailable, "reboot complete")
				}
			}
		}
		s.mu.Unlock()
		s.announceBoot(ocpp.BootReasonRemoteReset)
	})

	return string(ocpp.StatusAccepted)
}

func (s *Station) handleChangeAvailability(call *ocpp.Call) string {
	var req ocpp.ChangeAvailabilityRequest
	if err := call.UnmarshalPayload(&req); err != nil {
		return s.rejectMalformed(call, err)
	}
	if err := req.Validate(); err != nil {
		return s.rejectMalformed(call, err)
	}

	operative := req.OperationalStatus == ocpp.OperationalStatusOperative

	var targets []*EVSE
	if req.Evse != nil {
		e := s.evseLocked(req.Evse.ID)
		if e == nil {
			s.sendResultLocked(call.ID, ocpp.ChangeAvailabilityResponse{Status: ocpp.StatusRejected})
			return string(ocpp.StatusRejected)
		}
		targets = []*EVSE{e}
	} else {
		targets = s.evses
	}

	changed := false
	for _, e := range targets {
		if err := s.setAvailabilityLocked(e, operative); err == nil {
			changed = true
		}
	}

	// Already in the requested state counts as success; only a change
	// blocked on every target (e.g. a faulted EVSE) is rejected.
	status := ocpp.StatusAccepted
	if !changed && req.Evse != nil {
		target := s.evseLocked(req.Evse.ID)
		inRequested := (operative && target.status != StatusUnavailable) ||
			(!operative && target.status == StatusUnavailable)
		if !inRequested {
			status = ocpp.StatusRejected
		}
	}

	s.sendResultLocked(call.ID, ocpp.ChangeAvailabilityResponse{Status: status})
	return string(status)
}

func (s *Station) handleTriggerMessage(call *ocpp.Call) string {
	var req ocpp.TriggerMessageRequest
	if err := call.UnmarshalPayload(&req); err != nil {
		return s.rejectMalformed(call, err)
	}
	if err := req.Validate(); err != nil {
		return s.rejectMalformed(call, err)
	}

	status := ocpp.StatusAccepted
	switch req.RequestedMessage {
	case ocpp.TriggerBootNotification:
		s.sendResultLocked(call.ID, ocpp.TriggerMessageResponse{Status: status})
		s.sendCallLocked(ocpp.ActionBootNotification, ocpp.BootNotificationRequest{
			Reason: ocpp.BootReasonApplicationReset,
			ChargingStation: ocpp.ChargingStationInfo{
				Model:           s.config.Model,
				VendorName:      s.config.Vendor,
				SerialNumber:    s.config.SerialNumber,
				FirmwareVersion: s.config.FirmwareVersion,
			},
		})

	case ocpp.TriggerHeartbeat:
		s.sendResultLocked(call.ID, ocpp.TriggerMessageResponse{Status: status})
		s.sendCallLocked(ocpp.ActionHeartbeat, ocpp.HeartbeatRequest{})

	case ocpp.TriggerStatusNotification:
		targets := s.evses
		if req.Evse != nil {
			e := s.evseLocked(req.Evse.ID)
			if e == nil {
				status = ocpp.StatusRejected
				s.sendResultLocked(call.ID, ocpp.TriggerMessageResponse{Status: status})
				break
			}
			targets = []*EVSE{e}
		}
		s.sendResultLocked(call.ID, ocpp.TriggerMessageResponse{Status: status})
		for _, e := range targets {
			s.sendStatusNotificationLocked(e)
		}

	case ocpp.TriggerMeterValues:
		var charging []*EVSE
		for _, e := range s.evses {
			if req.Evse != nil && e.id != req.Evse.ID {
				continue
			}
			if e.status == StatusCharging && e.session != nil {
				charging = append(charging, e)
			}
		}
		if len(charging) == 0 {
			status = ocpp.StatusRejected
			s.sendResultLocked(call.ID, ocpp.TriggerMessageResponse{Status: status})
			break
		}
		s.sendResultLocked(call.ID, ocpp.TriggerMessageResponse{Status: status})
		for _, e := range charging {
			s.sendCallLocked(ocpp.ActionMeterValues, ocpp.MeterValuesRequest{
				EvseID:     e.id,
				MeterValue: s.meterValuesLocked(e),
			})
		}

	default:
		status = ocpp.StatusRejected
		s.sendResultLocked(call.ID, ocpp.TriggerMessageResponse{Status: status})
	}

	return string(status)
}
