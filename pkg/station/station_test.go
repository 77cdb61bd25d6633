package station

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpsim-project/ocppsim-go/pkg/csms"
	"github.com/cpsim-project/ocppsim-go/pkg/ocpp"
)

// testConfig returns a configuration with millisecond delays so state
// transitions complete quickly. Each tick still advances the simulation
// by one nominal second.
func testConfig() Config {
	config := DefaultConfig()
	config.StationID = "CP-TEST"
	config.BatteryCapacityKWh = 60
	config.ChargeMode = ChargeModeLinear
	config.HeartbeatInterval = 0
	config.RampUpDelay = 5 * time.Millisecond
	config.SettleDelay = 5 * time.Millisecond
	config.BootDelay = 2 * time.Millisecond
	config.ResetDelay = 10 * time.Millisecond
	config.TickInterval = time.Millisecond
	config.MeterReportTicks = 10
	return config
}

type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) handle(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) byType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (c *eventCollector) count(t EventType) int {
	return len(c.byType(t))
}

func newTestStation(t *testing.T, config Config) (*Station, *csms.Simulator, *eventCollector) {
	t.Helper()

	sim := csms.NewSimulator(csms.SimulatorConfig{ResponseDelay: time.Millisecond})
	st, err := New(config, sim)
	require.NoError(t, err)

	collector := &eventCollector{}
	st.OnEvent(collector.handle)
	return st, sim, collector
}

func connect(t *testing.T, st *Station, sim *csms.Simulator) {
	t.Helper()

	before := len(sim.Calls(ocpp.ActionBootNotification))
	require.NoError(t, st.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return len(sim.Calls(ocpp.ActionBootNotification)) > before
	}, time.Second, time.Millisecond, "boot notification not sent")
}

func evseStatus(st *Station, id int) Status {
	snap, err := st.EVSE(id)
	if err != nil {
		return StatusUnavailable
	}
	return snap.Status
}

func waitForStatus(t *testing.T, st *Station, id int, status Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return evseStatus(st, id) == status
	}, 5*time.Second, time.Millisecond, "EVSE %d never reached %s", id, status)
}

func TestNewValidatesConfig(t *testing.T) {
	config := testConfig()
	config.MaxPowerKW = 0

	_, err := New(config, csms.NewSimulator(csms.DefaultSimulatorConfig()))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConnectAnnouncesBootAndStatuses(t *testing.T) {
	config := testConfig()
	config.ConnectorCount = 2
	st, sim, collector := newTestStation(t, config)

	// Before connecting every EVSE is out of service.
	for _, snap := range st.Snapshots() {
		assert.Equal(t, StatusUnavailable, snap.Status)
	}

	connect(t, st, sim)

	for _, snap := range st.Snapshots() {
		assert.Equal(t, StatusAvailable, snap.Status)
	}

	require.Eventually(t, func() bool {
		return len(sim.Calls(ocpp.ActionStatusNotification)) >= 2
	}, time.Second, time.Millisecond)

	boot := sim.Calls(ocpp.ActionBootNotification)[0]
	var req ocpp.BootNotificationRequest
	require.NoError(t, boot.UnmarshalPayload(&req))
	assert.Equal(t, ocpp.BootReasonPowerUp, req.Reason)
	assert.Equal(t, "cpsim", req.ChargingStation.VendorName)

	require.Eventually(t, func() bool {
		return collector.count(EventBootAccepted) == 1
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, st.Connect(context.Background()), ErrAlreadyConnected)
}

func TestStartSessionRejections(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())

	// Disconnected stations cannot authorize.
	assert.ErrorIs(t, st.StartSession(1, SessionParams{}), ErrNotConnected)

	connect(t, st, sim)

	assert.ErrorIs(t, st.StartSession(99, SessionParams{}), ErrEVSENotFound)

	require.NoError(t, st.StartSession(1, SessionParams{}))
	assert.ErrorIs(t, st.StartSession(1, SessionParams{}), ErrInvalidTransition)
}

func TestStartSessionInvalidParams(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	tests := []struct {
		name   string
		params SessionParams
	}{
		{"end below start", SessionParams{SocStart: 80, SocEnd: 50}},
		{"end equals start", SessionParams{SocStart: 50, SocEnd: 50}},
		{"end above 100", SessionParams{SocStart: 20, SocEnd: 110}},
		{"start at 100", SessionParams{SocStart: 100, SocEnd: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, st.StartSession(1, tt.params), ErrInvalidSession)
			assert.Equal(t, StatusAvailable, evseStatus(st, 1))
		})
	}

	// Rejected parameters never reach the CSMS.
	assert.Empty(t, sim.Calls(ocpp.ActionAuthorize))
}

func TestChargeToTargetSoc(t *testing.T) {
	st, sim, collector := newTestStation(t, testConfig())
	connect(t, st, sim)

	// 20% -> 100% of a 60 kWh battery over 30 nominal seconds.
	require.NoError(t, st.StartSession(1, SessionParams{
		IDTag:           "DRIVER1",
		SocStart:        20,
		SocEnd:          100,
		DurationSeconds: 30,
	}))

	waitForStatus(t, st, 1, StatusCharging)
	waitForStatus(t, st, 1, StatusFinishing)
	waitForStatus(t, st, 1, StatusAvailable)

	stopped := collector.byType(EventSessionStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, string(ocpp.StopReasonSOCLimitReached), stopped[0].StopReason)
	assert.InDelta(t, 100, stopped[0].Session.Soc, 1e-9)
	assert.InDelta(t, 48, stopped[0].Session.EnergyKWh, 1e-9)

	// Transaction lifecycle on the wire: Started then Ended.
	txEvents := sim.Calls(ocpp.ActionTransactionEvent)
	require.Len(t, txEvents, 2)

	var started, ended ocpp.TransactionEventRequest
	require.NoError(t, txEvents[0].UnmarshalPayload(&started))
	require.NoError(t, txEvents[1].UnmarshalPayload(&ended))
	assert.Equal(t, ocpp.TransactionEventStarted, started.EventType)
	assert.Equal(t, ocpp.TransactionEventEnded, ended.EventType)
	assert.Equal(t, started.TransactionInfo.TransactionID, ended.TransactionInfo.TransactionID)
	assert.Equal(t, ocpp.StopReasonSOCLimitReached, ended.TransactionInfo.StoppedReason)
	assert.Less(t, started.SeqNo, ended.SeqNo)

	// 30 ticks with reports every 10 ticks.
	assert.Len(t, sim.Calls(ocpp.ActionMeterValues), 3)

	// Energy and SoC never overshoot their targets.
	for _, e := range collector.byType(EventMeterTick) {
		assert.LessOrEqual(t, e.Session.Soc, 100.0)
		assert.LessOrEqual(t, e.Session.EnergyKWh, 48.0)
	}
}

func TestMeterValuesPayload(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	require.NoError(t, st.StartSession(1, SessionParams{
		SocStart: 20, SocEnd: 100, DurationSeconds: 30,
	}))
	waitForStatus(t, st, 1, StatusAvailable)

	reports := sim.Calls(ocpp.ActionMeterValues)
	require.NotEmpty(t, reports)

	var req ocpp.MeterValuesRequest
	require.NoError(t, reports[0].UnmarshalPayload(&req))
	assert.Equal(t, 1, req.EvseID)
	require.Len(t, req.MeterValue, 1)

	measurands := map[string]bool{}
	for _, sv := range req.MeterValue[0].SampledValue {
		measurands[sv.Measurand] = true
	}
	assert.True(t, measurands[ocpp.MeasurandEnergyActiveImportRegister])
	assert.True(t, measurands[ocpp.MeasurandPowerActiveImport])
	assert.True(t, measurands[ocpp.MeasurandCurrentImport])
	assert.True(t, measurands[ocpp.MeasurandSoC])
	assert.True(t, measurands[ocpp.MeasurandTemperature])
}

func TestStopSessionLocal(t *testing.T) {
	st, sim, collector := newTestStation(t, testConfig())
	connect(t, st, sim)

	require.NoError(t, st.StartSession(1, SessionParams{
		SocStart: 20, SocEnd: 80, DurationSeconds: 600,
	}))
	waitForStatus(t, st, 1, StatusCharging)

	// Let a few ticks land so some energy is metered.
	require.Eventually(t, func() bool {
		return collector.count(EventMeterTick) >= 3
	}, time.Second, time.Millisecond)

	require.NoError(t, st.StopSession(1))
	assert.Equal(t, StatusFinishing, evseStatus(st, 1))
	waitForStatus(t, st, 1, StatusAvailable)

	stopped := collector.byType(EventSessionStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, string(ocpp.StopReasonLocal), stopped[0].StopReason)
	assert.Greater(t, stopped[0].Session.EnergyKWh, 0.0)
	assert.Less(t, stopped[0].Session.Soc, 80.0)

	// No further ticks after the stop returned.
	ticks := collector.count(EventMeterTick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ticks, collector.count(EventMeterTick))
}

func TestStopSessionDuringRampUp(t *testing.T) {
	config := testConfig()
	config.RampUpDelay = time.Hour
	st, sim, _ := newTestStation(t, config)
	connect(t, st, sim)

	require.NoError(t, st.StartSession(1, SessionParams{}))
	assert.Equal(t, StatusPreparing, evseStatus(st, 1))

	require.NoError(t, st.StopSession(1))
	waitForStatus(t, st, 1, StatusAvailable)

	// The session never started, so no transaction events went out.
	assert.Empty(t, sim.Calls(ocpp.ActionTransactionEvent))
}

func TestStopSessionErrors(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	assert.ErrorIs(t, st.StopSession(1), ErrNoActiveSession)
	assert.ErrorIs(t, st.StopSession(42), ErrEVSENotFound)
}

func TestInjectFaultDuringCharge(t *testing.T) {
	st, sim, collector := newTestStation(t, testConfig())
	connect(t, st, sim)

	require.NoError(t, st.StartSession(1, SessionParams{
		SocStart: 20, SocEnd: 80, DurationSeconds: 600,
	}))
	waitForStatus(t, st, 1, StatusCharging)

	require.NoError(t, st.InjectFault(1, FaultGroundFailure, "test fault"))
	assert.Equal(t, StatusFaulted, evseStatus(st, 1))

	// The session was force stopped with the fault's stop reason.
	stopped := collector.byType(EventSessionStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, string(ocpp.StopReasonGroundFault), stopped[0].StopReason)

	// The fault went to the CSMS.
	require.Eventually(t, func() bool {
		return len(sim.Calls(ocpp.ActionNotifyEvent)) == 1
	}, time.Second, time.Millisecond)

	var notify ocpp.NotifyEventRequest
	require.NoError(t, sim.Calls(ocpp.ActionNotifyEvent)[0].UnmarshalPayload(&notify))
	require.Len(t, notify.EventData, 1)
	assert.Equal(t, ocpp.EventTriggerAlerting, notify.EventData[0].Trigger)
	assert.Equal(t, string(FaultGroundFailure), notify.EventData[0].ActualValue)
	assert.False(t, notify.EventData[0].Cleared)

	// Faulted EVSEs accept no sessions and no second fault.
	assert.ErrorIs(t, st.StartSession(1, SessionParams{}), ErrInvalidTransition)
	assert.ErrorIs(t, st.InjectFault(1, FaultInternalError, ""), ErrInvalidTransition)

	// Only an explicit clear recovers.
	require.NoError(t, st.ClearFault(1))
	assert.Equal(t, StatusAvailable, evseStatus(st, 1))

	require.Eventually(t, func() bool {
		return len(sim.Calls(ocpp.ActionNotifyEvent)) == 2
	}, time.Second, time.Millisecond)
	require.NoError(t, sim.Calls(ocpp.ActionNotifyEvent)[1].UnmarshalPayload(&notify))
	assert.True(t, notify.EventData[0].Cleared)

	assert.ErrorIs(t, st.ClearFault(1), ErrInvalidTransition)
}

func TestFaultPersistsAcrossReconnect(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	require.NoError(t, st.InjectFault(1, FaultGroundFailure, "cable check"))
	require.NoError(t, st.Disconnect())

	// The fault survives the disconnect.
	snap, err := st.EVSE(1)
	require.NoError(t, err)
	assert.Equal(t, StatusFaulted, snap.Status)
	require.NotNil(t, snap.Fault)

	connect(t, st, sim)

	// Reconnecting never returns a faulted EVSE to service.
	snap, err = st.EVSE(1)
	require.NoError(t, err)
	assert.Equal(t, StatusFaulted, snap.Status)
	require.NotNil(t, snap.Fault)
	assert.Equal(t, FaultGroundFailure, snap.Fault.Code)

	assert.ErrorIs(t, st.StartSession(1, SessionParams{}), ErrInvalidTransition)

	// Only an explicit clear recovers, exactly as before the disconnect.
	require.NoError(t, st.ClearFault(1))
	assert.Equal(t, StatusAvailable, evseStatus(st, 1))
	require.NoError(t, st.StartSession(1, SessionParams{}))
}

func TestRemoteStartAndStop(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	id, err := sim.IssueCall(ocpp.ActionRequestStartTransaction, ocpp.RequestStartTransactionRequest{
		EvseID:        1,
		RemoteStartID: 7,
		IDToken:       ocpp.IDToken{IDToken: "REMOTE1", Type: "Central"},
	})
	require.NoError(t, err)

	reply := sim.ReplyTo(id)
	require.NotNil(t, reply)
	result, ok := reply.(*ocpp.CallResult)
	require.True(t, ok)

	var resp ocpp.RequestStartTransactionResponse
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusAccepted, resp.Status)
	require.NotEmpty(t, resp.TransactionID)

	waitForStatus(t, st, 1, StatusCharging)

	// A second remote start on the busy EVSE is rejected.
	id, err = sim.IssueCall(ocpp.ActionRequestStartTransaction, ocpp.RequestStartTransactionRequest{
		EvseID: 1, IDToken: ocpp.IDToken{IDToken: "REMOTE2"},
	})
	require.NoError(t, err)
	result = sim.ReplyTo(id).(*ocpp.CallResult)
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusRejected, resp.Status)

	// Remote stop by transaction id.
	snap, err2 := st.EVSE(1)
	require.NoError(t, err2)
	require.NotNil(t, snap.Session)
	id, err = sim.IssueCall(ocpp.ActionRequestStopTransaction, ocpp.RequestStopTransactionRequest{
		TransactionID: snap.Session.TransactionID,
	})
	require.NoError(t, err)

	var stopResp ocpp.RequestStopTransactionResponse
	result = sim.ReplyTo(id).(*ocpp.CallResult)
	require.NoError(t, result.UnmarshalPayload(&stopResp))
	assert.Equal(t, ocpp.StatusAccepted, stopResp.Status)

	waitForStatus(t, st, 1, StatusAvailable)

	ended := sim.Calls(ocpp.ActionTransactionEvent)
	var last ocpp.TransactionEventRequest
	require.NoError(t, ended[len(ended)-1].UnmarshalPayload(&last))
	assert.Equal(t, ocpp.TransactionEventEnded, last.EventType)
	assert.Equal(t, ocpp.StopReasonRemote, last.TransactionInfo.StoppedReason)
}

func TestRemoteStopUnknownTransaction(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	id, err := sim.IssueCall(ocpp.ActionRequestStopTransaction, ocpp.RequestStopTransactionRequest{
		TransactionID: "no-such-transaction",
	})
	require.NoError(t, err)

	result, ok := sim.ReplyTo(id).(*ocpp.CallResult)
	require.True(t, ok)
	var resp ocpp.RequestStopTransactionResponse
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusRejected, resp.Status)
	_ = st
}

func TestUnknownActionGetsNotImplemented(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	id, err := sim.IssueCall(ocpp.Action("SetDisplayMessage"), map[string]any{"priority": "NormalCycle"})
	require.NoError(t, err)

	reply := sim.ReplyTo(id)
	require.NotNil(t, reply)
	callErr, ok := reply.(*ocpp.CallError)
	require.True(t, ok)
	assert.Equal(t, ocpp.ErrorNotImplemented, callErr.Code)
	_ = st
}

func TestMalformedPayloadGetsFormationViolation(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	// Required evseId missing.
	id, err := sim.IssueCall(ocpp.ActionRequestStartTransaction, ocpp.RequestStartTransactionRequest{
		IDToken: ocpp.IDToken{IDToken: "X"},
	})
	require.NoError(t, err)

	callErr, ok := sim.ReplyTo(id).(*ocpp.CallError)
	require.True(t, ok)
	assert.Equal(t, ocpp.ErrorFormationViolation, callErr.Code)
	_ = st
}

func TestMalformedFrameIsDiscarded(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	before := len(sim.Frames())
	st.HandleInbound([]byte(`{"not":"an envelope"}`))
	st.HandleInbound([]byte(`[9,"x",{}]`))

	// No reply of any kind went out.
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, before, len(sim.Frames()))
}

func TestSendCallManual(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())

	_, err := st.SendCall(ocpp.ActionHeartbeat, nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	connect(t, st, sim)

	before := len(sim.Calls(ocpp.ActionHeartbeat))
	id, err := st.SendCall(ocpp.ActionHeartbeat, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Len(t, sim.Calls(ocpp.ActionHeartbeat), before+1)

	// A raw payload passes through untouched.
	id, err = st.SendCall(ocpp.Action("DataTransfer"), json.RawMessage(`{"vendorId":"cpsim"}`))
	require.NoError(t, err)

	calls := sim.Calls(ocpp.Action("DataTransfer"))
	require.Len(t, calls, 1)
	assert.Equal(t, id, calls[0].ID)
	assert.JSONEq(t, `{"vendorId":"cpsim"}`, string(calls[0].Payload))
}

func TestResetRestartsStation(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	require.NoError(t, st.StartSession(1, SessionParams{
		SocStart: 20, SocEnd: 80, DurationSeconds: 600,
	}))
	waitForStatus(t, st, 1, StatusCharging)

	id, err := sim.IssueCall(ocpp.ActionReset, ocpp.ResetRequest{Type: ocpp.ResetImmediate})
	require.NoError(t, err)

	result, ok := sim.ReplyTo(id).(*ocpp.CallResult)
	require.True(t, ok)
	var resp ocpp.ResetResponse
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusAccepted, resp.Status)

	// The station comes back with a RemoteReset boot announcement.
	require.Eventually(t, func() bool {
		return len(sim.Calls(ocpp.ActionBootNotification)) == 2
	}, time.Second, time.Millisecond)

	var boot ocpp.BootNotificationRequest
	require.NoError(t, sim.Calls(ocpp.ActionBootNotification)[1].UnmarshalPayload(&boot))
	assert.Equal(t, ocpp.BootReasonRemoteReset, boot.Reason)

	waitForStatus(t, st, 1, StatusAvailable)
	snap, err2 := st.EVSE(1)
	require.NoError(t, err2)
	assert.Nil(t, snap.Session)
}

func TestResetOnIdleAcceptedWhileCharging(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	require.NoError(t, st.StartSession(1, SessionParams{
		SocStart: 20, SocEnd: 80, DurationSeconds: 600,
	}))
	waitForStatus(t, st, 1, StatusCharging)

	id, err := sim.IssueCall(ocpp.ActionReset, ocpp.ResetRequest{Type: ocpp.ResetOnIdle})
	require.NoError(t, err)

	// Resets are always accepted, OnIdle included.
	result := sim.ReplyTo(id).(*ocpp.CallResult)
	var resp ocpp.ResetResponse
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusAccepted, resp.Status)

	// The session was stopped and the station rebooted.
	require.Eventually(t, func() bool {
		return len(sim.Calls(ocpp.ActionBootNotification)) == 2
	}, time.Second, time.Millisecond)
	waitForStatus(t, st, 1, StatusAvailable)

	snap, err2 := st.EVSE(1)
	require.NoError(t, err2)
	assert.Nil(t, snap.Session)
}

func TestChangeAvailability(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	id, err := sim.IssueCall(ocpp.ActionChangeAvailability, ocpp.ChangeAvailabilityRequest{
		OperationalStatus: ocpp.OperationalStatusInoperative,
		Evse:              &ocpp.EVSEInfo{ID: 1},
	})
	require.NoError(t, err)

	result := sim.ReplyTo(id).(*ocpp.CallResult)
	var resp ocpp.ChangeAvailabilityResponse
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusAccepted, resp.Status)
	assert.Equal(t, StatusUnavailable, evseStatus(st, 1))

	// Sessions cannot start on an inoperative EVSE.
	assert.ErrorIs(t, st.StartSession(1, SessionParams{}), ErrInvalidTransition)

	id, err = sim.IssueCall(ocpp.ActionChangeAvailability, ocpp.ChangeAvailabilityRequest{
		OperationalStatus: ocpp.OperationalStatusOperative,
		Evse:              &ocpp.EVSEInfo{ID: 1},
	})
	require.NoError(t, err)
	result = sim.ReplyTo(id).(*ocpp.CallResult)
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusAccepted, resp.Status)
	assert.Equal(t, StatusAvailable, evseStatus(st, 1))
}

func TestTriggerMessage(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	heartbeatsBefore := len(sim.Calls(ocpp.ActionHeartbeat))
	id, err := sim.IssueCall(ocpp.ActionTriggerMessage, ocpp.TriggerMessageRequest{
		RequestedMessage: ocpp.TriggerHeartbeat,
	})
	require.NoError(t, err)

	result := sim.ReplyTo(id).(*ocpp.CallResult)
	var resp ocpp.TriggerMessageResponse
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusAccepted, resp.Status)
	assert.Len(t, sim.Calls(ocpp.ActionHeartbeat), heartbeatsBefore+1)

	// MeterValues with nothing charging is rejected.
	id, err = sim.IssueCall(ocpp.ActionTriggerMessage, ocpp.TriggerMessageRequest{
		RequestedMessage: ocpp.TriggerMeterValues,
	})
	require.NoError(t, err)
	result = sim.ReplyTo(id).(*ocpp.CallResult)
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusRejected, resp.Status)

	// Unknown trigger target is rejected, not errored.
	id, err = sim.IssueCall(ocpp.ActionTriggerMessage, ocpp.TriggerMessageRequest{
		RequestedMessage: ocpp.MessageTrigger("FirmwareStatusNotification"),
	})
	require.NoError(t, err)
	result = sim.ReplyTo(id).(*ocpp.CallResult)
	require.NoError(t, result.UnmarshalPayload(&resp))
	assert.Equal(t, ocpp.StatusRejected, resp.Status)
	_ = st
}

func TestHeartbeat(t *testing.T) {
	config := testConfig()
	config.HeartbeatInterval = 10 * time.Millisecond
	st, sim, _ := newTestStation(t, config)
	connect(t, st, sim)

	require.Eventually(t, func() bool {
		return len(sim.Calls(ocpp.ActionHeartbeat)) >= 2
	}, time.Second, time.Millisecond)
	_ = st
}

func TestBootResponseOverridesHeartbeatInterval(t *testing.T) {
	config := testConfig()
	config.HeartbeatInterval = time.Hour

	sim := csms.NewSimulator(csms.SimulatorConfig{
		ResponseDelay:     time.Millisecond,
		HeartbeatInterval: 30,
	})
	st, err := New(config, sim)
	require.NoError(t, err)
	connect(t, st, sim)

	require.Eventually(t, func() bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.heartbeatInterval == 30*time.Second
	}, time.Second, time.Millisecond)
}

func TestDisconnectForcesShutdown(t *testing.T) {
	st, sim, collector := newTestStation(t, testConfig())
	connect(t, st, sim)

	require.NoError(t, st.StartSession(1, SessionParams{
		SocStart: 20, SocEnd: 80, DurationSeconds: 600,
	}))
	waitForStatus(t, st, 1, StatusCharging)

	require.NoError(t, st.Disconnect())

	// The session ended and every EVSE is out of service.
	stopped := collector.byType(EventSessionStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, string(ocpp.StopReasonLocal), stopped[0].StopReason)
	assert.Equal(t, StatusUnavailable, evseStatus(st, 1))
	assert.False(t, st.Connected())

	assert.ErrorIs(t, st.Disconnect(), ErrNotConnected)
	assert.ErrorIs(t, st.StartSession(1, SessionParams{}), ErrNotConnected)

	// Reconnecting brings the EVSEs back and boots again.
	connect(t, st, sim)
	assert.Equal(t, StatusAvailable, evseStatus(st, 1))
}

func TestUpdateConfig(t *testing.T) {
	st, sim, _ := newTestStation(t, testConfig())
	connect(t, st, sim)

	power := 350.0
	assert.ErrorIs(t, st.UpdateConfig(ConfigUpdate{MaxPowerKW: &power}), ErrConnected)

	// Non-electrical settings may change while connected.
	mode := ChargeModeCurve
	require.NoError(t, st.UpdateConfig(ConfigUpdate{ChargeMode: &mode}))
	assert.Equal(t, ChargeModeCurve, st.Config().ChargeMode)

	require.NoError(t, st.Disconnect())
	require.NoError(t, st.UpdateConfig(ConfigUpdate{MaxPowerKW: &power}))
	assert.Equal(t, 350.0, st.Config().MaxPowerKW)

	count := 3
	require.NoError(t, st.UpdateConfig(ConfigUpdate{ConnectorCount: &count}))
	assert.Len(t, st.Snapshots(), 3)

	bad := -1.0
	assert.ErrorIs(t, st.UpdateConfig(ConfigUpdate{MaxPowerKW: &bad}), ErrInvalidConfig)
}

func TestCurveModeTapersPower(t *testing.T) {
	config := testConfig()
	config.ChargeMode = ChargeModeCurve
	st, sim, collector := newTestStation(t, config)
	connect(t, st, sim)

	// A short hop across the 80% knee.
	require.NoError(t, st.StartSession(1, SessionParams{
		SocStart: 78, SocEnd: 90, DurationSeconds: 20,
	}))
	waitForStatus(t, st, 1, StatusAvailable)

	ticks := collector.byType(EventMeterTick)
	require.NotEmpty(t, ticks)

	first := ticks[0]
	last := ticks[len(ticks)-1]
	assert.Greater(t, first.PowerKW, last.PowerKW, "power should taper past 80%% SoC")

	// The taper stretches the session beyond its nominal tick count.
	assert.Greater(t, len(ticks), 20)
}
