package csms

import (
	"context"
	"sync"
	"time"

	"github.com/cpsim-project/ocppsim-go/pkg/ocpp"
)

// DefaultResponseDelay is the simulated network round-trip.
const DefaultResponseDelay = 50 * time.Millisecond

// SimulatorConfig configures a Simulator.
type SimulatorConfig struct {
	// ResponseDelay is the fixed delay before each canned reply.
	ResponseDelay time.Duration

	// HeartbeatInterval is the interval (seconds) returned in
	// BootNotification responses. Zero leaves the station's own
	// configuration untouched.
	HeartbeatInterval int
}

// DefaultSimulatorConfig returns a SimulatorConfig with sensible defaults.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		ResponseDelay: DefaultResponseDelay,
	}
}

// Simulator is an in-process CSMS loopback. Every CALL received from the
// station is answered after a fixed delay with a canned Accepted
// response. Tests and the interactive console can also inject
// CSMS-initiated CALLs with IssueCall.
type Simulator struct {
	config SimulatorConfig

	mu        sync.Mutex
	handler   Handler
	connected bool
	frames    []ocpp.Frame
}

// NewSimulator creates a simulated CSMS.
func NewSimulator(config SimulatorConfig) *Simulator {
	if config.ResponseDelay == 0 {
		config.ResponseDelay = DefaultResponseDelay
	}
	return &Simulator{config: config}
}

// Connect attaches the station handler. No network activity occurs.
func (s *Simulator) Connect(_ context.Context, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return ErrAlreadyConnected
	}
	s.handler = handler
	s.connected = true
	return nil
}

// Send accepts a frame from the station, records it, and schedules the
// canned reply for CALL frames.
func (s *Simulator) Send(data []byte) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	handler := s.handler
	delay := s.config.ResponseDelay
	s.mu.Unlock()

	frame, err := ocpp.Decode(data)
	if err != nil {
		// The station sent something undecodable; a real CSMS would
		// drop it. Record nothing and report nothing.
		return nil
	}

	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()

	call, ok := frame.(*ocpp.Call)
	if !ok {
		// Replies to CSMS-initiated calls need no answer.
		return nil
	}

	reply, err := ocpp.EncodeResult(call.ID, s.cannedResponse(call.Action))
	if err != nil {
		return err
	}

	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delivering := s.connected
		s.mu.Unlock()
		if delivering {
			handler.OnMessage(reply)
		}
	})

	return nil
}

// Close detaches the handler. Pending replies are dropped.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.handler = nil
	return nil
}

// Connected reports whether a station is attached.
func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// IssueCall delivers a CSMS-initiated CALL to the station and returns
// its correlation id. The station's reply is recorded and can be
// retrieved with ReplyTo.
func (s *Simulator) IssueCall(action ocpp.Action, payload any) (string, error) {
	s.mu.Lock()
	handler := s.handler
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return "", ErrNotConnected
	}

	id, data, err := ocpp.EncodeCall(action, payload)
	if err != nil {
		return "", err
	}

	handler.OnMessage(data)
	return id, nil
}

// Frames returns a copy of every frame received from the station.
func (s *Simulator) Frames() []ocpp.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ocpp.Frame(nil), s.frames...)
}

// Calls returns every CALL received from the station with the given
// action, in arrival order. An empty action matches all calls.
func (s *Simulator) Calls(action ocpp.Action) []*ocpp.Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	var calls []*ocpp.Call
	for _, f := range s.frames {
		if call, ok := f.(*ocpp.Call); ok {
			if action == "" || call.Action == action {
				calls = append(calls, call)
			}
		}
	}
	return calls
}

// ReplyTo returns the station's reply to the CALL with the given
// correlation id, or nil if none has arrived.
func (s *Simulator) ReplyTo(id string) ocpp.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.frames {
		switch f.(type) {
		case *ocpp.CallResult, *ocpp.CallError:
			if f.CorrelationID() == id {
				return f
			}
		}
	}
	return nil
}

// cannedResponse builds the canned Accepted payload for an action.
func (s *Simulator) cannedResponse(action ocpp.Action) any {
	now := time.Now().UTC()
	switch action {
	case ocpp.ActionBootNotification:
		return ocpp.BootNotificationResponse{
			CurrentTime: now,
			Interval:    s.config.HeartbeatInterval,
			Status:      ocpp.RegistrationAccepted,
		}
	case ocpp.ActionHeartbeat:
		return ocpp.HeartbeatResponse{CurrentTime: now}
	case ocpp.ActionAuthorize:
		return ocpp.AuthorizeResponse{
			IDTokenInfo: ocpp.IDTokenInfo{Status: ocpp.AuthorizationAccepted},
		}
	case ocpp.ActionTransactionEvent:
		return ocpp.TransactionEventResponse{
			IDTokenInfo: &ocpp.IDTokenInfo{Status: ocpp.AuthorizationAccepted},
		}
	default:
		// StatusNotification, MeterValues, NotifyEvent and anything
		// else get an empty confirmation.
		return nil
	}
}

// Compile-time interface satisfaction check.
var _ Transport = (*Simulator)(nil)
