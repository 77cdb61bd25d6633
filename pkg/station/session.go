package station

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionParams are the operator-supplied parameters of a charging
// session. Zero fields fall back to the station defaults.
type SessionParams struct {
	// IDTag is the authorization token presented by the driver.
	IDTag string

	// SocStart is the battery state of charge at plug-in, percent.
	SocStart float64

	// SocEnd is the target state of charge, percent.
	SocEnd float64

	// DurationSeconds is the nominal session duration at full power.
	DurationSeconds int
}

// validate checks the parameters after defaults have been applied.
func (p SessionParams) validate() error {
	if p.SocStart < 0 || p.SocStart >= 100 {
		return fmt.Errorf("%w: soc start %.1f out of range [0, 100)", ErrInvalidSession, p.SocStart)
	}
	if p.SocEnd <= p.SocStart || p.SocEnd > 100 {
		return fmt.Errorf("%w: soc end %.1f must be in (%.1f, 100]", ErrInvalidSession, p.SocEnd, p.SocStart)
	}
	if p.DurationSeconds < 1 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidSession)
	}
	return nil
}

// Session is the state of one charging session. Owned by the station
// and mutated only under the station mutex.
type Session struct {
	// TransactionID identifies the session towards the CSMS.
	TransactionID string

	// IDTag is the token the session was authorized with.
	IDTag string

	// RemoteStartID links the session to a RequestStartTransaction,
	// zero for locally started sessions.
	RemoteStartID int

	// StartedAt is when charging actually began (after ramp-up).
	StartedAt time.Time

	// SocStart and SocEnd bound the charge, percent.
	SocStart float64
	SocEnd   float64

	// DurationSeconds is the nominal duration at full power.
	DurationSeconds int

	// Soc is the current state of charge, percent.
	Soc float64

	// EnergyKWh is the energy delivered so far.
	EnergyKWh float64

	// started is set once the Started transaction event has been sent;
	// only started sessions report an Ended event.
	started bool

	// ticks counts metering ticks since charging began, used to pace
	// the periodic meter reports.
	ticks int

	// Per-tick increments at full power, computed once at ramp-up.
	socPerTick    float64
	energyPerTick float64

	// targetEnergyKWh caps EnergyKWh so that reaching SocEnd and the
	// energy total coincide.
	targetEnergyKWh float64
}

// newSession creates a session in the authorized-but-not-started state.
func newSession(params SessionParams) *Session {
	return &Session{
		TransactionID:   uuid.NewString(),
		IDTag:           params.IDTag,
		SocStart:        params.SocStart,
		SocEnd:          params.SocEnd,
		DurationSeconds: params.DurationSeconds,
		Soc:             params.SocStart,
	}
}

// begin computes the per-tick increments and marks the session started.
// batteryKWh is the simulated vehicle battery capacity.
func (s *Session) begin(batteryKWh float64, now time.Time) {
	s.StartedAt = now
	s.started = true

	socRange := s.SocEnd - s.SocStart
	s.targetEnergyKWh = batteryKWh * socRange / 100.0

	duration := float64(s.DurationSeconds)
	s.socPerTick = socRange / duration
	s.energyPerTick = s.targetEnergyKWh / duration
}

// advance applies one metering tick scaled by the combined power
// multiplier and reports whether the target state of charge was
// reached. Values are clamped so the session never overshoots.
func (s *Session) advance(multiplier float64) bool {
	s.ticks++

	s.Soc += s.socPerTick * multiplier
	if s.Soc > s.SocEnd {
		s.Soc = s.SocEnd
	}

	s.EnergyKWh += s.energyPerTick * multiplier
	if s.EnergyKWh > s.targetEnergyKWh {
		s.EnergyKWh = s.targetEnergyKWh
	}

	return s.Soc >= s.SocEnd
}

// SessionSnapshot is a consistent copy of a session's observable state.
type SessionSnapshot struct {
	TransactionID string
	IDTag         string
	StartedAt     time.Time
	SocStart      float64
	SocEnd        float64
	Soc           float64
	EnergyKWh     float64
}

// snapshot copies the session's observable state. Caller holds the lock.
func (s *Session) snapshot() SessionSnapshot {
	return SessionSnapshot{
		TransactionID: s.TransactionID,
		IDTag:         s.IDTag,
		StartedAt:     s.StartedAt,
		SocStart:      s.SocStart,
		SocEnd:        s.SocEnd,
		Soc:           s.Soc,
		EnergyKWh:     s.EnergyKWh,
	}
}
