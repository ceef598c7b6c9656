// Package session tracks live transport sessions: one entry per accepted
// stream request, from transport selection until the pump exits.
package session

import "time"

// ID uniquely identifies a transport session.
type ID string

// State is a step of the per-request negotiation state machine.
type State string

const (
	StateRequested         State = "requested"
	StateTransportSelected State = "transport_selected"
	StateSDPGenerated      State = "sdp_generated"
	StateSDPSent           State = "sdp_sent"
	StatePumpLaunched      State = "pump_launched"
	StateExited            State = "exited"
	StateFailed            State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateExited || s == StateFailed
}

// Session is one transport session. Port fields are zero when not applicable.
type Session struct {
	ID            ID         `json:"id"`
	ClientAddr    string     `json:"client_addr"`
	Transport     string     `json:"transport"`
	Asset         string     `json:"asset"`
	State         State      `json:"state"`
	Port          int        `json:"port,omitempty"`
	RTCPPort      int        `json:"rtcp_port,omitempty"`
	PID           int        `json:"pid,omitempty"`
	PumpStartedAt *time.Time `json:"pump_started_at,omitempty"`
	SDPFile       string     `json:"sdp_file,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
