package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPortInUse is returned when a transport that binds a fixed server
	// port already has a live session.
	ErrPortInUse = errors.New("transport port already in use")

	// ErrPortsExhausted is returned when no RTP port pair is free.
	ErrPortsExhausted = errors.New("no free rtp port pair")

	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")
)

// PortRange is the dynamic RTP allocation range. The zero value disables
// dynamic allocation and every RTP session uses the fixed port.
type PortRange struct {
	Min, Max int
	// RTCPOffset is added to the RTP port to get the RTCP port.
	RTCPOffset int
}

func (r PortRange) enabled() bool { return r.Min > 0 && r.Max >= r.Min }

// Reservation describes a new session.
type Reservation struct {
	ClientAddr string
	Transport  string
	Asset      string
	// ExclusivePort marks transports whose pump binds a fixed server port
	// (TCP listen). A second live session on it is refused.
	ExclusivePort int
	// WantRTPPort asks for a port pair from the dynamic range.
	WantRTPPort bool
}

// Table is the concurrency-safe set of live sessions keyed by id, with
// lookup by client address.
type Table struct {
	mu    sync.RWMutex
	store Store
	ports PortRange
	now   func() time.Time
}

// NewTable returns a table over an in-memory store.
func NewTable(ports PortRange) *Table {
	return NewTableWithStore(NewInMemoryStore(), ports)
}

// NewTableWithStore returns a table that uses the given Store.
func NewTableWithStore(store Store, ports PortRange) *Table {
	return &Table{store: store, ports: ports, now: time.Now}
}

// Reserve creates a session in StateRequested, allocating ports as asked.
func (t *Table) Reserve(r Reservation) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &Session{
		ID:         ID(uuid.NewString()),
		ClientAddr: r.ClientAddr,
		Transport:  r.Transport,
		Asset:      r.Asset,
		State:      StateRequested,
	}

	if r.ExclusivePort != 0 {
		for _, other := range t.store.List() {
			if other.Transport == r.Transport && other.Port == r.ExclusivePort {
				return Session{}, fmt.Errorf("%w: %s port %d held by session %s", ErrPortInUse, r.Transport, r.ExclusivePort, other.ID)
			}
		}
		s.Port = r.ExclusivePort
	}

	if r.WantRTPPort && t.ports.enabled() {
		port, err := t.allocateLocked()
		if err != nil {
			return Session{}, err
		}
		s.Port = port
		s.RTCPPort = port + t.ports.RTCPOffset
	}

	now := t.now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	t.store.Set(s)
	return *s, nil
}

// allocateLocked returns the lowest even port p in range such that neither
// p nor its RTCP companion is used by a live session.
// Caller must hold t.mu in write mode.
func (t *Table) allocateLocked() (int, error) {
	used := make(map[int]bool)
	for _, s := range t.store.List() {
		if s.Port != 0 {
			used[s.Port] = true
		}
		if s.RTCPPort != 0 {
			used[s.RTCPPort] = true
		}
	}

	start := t.ports.Min
	if start%2 != 0 {
		start++
	}
	for p := start; p <= t.ports.Max; p += 2 {
		if !used[p] && !used[p+t.ports.RTCPOffset] {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w in %d-%d", ErrPortsExhausted, t.ports.Min, t.ports.Max)
}

// Advance moves a session to state. Terminal sessions are left unchanged.
func (t *Table) Advance(id ID, state State) error {
	return t.update(id, func(s *Session) { s.State = state })
}

// Launched records the pump pid, start time and sdp file and moves to
// StatePumpLaunched.
func (t *Table) Launched(id ID, pid int, startedAt time.Time, sdpFile string) error {
	return t.update(id, func(s *Session) {
		started := startedAt.UTC()
		s.PID = pid
		s.PumpStartedAt = &started
		s.SDPFile = sdpFile
		s.State = StatePumpLaunched
	})
}

func (t *Table) update(id ID, fn func(s *Session)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.State.Terminal() {
		return nil
	}
	fn(s)
	s.UpdatedAt = t.now().UTC()
	return nil
}

// Release removes a session, freeing its ports. Releasing an unknown id is a no-op.
func (t *Table) Release(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Delete(id)
}

// Get returns a copy of the session.
func (t *Table) Get(id ID) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.store.Get(id)
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ByClient returns copies of the sessions of one client, oldest first.
func (t *Table) ByClient(addr string) []Session {
	return t.filter(func(s *Session) bool { return s.ClientAddr == addr })
}

// List returns copies of all sessions, oldest first.
func (t *Table) List() []Session {
	return t.filter(nil)
}

func (t *Table) filter(keep func(*Session) bool) []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Session
	for _, s := range t.store.List() {
		if keep == nil || keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveCount returns the number of sessions whose pump is running,
// whatever handshake step they are at. Used for metrics.
func (t *Table) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, s := range t.store.List() {
		if s.PumpStartedAt != nil && !s.State.Terminal() {
			n++
		}
	}
	return n
}
