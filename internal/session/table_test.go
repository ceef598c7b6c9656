package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var dynamicRange = PortRange{Min: 5004, Max: 5020, RTCPOffset: 4}

func TestTable_Reserve(t *testing.T) {
	table := NewTable(PortRange{})

	s, err := table.Reserve(Reservation{ClientAddr: "10.0.0.5", Transport: "udp", Asset: "a.mp4"})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if s.ID == "" || s.State != StateRequested || s.CreatedAt.IsZero() {
		t.Errorf("unexpected session %+v", s)
	}

	got, ok := table.Get(s.ID)
	if !ok || got.Asset != "a.mp4" {
		t.Errorf("Get: ok=%v got %+v", ok, got)
	}
}

func TestTable_exclusivePort(t *testing.T) {
	table := NewTable(PortRange{})
	tcp := Reservation{ClientAddr: "10.0.0.5", Transport: "tcp", ExclusivePort: 1234}

	first, err := table.Reserve(tcp)
	if err != nil {
		t.Fatalf("first Reserve: %v", err)
	}

	t.Run("second_live_session_refused", func(t *testing.T) {
		_, err := table.Reserve(Reservation{ClientAddr: "10.0.0.6", Transport: "tcp", ExclusivePort: 1234})
		if !errors.Is(err, ErrPortInUse) {
			t.Errorf("expected ErrPortInUse, got %v", err)
		}
	})

	t.Run("udp_unaffected", func(t *testing.T) {
		if _, err := table.Reserve(Reservation{ClientAddr: "10.0.0.6", Transport: "udp"}); err != nil {
			t.Errorf("udp Reserve: %v", err)
		}
	})

	t.Run("free_after_release", func(t *testing.T) {
		table.Release(first.ID)
		if _, err := table.Reserve(tcp); err != nil {
			t.Errorf("Reserve after Release: %v", err)
		}
	})
}

func TestTable_dynamicRTPPorts(t *testing.T) {
	table := NewTable(dynamicRange)
	rtp := Reservation{ClientAddr: "10.0.0.5", Transport: "rtp", WantRTPPort: true}

	var ports []int
	for i := 0; i < 3; i++ {
		s, err := table.Reserve(rtp)
		if err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
		if s.RTCPPort != s.Port+4 {
			t.Errorf("rtcp port %d for rtp port %d", s.RTCPPort, s.Port)
		}
		ports = append(ports, s.Port)
	}
	// 5004/5008, then 5006/5010, then 5012/5016: 5008 and 5010 are taken as RTCP.
	want := []int{5004, 5006, 5012}
	for i := range want {
		if ports[i] != want[i] {
			t.Errorf("ports = %v, want %v", ports, want)
			break
		}
	}
}

func TestTable_dynamicRTPPorts_exhausted(t *testing.T) {
	table := NewTable(PortRange{Min: 5004, Max: 5006, RTCPOffset: 4})
	rtp := Reservation{ClientAddr: "10.0.0.5", Transport: "rtp", WantRTPPort: true}

	for i := 0; i < 2; i++ {
		if _, err := table.Reserve(rtp); err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
	}
	if _, err := table.Reserve(rtp); !errors.Is(err, ErrPortsExhausted) {
		t.Errorf("expected ErrPortsExhausted, got %v", err)
	}
}

func TestTable_fixedModeLeavesPortUnset(t *testing.T) {
	table := NewTable(PortRange{})
	s, err := table.Reserve(Reservation{ClientAddr: "10.0.0.5", Transport: "rtp", WantRTPPort: true})
	if err != nil {
		t.Fatal(err)
	}
	if s.Port != 0 {
		t.Errorf("fixed mode should not allocate, got port %d", s.Port)
	}
}

func TestTable_stateMachine(t *testing.T) {
	table := NewTable(PortRange{})
	s, _ := table.Reserve(Reservation{ClientAddr: "10.0.0.5", Transport: "rtp"})

	steps := []State{StateTransportSelected, StateSDPGenerated, StateSDPSent}
	for _, st := range steps {
		if err := table.Advance(s.ID, st); err != nil {
			t.Fatalf("Advance(%s): %v", st, err)
		}
	}
	if err := table.Launched(s.ID, 4242, time.Now(), "stream_10_0_0_5.sdp"); err != nil {
		t.Fatal(err)
	}
	if n := table.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount = %d, want 1", n)
	}

	_ = table.Advance(s.ID, StateExited)
	_ = table.Advance(s.ID, StatePumpLaunched)

	got, _ := table.Get(s.ID)
	if got.State != StateExited || got.PID != 4242 {
		t.Errorf("terminal state must stick: %+v", got)
	}
	if n := table.ActiveCount(); n != 0 {
		t.Errorf("ActiveCount = %d, want 0", n)
	}

	if err := table.Advance(ID("missing"), StateFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTable_ListOrderAndByClient(t *testing.T) {
	table := NewTable(PortRange{})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	table.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	a, _ := table.Reserve(Reservation{ClientAddr: "10.0.0.5", Transport: "udp"})
	b, _ := table.Reserve(Reservation{ClientAddr: "10.0.0.6", Transport: "udp"})
	c, _ := table.Reserve(Reservation{ClientAddr: "10.0.0.5", Transport: "rtp"})

	all := table.List()
	if len(all) != 3 || all[0].ID != a.ID || all[1].ID != b.ID || all[2].ID != c.ID {
		t.Errorf("List not ordered by creation: %+v", all)
	}

	mine := table.ByClient("10.0.0.5")
	if len(mine) != 2 || mine[0].ID != a.ID || mine[1].ID != c.ID {
		t.Errorf("ByClient: %+v", mine)
	}
}

func TestTable_concurrentReserve(t *testing.T) {
	table := NewTable(PortRange{Min: 5004, Max: 6000, RTCPOffset: 4})
	var wg sync.WaitGroup
	ports := make(chan int, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := table.Reserve(Reservation{ClientAddr: "10.0.0.5", Transport: "rtp", WantRTPPort: true})
			if err != nil {
				t.Error(err)
				return
			}
			ports <- s.Port
		}()
	}
	wg.Wait()
	close(ports)

	seen := make(map[int]bool)
	for p := range ports {
		if seen[p] || seen[p+4] || seen[p-4] {
			t.Fatalf("port %d allocated twice", p)
		}
		seen[p] = true
	}
}

func TestTable_ActiveCount_sdpSentAfterLaunch(t *testing.T) {
	table := NewTable(PortRange{})
	s, _ := table.Reserve(Reservation{ClientAddr: "10.0.0.5", Transport: "rtp"})

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := table.Launched(s.ID, 4242, started, "stream_10_0_0_5.sdp"); err != nil {
		t.Fatal(err)
	}
	_ = table.Advance(s.ID, StateSDPSent)

	got, _ := table.Get(s.ID)
	if got.State != StateSDPSent || got.PumpStartedAt == nil || !got.PumpStartedAt.Equal(started) {
		t.Errorf("unexpected session %+v", got)
	}
	if n := table.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount = %d, want 1", n)
	}

	_ = table.Advance(s.ID, StateFailed)
	if n := table.ActiveCount(); n != 0 {
		t.Errorf("ActiveCount = %d, want 0", n)
	}
}
