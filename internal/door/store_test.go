package door

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// collector records transitions in arrival order.
type collector struct {
	mu          sync.Mutex
	transitions []Transition
}

func (c *collector) record(t Transition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions = append(c.transitions, t)
}

func (c *collector) snapshot() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transition, len(c.transitions))
	copy(out, c.transitions)
	return out
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestStore() *Store {
	return NewStore([]ID{1, 2})
}

func TestNewStore_AllUnknown(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() size = %d, want 2", len(snap))
	}
	for id, state := range snap {
		if state != StateUnknown {
			t.Errorf("door %d initial state = %q, want unknown", id, state)
		}
	}
}

func TestApply_InitialSnapshot(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	s.Apply(InitialSnapshot{Doors: map[ID]State{1: StateClosed, 2: StateOpen}})

	snap := s.Snapshot()
	if snap[1] != StateClosed || snap[2] != StateOpen {
		t.Errorf("Snapshot() = %v, want {1:closed 2:open}", snap)
	}
}

func TestApply_StatusChanged(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	s.Apply(StatusChanged{Door: 1, Status: StateOpening})

	state, err := s.Get(1)
	if err != nil {
		t.Fatalf("Get(1) error = %v", err)
	}
	if state != StateOpening {
		t.Errorf("Get(1) = %q, want opening", state)
	}
}

func TestApply_LastWriteWins(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	s.Apply(InitialSnapshot{Doors: map[ID]State{1: StateClosed, 2: StateOpen}})
	s.Apply(StatusChanged{Door: 1, Status: StateOpening})
	s.Apply(StatusChanged{Door: 1, Status: StateOpen})

	snap := s.Snapshot()
	if snap[1] != StateOpen {
		t.Errorf("door 1 = %q, want most recent state open", snap[1])
	}
	if snap[2] != StateOpen {
		t.Errorf("door 2 = %q, want snapshot value open", snap[2])
	}
}

func TestApply_SnapshotIdempotent(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	c := &collector{}
	s.Subscribe(c.record)

	snapshot := InitialSnapshot{Doors: map[ID]State{1: StateClosed, 2: StateOpen}}
	s.Apply(snapshot)
	s.Apply(snapshot)
	time.Sleep(50 * time.Millisecond)

	// Snapshots are silent baselines: neither application notifies.
	if got := len(c.snapshot()); got != 0 {
		t.Errorf("transitions after snapshots = %d, want 0", got)
	}
	snap := s.Snapshot()
	if snap[1] != StateClosed || snap[2] != StateOpen {
		t.Errorf("Snapshot() changed after duplicate apply: %v", snap)
	}
}

func TestApply_UnknownDoorIgnored(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	c := &collector{}
	s.Subscribe(c.record)

	s.Apply(StatusChanged{Door: 99, Status: StateOpen})
	time.Sleep(20 * time.Millisecond)

	if got := s.Size(); got != 2 {
		t.Errorf("Size() = %d after unknown-door event, want 2", got)
	}
	if len(c.snapshot()) != 0 {
		t.Error("unknown-door event must not produce transitions")
	}
	if _, err := s.Get(99); !errors.Is(err, ErrUnknownDoor) {
		t.Errorf("Get(99) error = %v, want ErrUnknownDoor", err)
	}
}

func TestApply_NoOpUpdateFiresNothing(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	c := &collector{}
	s.Subscribe(c.record)

	s.Apply(StatusChanged{Door: 1, Status: StateClosed})
	waitFor(t, func() bool { return len(c.snapshot()) == 1 })

	s.Apply(StatusChanged{Door: 1, Status: StateClosed})
	time.Sleep(50 * time.Millisecond)

	if got := len(c.snapshot()); got != 1 {
		t.Errorf("transitions = %d, want 1 (no-op update must not notify)", got)
	}
}

func TestSubscribe_OrderPreserved(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	c := &collector{}
	s.Subscribe(c.record)

	s.Apply(StatusChanged{Door: 1, Status: StateOpening})
	s.Apply(StatusChanged{Door: 1, Status: StateOpen})

	waitFor(t, func() bool { return len(c.snapshot()) == 2 })

	got := c.snapshot()
	if got[0].New != StateOpening || got[1].New != StateOpen {
		t.Errorf("transition order = [%s %s], want [opening open]", got[0].New, got[1].New)
	}
	if got[0].Previous != StateUnknown || got[1].Previous != StateOpening {
		t.Errorf("previous states = [%s %s], want [unknown opening]", got[0].Previous, got[1].Previous)
	}
}

func TestSubscribe_TransitionCarriesBothStates(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	c := &collector{}
	s.Subscribe(c.record)

	s.Apply(InitialSnapshot{Doors: map[ID]State{1: StateClosed, 2: StateUnknown}})
	s.Apply(StatusChanged{Door: 1, Status: StateOpening})

	waitFor(t, func() bool { return len(c.snapshot()) == 1 })

	got := c.snapshot()[0]
	if got.Door != 1 || got.Previous != StateClosed || got.New != StateOpening {
		t.Errorf("transition = %+v, want door 1 closed→opening", got)
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	c := &collector{}
	handle := s.Subscribe(c.record)

	s.Apply(StatusChanged{Door: 1, Status: StateOpen})
	waitFor(t, func() bool { return len(c.snapshot()) == 1 })

	s.Unsubscribe(handle)
	s.Apply(StatusChanged{Door: 1, Status: StateClosed})
	time.Sleep(50 * time.Millisecond)

	if got := len(c.snapshot()); got != 1 {
		t.Errorf("transitions after unsubscribe = %d, want 1", got)
	}
}

func TestUnsubscribe_FromWithinCallback(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	var handle Subscription
	fired := make(chan struct{})
	handle = s.Subscribe(func(Transition) {
		s.Unsubscribe(handle)
		close(fired)
	})

	s.Apply(StatusChanged{Door: 1, Status: StateOpen})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not complete; self-unsubscribe deadlocked")
	}
}

func TestFanOut_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	// One subscriber that never returns until released.
	release := make(chan struct{})
	s.Subscribe(func(Transition) { <-release })
	defer close(release)

	healthy := &collector{}
	s.Subscribe(healthy.record)

	start := time.Now()
	s.Apply(StatusChanged{Door: 1, Status: StateOpen})
	s.Apply(StatusChanged{Door: 1, Status: StateClosed})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Apply blocked for %v with a stalled subscriber", elapsed)
	}

	waitFor(t, func() bool { return len(healthy.snapshot()) == 2 })
}

func TestFanOut_PanickingSubscriberIsContained(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	s.Subscribe(func(Transition) { panic("boom") })
	healthy := &collector{}
	s.Subscribe(healthy.record)

	s.Apply(StatusChanged{Door: 1, Status: StateOpen})
	waitFor(t, func() bool { return len(healthy.snapshot()) == 1 })
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	snap := s.Snapshot()
	snap[1] = StateOpen

	if state, _ := s.Get(1); state != StateUnknown {
		t.Error("mutating a snapshot must not affect the store")
	}
}

func TestSnapshot_ConcurrentWithApply(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			state := StateOpen
			if i%2 == 0 {
				state = StateClosed
			}
			s.Apply(StatusChanged{Door: 1, Status: state})
		}
	}()

	for i := 0; i < 500; i++ {
		snap := s.Snapshot()
		if got := snap[1]; got != StateOpen && got != StateClosed && got != StateUnknown {
			t.Fatalf("Snapshot() observed invalid state %q", got)
		}
	}
	<-done
}

func TestGetStats(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	c := &collector{}
	s.Subscribe(c.record)
	s.Apply(StatusChanged{Door: 1, Status: StateOpen})

	waitFor(t, func() bool { return s.GetStats().TransitionsTotal == 1 })

	stats := s.GetStats()
	if stats.Doors != 2 || stats.Subscribers != 1 {
		t.Errorf("GetStats() = %+v, want 2 doors, 1 subscriber", stats)
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		input string
		want  State
	}{
		{input: "open", want: StateOpen},
		{input: "closed", want: StateClosed},
		{input: "opening", want: StateOpening},
		{input: "closing", want: StateClosing},
		{input: "unknown", want: StateUnknown},
		{input: "ajar", want: StateUnknown},
		{input: "", want: StateUnknown},
	}

	for _, tt := range tests {
		if got := ParseState(tt.input); got != tt.want {
			t.Errorf("ParseState(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
