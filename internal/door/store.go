package door

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// subscriberQueueSize is the per-subscriber transition buffer size.
// A subscriber that falls this far behind starts losing transitions
// (counted and logged) instead of blocking the event loop.
const subscriberQueueSize = 64

// Logger defines the logging interface used by the Store.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TransitionFunc is the callback signature for transition subscribers.
//
// Callbacks for one subscription are invoked sequentially, in apply order,
// on a dedicated goroutine. They must not be invoked concurrently with
// themselves, but different subscribers run independently.
type TransitionFunc func(Transition)

// Subscription is an opaque handle returned by Subscribe and accepted by
// Unsubscribe.
type Subscription string

// subscriber owns one consumer's delivery queue and worker.
type subscriber struct {
	fn    TransitionFunc
	queue chan Transition
	done  chan struct{}
}

// Store is the single authoritative owner of the door registry.
//
// Events are applied by exactly one goroutine (the client's event loop);
// the RWMutex exists only so Snapshot() and Get() can be called from any
// goroutine while an apply is in progress.
//
// Thread Safety:
//   - Apply must be called from a single goroutine (single-writer discipline).
//   - All other methods are safe for concurrent use.
type Store struct {
	states  map[ID]State
	stateMu sync.RWMutex

	subscribers map[Subscription]*subscriber
	subMu       sync.Mutex

	logger Logger
	wg     sync.WaitGroup

	closed    chan struct{}
	closeOnce sync.Once

	// Statistics (atomic for cheap reads)
	transitionsTotal atomic.Uint64
	droppedTotal     atomic.Uint64
}

// NewStore creates a store with the fixed door set, every door starting
// at StateUnknown.
func NewStore(ids []ID) *Store {
	states := make(map[ID]State, len(ids))
	for _, id := range ids {
		states[id] = StateUnknown
	}
	return &Store{
		states:      states,
		subscribers: make(map[Subscription]*subscriber),
		logger:      noopLogger{},
		closed:      make(chan struct{}),
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Apply applies a decoded event to the registry.
//
// For InitialSnapshot the whole registry is replaced atomically: no reader
// observes a partially applied snapshot, and no transition notifications
// fire. Snapshot entries for ids outside the configured set are ignored
// (logged); configured doors missing from the snapshot revert to
// StateUnknown. Consumers that need to react to a resync should hook the
// client's snapshot callback instead.
//
// For StatusChanged an unconfigured id is ignored (logged). A transition
// notification fires only when the new state differs from the previous one.
//
// Apply never fails; invalid input is dropped, not escalated.
func (s *Store) Apply(event Event) {
	switch ev := event.(type) {
	case InitialSnapshot:
		s.applySnapshot(ev)
	case StatusChanged:
		s.applyStatusChanged(ev)
	default:
		s.logger.Warn("unhandled event type", "event", fmt.Sprintf("%T", event))
	}
}

// applySnapshot replaces all door states in one critical section. It never
// fans out: a snapshot is a baseline, not a sequence of movements.
func (s *Store) applySnapshot(ev InitialSnapshot) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	for id := range ev.Doors {
		if _, ok := s.states[id]; !ok {
			s.logger.Warn("snapshot contains unconfigured door, ignoring", "door_id", int(id))
		}
	}
	for id := range s.states {
		next, ok := ev.Doors[id]
		if !ok {
			next = StateUnknown
		}
		s.states[id] = next
	}
}

func (s *Store) applyStatusChanged(ev StatusChanged) {
	s.stateMu.Lock()
	previous, ok := s.states[ev.Door]
	if !ok {
		s.stateMu.Unlock()
		s.logger.Warn("status update for unconfigured door, ignoring", "door_id", int(ev.Door), "status", string(ev.Status))
		return
	}
	if previous == ev.Status {
		s.stateMu.Unlock()
		return
	}
	s.states[ev.Door] = ev.Status
	s.stateMu.Unlock()

	s.fanOut(Transition{Door: ev.Door, Previous: previous, New: ev.Status, At: time.Now().UTC()})
}

// Snapshot returns an immutable copy of the registry.
// Safe to call concurrently with Apply.
func (s *Store) Snapshot() map[ID]State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	out := make(map[ID]State, len(s.states))
	for id, state := range s.states {
		out[id] = state
	}
	return out
}

// Get returns the current state of one door.
// Returns ErrUnknownDoor for ids outside the configured set.
func (s *Store) Get(id ID) (State, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	state, ok := s.states[id]
	if !ok {
		return StateUnknown, ErrUnknownDoor
	}
	return state, nil
}

// Has reports whether the id is in the configured door set.
func (s *Store) Has(id ID) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	_, ok := s.states[id]
	return ok
}

// Size returns the number of configured doors.
func (s *Store) Size() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return len(s.states)
}

// Subscribe registers a callback invoked once per transition, in apply
// order, never concurrently with itself.
//
// Each subscription gets its own bounded queue and worker goroutine, so a
// slow or failing consumer cannot stall the event loop or starve other
// subscribers; its own overflow is dropped and counted instead.
func (s *Store) Subscribe(fn TransitionFunc) Subscription {
	sub := &subscriber{
		fn:    fn,
		queue: make(chan Transition, subscriberQueueSize),
		done:  make(chan struct{}),
	}
	handle := Subscription(uuid.NewString())

	s.subMu.Lock()
	s.subscribers[handle] = sub
	s.subMu.Unlock()

	s.wg.Add(1)
	go s.deliveryWorker(sub)

	s.logger.Debug("subscriber added", "subscription", string(handle))
	return handle
}

// Unsubscribe removes the callback. Safe to call from within the callback
// itself: the worker never holds the subscriber lock while invoking fn.
func (s *Store) Unsubscribe(handle Subscription) {
	s.subMu.Lock()
	sub, ok := s.subscribers[handle]
	delete(s.subscribers, handle)
	s.subMu.Unlock()

	if ok {
		close(sub.done)
		s.logger.Debug("subscriber removed", "subscription", string(handle))
	}
}

// fanOut queues a transition to every subscriber without blocking.
func (s *Store) fanOut(t Transition) {
	s.transitionsTotal.Add(1)
	s.logger.Debug("door transition",
		"door_id", int(t.Door),
		"previous", string(t.Previous),
		"new", string(t.New),
	)

	s.subMu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		select {
		case sub.queue <- t:
		default:
			// Subscriber queue full, drop for this consumer only
			s.droppedTotal.Add(1)
			s.logger.Warn("subscriber queue full, dropping transition", "door_id", int(t.Door))
		}
	}
}

// deliveryWorker drains one subscriber's queue.
// Callback panics are recovered so one broken consumer cannot take down
// the process.
func (s *Store) deliveryWorker(sub *subscriber) {
	defer s.wg.Done()

	for {
		select {
		case <-s.closed:
			return
		case <-sub.done:
			return
		case t := <-sub.queue:
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("transition callback panic", "panic", r)
					}
				}()
				sub.fn(t)
			}()
		}
	}
}

// Close stops all delivery workers and waits for them to exit.
// The registry remains readable after Close; only fan-out stops.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}

// Stats holds store counters for monitoring.
type Stats struct {
	Doors            int
	Subscribers      int
	TransitionsTotal uint64
	DroppedTotal     uint64
}

// GetStats returns current store statistics.
func (s *Store) GetStats() Stats {
	s.subMu.Lock()
	subs := len(s.subscribers)
	s.subMu.Unlock()

	return Stats{
		Doors:            s.Size(),
		Subscribers:      subs,
		TransitionsTotal: s.transitionsTotal.Load(),
		DroppedTotal:     s.droppedTotal.Load(),
	}
}
