package progress

import "sync"

// Slot holds at most one pending event. Put overwrites an unread event
// instead of queueing it, so a slow consumer only ever sees the newest state.
// Safe for concurrent use; intended for a single writer.
type Slot struct {
	mu     sync.RWMutex
	latest Event
	has    bool
	ch     chan Event
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{ch: make(chan Event, 1)}
}

// Put stores e as the latest event and never blocks.
func (s *Slot) Put(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = e
	s.has = true

	// Drain any unread event, then deliver the new one. The lock serializes
	// writers, so the send below always finds room.
	select {
	case <-s.ch:
	default:
	}
	s.ch <- e
}

// Latest returns the most recent event without consuming it.
func (s *Slot) Latest() (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.has
}

// C delivers the latest unread event. Only one consumer should read from it.
func (s *Slot) C() <-chan Event {
	return s.ch
}

// Reset clears the latest event and drops any unread one.
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = Event{}
	s.has = false
	select {
	case <-s.ch:
	default:
	}
}
