package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotOverwritesUnreadEvent(t *testing.T) {
	s := NewSlot()
	s.Put(Event{Status: StatusStarting})
	s.Put(Event{Status: StatusProcessing, Progress: "30% completed"})
	s.Put(Event{Status: StatusProcessing, Progress: "80% completed"})

	select {
	case e := <-s.C():
		assert.Equal(t, 80, e.Percent())
	default:
		t.Fatal("expected an event")
	}

	select {
	case e := <-s.C():
		t.Fatalf("unexpected second event: %+v", e)
	default:
	}

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, "80% completed", latest.Progress)
}

func TestSlotLatestIsNotConsumed(t *testing.T) {
	s := NewSlot()
	_, ok := s.Latest()
	assert.False(t, ok)

	s.Put(Event{Status: StatusCompleted})
	for i := 0; i < 3; i++ {
		e, ok := s.Latest()
		require.True(t, ok)
		assert.Equal(t, StatusCompleted, e.Status)
	}
}

func TestSlotReset(t *testing.T) {
	s := NewSlot()
	s.Put(Event{Status: StatusError})
	s.Reset()

	_, ok := s.Latest()
	assert.False(t, ok)
	select {
	case e := <-s.C():
		t.Fatalf("unexpected event after reset: %+v", e)
	default:
	}
}

func TestSlotConcurrentReaders(t *testing.T) {
	s := NewSlot()
	done := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					s.Latest()
				}
			}
		}()
	}

	for i := 0; i <= 100; i++ {
		s.Put(Event{Status: StatusProcessing, Progress: "1% completed"})
	}
	close(done)
	wg.Wait()

	select {
	case <-s.C():
	case <-time.After(time.Second):
		t.Fatal("expected a pending event")
	}
}
