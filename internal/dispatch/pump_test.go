package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []Event
	ticks    int
	lastTick int64
}

func (s *recordingSink) Dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) Tick(nowTicks int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	s.lastTick = nowTicks
}

func (s *recordingSink) snapshot() ([]Event, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...), s.ticks
}

func TestPumpDrainsQueuedEvents(t *testing.T) {
	q := NewQueue(8)
	q.Push(keyTap("a"))
	q.Push(keyTap("b"))

	sink := &recordingSink{}
	pump := NewPump(q, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx, func() int64 { return 42 })

	require.Eventually(t, func() bool {
		events, ticks := sink.snapshot()
		return len(events) == 2 && ticks > 0
	}, time.Second, 5*time.Millisecond)

	events, _ := sink.snapshot()
	assert.Equal(t, "a", events[0].Label)
	assert.Equal(t, "b", events[1].Label)
}

func TestPumpTicksEvenWithoutEvents(t *testing.T) {
	q := NewQueue(8)
	sink := &recordingSink{}
	pump := NewPump(q, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx, func() int64 { return 7 })

	require.Eventually(t, func() bool {
		_, ticks := sink.snapshot()
		return ticks >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestPumpStopsOnContextCancel(t *testing.T) {
	q := NewQueue(8)
	sink := &recordingSink{}
	pump := NewPump(q, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pump.Run(ctx, func() int64 { return 0 })
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop after context cancel")
	}
}
