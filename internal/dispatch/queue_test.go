package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyTap(label string) Event {
	return Event{Kind: KeyTap, Label: label}
}

func TestQueuePushPopOrder(t *testing.T) {
	q := NewQueue(4)
	require.True(t, q.Push(keyTap("a")))
	require.True(t, q.Push(keyTap("b")))

	ev, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", ev.Label)

	ev, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", ev.Label)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueueDropsOldestNonModifierWhenFull(t *testing.T) {
	q := NewQueue(2)
	require.True(t, q.Push(keyTap("a")))
	require.True(t, q.Push(keyTap("b")))
	require.True(t, q.Push(keyTap("c"))) // evicts "a"

	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, 2, q.Len())

	ev, _ := q.Pop()
	assert.Equal(t, "b", ev.Label)
	ev, _ = q.Pop()
	assert.Equal(t, "c", ev.Label)
}

func TestQueueNeverDropsModifiersWhileNonModifiersRemain(t *testing.T) {
	q := NewQueue(2)
	require.True(t, q.Push(Event{Kind: ModifierDown, Label: "shift"}))
	require.True(t, q.Push(keyTap("a")))

	// Full ring, one modifier + one non-modifier queued. A new event should evict the
	// non-modifier, not the modifier.
	require.True(t, q.Push(keyTap("b")))
	assert.Equal(t, 2, q.Len())

	ev, _ := q.Pop()
	assert.Equal(t, ModifierDown, ev.Kind)
	ev, _ = q.Pop()
	assert.Equal(t, "b", ev.Label)
}

func TestQueueModifierRefCounting(t *testing.T) {
	q := NewQueue(8)
	q.Push(Event{Kind: ModifierDown, Label: "shift"})
	q.Push(Event{Kind: ModifierDown, Label: "shift"})
	assert.True(t, q.ModifierHeld("shift"))

	q.Push(Event{Kind: ModifierUp, Label: "shift"})
	assert.True(t, q.ModifierHeld("shift"), "still held after one of two ups")

	q.Push(Event{Kind: ModifierUp, Label: "shift"})
	assert.False(t, q.ModifierHeld("shift"))
}

func TestQueueEvictsOldestModifierWhenRingIsAllModifiers(t *testing.T) {
	q := NewQueue(1)
	require.True(t, q.Push(Event{Kind: ModifierDown, Label: "shift"}))
	// Ring full of exactly one modifier; a second modifier must still be admitted rather than
	// deadlock the producer.
	require.True(t, q.Push(Event{Kind: ModifierDown, Label: "ctrl"}))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())
}
