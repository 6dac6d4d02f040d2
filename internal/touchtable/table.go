// Package touchtable implements the fixed-capacity open-addressed table keyed by
// (side, contact id) that tracks per-contact state across frames (spec.md §3 TouchTableEntry,
// §4.4 C4). Capacity is a power of two sized to keep the load factor ≤ 0.5.
package touchtable

import (
	"github.com/glasstokey/glasstokey/internal/frame"
)

// Key identifies one tracked contact.
type Key struct {
	Side      frame.Side
	ContactID uint32
}

// Entry is the per-contact tracking state (spec.md §3 TouchTableEntry).
type Entry struct {
	Side            frame.Side
	ContactID       uint32
	FirstSeenTicks  int64
	LastSeenTicks   int64
	InitialKey      string
	InitialIsCustom bool
	LastKey         string
	LastIsCustom    bool
	Held            bool
	HoldFired       bool
	RepeatToken     uint64
	SnapCounted     bool

	occupied  bool
	tombstone bool
	key       Key
}

// DefaultCapacity sizes the table to 4 × MaxContactsPTP × 2 sides, rounded up to a power of
// two, keeping load factor ≤ 0.5 even with both sides fully occupied (spec.md §4.4).
const DefaultCapacity = 64

// Table is a fixed-size open-addressed map. All operations are O(1) expected; iteration
// order is unspecified but stable for a given frame.
type Table struct {
	slots []Entry
	mask  uint64
	count int
}

// New creates a Table with at least the given minimum capacity (rounded up to a power of
// two). capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	n := nextPow2(capacity)
	return &Table{slots: make([]Entry, n), mask: uint64(n - 1)}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func hash(k Key) uint64 {
	h := uint64(k.ContactID)*0x9E3779B97F4A7C15 + uint64(k.Side)*0xBF58476D1CE4E5B9
	h ^= h >> 33
	return h
}

// Upsert returns a pointer to the entry for key, creating it via initNew (called only when
// the entry does not already exist) if absent. The returned pointer stays stable for the
// entry's lifetime: the table never resizes or moves occupied slots.
func (t *Table) Upsert(key Key, initNew func() Entry) (*Entry, bool) {
	idx, found := t.find(key)
	if found {
		return &t.slots[idx], false
	}
	// idx is the first free (empty-or-tombstone) slot found by find(); occupy it.
	e := initNew()
	e.Side, e.ContactID, e.occupied, e.tombstone, e.key = key.Side, key.ContactID, true, false, key
	t.slots[idx] = e
	t.count++
	return &t.slots[idx], true
}

// Find returns the entry for key, if tracked.
func (t *Table) Find(key Key) (*Entry, bool) {
	idx, found := t.find(key)
	if !found {
		return nil, false
	}
	return &t.slots[idx], true
}

// Remove deletes the entry for key, if present.
func (t *Table) Remove(key Key) {
	idx, found := t.find(key)
	if !found {
		return
	}
	t.slots[idx].occupied = false
	t.slots[idx].tombstone = true
	t.count--
}

// find returns the slot index for key: either an occupied slot matching key (found=true), or
// the first empty-or-tombstone slot in the probe sequence (found=false) suitable for Upsert.
func (t *Table) find(key Key) (idx int, found bool) {
	n := uint64(len(t.slots))
	start := hash(key) & t.mask
	firstFree := int(-1)
	for i := uint64(0); i < n; i++ {
		probe := (start + i) & t.mask
		s := &t.slots[probe]
		if !s.occupied {
			if firstFree == -1 {
				firstFree = int(probe)
			}
			if !s.tombstone {
				// Empty, never-occupied slot: key is definitively absent.
				return firstFree, false
			}
			continue
		}
		if s.key == key {
			return int(probe), true
		}
	}
	return firstFree, false
}

// Len returns the number of tracked entries.
func (t *Table) Len() int { return t.count }

// ForEach calls fn for every occupied entry, in table-slot order (stable for a given frame,
// unspecified across mutations).
func (t *Table) ForEach(fn func(*Entry)) {
	for i := range t.slots {
		if t.slots[i].occupied {
			fn(&t.slots[i])
		}
	}
}
