package touchtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasstokey/glasstokey/internal/frame"
)

func TestNewRoundsCapacityToPowerOfTwo(t *testing.T) {
	tbl := New(5)
	assert.Len(t, tbl.slots, 8)
}

func TestNewUsesDefaultCapacityWhenNonPositive(t *testing.T) {
	tbl := New(0)
	assert.Len(t, tbl.slots, DefaultCapacity)
}

func TestUpsertCreatesThenFinds(t *testing.T) {
	tbl := New(0)
	key := Key{Side: frame.SideRight, ContactID: 1}

	e, created := tbl.Upsert(key, func() Entry { return Entry{FirstSeenTicks: 10} })
	require.True(t, created)
	assert.Equal(t, int64(10), e.FirstSeenTicks)

	found, ok := tbl.Find(key)
	require.True(t, ok)
	assert.Equal(t, int64(10), found.FirstSeenTicks)
}

func TestUpsertSecondCallReturnsExistingEntry(t *testing.T) {
	tbl := New(0)
	key := Key{Side: frame.SideRight, ContactID: 1}
	tbl.Upsert(key, func() Entry { return Entry{FirstSeenTicks: 10} })

	_, created := tbl.Upsert(key, func() Entry { return Entry{FirstSeenTicks: 999} })
	assert.False(t, created)

	e, _ := tbl.Find(key)
	assert.Equal(t, int64(10), e.FirstSeenTicks)
}

func TestRemoveThenFindMisses(t *testing.T) {
	tbl := New(0)
	key := Key{Side: frame.SideRight, ContactID: 1}
	tbl.Upsert(key, func() Entry { return Entry{} })
	tbl.Remove(key)

	_, ok := tbl.Find(key)
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
}

func TestUpsertAfterRemoveReusesTombstone(t *testing.T) {
	tbl := New(0)
	key := Key{Side: frame.SideRight, ContactID: 1}
	tbl.Upsert(key, func() Entry { return Entry{} })
	tbl.Remove(key)

	e, created := tbl.Upsert(key, func() Entry { return Entry{FirstSeenTicks: 42} })
	require.True(t, created)
	assert.Equal(t, int64(42), e.FirstSeenTicks)
}

func TestDifferentSidesAreIndependentKeys(t *testing.T) {
	tbl := New(0)
	left := Key{Side: frame.SideLeft, ContactID: 1}
	right := Key{Side: frame.SideRight, ContactID: 1}

	tbl.Upsert(left, func() Entry { return Entry{FirstSeenTicks: 1} })
	tbl.Upsert(right, func() Entry { return Entry{FirstSeenTicks: 2} })

	assert.Equal(t, 2, tbl.Len())
	l, _ := tbl.Find(left)
	r, _ := tbl.Find(right)
	assert.NotEqual(t, l.FirstSeenTicks, r.FirstSeenTicks)
}

func TestForEachVisitsOnlyOccupiedEntries(t *testing.T) {
	tbl := New(0)
	tbl.Upsert(Key{Side: frame.SideRight, ContactID: 1}, func() Entry { return Entry{} })
	tbl.Upsert(Key{Side: frame.SideRight, ContactID: 2}, func() Entry { return Entry{} })
	tbl.Remove(Key{Side: frame.SideRight, ContactID: 1})

	visited := 0
	tbl.ForEach(func(e *Entry) { visited++ })
	assert.Equal(t, 1, visited)
}
