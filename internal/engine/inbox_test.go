package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasstokey/glasstokey/internal/frame"
)

func TestInboxControlDeliveredBeforeIngest(t *testing.T) {
	ib := newInbox()
	ib.sendIngest(&frame.Frame{Side: frame.SideRight})
	ib.sendControl(Message{Kind: MsgSetLayer, Layer: 4})

	m, ok := ib.next()
	require.True(t, ok)
	assert.Equal(t, MsgSetLayer, m.Kind, "expected the control message first")

	m2, ok := ib.next()
	require.True(t, ok)
	assert.Equal(t, MsgIngest, m2.Kind, "expected the ingest message second")
}

func TestInboxIngestReplacesUndeliveredFrameForSameSide(t *testing.T) {
	ib := newInbox()
	first := &frame.Frame{Side: frame.SideRight, ArrivalTicks: 1}
	second := &frame.Frame{Side: frame.SideRight, ArrivalTicks: 2}
	ib.sendIngest(first)
	ib.sendIngest(second)

	m, ok := ib.next()
	require.True(t, ok)
	assert.EqualValues(t, 2, m.Frame.ArrivalTicks, "expected the newer frame to win")
}

func TestInboxKeepsIndependentPendingFramePerSide(t *testing.T) {
	ib := newInbox()
	ib.sendIngest(&frame.Frame{Side: frame.SideLeft, ArrivalTicks: 1})
	ib.sendIngest(&frame.Frame{Side: frame.SideRight, ArrivalTicks: 2})

	seen := map[frame.Side]bool{}
	for i := 0; i < 2; i++ {
		m, ok := ib.next()
		require.True(t, ok, "expected two deliverable ingest messages")
		seen[m.Frame.Side] = true
	}
	assert.True(t, seen[frame.SideLeft])
	assert.True(t, seen[frame.SideRight])
}

func TestInboxSendIngestCountsOverwrittenFrames(t *testing.T) {
	ib := newInbox()
	assert.EqualValues(t, 0, ib.Dropped())

	ib.sendIngest(&frame.Frame{Side: frame.SideRight, ArrivalTicks: 1})
	assert.EqualValues(t, 0, ib.Dropped(), "first ingest for a side is never a drop")

	ib.sendIngest(&frame.Frame{Side: frame.SideRight, ArrivalTicks: 2})
	assert.EqualValues(t, 1, ib.Dropped(), "overwriting an undelivered frame must count as dropped")

	_, ok := ib.next()
	require.True(t, ok)

	ib.sendIngest(&frame.Frame{Side: frame.SideRight, ArrivalTicks: 3})
	assert.EqualValues(t, 1, ib.Dropped(), "a frame delivered before the next send must not count as dropped")
}

func TestInboxNextUnblocksOnClose(t *testing.T) {
	ib := newInbox()
	done := make(chan bool, 1)
	go func() {
		_, ok := ib.next()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	ib.close()

	select {
	case ok := <-done:
		assert.False(t, ok, "expected next() to report no message after close")
	case <-time.After(time.Second):
		t.Fatal("expected next() to unblock after close")
	}
}
