package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasstokey/glasstokey/internal/core"
	"github.com/glasstokey/glasstokey/internal/dispatch"
	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/keymap"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	preset := keymap.DefaultPresets()["6x3"]
	left, right := keymap.BuildLayouts(preset, nil)
	layouts := map[frame.Side]keymap.KeyLayout{frame.SideLeft: left, frame.SideRight: right}
	q := dispatch.NewQueue(dispatch.DefaultCapacity)
	return New(core.DefaultConfig("6x3"), nil, layouts, 0.05, q, nil)
}

func tapFrame(side frame.Side, ticks int64) *frame.Frame {
	f := &frame.Frame{ArrivalTicks: ticks, Side: side, MaxX: 1000, MaxY: 1000, ContactCount: 1}
	f.Contacts[0] = frame.Contact{ID: 1, X: 20, Y: 150, Flags: frame.FlagTip | frame.FlagConfidence, Phase: frame.PhaseTouching}
	return f
}

func emptyFrame(side frame.Side, ticks int64) *frame.Frame {
	return &frame.Frame{ArrivalTicks: ticks, Side: side, MaxX: 1000, MaxY: 1000, ContactCount: 0}
}

func TestProcessSyncBumpsRevisionEachCall(t *testing.T) {
	e := newTestEngine(t)
	_, rev1 := e.ProcessSync(tapFrame(frame.SideRight, 0))
	_, rev2 := e.ProcessSync(tapFrame(frame.SideRight, 1))
	assert.Greater(t, rev2, rev1)
}

func TestRunProcessesIngestedFrames(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Ingest(tapFrame(frame.SideRight, 0))

	require.Eventually(t, func() bool {
		_, rev := e.Snapshots().Status()
		return rev > 0
	}, time.Second, time.Millisecond, "expected at least one snapshot to be published after Ingest")
}

func TestSetLayerAppliesThroughInbox(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.SetLayer(3)
	e.Ingest(emptyFrame(frame.SideRight, 0))

	require.Eventually(t, func() bool {
		status, rev := e.Snapshots().Status()
		return rev > 0 && status.Layer == 3
	}, time.Second, time.Millisecond, "expected the engine to apply the posted layer change")
}

func TestShutdownStopsRunLoop(t *testing.T) {
	e := newTestEngine(t)
	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	e.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after Shutdown")
	}
}
