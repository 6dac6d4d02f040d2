package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPerSideStateStartsIdle(t *testing.T) {
	s := NewPerSideState()
	assert.Equal(t, Idle, s.Mode)
}

func TestStepEntersKeyCandidateOnFirstTouch(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()
	out := s.Step(FrameInput{NowTicks: 0, Live: []LiveContact{{ID: 1, X: 0.1, Y: 0.1, FirstSeenTicks: 0}}}, cfg)
	require.Equal(t, KeyCandidate, out.Mode)
	require.True(t, out.HasPrimary)
	assert.Equal(t, uint32(1), out.PrimaryID)
}

func TestStepFiresHoldAfterDuration(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()
	s.Step(FrameInput{NowTicks: 0, Live: []LiveContact{{ID: 1, FirstSeenTicks: 0}}}, cfg)

	out := s.Step(FrameInput{NowTicks: Ticks(cfg.HoldDuration) + 1, Live: []LiveContact{{ID: 1, FirstSeenTicks: 0}}}, cfg)
	assert.True(t, out.HoldFired)
	assert.NotZero(t, s.RepeatToken())
}

func TestStepEntersGestureWithEnoughContacts(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()
	live := []LiveContact{{ID: 1, FirstSeenTicks: 0}, {ID: 2, FirstSeenTicks: 0}, {ID: 3, FirstSeenTicks: 0}}
	s.Step(FrameInput{NowTicks: 0, Live: live[:1]}, cfg)
	out := s.Step(FrameInput{NowTicks: 1, Live: live}, cfg)
	assert.Equal(t, Gesture, out.Mode)
	assert.True(t, out.GestureEntered)
}

func TestStepEntersMouseCandidateWhenTypingDisabledAndMoving(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()
	s.Step(FrameInput{NowTicks: 0, TypingEnabled: false, Live: []LiveContact{{ID: 1, X: 0, Y: 0, FirstSeenTicks: 0}}}, cfg)
	out := s.Step(FrameInput{NowTicks: 1, TypingEnabled: false, Live: []LiveContact{{ID: 1, X: 0.5, Y: 0.5, FirstSeenTicks: 0}}}, cfg)
	assert.Equal(t, MouseCandidate, out.Mode)
	assert.True(t, out.MouseCandidateEntered)
}

func TestStepReturnsIdleWhenNoLiveContacts(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()
	s.Step(FrameInput{NowTicks: 0, Live: []LiveContact{{ID: 1, FirstSeenTicks: 0}}}, cfg)
	out := s.Step(FrameInput{NowTicks: 1, Live: nil}, cfg)
	assert.Equal(t, Idle, out.Mode)
}

func TestReleaseFiresTapWithinWindowAndMotion(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()
	s.Step(FrameInput{NowTicks: 0, Live: []LiveContact{{ID: 1, X: 0, Y: 0, FirstSeenTicks: 0}}}, cfg)

	tap, keyUp, _, hasDrop := s.Release(Ticks(cfg.TapWindow)/2, 0.001, 0.001, cfg)
	assert.True(t, tap)
	assert.False(t, keyUp)
	assert.False(t, hasDrop)
	assert.Equal(t, Idle, s.Mode)
}

func TestReleaseAfterHoldFiresKeyUp(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()
	s.Step(FrameInput{NowTicks: 0, Live: []LiveContact{{ID: 1, FirstSeenTicks: 0}}}, cfg)
	s.Step(FrameInput{NowTicks: Ticks(cfg.HoldDuration) + 1, Live: []LiveContact{{ID: 1, FirstSeenTicks: 0}}}, cfg)

	tap, keyUp, _, hasDrop := s.Release(Ticks(cfg.HoldDuration)+100, 0, 0, cfg)
	assert.False(t, tap)
	assert.True(t, keyUp)
	assert.False(t, hasDrop)
}

func TestReleaseDropsOnExcessMotion(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()
	s.Step(FrameInput{NowTicks: 0, Live: []LiveContact{{ID: 1, X: 0, Y: 0, FirstSeenTicks: 0}}}, cfg)

	tap, keyUp, drop, hasDrop := s.Release(1, 0.5, 0.5, cfg)
	assert.False(t, tap)
	assert.False(t, keyUp)
	require.True(t, hasDrop)
	assert.Equal(t, DropDragCancel, drop)
}

func TestReleaseDropsOnDriftThenReturnWithinWindow(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()

	s.Step(FrameInput{NowTicks: 0, TypingEnabled: true, Live: []LiveContact{{ID: 1, X: 0, Y: 0, FirstSeenTicks: 0}}}, cfg)
	// Drift well past DragCancel mid-life; TypingEnabled stays true so this can't be
	// reinterpreted as a mouse-candidate transition.
	out := s.Step(FrameInput{NowTicks: Ticks(10 * time.Millisecond), TypingEnabled: true, Live: []LiveContact{{ID: 1, X: 0.5, Y: 0, FirstSeenTicks: 0}}}, cfg)
	require.True(t, out.HasReleaseDropped)
	assert.Equal(t, DropDragCancel, out.ReleaseDropped)

	// Drift back within tap motion before lifting.
	s.Step(FrameInput{NowTicks: Ticks(20 * time.Millisecond), TypingEnabled: true, Live: []LiveContact{{ID: 1, X: 0.005, Y: 0, FirstSeenTicks: 0}}}, cfg)

	tap, keyUp, drop, hasDrop := s.Release(Ticks(30*time.Millisecond), 0.005, 0, cfg)
	assert.False(t, tap, "a contact that drifted past DragCancel mid-life must not fire a tap even if it returns near its start before release")
	assert.False(t, keyUp)
	require.True(t, hasDrop)
	assert.Equal(t, DropDragCancel, drop)
}

func TestReleaseDropsWhenGestureActive(t *testing.T) {
	s := NewPerSideState()
	cfg := DefaultConfig()
	live := []LiveContact{{ID: 1, FirstSeenTicks: 0}, {ID: 2, FirstSeenTicks: 0}, {ID: 3, FirstSeenTicks: 0}}
	s.Step(FrameInput{NowTicks: 0, Live: live[:1]}, cfg)
	s.Step(FrameInput{NowTicks: 1, Live: live}, cfg)

	_, _, drop, hasDrop := s.Release(2, 0, 0, cfg)
	require.True(t, hasDrop)
	assert.Equal(t, DropTapGestureActive, drop)
}
