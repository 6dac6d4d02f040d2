package intent

import "math"

// LiveContact is the minimal per-contact view the state machine needs: identity, position,
// and when it first appeared. Binding lookups and dispatch-event construction are the Touch
// Processor Core's job (spec.md §4.6), not this package's — this machine only classifies.
type LiveContact struct {
	ID             uint32
	X, Y           float64
	FirstSeenTicks int64
}

// FrameInput is what the Core feeds the per-side machine once per frame.
type FrameInput struct {
	NowTicks      int64
	Live          []LiveContact // tip-active contacts this frame, in stable order
	TypingEnabled bool
}

// Outcome reports what the machine decided this frame. The Core turns a fired Hold into a
// KeyDown DispatchEvent for the key PrimaryID first landed on; taps are reported by Release,
// and Step never sets TapFired. ReleaseDropped is set only for the geometric reasons this package can determine on
// its own (drag_cancel) — off_key_no_snap is determined by the Core after a failed lookup.
type Outcome struct {
	Mode                  Mode
	TapFired              bool
	HoldFired             bool
	GestureEntered        bool
	MouseCandidateEntered bool
	MouseConfirmed        bool
	PrimaryID             uint32
	HasPrimary            bool
	ReleaseDropped        ReleaseDropReason
	HasReleaseDropped     bool
}

// PerSideState is the mutable FSM state for one trackpad side, advanced independently of the
// other side (spec.md §3 IntentMode: "each side advances independently").
type PerSideState struct {
	Mode Mode

	hasPrimary  bool
	primaryID   uint32
	startTicks  int64
	startX      float64
	startY      float64
	holdFired   bool
	cancelled   bool
	repeatToken uint64
	nextToken   uint64
}

// NewPerSideState returns a fresh machine in Idle.
func NewPerSideState() *PerSideState {
	return &PerSideState{Mode: Idle}
}

// RepeatToken returns the opaque token tying the current hold to its eventual release and
// sink-driven repeats (spec.md §3 DispatchEvent, §4.5).
func (s *PerSideState) RepeatToken() uint64 { return s.repeatToken }

// Step advances the machine by one frame.
func (s *PerSideState) Step(in FrameInput, cfg Config) Outcome {
	out := Outcome{Mode: s.Mode}

	if len(in.Live) == 0 {
		// Any state → Idle when all contacts released (spec.md §4.5).
		if s.hasPrimary && s.Mode == KeyCandidate && !s.holdFired {
			// Primary contact vanished without becoming a confirmed tap/hold/gesture/mouse;
			// the Core decides tap vs. drop based on timing/motion it already observed, so
			// nothing further to report here beyond resetting.
		}
		s.reset()
		out.Mode = Idle
		return out
	}

	primary := earliestContact(in.Live)
	out.HasPrimary = true
	out.PrimaryID = primary.ID

	switch s.Mode {
	case Idle:
		s.beginCandidate(primary, in.NowTicks)
		out.Mode = KeyCandidate

	case KeyCandidate, Typing:
		// Re-anchor if the tracked primary contact changed identity (previous one released,
		// a new one is now the earliest live contact) without the side having gone Idle.
		if s.primaryID != primary.ID {
			s.beginCandidate(primary, in.NowTicks)
		}

		if len(in.Live) >= cfg.GestureMinContacts && !s.holdFired {
			s.Mode = Gesture
			out.Mode = Gesture
			out.GestureEntered = true
			break
		}

		dx, dy := primary.X-s.startX, primary.Y-s.startY
		dist := math.Hypot(dx, dy)
		age := in.NowTicks - s.startTicks

		if !s.holdFired && dist > cfg.DragCancel {
			s.cancelled = true
			out.ReleaseDropped = DropDragCancel
			out.HasReleaseDropped = true
		}

		if !in.TypingEnabled && dist > cfg.MouseMotionThreshold {
			s.Mode = MouseCandidate
			out.Mode = MouseCandidate
			out.MouseCandidateEntered = true
			break
		}

		if !s.holdFired && age >= Ticks(cfg.HoldDuration) {
			s.holdFired = true
			s.nextToken++
			s.repeatToken = s.nextToken
			out.HoldFired = true
		}
		out.Mode = s.Mode

	case Gesture:
		if len(in.Live) == 0 {
			s.reset()
			out.Mode = Idle
		} else {
			out.Mode = Gesture
		}

	case MouseCandidate:
		age := in.NowTicks - s.startTicks
		if age >= Ticks(cfg.MouseConfirmDuration) {
			s.Mode = Mouse
			out.Mode = Mouse
			out.MouseConfirmed = true
		} else {
			out.Mode = MouseCandidate
		}

	case Mouse:
		out.Mode = Mouse
	}

	s.Mode = out.Mode
	return out
}

// Release is called by the Core for each tracked contact of this side that was live last frame
// and is absent (or no longer tip-active) this frame, with that contact's last observed
// position; whether the hold already fired comes from the machine's own state. It reports
// whether a tap should
// fire (spec.md §4.5 KeyCandidate → Typing) and resets the machine to Idle.
func (s *PerSideState) Release(nowTicks int64, lastX, lastY float64, cfg Config) (tap bool, keyUp bool, drop ReleaseDropReason, hasDrop bool) {
	defer s.reset()

	if s.Mode == Gesture || s.Mode == Mouse || s.Mode == MouseCandidate {
		return false, false, DropTapGestureActive, s.Mode == Gesture
	}

	if s.holdFired {
		return false, true, "", false
	}

	if s.cancelled {
		return false, false, DropDragCancel, true
	}

	dx, dy := lastX-s.startX, lastY-s.startY
	dist := math.Hypot(dx, dy)
	age := nowTicks - s.startTicks

	if dist > cfg.DragCancel {
		return false, false, DropDragCancel, true
	}
	if age <= Ticks(cfg.TapWindow) && dist <= cfg.TapMotion {
		return true, false, "", false
	}
	return false, false, DropDragCancel, true
}

func (s *PerSideState) beginCandidate(c LiveContact, nowTicks int64) {
	s.hasPrimary = true
	s.primaryID = c.ID
	s.startTicks = nowTicks
	s.startX, s.startY = c.X, c.Y
	s.holdFired = false
	s.cancelled = false
	s.Mode = KeyCandidate
}

func (s *PerSideState) reset() {
	s.hasPrimary = false
	s.primaryID = 0
	s.holdFired = false
	s.cancelled = false
	s.repeatToken = 0
	s.Mode = Idle
}

// HoldFired reports whether the current candidate has already fired its hold action.
func (s *PerSideState) HoldFired() bool { return s.holdFired }

// PrimaryID returns the contact id this side's machine is currently tracking as primary.
func (s *PerSideState) PrimaryID() (uint32, bool) { return s.primaryID, s.hasPrimary }

func earliestContact(live []LiveContact) LiveContact {
	best := live[0]
	for _, c := range live[1:] {
		if c.FirstSeenTicks < best.FirstSeenTicks || (c.FirstSeenTicks == best.FirstSeenTicks && c.ID < best.ID) {
			best = c
		}
	}
	return best
}
