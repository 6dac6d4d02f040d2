// Package core implements the Touch Processor Core (spec.md §4.6, C6): a pure function of
// (previous state, new frame, config) → (next state, dispatch commands, snapshots). The
// Core does no I/O and never reads a clock — timing comes entirely from Frame.ArrivalTicks,
// which makes replay byte-for-byte deterministic (spec.md §8 property 6).
package core

import (
	"time"

	"github.com/glasstokey/glasstokey/internal/binding"
	"github.com/glasstokey/glasstokey/internal/dispatch"
	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/intent"
	"github.com/glasstokey/glasstokey/internal/keymap"
	"github.com/glasstokey/glasstokey/internal/touchtable"
)

// Config bundles the tunables and swipe-aggregation policy bit left open by spec.md §9
// (open question 3: swipe_requires_same_direction).
type Config struct {
	Intent                     intent.Config
	Preset                     string
	SwipeWindow                time.Duration
	SwipeThreshold             float64
	SwipeRequiresSameDirection bool
}

// DefaultConfig returns spec.md's symbolic SWIPE_WINDOW (≈350ms) default plus a reasonable
// SWIPE_THRESHOLD, alongside intent.DefaultConfig().
func DefaultConfig(preset string) Config {
	return Config{
		Intent:                     intent.DefaultConfig(),
		Preset:                     preset,
		SwipeWindow:                350 * time.Millisecond,
		SwipeThreshold:             0.15,
		SwipeRequiresSameDirection: true,
	}
}

// Diagnostics mirrors spec.md §3 StatusSnapshot.diagnostics.
type Diagnostics struct {
	CaptureFrames          uint64
	EngineFrames           uint64
	CaptureFrameOverflow   uint64
	DispatchDepth          uint64
	DispatchDropped        uint64
	IngestDropped          uint64
	ReleaseDroppedByReason map[string]uint64
}

func newDiagnostics() Diagnostics {
	return Diagnostics{ReleaseDroppedByReason: make(map[string]uint64)}
}

// ContactPoint is one live contact's normalized position, for rendering.
type ContactPoint struct {
	ID   uint32
	X, Y float64
}

// RenderPatch is the engine-owned, per-side render state the Core maintains
// (spec.md §3 RenderSnapshot). The Core hands the current complete per-side view back on
// every call; the Engine Actor is responsible for stamping a monotonic revision.
type RenderPatch struct {
	Side            frame.Side
	Contacts        []ContactPoint
	HighlightedKey  string
	HighlightedIsCustom bool
	Layer           uint8
}

// StatusPatch is the engine-owned status view the Core maintains (spec.md §3 StatusSnapshot).
type StatusPatch struct {
	IntentBySide       map[frame.Side]intent.Mode
	ContactCountBySide map[frame.Side]int
	Layer              uint8
	TypingEnabled      bool
	KeyboardMode       bool
	Diagnostics        Diagnostics
}

type sideRuntime struct {
	machine       *intent.PerSideState
	lastPositions map[uint32]struct{ x, y float64 }
	liveCount     int
	centroidX     float64
	lastButton    bool
	lastTapLabel  string
}

func newSideRuntime() *sideRuntime {
	return &sideRuntime{machine: intent.NewPerSideState(), lastPositions: make(map[uint32]struct{ x, y float64 })}
}

type swipeWatch struct {
	active     bool
	fired      bool
	startTicks int64
	startX     map[frame.Side]float64
}

// Core is owned exclusively by the Engine Actor (spec.md §4.7): no other goroutine may touch
// it. It owns the Binding Index, the Touch Table, and per-side intent machines.
type Core struct {
	cfg     Config
	km      *keymap.Keymap
	idx     *binding.Index
	table   *touchtable.Table
	sides   map[frame.Side]*sideRuntime
	layer   struct {
		persistent uint8
		momentary  []uint8
	}
	typingEnabled bool
	keyboardMode  bool
	diag          Diagnostics
	swipe         swipeWatch
}

// New constructs a Core. idx and km may be nil initially and supplied later via
// ApplyBindingIndex/ApplyKeymap — the Engine Actor applies these atomically between frames.
func New(cfg Config, km *keymap.Keymap, idx *binding.Index) *Core {
	return &Core{
		cfg:           cfg,
		km:            km,
		idx:           idx,
		table:         touchtable.New(touchtable.DefaultCapacity),
		sides:         map[frame.Side]*sideRuntime{frame.SideLeft: newSideRuntime(), frame.SideRight: newSideRuntime()},
		typingEnabled: true,
		diag:          newDiagnostics(),
		swipe:         swipeWatch{startX: make(map[frame.Side]float64)},
	}
}

// ApplyBindingIndex atomically swaps the Binding Index. Must be called only between frame
// Process() calls (the Engine Actor's responsibility, spec.md §4.7).
func (c *Core) ApplyBindingIndex(idx *binding.Index) { c.idx = idx }

// ApplyConfig swaps the intent/swipe tunables without resetting touch table or per-side
// machine state, so a settings change mid-gesture doesn't discard in-flight contacts.
func (c *Core) ApplyConfig(cfg Config) { c.cfg = cfg }

// ApplyKeymap atomically swaps the Keymap.
func (c *Core) ApplyKeymap(km *keymap.Keymap) { c.km = km }

// SetLayer sets the persistent active layer (spec.md §4.5 layer behavior).
func (c *Core) SetLayer(layer uint8) {
	if layer > keymap.MaxLayer {
		layer = keymap.MaxLayer
	}
	c.layer.persistent = layer
}

// activeLayer returns the topmost momentary layer if any are stacked, else the persistent
// layer (spec.md §4.5).
func (c *Core) activeLayer() uint8 {
	if n := len(c.layer.momentary); n > 0 {
		return c.layer.momentary[n-1]
	}
	return c.layer.persistent
}

// PushMomentaryLayer enters a momentary layer, active while its originating contact is down.
func (c *Core) PushMomentaryLayer(layer uint8) { c.layer.momentary = append(c.layer.momentary, layer) }

// PopMomentaryLayer exits the most recently entered momentary layer.
func (c *Core) PopMomentaryLayer() {
	if n := len(c.layer.momentary); n > 0 {
		c.layer.momentary = c.layer.momentary[:n-1]
	}
}

// SetTypingEnabled sets the typing-enabled gate.
func (c *Core) SetTypingEnabled(enabled bool) { c.typingEnabled = enabled }

// TypingEnabled reports the current typing-enabled gate.
func (c *Core) TypingEnabled() bool { return c.typingEnabled }

// SetKeyboardMode sets the "keyboard mode" flag surfaced to the sink/UI (spec.md §9).
func (c *Core) SetKeyboardMode(enabled bool) { c.keyboardMode = enabled }

// Process ingests one Frame (belonging to a single side) and returns dispatch events plus
// the current render/status view. It performs no I/O and reads no clock.
func (c *Core) Process(f *frame.Frame) ([]dispatch.Event, RenderPatch, StatusPatch) {
	c.diag.CaptureFrames++
	c.diag.EngineFrames++
	if ov := f.Overflowed(); ov > 0 {
		c.diag.CaptureFrameOverflow += uint64(ov)
	}

	side := f.Side
	rt := c.sides[side]
	if rt == nil {
		rt = newSideRuntime()
		c.sides[side] = rt
	}

	var events []dispatch.Event
	now := f.ArrivalTicks

	liveIDs := make(map[uint32]bool, len(f.Active()))
	var liveContacts []intent.LiveContact

	for _, ct := range f.Active() {
		if !ct.Tip() {
			continue
		}
		liveIDs[ct.ID] = true
		nx, ny := frame.NormX(ct.X, f.MaxX), frame.NormY(ct.Y, f.MaxY)

		key := touchtable.Key{Side: side, ContactID: ct.ID}
		entry, created := c.table.Upsert(key, func() touchtable.Entry {
			return touchtable.Entry{FirstSeenTicks: now}
		})
		entry.LastSeenTicks = now

		hit, hitOK := c.lookup(side, nx, ny)
		if created {
			if hitOK {
				entry.InitialKey, entry.InitialIsCustom = hitKeyID(hit), hit.IsCustom
			}
		}
		if hitOK {
			entry.LastKey, entry.LastIsCustom = hitKeyID(hit), hit.IsCustom
		}

		rt.lastPositions[ct.ID] = struct{ x, y float64 }{nx, ny}
		liveContacts = append(liveContacts, intent.LiveContact{ID: ct.ID, X: nx, Y: ny, FirstSeenTicks: entry.FirstSeenTicks})
	}

	// Contacts tracked last frame but absent (or no longer tip-active) this frame are
	// releases: resolve tap/hold-up/drop and remove them from the table.
	var toRemove []uint32
	c.table.ForEach(func(e *touchtable.Entry) {
		if e.Side != side || liveIDs[e.ContactID] {
			return
		}
		toRemove = append(toRemove, e.ContactID)
		pos := rt.lastPositions[e.ContactID]
		tap, keyUp, drop, hasDrop := rt.machine.Release(now, pos.x, pos.y, c.cfg.Intent)

		if tap {
			key := e.InitialKey
			if key == "" {
				c.countDrop(string(intent.DropOffKeyNoSnap))
			} else {
				events = append(events, c.keyEvent(dispatch.KeyTap, side, key, e.InitialIsCustom, false, 0, now))
			}
		}
		if keyUp {
			key := e.InitialKey
			if key != "" {
				ev := c.keyEvent(dispatch.KeyUp, side, key, e.InitialIsCustom, true, e.RepeatToken, now)
				events = append(events, ev)
			}
		}
		if hasDrop {
			c.countDrop(string(drop))
		}
		delete(rt.lastPositions, e.ContactID)
	})
	for _, id := range toRemove {
		c.table.Remove(touchtable.Key{Side: side, ContactID: id})
	}

	out := rt.machine.Step(intent.FrameInput{NowTicks: now, Live: liveContacts, TypingEnabled: c.typingEnabled}, c.cfg.Intent)

	if out.HoldFired && out.HasPrimary {
		if e, ok := c.table.Find(touchtable.Key{Side: side, ContactID: out.PrimaryID}); ok && e.InitialKey != "" {
			e.Held = true
			e.HoldFired = true
			e.RepeatToken = rt.machine.RepeatToken()
			events = append(events, c.keyEvent(dispatch.KeyDown, side, e.InitialKey, e.InitialIsCustom, true, e.RepeatToken, now))
		}
	}
	if out.HasReleaseDropped {
		c.countDrop(string(out.ReleaseDropped))
	}

	if out.Mode == intent.Mouse {
		if f.ButtonClicked && !rt.lastButton {
			events = append(events, dispatch.Event{Kind: dispatch.MouseDown, Side: side, TimestampTicks: now})
		}
		if !f.ButtonClicked && rt.lastButton {
			events = append(events, dispatch.Event{Kind: dispatch.MouseUp, Side: side, TimestampTicks: now})
		}
	}
	rt.lastButton = f.ButtonClicked

	rt.liveCount = len(liveContacts)
	if rt.liveCount > 0 {
		sum := 0.0
		for _, lc := range liveContacts {
			sum += lc.X
		}
		rt.centroidX = sum / float64(rt.liveCount)
	}

	if toggle := c.evaluateSwipe(now); toggle {
		c.typingEnabled = !c.typingEnabled
		events = append(events, dispatch.Event{Kind: dispatch.TypingToggle, TimestampTicks: now})
	}

	render := c.renderPatch(side, rt)
	status := c.statusPatch()
	return events, render, status
}

func (c *Core) lookup(side frame.Side, x, y float64) (binding.Result, bool) {
	if c.idx == nil {
		return binding.Result{}, false
	}
	return c.idx.Hit(side, c.activeLayer(), x, y)
}

func hitKeyID(r binding.Result) string {
	if r.IsCustom {
		return r.CustomID
	}
	return r.StorageKey
}

func (c *Core) keyEvent(kind dispatch.Kind, side frame.Side, keyID string, isCustom bool, repeatable bool, token uint64, now int64) dispatch.Event {
	action := c.resolveAction(keyID, isCustom, kind == dispatch.KeyDown || kind == dispatch.KeyUp)
	ev := dispatch.Event{
		Kind: kind, Side: side, Action: action.Semantic, Label: action.Label, Payload: action.Payload,
		RepeatToken: token, TimestampTicks: now,
	}
	if repeatable {
		ev.Flags |= dispatch.FlagRepeatable
	}
	if action.Semantic == keymap.ActionModifier {
		ev.Flags |= dispatch.FlagModifier
		if kind == dispatch.KeyDown {
			ev.Kind = dispatch.ModifierDown
		} else if kind == dispatch.KeyUp {
			ev.Kind = dispatch.ModifierUp
		}
	}
	return ev
}

func (c *Core) resolveAction(keyID string, isCustom, wantHold bool) keymap.KeyAction {
	if c.km == nil {
		return keymap.KeyAction{Label: keyID, Semantic: keymap.ActionLetter, Payload: keyID}
	}
	if isCustom {
		for _, layerBtns := range c.km.CustomButtons[c.cfg.Preset] {
			for _, b := range layerBtns {
				if b.ID == keyID {
					if wantHold && b.Hold != nil {
						return *b.Hold
					}
					return b.Primary
				}
			}
		}
		return keymap.KeyAction{Label: keyID, Semantic: keymap.ActionLetter, Payload: keyID}
	}
	m := c.km.Resolve(c.cfg.Preset, c.activeLayer(), keyID, keyID)
	if wantHold && m.Hold != nil {
		return *m.Hold
	}
	return m.Primary
}

func (c *Core) countDrop(reason string) {
	c.diag.ReleaseDroppedByReason[reason]++
}

func (c *Core) renderPatch(side frame.Side, rt *sideRuntime) RenderPatch {
	pts := make([]ContactPoint, 0, len(rt.lastPositions))
	for id, p := range rt.lastPositions {
		pts = append(pts, ContactPoint{ID: id, X: p.x, Y: p.y})
	}
	highlighted := ""
	isCustom := false
	if id, ok := rt.machine.PrimaryID(); ok {
		if e, found := c.table.Find(touchtable.Key{Side: side, ContactID: id}); found {
			highlighted, isCustom = e.LastKey, e.LastIsCustom
		}
	}
	return RenderPatch{Side: side, Contacts: pts, HighlightedKey: highlighted, HighlightedIsCustom: isCustom, Layer: c.activeLayer()}
}

func (c *Core) statusPatch() StatusPatch {
	intents := make(map[frame.Side]intent.Mode, len(c.sides))
	counts := make(map[frame.Side]int, len(c.sides))
	for side, rt := range c.sides {
		intents[side] = rt.machine.Mode
		counts[side] = rt.liveCount
	}
	diagCopy := c.diag
	reasonsCopy := make(map[string]uint64, len(c.diag.ReleaseDroppedByReason))
	for k, v := range c.diag.ReleaseDroppedByReason {
		reasonsCopy[k] = v
	}
	diagCopy.ReleaseDroppedByReason = reasonsCopy

	return StatusPatch{
		IntentBySide:       intents,
		ContactCountBySide: counts,
		Layer:              c.activeLayer(),
		TypingEnabled:      c.typingEnabled,
		KeyboardMode:       c.keyboardMode,
		Diagnostics:        diagCopy,
	}
}

// evaluateSwipe implements the cross-side five-finger typing toggle (spec.md §4.5, §9 open
// question 3). swipeRequiresSameDirection (a config bit) decides whether both sides must
// move the same horizontal direction, or either side's displacement alone suffices.
func (c *Core) evaluateSwipe(now int64) bool {
	total := 0
	for _, rt := range c.sides {
		total += rt.liveCount
	}

	if total < 5 {
		c.swipe = swipeWatch{startX: make(map[frame.Side]float64)}
		return false
	}

	if !c.swipe.active {
		c.swipe.active = true
		c.swipe.fired = false
		c.swipe.startTicks = now
		c.swipe.startX = make(map[frame.Side]float64, len(c.sides))
		for side, rt := range c.sides {
			c.swipe.startX[side] = rt.centroidX
		}
		return false
	}

	if c.swipe.fired {
		return false
	}

	if now-c.swipe.startTicks > intent.Ticks(c.cfg.SwipeWindow) {
		return false
	}

	var dirs []float64
	for side, rt := range c.sides {
		start, ok := c.swipe.startX[side]
		if !ok {
			continue
		}
		delta := rt.centroidX - start
		if abs(delta) >= c.cfg.SwipeThreshold {
			dirs = append(dirs, delta)
		}
	}

	if len(dirs) == 0 {
		return false
	}
	if c.cfg.SwipeRequiresSameDirection && len(c.sides) > 1 {
		if len(dirs) < 2 {
			return false
		}
		if (dirs[0] > 0) != (dirs[1] > 0) {
			return false
		}
	}

	c.swipe.fired = true
	return true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Diagnostics returns a snapshot of the current diagnostic counters.
func (c *Core) Diagnostics() Diagnostics { return c.statusPatch().Diagnostics }
