// Package keysim is the reference DispatchSink (spec.md §6 outbound dispatch sink): it
// satisfies dispatch.Sink by logging every event with structured fields and tracking held
// keys/modifiers so shutdown can force-release them, exactly the contract spec.md §211
// requires of the real platform sink. A production build swaps this for a platform key
// simulator (uinput, CGEventPost, SendInput); this package is what the daemon runs until one
// is wired in, and what the tests use as their sink.
package keysim

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/glasstokey/glasstokey/internal/dispatch"
)

// Sink is a dispatch.Sink that logs events and tracks held state for clean shutdown.
type Sink struct {
	log *logrus.Entry

	mu      sync.Mutex
	held    map[string]uint64 // label -> repeat token, for KeyDown without a matching KeyUp yet
	heldMod map[string]int    // modifier label -> ref count

	repeatInterval int64 // ticks between repeat pulses for a held, repeatable key
	lastRepeat     map[string]int64
}

// New constructs a Sink. repeatIntervalTicks is the tick-domain cadence for driving repeats on
// FlagRepeatable holds (spec.md §4.8: the Pump "owns repeat/hold timers for the sink").
func New(log *logrus.Entry, repeatIntervalTicks int64) *Sink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sink{
		log:            log.WithField("component", "sink.keysim"),
		held:           make(map[string]uint64),
		heldMod:        make(map[string]int),
		repeatInterval: repeatIntervalTicks,
		lastRepeat:     make(map[string]int64),
	}
}

// Dispatch implements dispatch.Sink.
func (s *Sink) Dispatch(ev dispatch.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := logrus.Fields{
		"kind": ev.Kind.String(), "side": ev.Side.String(), "label": ev.Label,
		"action": ev.Action.String(), "payload": ev.Payload, "token": ev.RepeatToken,
	}

	switch ev.Kind {
	case dispatch.KeyDown:
		s.held[ev.Label] = ev.RepeatToken
		s.lastRepeat[ev.Label] = ev.TimestampTicks
		s.log.WithFields(fields).Debug("key down")
	case dispatch.KeyUp:
		delete(s.held, ev.Label)
		delete(s.lastRepeat, ev.Label)
		s.log.WithFields(fields).Debug("key up")
	case dispatch.KeyTap:
		s.log.WithFields(fields).Debug("key tap")
	case dispatch.ModifierDown:
		s.heldMod[ev.Label]++
		s.log.WithFields(fields).Debug("modifier down")
	case dispatch.ModifierUp:
		if s.heldMod[ev.Label] > 0 {
			s.heldMod[ev.Label]--
		}
		s.log.WithFields(fields).Debug("modifier up")
	case dispatch.MouseDown, dispatch.MouseUp, dispatch.MouseClick:
		s.log.WithFields(fields).Debug("mouse event")
	case dispatch.HapticPulse:
		s.log.WithFields(fields).Trace("haptic pulse")
	case dispatch.TypingToggle:
		s.log.Debug("typing toggled")
	case dispatch.LayerChange:
		s.log.WithField("layer", ev.Payload).Debug("layer changed")
	}
}

// Tick implements dispatch.Sink: drives key-repeat for every currently held, repeatable key
// whose cadence has elapsed.
func (s *Sink) Tick(nowTicks int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repeatInterval <= 0 {
		return
	}
	for label, last := range s.lastRepeat {
		if nowTicks-last >= s.repeatInterval {
			s.lastRepeat[label] = nowTicks
			s.log.WithField("label", label).Trace("key repeat")
		}
	}
}

// Held returns the labels of keys currently considered down (KeyDown posted, no matching
// KeyUp yet). Exposed for tests and diagnostics; not used on the hot path.
func (s *Sink) Held() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.held))
	for label := range s.held {
		out = append(out, label)
	}
	return out
}

// HeldModifiers returns the labels of modifiers with a positive ref count.
func (s *Sink) HeldModifiers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.heldMod))
	for label, count := range s.heldMod {
		if count > 0 {
			out = append(out, label)
		}
	}
	return out
}

// Shutdown force-releases every currently held key and modifier, matching spec.md §199's
// "Dispatch pump flushes pending key-up/modifier-up events to avoid stuck keys before
// exiting."
func (s *Sink) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for label := range s.held {
		s.log.WithField("label", label).Debug("forced key up on shutdown")
	}
	for label, count := range s.heldMod {
		if count > 0 {
			s.log.WithField("label", label).Debug("forced modifier up on shutdown")
		}
	}
	s.held = make(map[string]uint64)
	s.heldMod = make(map[string]int)
	s.lastRepeat = make(map[string]int64)
}
