// Package dispatch implements the DispatchEvent value type, the bounded dispatch ring, and
// the pump that drains it into the external sink (spec.md §3 DispatchEvent, §4.8 C8).
package dispatch

import (
	"fmt"

	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/keymap"
)

// Kind tags the semantic payload a DispatchEvent carries.
type Kind uint8

const (
	KeyTap Kind = iota
	KeyDown
	KeyUp
	ModifierDown
	ModifierUp
	MouseClick
	MouseDown
	MouseUp
	HapticPulse
	TypingToggle
	LayerChange
)

func (k Kind) String() string {
	switch k {
	case KeyTap:
		return "KeyTap"
	case KeyDown:
		return "KeyDown"
	case KeyUp:
		return "KeyUp"
	case ModifierDown:
		return "ModifierDown"
	case ModifierUp:
		return "ModifierUp"
	case MouseClick:
		return "MouseClick"
	case MouseDown:
		return "MouseDown"
	case MouseUp:
		return "MouseUp"
	case HapticPulse:
		return "HapticPulse"
	case TypingToggle:
		return "TypingToggle"
	case LayerChange:
		return "LayerChange"
	default:
		return "Unknown"
	}
}

// Flag is a bitset of dispatch-policy hints.
type Flag uint8

const (
	// FlagRepeatable marks events the Pump should drive key-repeat for via sink.Tick.
	FlagRepeatable Flag = 1 << 0
	// FlagHaptic marks events that should also trigger a haptic pulse on the sink.
	FlagHaptic Flag = 1 << 1
	// FlagModifier marks ModifierDown/Up events, which the dispatch ring never drops
	// (spec.md §4.8).
	FlagModifier Flag = 1 << 2
)

// Event is the tagged-union output of the Core, posted to the Dispatch Queue (spec.md §3).
type Event struct {
	Kind           Kind
	Side           frame.Side
	Action         keymap.SemanticAction
	Label          string
	Payload        string
	RepeatToken    uint64
	TimestampTicks int64
	Flags          Flag
}

// IsModifier reports whether this event must never be dropped by the dispatch ring.
func (e Event) IsModifier() bool {
	return e.Kind == ModifierDown || e.Kind == ModifierUp || e.Flags&FlagModifier != 0
}

func (e Event) String() string {
	return fmt.Sprintf("%s(side=%s label=%s action=%s token=%d)", e.Kind, e.Side, e.Label, e.Action, e.RepeatToken)
}
