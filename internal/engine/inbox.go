package engine

import (
	"sync"

	"github.com/glasstokey/glasstokey/internal/core"
	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/keymap"
)

// MessageKind tags what an Engine Actor message carries (spec.md §4.7 C7).
type MessageKind int

const (
	MsgIngest MessageKind = iota
	MsgApplyConfig
	MsgApplyKeymap
	MsgApplyLayouts
	MsgSetLayer
	MsgSetTypingEnabled
	MsgSetKeyboardMode
	MsgShutdown
)

// Message is the tagged-union payload posted to the Engine Actor's inbox.
type Message struct {
	Kind     MessageKind
	Frame    *frame.Frame
	Config   *core.Config
	Keymap   *keymap.Keymap
	Layouts  map[frame.Side]keymap.KeyLayout
	Preset   string
	Layer    uint8
	Enabled  bool
}

// inbox implements spec.md §4.7's delivery policy: at most one pending Ingest message per
// side (a newer Ingest overwrites an older undelivered one for the same side — the Core only
// ever needs the latest frame), while every control message (ApplyConfig, SetLayer, ...) is
// queued and delivered in order, never dropped. A slice-backed FIFO is adequate here because
// control traffic is rare (human-speed settings changes, not per-frame).
type inbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending [3]*frame.Frame // indexed by frame.Side (Unknown/Left/Right)
	control []Message
	closed  bool
	dropped uint64 // frames overwritten before the actor loop ever saw them
}

func newInbox() *inbox {
	ib := &inbox{}
	ib.cond = sync.NewCond(&ib.mu)
	return ib
}

// sendIngest posts a new frame, replacing any undelivered frame for the same side. A frame
// that gets overwritten before the actor loop ever delivers it counts as dropped (spec.md §8:
// "Inbox full under sustained load: drops are counted; no crash"). A nil frame, or one whose
// Side is outside SideUnknown/SideLeft/SideRight, is discarded.
func (ib *inbox) sendIngest(f *frame.Frame) {
	ib.mu.Lock()
	if f == nil || int(f.Side) >= len(ib.pending) {
		ib.mu.Unlock()
		return
	}
	if ib.pending[f.Side] != nil {
		ib.dropped++
	}
	ib.pending[f.Side] = f
	ib.cond.Signal()
	ib.mu.Unlock()
}

// Dropped returns the number of Ingest frames overwritten before delivery.
func (ib *inbox) Dropped() uint64 {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.dropped
}

// sendControl posts a control message; always delivered, never replaced or dropped.
func (ib *inbox) sendControl(m Message) {
	ib.mu.Lock()
	ib.control = append(ib.control, m)
	ib.cond.Signal()
	ib.mu.Unlock()
}

// next blocks until a message is available or the inbox is closed. Control messages are
// delivered strictly before any pending Ingest, so settings changes never get starved behind
// a steady stream of frames.
func (ib *inbox) next() (Message, bool) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	for {
		if len(ib.control) > 0 {
			m := ib.control[0]
			ib.control = ib.control[1:]
			return m, true
		}
		for side := range ib.pending {
			if ib.pending[side] != nil {
				f := ib.pending[side]
				ib.pending[side] = nil
				return Message{Kind: MsgIngest, Frame: f}, true
			}
		}
		if ib.closed {
			return Message{}, false
		}
		ib.cond.Wait()
	}
}

func (ib *inbox) close() {
	ib.mu.Lock()
	ib.closed = true
	ib.cond.Broadcast()
	ib.mu.Unlock()
}
