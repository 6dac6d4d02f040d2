// Package engine implements the single-consumer Engine Actor (spec.md §4.7 C7): the only
// goroutine that ever touches the Touch Processor Core, its Binding Index, or its Touch
// Table. Every other goroutine (capture collaborators, the debug server, the tray, hotkey
// handlers) communicates with it exclusively through inbox messages.
package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/glasstokey/glasstokey/internal/binding"
	"github.com/glasstokey/glasstokey/internal/core"
	"github.com/glasstokey/glasstokey/internal/dispatch"
	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/keymap"
)

// Engine owns the Core and drives it from its inbox on a single goroutine.
type Engine struct {
	core       *core.Core
	inbox      *inbox
	dispatchQ  *dispatch.Queue
	snapshot   *SnapshotService
	log        *logrus.Entry

	preset     string
	layouts    map[frame.Side]keymap.KeyLayout
	km         *keymap.Keymap
	snapRadius float64
}

// New constructs an Engine. dispatchQ is the bounded ring the Core's DispatchEvents are
// pushed into; the Pump (dispatch.Pump) drains it on its own goroutine.
func New(cfg core.Config, km *keymap.Keymap, layouts map[frame.Side]keymap.KeyLayout, snapRadius float64, dispatchQ *dispatch.Queue, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	idx := binding.Build(layouts, km, cfg.Preset, snapRadius)
	return &Engine{
		core:       core.New(cfg, km, idx),
		inbox:      newInbox(),
		dispatchQ:  dispatchQ,
		snapshot:   NewSnapshotService(),
		log:        log.WithField("component", "engine"),
		preset:     cfg.Preset,
		layouts:    layouts,
		km:         km,
		snapRadius: snapRadius,
	}
}

// Snapshots exposes the read-only snapshot service for other goroutines.
func (e *Engine) Snapshots() *SnapshotService { return e.snapshot }

// Ingest posts a frame for processing. Safe to call from any capture-collaborator goroutine.
// A nil frame, or one whose Side is outside SideUnknown/SideLeft/SideRight, is discarded.
func (e *Engine) Ingest(f *frame.Frame) { e.inbox.sendIngest(f) }

// ApplyConfig posts a new intent/core Config, taking effect on the next processed message.
func (e *Engine) ApplyConfig(cfg core.Config) { e.inbox.sendControl(Message{Kind: MsgApplyConfig, Config: &cfg}) }

// ApplyKeymap posts a replacement Keymap; the Engine rebuilds the Binding Index before the
// next frame is processed (spec.md §4.3: rebuilt only on layout/keymap change).
func (e *Engine) ApplyKeymap(km *keymap.Keymap) { e.inbox.sendControl(Message{Kind: MsgApplyKeymap, Keymap: km}) }

// ApplyLayouts posts replacement per-side layouts (e.g. after a preset switch).
func (e *Engine) ApplyLayouts(preset string, layouts map[frame.Side]keymap.KeyLayout) {
	e.inbox.sendControl(Message{Kind: MsgApplyLayouts, Preset: preset, Layouts: layouts})
}

// SetLayer posts a persistent-layer change.
func (e *Engine) SetLayer(layer uint8) { e.inbox.sendControl(Message{Kind: MsgSetLayer, Layer: layer}) }

// SetTypingEnabled posts a typing-enabled gate change (e.g. from the typing-toggle hotkey).
// The five-finger swipe toggles the gate inside the Core without going through this message.
func (e *Engine) SetTypingEnabled(enabled bool) {
	e.inbox.sendControl(Message{Kind: MsgSetTypingEnabled, Enabled: enabled})
}

// SetKeyboardMode posts a keyboard-mode flag change.
func (e *Engine) SetKeyboardMode(enabled bool) {
	e.inbox.sendControl(Message{Kind: MsgSetKeyboardMode, Enabled: enabled})
}

// ProcessSync processes a single frame synchronously, bypassing the inbox goroutine
// entirely. The Replay Harness (spec.md §4.11) uses this instead of Ingest/Run because
// determinism requires driving the Core strictly one frame at a time with no actor-loop
// scheduling jitter between submission and the resulting snapshot. Must not be called
// concurrently with Run on the same Engine.
func (e *Engine) ProcessSync(f *frame.Frame) (core.StatusPatch, uint64) {
	events, render, status := e.core.Process(f)
	for _, ev := range events {
		e.dispatchQ.Push(ev)
	}
	rev := e.snapshot.Publish(render, status)
	return status, rev
}

// Shutdown posts a stop request behind any control messages already queued. Control messages
// are delivered ahead of frames, so frames still pending in the inbox when the stop request is
// handled are not processed.
func (e *Engine) Shutdown() { e.inbox.sendControl(Message{Kind: MsgShutdown}) }

// Run drives the actor loop until Shutdown is posted or ctx is cancelled. Exactly one
// goroutine may call Run.
func (e *Engine) Run(ctx context.Context) {
	e.log.Debug("engine actor started")
	go func() {
		<-ctx.Done()
		e.inbox.close()
	}()

	for {
		m, ok := e.inbox.next()
		if !ok {
			e.log.Debug("engine actor stopped")
			return
		}
		if e.handle(m) {
			e.log.Debug("engine actor shut down")
			return
		}
	}
}

// handle processes one message; returns true if the loop should stop.
func (e *Engine) handle(m Message) bool {
	switch m.Kind {
	case MsgIngest:
		events, render, status := e.core.Process(m.Frame)
		for _, ev := range events {
			if !e.dispatchQ.Push(ev) {
				e.log.WithField("event", ev.String()).Warn("dispatch queue full, event dropped")
			}
		}
		status.Diagnostics.IngestDropped = e.inbox.Dropped()
		e.snapshot.Publish(render, status)

	case MsgApplyConfig:
		if m.Config != nil {
			e.core.ApplyConfig(*m.Config)
		}

	case MsgApplyKeymap:
		e.km = m.Keymap
		e.core.ApplyKeymap(e.km)
		e.core.ApplyBindingIndex(binding.Build(e.layouts, e.km, e.preset, e.snapRadius))

	case MsgApplyLayouts:
		e.preset = m.Preset
		e.layouts = m.Layouts
		e.core.ApplyBindingIndex(binding.Build(e.layouts, e.km, e.preset, e.snapRadius))

	case MsgSetLayer:
		e.core.SetLayer(m.Layer)

	case MsgSetTypingEnabled:
		e.core.SetTypingEnabled(m.Enabled)

	case MsgSetKeyboardMode:
		e.core.SetKeyboardMode(m.Enabled)

	case MsgShutdown:
		return true
	}
	return false
}
