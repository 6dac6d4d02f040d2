package hotkey

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.design/x/hotkey"

	"github.com/glasstokey/glasstokey/internal/engine"
	"github.com/glasstokey/glasstokey/internal/settings"
)

// Manager handles a single global hotkey registration with key-down/key-up callbacks.
type Manager struct {
	mu     sync.Mutex
	hk     *hotkey.Hotkey
	cancel context.CancelFunc
	onDown func()
	onUp   func()
	log    *logrus.Entry
}

// NewManager creates a hotkey manager with callbacks for key-down and key-up.
func NewManager(onDown, onUp func(), log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{onDown: onDown, onUp: onUp, log: log.WithField("component", "hotkey")}
}

// Register sets up a global hotkey with the given modifiers and key, replacing any previous
// registration on this Manager.
func (m *Manager) Register(mods []string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unregisterLocked()

	parsedMods, err := ParseModifiers(mods)
	if err != nil {
		return fmt.Errorf("parse modifiers: %w", err)
	}
	parsedKey, err := ParseKey(key)
	if err != nil {
		return fmt.Errorf("parse key: %w", err)
	}

	hk := hotkey.New(parsedMods, parsedKey)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey: %w", err)
	}
	m.hk = hk

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.listen(ctx, hk)

	m.log.WithField("modifiers", mods).WithField("key", key).Info("hotkey registered")
	return nil
}

// listen loops on keydown/keyup channels and calls the callbacks. Linux X11 auto-repeat
// generates spurious keyup/keydown pairs while a key is held; a short debounce on keyup
// absorbs those before treating the release as real.
func (m *Manager) listen(ctx context.Context, hk *hotkey.Hotkey) {
	isLinux := runtime.GOOS == "linux"
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			if isLinux && debounceTimer != nil {
				debounceTimer.Stop()
				debounceTimer = nil
				continue
			}
			if m.onDown != nil {
				m.onDown()
			}
		case <-hk.Keyup():
			if isLinux {
				debounceTimer = time.AfterFunc(50*time.Millisecond, func() {
					if m.onUp != nil {
						m.onUp()
					}
					m.mu.Lock()
					debounceTimer = nil
					m.mu.Unlock()
				})
			} else if m.onUp != nil {
				m.onUp()
			}
		}
	}
}

// Unregister removes the current global hotkey.
func (m *Manager) Unregister() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregisterLocked()
}

func (m *Manager) unregisterLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.hk != nil {
		m.hk.Unregister()
		m.hk = nil
	}
}

// Bindings owns the two global hotkeys spec.md's configuration channel exposes: one that
// toggles typing classification on and off, and one that toggles the engine's keyboard-mode
// flag. Both toggle on key-down only; key-up is ignored.
type Bindings struct {
	typing   *Manager
	keyboard *Manager

	mu              sync.Mutex
	typingEnabled   bool
	keyboardEnabled bool
}

// NewBindings registers the typing-toggle and keyboard-mode-toggle hotkeys from s against eng.
func NewBindings(eng *engine.Engine, s *settings.Settings, log *logrus.Entry) (*Bindings, error) {
	b := &Bindings{typingEnabled: true, keyboardEnabled: true}

	b.typing = NewManager(func() {
		b.mu.Lock()
		b.typingEnabled = !b.typingEnabled
		enabled := b.typingEnabled
		b.mu.Unlock()
		eng.SetTypingEnabled(enabled)
	}, nil, log)

	b.keyboard = NewManager(func() {
		b.mu.Lock()
		b.keyboardEnabled = !b.keyboardEnabled
		enabled := b.keyboardEnabled
		b.mu.Unlock()
		eng.SetKeyboardMode(enabled)
	}, nil, log)

	if err := b.typing.Register(s.TypingToggleHotkey.Modifiers, s.TypingToggleHotkey.Key); err != nil {
		return nil, fmt.Errorf("register typing toggle hotkey: %w", err)
	}
	if err := b.keyboard.Register(s.KeyboardModeHotkey.Modifiers, s.KeyboardModeHotkey.Key); err != nil {
		b.typing.Unregister()
		return nil, fmt.Errorf("register keyboard mode hotkey: %w", err)
	}
	return b, nil
}

// Close unregisters both hotkeys.
func (b *Bindings) Close() {
	b.typing.Unregister()
	b.keyboard.Unregister()
}
