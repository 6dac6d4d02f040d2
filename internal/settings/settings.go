// Package settings persists the daemon's user-configurable settings (spec.md §6) and the
// keymap document, atomically (write-temp-then-rename), and hot-reloads both files via
// fsnotify so edits made by an external tool (or a future settings UI) take effect without
// restarting the daemon.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/glasstokey/glasstokey/internal/keymap"
)

// Settings holds the daemon-level configuration described in spec.md §6: active preset,
// snap radius, swipe-toggle tuning, capture device selection, and ambient service toggles.
type Settings struct {
	mu sync.RWMutex `json:"-"`

	Preset                     string  `json:"preset"`
	SnapRadius                 float64 `json:"snap_radius"`
	SwipeRequiresSameDirection bool    `json:"swipe_requires_same_direction"`
	SwipeWindowMS              int     `json:"swipe_window_ms"`
	SwipeThreshold             float64 `json:"swipe_threshold"`
	CaptureDevice              string  `json:"capture_device"` // "usb" or "evdev"
	DebugServerAddr            string  `json:"debug_server_addr"`
	AutoStart                  bool    `json:"auto_start"`
	KeyboardModeHotkey         HotkeyBinding `json:"keyboard_mode_hotkey"`
	TypingToggleHotkey         HotkeyBinding `json:"typing_toggle_hotkey"`
}

// HotkeyBinding names a global hotkey as a modifier set plus a key.
type HotkeyBinding struct {
	Modifiers []string `json:"modifiers"`
	Key       string   `json:"key"`
}

// DefaultSettings returns the out-of-box configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Preset:                     "6x3",
		SnapRadius:                 0.05,
		SwipeRequiresSameDirection: true,
		SwipeWindowMS:              350,
		SwipeThreshold:             0.15,
		CaptureDevice:              "usb",
		DebugServerAddr:            "127.0.0.1:8417",
		AutoStart:                  false,
		KeyboardModeHotkey:         HotkeyBinding{Modifiers: []string{"ctrl", "alt"}, Key: "k"},
		TypingToggleHotkey:         HotkeyBinding{Modifiers: []string{"ctrl", "alt"}, Key: "t"},
	}
}

// Dir returns the OS config directory for glasstokey.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(base, "glasstokey"), nil
}

// SettingsPath returns the path to settings.json.
func SettingsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// KeymapPath returns the path to keymap.json.
func KeymapPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "keymap.json"), nil
}

// LoadSettings reads settings.json, creating it with defaults on first run.
func LoadSettings() (*Settings, error) {
	p, err := SettingsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		s := DefaultSettings()
		if saveErr := s.Save(); saveErr != nil {
			return nil, fmt.Errorf("create default settings: %w", saveErr)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Save writes settings.json atomically (write temp, rename).
func (s *Settings) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	p, err := SettingsPath()
	if err != nil {
		return err
	}
	return atomicWrite(p, data)
}

// SetPreset updates the active preset and persists it.
func (s *Settings) SetPreset(preset string) error {
	s.mu.Lock()
	s.Preset = preset
	s.mu.Unlock()
	return s.Save()
}

// Clone returns a value copy of s safe to read without holding its lock.
func (s *Settings) Clone() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *s
	cp.mu = sync.RWMutex{}
	return cp
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// LoadKeymap reads keymap.json, creating an empty default document on first run.
func LoadKeymap() (*keymap.Keymap, error) {
	p, err := KeymapPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		km, parseErr := keymap.Load([]byte(`{"version":1,"layouts":{"6x3":{"mappings":{},"custom_buttons":{}}}}`))
		if parseErr != nil {
			return nil, parseErr
		}
		if saveErr := SaveKeymap(km); saveErr != nil {
			return nil, fmt.Errorf("create default keymap: %w", saveErr)
		}
		return km, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keymap: %w", err)
	}
	return keymap.Load(data)
}

// SaveKeymap encodes and atomically persists km.
func SaveKeymap(km *keymap.Keymap) error {
	data, err := km.Encode()
	if err != nil {
		return err
	}
	p, err := KeymapPath()
	if err != nil {
		return err
	}
	return atomicWrite(p, data)
}

// Watcher hot-reloads settings.json and keymap.json on external changes (e.g. a settings UI,
// or an operator editing the file by hand), via a dedicated goroutine driven by an fsnotify
// watch on the config directory.
type Watcher struct {
	w           *fsnotify.Watcher
	log         *logrus.Entry
	onSettings  func(*Settings)
	onKeymap    func(*keymap.Keymap)
}

// NewWatcher creates a Watcher over the glasstokey config directory.
func NewWatcher(onSettings func(*Settings), onKeymap func(*keymap.Keymap), log *logrus.Entry) (*Watcher, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Watcher{w: fw, log: log.WithField("component", "settings.watcher"), onSettings: onSettings, onKeymap: onKeymap}, nil
}

// Run processes fsnotify events until the watcher is closed.
func (w *Watcher) Run() {
	settingsPath, _ := SettingsPath()
	keymapPath, _ := KeymapPath()

	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			switch ev.Name {
			case settingsPath:
				s, err := LoadSettings()
				if err != nil {
					w.log.WithError(err).Warn("reload settings failed")
					continue
				}
				if w.onSettings != nil {
					w.onSettings(s)
				}
			case keymapPath:
				km, err := LoadKeymap()
				if err != nil {
					w.log.WithError(err).Warn("reload keymap failed")
					continue
				}
				if w.onKeymap != nil {
					w.onKeymap(km)
				}
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("fsnotify error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.w.Close() }
