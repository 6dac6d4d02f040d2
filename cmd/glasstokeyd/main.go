// glasstokeyd turns an Apple Magic Trackpad into a keyboard.
//
// It runs the touch processing engine as a background actor, feeding it frames from a
// capture collaborator (USB HID or Linux evdev), driving a dispatch pump that turns engine
// output into simulated key/mouse events, and exposing a local debug HTTP API, a system
// tray icon, and two global hotkeys (typing toggle, keyboard-mode toggle).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"github.com/glasstokey/glasstokey/internal/autostart"
	"github.com/glasstokey/glasstokey/internal/capture/evdev"
	"github.com/glasstokey/glasstokey/internal/capture/usb"
	"github.com/glasstokey/glasstokey/internal/core"
	"github.com/glasstokey/glasstokey/internal/debugserver"
	"github.com/glasstokey/glasstokey/internal/dispatch"
	"github.com/glasstokey/glasstokey/internal/engine"
	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/hotkey"
	"github.com/glasstokey/glasstokey/internal/keymap"
	"github.com/glasstokey/glasstokey/internal/settings"
	"github.com/glasstokey/glasstokey/internal/sink/keysim"
	"github.com/glasstokey/glasstokey/internal/tray"
)

var version = "dev"

// appleTrackpadVendorID and appleTrackpadProductID identify an Apple Magic Trackpad 2 over
// USB-C. Bluetooth-paired trackpads surface as an evdev node instead; see CaptureDevice.
const (
	appleTrackpadVendorID  = gousb.ID(0x05ac)
	appleTrackpadProductID = gousb.ID(0x0265)
)

func main() {
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	evdevPath := flag.String("evdev-device", "/dev/input/event0", "evdev device path used when capture_device=evdev")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}
	entry := logrus.NewEntry(log)

	s, err := settings.LoadSettings()
	if err != nil {
		entry.WithError(err).Fatal("load settings")
	}
	km, err := settings.LoadKeymap()
	if err != nil {
		entry.WithError(err).Fatal("load keymap")
	}

	presets := keymap.DefaultPresets()
	preset, ok := presets[s.Preset]
	if !ok {
		entry.WithField("preset", s.Preset).Warn("unknown preset, falling back to 6x3")
		preset = presets["6x3"]
	}
	left, right := keymap.BuildLayouts(preset, nil)
	layouts := map[frame.Side]keymap.KeyLayout{frame.SideLeft: left, frame.SideRight: right}

	cfg := core.DefaultConfig(s.Preset)
	cfg.SwipeWindow = time.Duration(s.SwipeWindowMS) * time.Millisecond
	cfg.SwipeThreshold = s.SwipeThreshold
	cfg.SwipeRequiresSameDirection = s.SwipeRequiresSameDirection

	dispatchQ := dispatch.NewQueue(dispatch.DefaultCapacity)
	eng := engine.New(cfg, km, layouts, s.SnapRadius, dispatchQ, entry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eng.Run(ctx)

	sinkEntry := entry.WithField("component", "keysim")
	ks := keysim.New(sinkEntry, int64(500*time.Millisecond))
	pump := dispatch.NewPump(dispatchQ, ks, entry)
	go pump.Run(ctx, func() int64 { return time.Now().UnixNano() })

	stopCapture := startCapture(ctx, s, *evdevPath, eng, entry)
	defer stopCapture()

	debug := debugserver.New(eng, s, version, entry)
	debugURL, err := debug.Start(s.DebugServerAddr)
	if err != nil {
		entry.WithError(err).Warn("debug server failed to start")
	}
	defer debug.Stop()

	bindings, err := hotkey.NewBindings(eng, s, entry)
	if err != nil {
		entry.WithError(err).Warn("hotkey registration failed; configure via the debug API")
	} else {
		defer bindings.Close()
	}

	watcher, err := settings.NewWatcher(
		func(reloaded *settings.Settings) {
			newCfg := cfg
			newCfg.SwipeWindow = time.Duration(reloaded.SwipeWindowMS) * time.Millisecond
			newCfg.SwipeThreshold = reloaded.SwipeThreshold
			newCfg.SwipeRequiresSameDirection = reloaded.SwipeRequiresSameDirection
			eng.ApplyConfig(newCfg)
		},
		func(reloadedKeymap *keymap.Keymap) {
			eng.ApplyKeymap(reloadedKeymap)
		},
		entry,
	)
	if err != nil {
		entry.WithError(err).Warn("settings watcher failed to start")
	} else {
		defer watcher.Close()
		go watcher.Run()
	}

	if s.AutoStart && !autostart.IsEnabled() {
		if err := autostart.Enable(); err != nil {
			entry.WithError(err).Warn("enable autostart")
		}
	}

	go tray.Run(tray.RunOpts{
		Version:             version,
		TypingEnabled:       true,
		KeyboardModeEnabled: true,
		DebugURL:            debugURL,
		OnOpenDebug: func() {
			if debugURL != "" {
				openBrowser(debugURL)
			}
		},
		OnToggleTyping:   func(enabled bool) { eng.SetTypingEnabled(enabled) },
		OnToggleKeyboard: func(enabled bool) { eng.SetKeyboardMode(enabled) },
		OnQuit: func() {
			cancel()
		},
	})

	entry.WithField("version", version).WithField("debug_url", debugURL).Info("glasstokeyd ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	entry.Info("shutting down")
	eng.Shutdown()
	ks.Shutdown()
	tray.Quit()
}

// startCapture wires the configured capture collaborator (USB HID or Linux evdev) to feed
// frames into eng, and returns a function that stops it.
func startCapture(ctx context.Context, s *settings.Settings, evdevPath string, eng *engine.Engine, log *logrus.Entry) func() {
	switch s.CaptureDevice {
	case "evdev":
		if runtime.GOOS != "linux" {
			log.Warn("capture_device=evdev requested on a non-linux platform; no capture started")
			return func() {}
		}
		dev, err := evdev.Open(evdevPath, frame.SideRight, frame.MaxContacts, log)
		if err != nil {
			log.WithError(err).Warn("open evdev device; no capture started")
			return func() {}
		}
		go dev.Run(ctx, eng.Ingest)
		return func() { _ = dev.Close() }

	default: // "usb"
		decoder := usb.RawContactDecoder{MaxX: 0xFFFF, MaxY: 0xFFFF}
		dev, err := usb.Open(appleTrackpadVendorID, appleTrackpadProductID, 0, 0, 0x81, frame.SideRight, decoder, log)
		if err != nil {
			log.WithError(err).Warn("open usb trackpad; no capture started")
			return func() {}
		}
		go dev.Run(ctx, eng.Ingest)
		return func() { dev.Close() }
	}
}

func openBrowser(url string) {
	var cmdName string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		cmdName, args = "open", []string{url}
	case "windows":
		cmdName, args = "cmd", []string{"/c", "start", url}
	default:
		cmdName, args = "xdg-open", []string{url}
	}
	if err := exec.Command(cmdName, args...).Start(); err != nil {
		fmt.Fprintf(os.Stderr, "open browser: %v\n", err)
	}
}
