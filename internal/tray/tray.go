// Package tray manages the system tray icon and menu, giving a human a way to see which
// mode GlassToKey is in and toggle typing/keyboard mode without touching the debug HTTP API
// (spec.md §3 StatusSnapshot, §6 "Configuration channel").
package tray

import (
	"fmt"

	"fyne.io/systray"

	"github.com/glasstokey/glasstokey/internal/core"
	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/intent"
)

// RunOpts configures the system tray.
type RunOpts struct {
	Version             string
	TypingEnabled       bool
	KeyboardModeEnabled bool
	DebugURL            string
	OnOpenDebug         func()
	OnToggleTyping      func(enabled bool)
	OnToggleKeyboard    func(enabled bool)
	OnQuit              func()
}

var (
	mStatusLeft  *systray.MenuItem
	mStatusRight *systray.MenuItem
	mLayer       *systray.MenuItem
)

// Run starts the system tray. It blocks on the calling goroutine until Quit is called.
func Run(opts RunOpts) {
	systray.Run(func() {
		systray.SetIcon(IconIdle)
		systray.SetTitle("")
		systray.SetTooltip("GlassToKey")

		versionLabel := "GlassToKey"
		if opts.Version != "" && opts.Version != "dev" {
			versionLabel += " " + opts.Version
		}
		mVersion := systray.AddMenuItem(versionLabel, "")
		mVersion.Disable()

		systray.AddSeparator()

		mTyping := systray.AddMenuItemCheckbox("Typing Enabled", "Classify contacts as key presses", opts.TypingEnabled)
		mKeyboard := systray.AddMenuItemCheckbox("Keyboard Mode", "Set the engine's keyboard-mode flag", opts.KeyboardModeEnabled)
		mDebug := systray.AddMenuItem("Open Debug Page...", "Open the local status page")
		if opts.DebugURL == "" {
			mDebug.Disable()
		}

		systray.AddSeparator()

		mStatusLeft = systray.AddMenuItem("Left: idle", "")
		mStatusLeft.Disable()
		mStatusRight = systray.AddMenuItem("Right: idle", "")
		mStatusRight.Disable()
		mLayer = systray.AddMenuItem("Layer: 0", "")
		mLayer.Disable()

		systray.AddSeparator()

		mQuit := systray.AddMenuItem("Quit", "Exit GlassToKey")

		go func() {
			for {
				select {
				case <-mTyping.ClickedCh:
					if mTyping.Checked() {
						mTyping.Uncheck()
						if opts.OnToggleTyping != nil {
							opts.OnToggleTyping(false)
						}
					} else {
						mTyping.Check()
						if opts.OnToggleTyping != nil {
							opts.OnToggleTyping(true)
						}
					}
				case <-mKeyboard.ClickedCh:
					if mKeyboard.Checked() {
						mKeyboard.Uncheck()
						if opts.OnToggleKeyboard != nil {
							opts.OnToggleKeyboard(false)
						}
					} else {
						mKeyboard.Check()
						if opts.OnToggleKeyboard != nil {
							opts.OnToggleKeyboard(true)
						}
					}
				case <-mDebug.ClickedCh:
					if opts.OnOpenDebug != nil {
						opts.OnOpenDebug()
					}
				case <-mQuit.ClickedCh:
					if opts.OnQuit != nil {
						opts.OnQuit()
					}
					systray.Quit()
				}
			}
		}()
	}, func() {})
}

// SetStatus updates the tray icon and per-side status lines from an engine StatusPatch.
func SetStatus(status core.StatusPatch) {
	left := status.IntentBySide[frame.SideLeft]
	right := status.IntentBySide[frame.SideRight]

	switch {
	case left == intent.Mouse || right == intent.Mouse || left == intent.MouseCandidate || right == intent.MouseCandidate:
		systray.SetIcon(IconMouse)
	case status.TypingEnabled:
		systray.SetIcon(IconTyping)
	default:
		systray.SetIcon(IconIdle)
	}

	if mStatusLeft != nil {
		mStatusLeft.SetTitle(fmt.Sprintf("Left: %s", left.String()))
	}
	if mStatusRight != nil {
		mStatusRight.SetTitle(fmt.Sprintf("Right: %s", right.String()))
	}
	if mLayer != nil {
		mLayer.SetTitle(fmt.Sprintf("Layer: %d", status.Layer))
	}
}

// Quit stops the system tray.
func Quit() {
	systray.Quit()
}
