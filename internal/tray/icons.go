package tray

// Icon bitmaps for the tray's three states. These are intentionally minimal
// placeholders; packaging swaps them for real multi-resolution ICO/PNG assets.
var (
	IconIdle    = []byte{}
	IconTyping  = []byte{}
	IconMouse   = []byte{}
)
