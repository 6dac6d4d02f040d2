package keymap

import (
	"fmt"

	"github.com/glasstokey/glasstokey/internal/frame"
)

// Physical trackpad constants (spec.md §4.2): Apple Magic Trackpad dimensions in mm.
const (
	padWidthMM  = 160.0
	padHeightMM = 114.9
)

// StorageKey encodes a (side, row, col) position deterministically, per spec.md §3 Keymap.
func StorageKey(side frame.Side, row, col int) string {
	return fmt.Sprintf("%s:%d:%d", side, row, col)
}

// ColumnSetting controls how much normalized width one grid column occupies. Widths are
// relative; they are normalized to sum to 1 across a layout's columns.
type ColumnSetting struct {
	WidthFraction float64
}

// Preset names a grid shape ("6x3", "6x4", ...) and its per-column layout settings.
type Preset struct {
	Name    string
	Rows    int
	Cols    int
	Columns []ColumnSetting // not read by BuildLayouts, which takes column settings as an argument
}

// DefaultPresets returns the built-in grid presets named in spec.md §4.2.
func DefaultPresets() map[string]Preset {
	return map[string]Preset{
		"6x3": {Name: "6x3", Rows: 3, Cols: 6},
		"6x4": {Name: "6x4", Rows: 4, Cols: 6},
	}
}

// KeyLayout is a single side's computed key geometry for every grid position.
type KeyLayout struct {
	Side frame.Side
	Keys map[string]Key // storage key -> normalized rect
	Rows int
	Cols int
}

// BuildLayouts computes the right-side layout from preset and columnSettings, then mirrors
// it horizontally to produce the left side (spec.md §4.2 build_layouts). Right is primary.
func BuildLayouts(preset Preset, columnSettings []ColumnSetting) (left, right KeyLayout) {
	cols := columnSettings
	if len(cols) != preset.Cols {
		cols = evenColumns(preset.Cols)
	}

	total := 0.0
	for _, c := range cols {
		total += c.WidthFraction
	}
	if total <= 0 {
		cols = evenColumns(preset.Cols)
		total = 1
	}

	right = KeyLayout{Side: frame.SideRight, Keys: make(map[string]Key, preset.Rows*preset.Cols), Rows: preset.Rows, Cols: preset.Cols}
	rowH := 1.0 / float64(preset.Rows)

	x := 0.0
	for col := 0; col < preset.Cols; col++ {
		w := cols[col].WidthFraction / total
		for row := 0; row < preset.Rows; row++ {
			y := float64(row) * rowH
			right.Keys[StorageKey(frame.SideRight, row, col)] = Key{X: x, Y: y, W: w, H: rowH}
		}
		x += w
	}

	left = right.MirrorHorizontally(frame.SideLeft)
	return left, right
}

func evenColumns(n int) []ColumnSetting {
	cols := make([]ColumnSetting, n)
	for i := range cols {
		cols[i] = ColumnSetting{WidthFraction: 1}
	}
	return cols
}

// MirrorHorizontally reflects a layout about the vertical midline (x' = 1 - x - w), relabeling
// every key's storage key for the new side. Column index is mirrored too so column 0 on the
// right corresponds to the last column on the left, matching a physically mirrored keyboard.
func (l KeyLayout) MirrorHorizontally(newSide frame.Side) KeyLayout {
	out := KeyLayout{Side: newSide, Keys: make(map[string]Key, len(l.Keys)), Rows: l.Rows, Cols: l.Cols}
	for sk, k := range l.Keys {
		side, row, col, err := ParseStorageKey(sk)
		if err != nil {
			continue
		}
		_ = side
		mirroredCol := l.Cols - 1 - col
		mirrored := Key{
			X:           1 - k.X - k.W,
			Y:           k.Y,
			W:           k.W,
			H:           k.H,
			RotationDeg: mirrorAngle(k.RotationDeg),
		}
		out.Keys[StorageKey(newSide, row, mirroredCol)] = mirrored
	}
	return out
}

func mirrorAngle(deg float64) float64 {
	m := -deg
	if m <= -180 {
		m += 360
	}
	if m > 180 {
		m -= 360
	}
	return m
}

// ParseStorageKey decodes a "<side>:<row>:<col>" storage key.
func ParseStorageKey(sk string) (side frame.Side, row, col int, err error) {
	var sideStr string
	n, scanErr := fmt.Sscanf(sk, "%[^:]:%d:%d", &sideStr, &row, &col)
	if scanErr != nil || n != 3 {
		return frame.SideUnknown, 0, 0, fmt.Errorf("malformed storage key %q", sk)
	}
	switch sideStr {
	case "left":
		side = frame.SideLeft
	case "right":
		side = frame.SideRight
	default:
		side = frame.SideUnknown
	}
	return side, row, col, nil
}
