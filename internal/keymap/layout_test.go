package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasstokey/glasstokey/internal/frame"
)

func TestStorageKeyRoundTrip(t *testing.T) {
	sk := StorageKey(frame.SideRight, 2, 3)
	side, row, col, err := ParseStorageKey(sk)
	require.NoError(t, err)
	assert.Equal(t, frame.SideRight, side)
	assert.Equal(t, 2, row)
	assert.Equal(t, 3, col)
}

func TestParseStorageKeyRejectsMalformed(t *testing.T) {
	_, _, _, err := ParseStorageKey("garbage")
	assert.Error(t, err)
}

func TestBuildLayoutsCoversEveryCell(t *testing.T) {
	preset := DefaultPresets()["6x3"]
	left, right := BuildLayouts(preset, nil)

	assert.Len(t, right.Keys, preset.Rows*preset.Cols)
	assert.Len(t, left.Keys, preset.Rows*preset.Cols)
}

func TestBuildLayoutsMirrorsColumnOrder(t *testing.T) {
	preset := DefaultPresets()["6x3"]
	left, right := BuildLayouts(preset, nil)

	rightFirstCol := right.Keys[StorageKey(frame.SideRight, 0, 0)]
	leftLastCol := left.Keys[StorageKey(frame.SideLeft, 0, preset.Cols-1)]

	wantX := 1 - rightFirstCol.X - rightFirstCol.W
	assert.InDelta(t, wantX, leftLastCol.X, 1e-9)
}

func TestBuildLayoutsFallsBackToEvenColumnsWhenMismatched(t *testing.T) {
	preset := Preset{Name: "3x1", Rows: 1, Cols: 3}
	_, right := BuildLayouts(preset, []ColumnSetting{{WidthFraction: 1}})

	k0 := right.Keys[StorageKey(frame.SideRight, 0, 0)]
	k1 := right.Keys[StorageKey(frame.SideRight, 0, 1)]
	assert.InDelta(t, k0.W, k1.W, 1e-9)
}

func TestMirrorAngleWrapsAroundRange(t *testing.T) {
	assert.InDelta(t, 170.0, mirrorAngle(-170), 1e-9)
	assert.InDelta(t, -90.0, mirrorAngle(90), 1e-9)
}
