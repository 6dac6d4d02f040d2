package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/keymap"
)

func buildTestLayouts() map[frame.Side]keymap.KeyLayout {
	preset := keymap.DefaultPresets()["6x3"]
	left, right := keymap.BuildLayouts(preset, nil)
	return map[frame.Side]keymap.KeyLayout{frame.SideLeft: left, frame.SideRight: right}
}

func TestHitFindsGridKeyUnderPoint(t *testing.T) {
	idx := Build(buildTestLayouts(), nil, "6x3", DefaultSnapRadius)

	res, ok := idx.Hit(frame.SideRight, 0, 0.02, 0.1)
	require.True(t, ok)
	assert.Equal(t, 0, res.Row)
	assert.Equal(t, 0, res.Col)
}

func TestHitSnapsWithinRadiusWhenOutsideEveryKey(t *testing.T) {
	layouts := buildTestLayouts()
	// The point sits just left of key (0,0), about 0.135 from its center once the y offset is
	// scaled by the pad aspect, so the snap radius has to exceed that for the snap to reach it.
	idx := Build(layouts, nil, "6x3", 0.15)

	res, ok := idx.Hit(frame.SideRight, 0, -0.001, 0.02)
	require.True(t, ok)
	assert.Equal(t, 0, res.Row)
	assert.Equal(t, 0, res.Col)
}

func TestHitReturnsFalseBeyondSnapRadius(t *testing.T) {
	idx := Build(buildTestLayouts(), nil, "6x3", DefaultSnapRadius)

	_, ok := idx.Hit(frame.SideRight, 0, -1, -1)
	assert.False(t, ok)
}

func TestHitNeverCrossesSides(t *testing.T) {
	idx := Build(buildTestLayouts(), nil, "6x3", DefaultSnapRadius)

	_, ok := idx.Hit(frame.SideUnknown, 0, 0.1, 0.1)
	assert.False(t, ok)
}

func TestHitPrefersCustomButtonOverGrid(t *testing.T) {
	layouts := buildTestLayouts()
	doc := `{"version":1,"layouts":{"6x3":{"mappings":{},"custom_buttons":{"0":[
		{"id":"custom1","side":"right","x":0,"y":0,"w":0.2,"h":0.2,"primary":{"label":"x","semantic":"letter"}}
	]}}}}`
	km, err := keymap.Load([]byte(doc))
	require.NoError(t, err)
	idx := Build(layouts, km, "6x3", DefaultSnapRadius)

	res, ok := idx.Hit(frame.SideRight, 0, 0.02, 0.02)
	require.True(t, ok)
	assert.True(t, res.IsCustom)
	assert.Equal(t, "custom1", res.CustomID)
}
